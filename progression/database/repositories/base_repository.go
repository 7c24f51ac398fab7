package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

var ErrNotFound = errors.New("not found")

// NotFoundError represents an entity not found error
type NotFoundError struct {
	Entity string
	ID     interface{}
}

func (nfe *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %v not found", nfe.Entity, nfe.ID)
}

func (nfe *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func handleError(entity string, id interface{}, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return fmt.Errorf("%s %v: %w", entity, id, err)
}

// forUpdate adds a row lock where the dialect supports one. sqlite serializes
// writers on its own.
func forUpdate(db bun.IDB, q *bun.SelectQuery) *bun.SelectQuery {
	if db.Dialect().Name() == dialect.PG {
		return q.For("UPDATE")
	}
	return q
}
