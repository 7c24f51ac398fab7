package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/disgoorg/progression-bot/progression/logger"
)

const slowQueryThreshold = 500 * time.Millisecond

// QueryHook logs failed queries and queries slower than Slow. Missing rows
// are an expected outcome and stay quiet.
type QueryHook struct {
	Slow time.Duration
}

var _ bun.QueryHook = (*QueryHook)(nil)

func NewQueryHook(slow time.Duration) *QueryHook {
	return &QueryHook{Slow: slow}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	err := event.Err
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	if err != nil {
		logger.LogQuery(event.Query, event.StartTime, err)
		return
	}
	if took := time.Since(event.StartTime); h.Slow > 0 && took > h.Slow {
		slog.Warn("Slow query",
			slog.String("type", "db"),
			slog.String("operation", event.Operation()),
			slog.Duration("took", took.Round(time.Millisecond)),
			slog.String("query", event.Query))
	}
}
