package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/uptrace/bun"
)

type LedgerRepository interface {
	Insert(ctx context.Context, entry *models.LedgerEntry) error
	SumPositive(ctx context.Context, playerID string, currency models.Currency, category models.LedgerCategory, from, to time.Time) (int64, error)
	SumByCurrency(ctx context.Context, playerID string) (map[models.Currency]int64, error)
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]*models.LedgerEntry, error)
	ListBetween(ctx context.Context, guildID string, from, to time.Time) ([]*models.LedgerEntry, error)
}

type ledgerRepository struct {
	db bun.IDB
}

func NewLedgerRepository(db bun.IDB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Insert(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.EffectiveAt.IsZero() {
		entry.EffectiveAt = entry.CreatedAt
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.EffectiveAt = entry.EffectiveAt.UTC()

	if _, err := r.db.NewInsert().Model(entry).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// SumPositive adds up the positive, balance-moving entries whose effective
// time falls in [from, to).
func (r *ledgerRepository) SumPositive(ctx context.Context, playerID string, currency models.Currency, category models.LedgerCategory, from, to time.Time) (int64, error) {
	var sum int64
	err := r.db.NewSelect().
		Model((*models.LedgerEntry)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("player_id = ?", playerID).
		Where("currency = ?", currency).
		Where("category = ?", category).
		Where("audit = ?", false).
		Where("amount > 0").
		Where("effective_at >= ?", from.UTC()).
		Where("effective_at < ?", to.UTC()).
		Scan(ctx, &sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum, nil
}

func (r *ledgerRepository) SumByCurrency(ctx context.Context, playerID string) (map[models.Currency]int64, error) {
	var rows []struct {
		Currency models.Currency `bun:"currency"`
		Total    int64           `bun:"total"`
	}
	err := r.db.NewSelect().
		Model((*models.LedgerEntry)(nil)).
		Column("currency").
		ColumnExpr("COALESCE(SUM(amount), 0) AS total").
		Where("player_id = ?", playerID).
		Where("audit = ?", false).
		Group("currency").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger by currency: %w", err)
	}

	sums := make(map[models.Currency]int64, len(rows))
	for _, row := range rows {
		sums[row.Currency] = row.Total
	}
	return sums, nil
}

func (r *ledgerRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	err := r.db.NewSelect().
		Model(&entries).
		Where("player_id = ?", playerID).
		Order("id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

// ListBetween returns entries created in [from, to), for one guild or for all
// guilds when guildID is empty.
func (r *ledgerRepository) ListBetween(ctx context.Context, guildID string, from, to time.Time) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	q := r.db.NewSelect().
		Model(&entries).
		Where("created_at >= ?", from.UTC()).
		Where("created_at < ?", to.UTC()).
		Order("id ASC")
	if guildID != "" {
		q = q.Where("guild_id = ?", guildID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list ledger range: %w", err)
	}
	return entries, nil
}
