package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/uptrace/bun"
)

type DrawRepository interface {
	ListRewards(ctx context.Context) ([]*models.DrawReward, error)
	LockCappedRewards(ctx context.Context) ([]*models.DrawReward, error)
	CountByReward(ctx context.Context, rewardIDs []int64, from, to time.Time) (map[int64]int, error)
	CountPlayerDraws(ctx context.Context, playerID string, from, to time.Time) (int, error)
	InsertHistory(ctx context.Context, history *models.DrawHistory) error
}

type drawRepository struct {
	db bun.IDB
}

func NewDrawRepository(db bun.IDB) DrawRepository {
	return &drawRepository{db: db}
}

func (r *drawRepository) ListRewards(ctx context.Context) ([]*models.DrawReward, error) {
	var rewards []*models.DrawReward
	err := r.db.NewSelect().
		Model(&rewards).
		Where("enabled = ?", true).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list draw rewards: %w", err)
	}
	return rewards, nil
}

// LockCappedRewards locks every reward with a period cap so concurrent draws
// count and consume capped rewards one at a time.
func (r *drawRepository) LockCappedRewards(ctx context.Context) ([]*models.DrawReward, error) {
	var rewards []*models.DrawReward
	q := r.db.NewSelect().
		Model(&rewards).
		Where("enabled = ?", true).
		Where("period_cap > 0").
		Order("id ASC")
	if err := forUpdate(r.db, q).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to lock capped rewards: %w", err)
	}
	return rewards, nil
}

func (r *drawRepository) CountByReward(ctx context.Context, rewardIDs []int64, from, to time.Time) (map[int64]int, error) {
	counts := make(map[int64]int, len(rewardIDs))
	if len(rewardIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		RewardID int64 `bun:"reward_id"`
		N        int   `bun:"n"`
	}
	err := r.db.NewSelect().
		Model((*models.DrawHistory)(nil)).
		Column("reward_id").
		ColumnExpr("COUNT(*) AS n").
		Where("reward_id IN (?)", bun.In(rewardIDs)).
		Where("draw_date >= ?", from.UTC()).
		Where("draw_date < ?", to.UTC()).
		Group("reward_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to count reward draws: %w", err)
	}
	for _, row := range rows {
		counts[row.RewardID] = row.N
	}
	return counts, nil
}

func (r *drawRepository) CountPlayerDraws(ctx context.Context, playerID string, from, to time.Time) (int, error) {
	n, err := r.db.NewSelect().
		Model((*models.DrawHistory)(nil)).
		Where("player_id = ?", playerID).
		Where("draw_date >= ?", from.UTC()).
		Where("draw_date < ?", to.UTC()).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count player draws: %w", err)
	}
	return n, nil
}

func (r *drawRepository) InsertHistory(ctx context.Context, history *models.DrawHistory) error {
	history.DrawDate = history.DrawDate.UTC()
	if _, err := r.db.NewInsert().Model(history).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert draw history: %w", err)
	}
	return nil
}
