package database

import (
	"context"
	"fmt"

	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/uptrace/bun"
)

// DefaultDrawRewards is the catalog inserted into an empty draw_rewards table.
// Probabilities are percentage points.
func DefaultDrawRewards() []*models.DrawReward {
	return []*models.DrawReward{
		{Name: "0 exp", Kind: models.RewardExp, Value: 0, Probability: 40.00, Enabled: true},
		{Name: "100 exp", Kind: models.RewardExp, Value: 100, Probability: 58.90, Enabled: true},
		{Name: "500 exp", Kind: models.RewardExp, Value: 500, Probability: 1.00, Enabled: true},
		{Name: "60 USD gift card", Kind: models.RewardOther, Value: 60, Probability: 0.08, PeriodCap: 1, Enabled: true},
		{Name: "100 USD gift card", Kind: models.RewardOther, Value: 100, Probability: 0.02, PeriodCap: 1, Enabled: true},
	}
}

func SeedDrawRewards(ctx context.Context, db bun.IDB) error {
	count, err := db.NewSelect().Model((*models.DrawReward)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count draw rewards: %w", err)
	}
	if count > 0 {
		return nil
	}

	rewards := DefaultDrawRewards()
	if _, err := db.NewInsert().Model(&rewards).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert draw rewards: %w", err)
	}
	return nil
}
