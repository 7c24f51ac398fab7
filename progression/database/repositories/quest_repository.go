package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/uptrace/bun"
)

type QuestRepository interface {
	Create(ctx context.Context, quest *models.Quest) error
	Upsert(ctx context.Context, quest *models.Quest) error
	Get(ctx context.Context, id string) (*models.Quest, error)
	ListActive(ctx context.Context, guildID string, manual bool, now time.Time) ([]*models.Quest, error)
	Expire(ctx context.Context, id string, at time.Time) error
}

type questRepository struct {
	db bun.IDB
}

func NewQuestRepository(db bun.IDB) QuestRepository {
	return &questRepository{db: db}
}

func (r *questRepository) Create(ctx context.Context, quest *models.Quest) error {
	if quest.CreatedAt.IsZero() {
		quest.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NewInsert().Model(quest).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create quest: %w", err)
	}
	return nil
}

// Upsert writes a mission definition keyed by its id.
func (r *questRepository) Upsert(ctx context.Context, quest *models.Quest) error {
	if quest.CreatedAt.IsZero() {
		quest.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NewInsert().
		Model(quest).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("description = EXCLUDED.description").
		Set("reward_exp = EXCLUDED.reward_exp").
		Set("reward_silver = EXCLUDED.reward_silver").
		Set("repeatable = EXCLUDED.repeatable").
		Set("expire_date = EXCLUDED.expire_date").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert quest: %w", err)
	}
	return nil
}

func (r *questRepository) Get(ctx context.Context, id string) (*models.Quest, error) {
	quest := new(models.Quest)
	err := r.db.NewSelect().Model(quest).Where("id = ?", id).Scan(ctx)
	return quest, handleError("quest", id, err)
}

func (r *questRepository) ListActive(ctx context.Context, guildID string, manual bool, now time.Time) ([]*models.Quest, error) {
	var quests []*models.Quest
	err := r.db.NewSelect().
		Model(&quests).
		Where("guild_id = ?", guildID).
		Where("manual = ?", manual).
		Where("expire_date >= ?", now.UTC()).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list quests: %w", err)
	}
	return quests, nil
}

func (r *questRepository) Expire(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.Quest)(nil)).
		Set("expire_date = ?", at.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to expire quest: %w", err)
	}
	return nil
}
