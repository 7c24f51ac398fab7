package repositories

import (
	"context"
	"fmt"

	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/uptrace/bun"
)

type CounterRepository interface {
	Get(ctx context.Context, playerID string) (*models.DailyCounter, error)
	GetForUpdate(ctx context.Context, playerID string) (*models.DailyCounter, error)
	Create(ctx context.Context, counter *models.DailyCounter) error
	Update(ctx context.Context, counter *models.DailyCounter) error
	ListPlayerIDs(ctx context.Context) ([]string, error)
}

type counterRepository struct {
	db bun.IDB
}

func NewCounterRepository(db bun.IDB) CounterRepository {
	return &counterRepository{db: db}
}

func (r *counterRepository) Get(ctx context.Context, playerID string) (*models.DailyCounter, error) {
	counter := new(models.DailyCounter)
	err := r.db.NewSelect().Model(counter).Where("player_id = ?", playerID).Scan(ctx)
	return counter, handleError("daily counter", playerID, err)
}

func (r *counterRepository) GetForUpdate(ctx context.Context, playerID string) (*models.DailyCounter, error) {
	counter := new(models.DailyCounter)
	err := forUpdate(r.db, r.db.NewSelect().Model(counter).Where("player_id = ?", playerID)).Scan(ctx)
	return counter, handleError("daily counter", playerID, err)
}

func (r *counterRepository) Create(ctx context.Context, counter *models.DailyCounter) error {
	_, err := r.db.NewInsert().
		Model(counter).
		On("CONFLICT (player_id) DO NOTHING").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create daily counter: %w", err)
	}
	return nil
}

func (r *counterRepository) Update(ctx context.Context, counter *models.DailyCounter) error {
	_, err := r.db.NewUpdate().
		Model(counter).
		Column("chat_exp", "voice_exp", "mission_exp", "doubled", "reset_at").
		Where("player_id = ?", counter.PlayerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update daily counter: %w", err)
	}
	return nil
}

func (r *counterRepository) ListPlayerIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*models.DailyCounter)(nil)).
		Column("player_id").
		Order("player_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily counters: %w", err)
	}
	return ids, nil
}
