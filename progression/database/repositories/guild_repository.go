package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/uptrace/bun"
)

type GuildRepository interface {
	Touch(ctx context.Context, guildID string) error
	Get(ctx context.Context, guildID string) (*models.Guild, error)
	UpsertUser(ctx context.Context, userID, username string) error
}

type guildRepository struct {
	db bun.IDB
}

func NewGuildRepository(db bun.IDB) GuildRepository {
	return &guildRepository{db: db}
}

// Touch records guild activity, creating the guild row on first sight.
func (r *guildRepository) Touch(ctx context.Context, guildID string) error {
	now := time.Now().UTC()
	guild := &models.Guild{ID: guildID, LastInteract: now, CreatedAt: now}
	_, err := r.db.NewInsert().
		Model(guild).
		On("CONFLICT (id) DO UPDATE").
		Set("last_interact = EXCLUDED.last_interact").
		Set("deleted = ?", false).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to touch guild: %w", err)
	}
	return nil
}

func (r *guildRepository) Get(ctx context.Context, guildID string) (*models.Guild, error) {
	guild := new(models.Guild)
	err := r.db.NewSelect().Model(guild).Where("id = ?", guildID).Scan(ctx)
	return guild, handleError("guild", guildID, err)
}

func (r *guildRepository) UpsertUser(ctx context.Context, userID, username string) error {
	now := time.Now().UTC()
	user := &models.User{ID: userID, Username: username, CreatedAt: now, UpdatedAt: now}
	_, err := r.db.NewInsert().
		Model(user).
		On("CONFLICT (id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
