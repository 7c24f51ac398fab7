package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/uptrace/bun"
)

type GuildConfigRepository interface {
	List(ctx context.Context, guildID string) ([]*models.GuildConfigItem, error)
	Get(ctx context.Context, guildID, name string) (*models.GuildConfigItem, error)
	Upsert(ctx context.Context, item *models.GuildConfigItem) error
	Delete(ctx context.Context, guildID, name string) (bool, error)
}

type guildConfigRepository struct {
	db bun.IDB
}

func NewGuildConfigRepository(db bun.IDB) GuildConfigRepository {
	return &guildConfigRepository{db: db}
}

func (r *guildConfigRepository) List(ctx context.Context, guildID string) ([]*models.GuildConfigItem, error) {
	var items []*models.GuildConfigItem
	err := r.db.NewSelect().
		Model(&items).
		Where("guild_id = ?", guildID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list guild config: %w", err)
	}
	return items, nil
}

func (r *guildConfigRepository) Get(ctx context.Context, guildID, name string) (*models.GuildConfigItem, error) {
	item := new(models.GuildConfigItem)
	err := r.db.NewSelect().
		Model(item).
		Where("guild_id = ?", guildID).
		Where("name = ?", name).
		Scan(ctx)
	return item, handleError("guild config", name, err)
}

func (r *guildConfigRepository) Upsert(ctx context.Context, item *models.GuildConfigItem) error {
	item.UpdatedAt = time.Now().UTC()
	_, err := r.db.NewInsert().
		Model(item).
		On("CONFLICT (guild_id, name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("type = EXCLUDED.type").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert guild config %s: %w", item.Name, err)
	}
	return nil
}

func (r *guildConfigRepository) Delete(ctx context.Context, guildID, name string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*models.GuildConfigItem)(nil)).
		Where("guild_id = ?", guildID).
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to delete guild config %s: %w", name, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
