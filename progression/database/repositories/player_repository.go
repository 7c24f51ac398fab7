package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/uptrace/bun"
)

type PlayerRepository interface {
	Get(ctx context.Context, id string) (*models.Player, error)
	GetForUpdate(ctx context.Context, id string) (*models.Player, error)
	Ensure(ctx context.Context, userID, guildID, tag string) (*models.Player, error)
	SetBalance(ctx context.Context, id string, currency models.Currency, value int64) error
	TopByExp(ctx context.Context, guildID string, limit int) ([]*models.Player, error)
	ListIDs(ctx context.Context) ([]string, error)
	GetMetadata(ctx context.Context, id string) (*models.PlayerMetadata, error)
	MarkInitSilverGiven(ctx context.Context, id string) (bool, error)
}

type playerRepository struct {
	db bun.IDB
}

func NewPlayerRepository(db bun.IDB) PlayerRepository {
	return &playerRepository{db: db}
}

func (r *playerRepository) Get(ctx context.Context, id string) (*models.Player, error) {
	player := new(models.Player)
	err := r.db.NewSelect().Model(player).Where("id = ?", id).Scan(ctx)
	return player, handleError("player", id, err)
}

func (r *playerRepository) GetForUpdate(ctx context.Context, id string) (*models.Player, error) {
	player := new(models.Player)
	err := forUpdate(r.db, r.db.NewSelect().Model(player).Where("id = ?", id)).Scan(ctx)
	return player, handleError("player", id, err)
}

// Ensure creates the player and its metadata row when missing and refreshes
// the cached display tag.
func (r *playerRepository) Ensure(ctx context.Context, userID, guildID, tag string) (*models.Player, error) {
	now := time.Now().UTC()
	id := models.PlayerID(userID, guildID)

	player := &models.Player{
		ID:        id,
		UserID:    userID,
		GuildID:   guildID,
		DcTag:     tag,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res, err := r.db.NewInsert().Model(player).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to insert player: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Debug("Player created",
			slog.String("type", "db"),
			slog.String("operation", "EnsurePlayer"),
			slog.String("player_id", id))
	}

	meta := &models.PlayerMetadata{ID: id, UserID: userID, GuildID: guildID, UpdatedAt: now}
	if _, err := r.db.NewInsert().Model(meta).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert player metadata: %w", err)
	}

	if tag != "" {
		_, err = r.db.NewUpdate().
			Model((*models.Player)(nil)).
			Set("dc_tag = ?", tag).
			Where("id = ? AND dc_tag <> ?", id, tag).
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh player tag: %w", err)
		}
	}

	return r.Get(ctx, id)
}

// SetBalance writes an absolute balance. Only the ledger calls it, after the
// matching entry has been appended in the same transaction.
func (r *playerRepository) SetBalance(ctx context.Context, id string, currency models.Currency, value int64) error {
	column := "exp"
	if currency == models.CurrencySilver {
		column = "silver"
	}
	res, err := r.db.NewUpdate().
		Model((*models.Player)(nil)).
		Set("? = ?", bun.Ident(column), value).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update %s balance: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Entity: "player", ID: id}
	}
	return nil
}

func (r *playerRepository) TopByExp(ctx context.Context, guildID string, limit int) ([]*models.Player, error) {
	var players []*models.Player
	err := r.db.NewSelect().
		Model(&players).
		Where("guild_id = ?", guildID).
		Where("exp >= 1").
		Order("exp DESC", "id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return players, nil
}

func (r *playerRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*models.Player)(nil)).
		Column("id").
		Order("id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return ids, nil
}

func (r *playerRepository) GetMetadata(ctx context.Context, id string) (*models.PlayerMetadata, error) {
	meta := new(models.PlayerMetadata)
	err := r.db.NewSelect().Model(meta).Where("id = ?", id).Scan(ctx)
	return meta, handleError("player metadata", id, err)
}

// MarkInitSilverGiven flips the one-time bonus flag and reports whether this
// call was the one that flipped it.
func (r *playerRepository) MarkInitSilverGiven(ctx context.Context, id string) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.PlayerMetadata)(nil)).
		Set("init_silver_given = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("init_silver_given = ?", false).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to mark init silver: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
