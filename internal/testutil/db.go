// Package testutil provides an in-memory database with the production schema.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
)

// NewDB opens a private in-memory sqlite database, creates the schema and
// closes it when the test ends. A single connection keeps every query on the
// same in-memory database.
func NewDB(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.CreateSchema(context.Background(), db))
	return db
}

// SeedPlayer inserts a player with the given balances.
func SeedPlayer(t testing.TB, db bun.IDB, userID, guildID string, exp, silver int64) *models.Player {
	t.Helper()

	now := time.Now().UTC()
	player := &models.Player{
		ID:        models.PlayerID(userID, guildID),
		UserID:    userID,
		GuildID:   guildID,
		Exp:       exp,
		Silver:    silver,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := db.NewInsert().Model(player).Exec(context.Background())
	require.NoError(t, err)

	meta := &models.PlayerMetadata{ID: player.ID, UserID: userID, GuildID: guildID, UpdatedAt: now}
	_, err = db.NewInsert().Model(meta).Exec(context.Background())
	require.NoError(t, err)
	return player
}

// LoadPlayer reads the current row of a player.
func LoadPlayer(t testing.TB, db bun.IDB, id string) *models.Player {
	t.Helper()

	player := new(models.Player)
	require.NoError(t, db.NewSelect().Model(player).Where("id = ?", id).Scan(context.Background()))
	return player
}

// Defaults mirror the shipped economy configuration.
var Defaults = guildconfig.Defaults{DoubleThreshold: 4845, DrawCost: 10, MonthlyDrawLimit: 10}

// NewGuildConfig returns a config service over the test database with a
// zero freshness window, so every read sees the latest writes.
func NewGuildConfig(t testing.TB, db *bun.DB) *guildconfig.Service {
	t.Helper()

	s, err := guildconfig.NewService(repositories.NewGuildConfigRepository(db), Defaults, time.Nanosecond)
	require.NoError(t, err)
	return s
}
