package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/disgoorg/progression-bot/internal/domain/ledger"
	"github.com/disgoorg/progression-bot/internal/domain/period"
	"github.com/disgoorg/progression-bot/internal/domain/players"
	"github.com/disgoorg/progression-bot/internal/domain/quota"
	"github.com/disgoorg/progression-bot/internal/testutil"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/models"
)

const guildID = "g1"

type change struct{ before, after int64 }

type recordingSyncer struct {
	changes []change
}

func (r *recordingSyncer) Sync(_ context.Context, _, _ string, before, after int64) {
	r.changes = append(r.changes, change{before, after})
}

func newTestService(t *testing.T, voicePerTick int64) (*Service, *bun.DB, *recordingSyncer) {
	db := testutil.NewDB(t)
	txm := database.NewTxManager(db)
	config := testutil.NewGuildConfig(t, db)
	clock := period.NewClock(time.UTC)
	ledgerService := ledger.NewService(txm)
	quotaService := quota.NewService(txm, ledgerService, config, clock)
	registry := players.NewService(txm, ledgerService, quotaService, config, nil, clock)
	syncer := &recordingSyncer{}
	return NewService(txm, ledgerService, quotaService, config, registry, syncer, voicePerTick), db, syncer
}

func event(userID string) Event {
	return Event{GuildID: guildID, Member: players.Member{UserID: userID, Username: "name-" + userID}}
}

func TestService_CreditChat(t *testing.T) {
	s, db, syncer := newTestService(t, 0)
	ctx := context.Background()

	first, err := s.CreditChat(ctx, event("u1"))
	require.NoError(t, err)
	assert.Equal(t, ChatExpPerMessage, first.Granted)

	second, err := s.CreditChat(ctx, event("u1"))
	require.NoError(t, err)
	assert.Zero(t, second.Granted)
	assert.Nil(t, second.Credit)

	player := testutil.LoadPlayer(t, db, models.PlayerID("u1", guildID))
	assert.Equal(t, ChatExpPerMessage, player.Exp)
	assert.Equal(t, []change{{0, 10}}, syncer.changes)
}

func TestService_CreditVoice(t *testing.T) {
	tests := []struct {
		name    string
		exp     int64
		perTick int64
		ticks   int
		want    int64
	}{
		{name: "default tick", ticks: 3, want: 30},
		{name: "capped at allowance", perTick: 40, ticks: 3, want: 90},
		{name: "doubled allowance", exp: 5000, perTick: 40, ticks: 5, want: 5000 + 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, db, _ := newTestService(t, tt.perTick)
			if tt.exp > 0 {
				testutil.SeedPlayer(t, db, "u1", guildID, tt.exp, 0)
			}

			for range tt.ticks {
				_, err := s.CreditVoice(context.Background(), event("u1"))
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, testutil.LoadPlayer(t, db, models.PlayerID("u1", guildID)).Exp)
		})
	}
}

func TestService_IgnoresBots(t *testing.T) {
	s, db, _ := newTestService(t, 0)
	e := event("b1")
	e.Member.Bot = true

	result, err := s.CreditChat(context.Background(), e)
	require.NoError(t, err)
	assert.Zero(t, result.Granted)

	n, err := db.NewSelect().Model((*models.Player)(nil)).Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
