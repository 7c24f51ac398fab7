package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/disgoorg/progression-bot/internal/domain/ledger"
	"github.com/disgoorg/progression-bot/internal/domain/period"
	"github.com/disgoorg/progression-bot/internal/testutil"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
)

func newTestService(t *testing.T) (*Service, *bun.DB) {
	db := testutil.NewDB(t)
	txm := database.NewTxManager(db)
	clock := period.NewClock(time.UTC)
	return NewService(txm, ledger.NewService(txm), testutil.NewGuildConfig(t, db), clock), db
}

func TestService_Consume(t *testing.T) {
	tests := []struct {
		name    string
		exp     int64
		kind    Kind
		amounts []int64
		want    []int64
	}{
		{name: "chat within allowance", kind: KindChat, amounts: []int64{10}, want: []int64{10}},
		{name: "chat exhausted", kind: KindChat, amounts: []int64{10, 10}, want: []int64{10, 0}},
		{name: "partial grant", kind: KindVoice, amounts: []int64{60, 60}, want: []int64{60, 30}},
		{name: "doubled chat", exp: 5000, kind: KindChat, amounts: []int64{10, 10, 10}, want: []int64{10, 10, 0}},
		{name: "mission allowance", kind: KindMission, amounts: []int64{150}, want: []int64{100}},
		{name: "negative amount", kind: KindChat, amounts: []int64{-5}, want: []int64{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, db := newTestService(t)
			player := testutil.SeedPlayer(t, db, "1", "9", tt.exp, 0)

			for i, amount := range tt.amounts {
				got, err := s.Consume(context.Background(), player.ID, amount, tt.kind)
				require.NoError(t, err)
				if got != tt.want[i] {
					t.Errorf("service.Consume() call %d = %d, want %d", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestService_ConsumeUnknownKind(t *testing.T) {
	s, db := newTestService(t)
	player := testutil.SeedPlayer(t, db, "1", "9", 0, 0)

	_, err := s.Consume(context.Background(), player.ID, 10, "reading")
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("service.Consume() error = %v, want %v", err, ErrUnknownKind)
	}
}

func TestService_Reset(t *testing.T) {
	s, db := newTestService(t)
	player := testutil.SeedPlayer(t, db, "1", "9", 0, 0)

	_, err := s.Consume(context.Background(), player.ID, 10, KindChat)
	require.NoError(t, err)
	_, err = s.Consume(context.Background(), player.ID, 30, KindVoice)
	require.NoError(t, err)
	_, err = s.Consume(context.Background(), player.ID, 40, KindMission)
	require.NoError(t, err)

	earned, err := s.Reset(context.Background(), player.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), earned)

	counter, err := repositories.NewCounterRepository(db).Get(context.Background(), player.ID)
	require.NoError(t, err)
	assert.Equal(t, BaseChat, counter.ChatExp)
	assert.Equal(t, BaseVoice, counter.VoiceExp)
	assert.Equal(t, BaseMission, counter.MissionExp)

	entries, err := repositories.NewLedgerRepository(db).ListByPlayer(context.Background(), player.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Audit)
	assert.Equal(t, models.CategoryDailyReset, entries[0].Category)
	assert.Equal(t, DailyResetReason, entries[0].Reason)
	assert.Equal(t, int64(40), entries[0].Amount)

	assert.Equal(t, int64(0), testutil.LoadPlayer(t, db, player.ID).Exp)
}

func TestService_ResetDoublesOnCurrentExp(t *testing.T) {
	s, db := newTestService(t)
	player := testutil.SeedPlayer(t, db, "1", "9", 0, 0)
	_, err := s.Consume(context.Background(), player.ID, 1, KindChat)
	require.NoError(t, err)

	require.NoError(t, repositories.NewPlayerRepository(db).SetBalance(context.Background(), player.ID, models.CurrencyExp, 4845))

	_, err = s.Reset(context.Background(), player.ID)
	require.NoError(t, err)

	counter, err := repositories.NewCounterRepository(db).Get(context.Background(), player.ID)
	require.NoError(t, err)
	assert.True(t, counter.Doubled)
	assert.Equal(t, 2*BaseChat, counter.ChatExp)
	assert.Equal(t, 2*BaseVoice, counter.VoiceExp)
	assert.Equal(t, 2*BaseMission, counter.MissionExp)
}

func TestService_ResetAll(t *testing.T) {
	s, db := newTestService(t)
	for _, user := range []string{"1", "2", "3"} {
		player := testutil.SeedPlayer(t, db, user, "9", 0, 0)
		_, err := s.Consume(context.Background(), player.ID, 10, KindChat)
		require.NoError(t, err)
	}

	summary, err := s.ResetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, int64(30), summary.Earned)
}

func TestDailyLimit(t *testing.T) {
	assert.Equal(t, int64(100), DailyLimit(Factor(4844, 4845)))
	assert.Equal(t, int64(200), DailyLimit(Factor(4845, 4845)))
}
