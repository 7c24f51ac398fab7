package draw

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/mock/gomock"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/internal/domain/ledger"
	"github.com/disgoorg/progression-bot/internal/domain/notify/mock"
	"github.com/disgoorg/progression-bot/internal/domain/period"
	"github.com/disgoorg/progression-bot/internal/testutil"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/models"
)

const (
	guildID    = "g1"
	bigChannel = "c-big"
)

// fixedSource returns scripted tickets, clamped to the pool size.
type fixedSource struct {
	tickets []int
	next    int
}

func (f *fixedSource) IntN(n int) int {
	t := f.tickets[f.next%len(f.tickets)]
	f.next++
	return min(t, n-1)
}

type fixture struct {
	service  *Service
	db       *bun.DB
	config   *guildconfig.Service
	notifier *mock.MockNotifier
}

func newFixture(t *testing.T, tickets ...int) *fixture {
	db := testutil.NewDB(t)
	require.NoError(t, database.SeedDrawRewards(context.Background(), db))

	txm := database.NewTxManager(db)
	config := testutil.NewGuildConfig(t, db)
	notifier := mock.NewMockNotifier(gomock.NewController(t))
	_, err := config.Add(context.Background(), guildID, guildconfig.KeyBigRewardChannel, models.ConfigChannel, bigChannel)
	require.NoError(t, err)

	s := NewService(txm, ledger.NewService(txm), config, notifier, period.NewClock(time.UTC)).
		WithSource(&fixedSource{tickets: tickets})
	return &fixture{service: s, db: db, config: config, notifier: notifier}
}

func (f *fixture) draw(t *testing.T, userID string) (*Outcome, error) {
	t.Helper()
	return f.service.Draw(context.Background(), Request{
		PlayerID: models.PlayerID(userID, guildID),
		GuildID:  guildID,
		UserID:   userID,
	})
}

func TestTickets(t *testing.T) {
	tests := []struct {
		probability float64
		want        int
	}{
		{probability: 40, want: 4000},
		{probability: 58.9, want: 5890},
		{probability: 0.08, want: 8},
		{probability: 0.001, want: 1},
		{probability: 0, want: 1},
	}
	for _, tt := range tests {
		if got := Tickets(&models.DrawReward{Probability: tt.probability}); got != tt.want {
			t.Errorf("Tickets(%v) = %d, want %d", tt.probability, got, tt.want)
		}
	}
}

func TestService_Draw(t *testing.T) {
	tests := []struct {
		name       string
		ticket     int
		wantReward string
		wantExp    int64
		wantSilver int64
	}{
		{name: "nothing", ticket: 0, wantReward: "0 exp", wantExp: 0, wantSilver: 90},
		{name: "common exp", ticket: 4000, wantReward: "100 exp", wantExp: 100, wantSilver: 90},
		{name: "rare exp", ticket: 9890, wantReward: "500 exp", wantExp: 500, wantSilver: 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.ticket)
			testutil.SeedPlayer(t, f.db, "u1", guildID, 0, 100)

			outcome, err := f.draw(t, "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantReward, outcome.Reward.Name)
			assert.Equal(t, int64(10), outcome.Cost)
			assert.Equal(t, int64(100), outcome.SilverBefore)
			assert.Equal(t, tt.wantSilver, outcome.SilverAfter)
			assert.Equal(t, 1, outcome.DrawsUsed)
			assert.Equal(t, 9, outcome.Remaining())
			assert.False(t, outcome.Broadcast)

			player := testutil.LoadPlayer(t, f.db, models.PlayerID("u1", guildID))
			assert.Equal(t, tt.wantExp, player.Exp)
			assert.Equal(t, tt.wantSilver, player.Silver)

			n, err := f.db.NewSelect().Model((*models.DrawHistory)(nil)).Count(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestService_DrawGates(t *testing.T) {
	t.Run("insufficient silver", func(t *testing.T) {
		f := newFixture(t, 0)
		testutil.SeedPlayer(t, f.db, "u1", guildID, 0, 5)

		_, err := f.draw(t, "u1")
		assert.ErrorIs(t, err, ErrInsufficientSilver)
		assert.Equal(t, int64(5), testutil.LoadPlayer(t, f.db, models.PlayerID("u1", guildID)).Silver)
	})

	t.Run("silver exactly covers the cost", func(t *testing.T) {
		f := newFixture(t, 0)
		testutil.SeedPlayer(t, f.db, "u1", guildID, 0, 10)

		outcome, err := f.draw(t, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(10), outcome.SilverBefore)
		assert.Equal(t, int64(0), outcome.SilverAfter)
		assert.Equal(t, int64(0), testutil.LoadPlayer(t, f.db, models.PlayerID("u1", guildID)).Silver)

		_, err = f.draw(t, "u1")
		assert.ErrorIs(t, err, ErrInsufficientSilver)
	})

	t.Run("monthly limit", func(t *testing.T) {
		f := newFixture(t, 0)
		testutil.SeedPlayer(t, f.db, "u1", guildID, 0, 100)
		_, err := f.config.Add(context.Background(), guildID, guildconfig.KeyMonthlyDrawLimit, models.ConfigValue, "1")
		require.NoError(t, err)

		_, err = f.draw(t, "u1")
		require.NoError(t, err)

		outcome, err := f.draw(t, "u1")
		assert.ErrorIs(t, err, ErrDrawLimitReached)
		require.NotNil(t, outcome)
		assert.Equal(t, 1, outcome.DrawsUsed)
		assert.Equal(t, int64(90), testutil.LoadPlayer(t, f.db, models.PlayerID("u1", guildID)).Silver)
	})

	t.Run("channel not allowed", func(t *testing.T) {
		f := newFixture(t, 0)
		testutil.SeedPlayer(t, f.db, "u1", guildID, 0, 100)
		_, err := f.config.Add(context.Background(), guildID, guildconfig.KeyDrawCommandAllowed, models.ConfigChannel, "c-draw")
		require.NoError(t, err)

		_, err = f.service.Draw(context.Background(), Request{
			PlayerID:  models.PlayerID("u1", guildID),
			GuildID:   guildID,
			ChannelID: "c-general",
		})
		assert.ErrorIs(t, err, ErrChannelNotAllowed)
	})

	t.Run("unknown player", func(t *testing.T) {
		f := newFixture(t, 0)
		_, err := f.draw(t, "ghost")
		assert.ErrorIs(t, err, ledger.ErrPlayerNotFound)
	})
}

func TestService_DrawCappedRewards(t *testing.T) {
	f := newFixture(t, 9999)
	for _, u := range []string{"u1", "u2", "u3"} {
		testutil.SeedPlayer(t, f.db, u, guildID, 0, 100)
	}
	f.notifier.EXPECT().Broadcast(gomock.Any(), []string{bigChannel}, gomock.Any()).Return(nil).Times(2)

	first, err := f.draw(t, "u1")
	require.NoError(t, err)
	assert.Equal(t, "100 USD gift card", first.Reward.Name)
	assert.True(t, first.Broadcast)
	assert.Nil(t, first.Credit)

	second, err := f.draw(t, "u2")
	require.NoError(t, err)
	assert.Equal(t, "60 USD gift card", second.Reward.Name)

	third, err := f.draw(t, "u3")
	require.NoError(t, err)
	assert.Equal(t, "500 exp", third.Reward.Name)
	assert.False(t, third.Broadcast)
}

func TestService_DrawTestModeAnnouncesEverything(t *testing.T) {
	f := newFixture(t, 0)
	testutil.SeedPlayer(t, f.db, "u1", guildID, 0, 100)
	_, err := f.config.Add(context.Background(), guildID, guildconfig.KeyBotTestMode, models.ConfigValue, "true")
	require.NoError(t, err)
	f.notifier.EXPECT().Broadcast(gomock.Any(), []string{bigChannel}, gomock.Any()).Return(nil)

	outcome, err := f.draw(t, "u1")
	require.NoError(t, err)
	assert.True(t, outcome.TestMode)
	assert.True(t, outcome.Broadcast)
}

func TestService_PickFallback(t *testing.T) {
	s := &Service{rng: &fixedSource{tickets: []int{0}}}
	catalog := []*models.DrawReward{
		{ID: 1, Kind: models.RewardOther, Value: 60, Probability: 1, PeriodCap: 1},
		{ID: 2, Kind: models.RewardExp, Value: 0, Probability: 1, PeriodCap: 1},
	}

	got := s.pick(catalog, map[int64]bool{1: true, 2: true})
	assert.Equal(t, int64(2), got.ID)

	got = s.pick(catalog[:1], map[int64]bool{1: true})
	assert.Equal(t, int64(1), got.ID)

	got = s.pick(catalog, map[int64]bool{1: true})
	assert.Equal(t, int64(2), got.ID)
}
