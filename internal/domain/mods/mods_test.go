package mods

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/mock/gomock"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/internal/domain/ledger"
	"github.com/disgoorg/progression-bot/internal/domain/notify"
	"github.com/disgoorg/progression-bot/internal/domain/notify/mock"
	"github.com/disgoorg/progression-bot/internal/domain/period"
	"github.com/disgoorg/progression-bot/internal/domain/players"
	"github.com/disgoorg/progression-bot/internal/domain/quota"
	"github.com/disgoorg/progression-bot/internal/testutil"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/models"
)

const guildID = "g1"

type change struct {
	userID        string
	before, after int64
}

type recordingSyncer struct {
	changes []change
}

func (r *recordingSyncer) Sync(_ context.Context, _, userID string, before, after int64) {
	r.changes = append(r.changes, change{userID, before, after})
}

type fixture struct {
	service  *Service
	db       *bun.DB
	config   *guildconfig.Service
	syncer   *recordingSyncer
	notifier *mock.MockNotifier
}

func newFixture(t *testing.T) fixture {
	db := testutil.NewDB(t)
	txm := database.NewTxManager(db)
	config := testutil.NewGuildConfig(t, db)
	clock := period.NewClock(time.UTC)
	ledgerService := ledger.NewService(txm)
	quotaService := quota.NewService(txm, ledgerService, config, clock)
	registry := players.NewService(txm, ledgerService, quotaService, config, nil, clock)
	syncer := &recordingSyncer{}
	notifier := mock.NewMockNotifier(gomock.NewController(t))

	return fixture{
		service:  NewService(ledgerService, registry, syncer, config, notifier),
		db:       db,
		config:   config,
		syncer:   syncer,
		notifier: notifier,
	}
}

func member(id string) players.Member {
	return players.Member{UserID: id, Username: "name-" + id}
}

func TestService_Adjust(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedPlayer(t, f.db, "u1", guildID, 100, 0)

	report, err := f.service.Adjust(ctx, Adjustment{
		GuildID:     guildID,
		ModeratorID: "mod",
		Currency:    models.CurrencyExp,
		Amount:      50,
		Note:        " event winner ",
	}, []players.Member{member("u1"), member("u2"), member("u1"), {UserID: "bot", Bot: true}})
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, int64(100), report.Applied())
	assert.Equal(t, "event winner", report.Adjustment.Note)

	assert.Equal(t, int64(150), testutil.LoadPlayer(t, f.db, models.PlayerID("u1", guildID)).Exp)
	assert.Equal(t, int64(50), testutil.LoadPlayer(t, f.db, models.PlayerID("u2", guildID)).Exp)
	assert.Equal(t, []change{{"u1", 100, 150}, {"u2", 0, 50}}, f.syncer.changes)

	entry := report.Results[0].Credit.Entry
	assert.Equal(t, models.CategoryAdmin, entry.Category)
	assert.Equal(t, "mod", entry.ActorID)
	assert.Equal(t, "Admin adjustment - event winner", entry.Reason)
}

func TestService_Adjust_ClampsDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedPlayer(t, f.db, "u1", guildID, 0, 30)

	report, err := f.service.Adjust(ctx, Adjustment{
		GuildID:     guildID,
		ModeratorID: "mod",
		Currency:    models.CurrencySilver,
		Amount:      -100,
	}, []players.Member{member("u1")})
	require.NoError(t, err)

	assert.Equal(t, int64(-30), report.Applied())
	assert.Zero(t, testutil.LoadPlayer(t, f.db, models.PlayerID("u1", guildID)).Silver)
	assert.Empty(t, f.syncer.changes)
}

func TestService_Adjust_PostsModLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.config.Add(ctx, guildID, guildconfig.KeyModLogChannel, models.ConfigChannel, "c-log")
	require.NoError(t, err)

	f.notifier.EXPECT().
		Broadcast(gomock.Any(), []string{"c-log"}, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ []string, msg notify.Message) error {
			assert.Contains(t, msg.Content, "<@mod> adjusted silver by +20 for role @Artists")
			assert.Contains(t, msg.Content, "<@u1> 0 → 20")
			return nil
		})

	_, err = f.service.Adjust(ctx, Adjustment{
		GuildID:     guildID,
		ModeratorID: "mod",
		Currency:    models.CurrencySilver,
		Amount:      20,
		Scope:       "role @Artists",
	}, []players.Member{member("u1")})
	require.NoError(t, err)
}

func TestService_Adjust_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		adj     Adjustment
		targets []players.Member
		want    error
	}{
		{"zero amount", Adjustment{ModeratorID: "mod", Currency: models.CurrencyExp}, []players.Member{member("u1")}, ErrInvalidAdjustment},
		{"bad currency", Adjustment{ModeratorID: "mod", Currency: "gold", Amount: 1}, []players.Member{member("u1")}, ErrInvalidAdjustment},
		{"no moderator", Adjustment{Currency: models.CurrencyExp, Amount: 1}, []players.Member{member("u1")}, ErrInvalidAdjustment},
		{"only bots", Adjustment{ModeratorID: "mod", Currency: models.CurrencyExp, Amount: 1}, []players.Member{{UserID: "b", Bot: true}}, ErrNoTargets},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.adj.GuildID = guildID
			_, err := f.service.Adjust(context.Background(), tt.adj, tt.targets)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogMessage_LongListsAreSummarized(t *testing.T) {
	report := &Report{Adjustment: Adjustment{ModeratorID: "mod", Currency: models.CurrencyExp, Amount: 5}}
	for i := 0; i < 12; i++ {
		report.Results = append(report.Results, Result{
			Member: member("u"),
			Credit: &ledger.CreditResult{Entry: &models.LedgerEntry{Amount: 5}, Before: 0, After: 5},
		})
	}

	msg := LogMessage(report)
	assert.Contains(t, msg.Content, "Players: 12/12, applied +60")
	assert.False(t, strings.Contains(msg.Content, "0 → 5"))
}
