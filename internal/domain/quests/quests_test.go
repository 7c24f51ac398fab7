package quests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/mock/gomock"

	"github.com/disgoorg/progression-bot/internal/domain/ledger"
	"github.com/disgoorg/progression-bot/internal/domain/notify/mock"
	"github.com/disgoorg/progression-bot/internal/testutil"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/models"
)

const guildID = "g1"

type nopSyncer struct {
	calls int
}

func (n *nopSyncer) Sync(context.Context, string, string, int64, int64) { n.calls++ }

func newTestService(t *testing.T) (*Service, *bun.DB, *mock.MockNotifier, *nopSyncer) {
	db := testutil.NewDB(t)
	txm := database.NewTxManager(db)
	notifier := mock.NewMockNotifier(gomock.NewController(t))
	syncer := &nopSyncer{}
	return NewService(txm, ledger.NewService(txm), syncer, notifier), db, notifier, syncer
}

func publish(t *testing.T, s *Service, req PublishRequest) *models.Quest {
	t.Helper()

	req.GuildID = guildID
	req.PublisherID = "admin"
	if req.Name == "" {
		req.Name = "draw a cat"
	}
	quest, err := s.Publish(context.Background(), req)
	require.NoError(t, err)
	return quest
}

func TestService_Publish(t *testing.T) {
	s, _, _, _ := newTestService(t)

	quest := publish(t, s, PublishRequest{RewardExp: 50, Duration: "2d"})
	assert.Regexp(t, `^Q[0-9a-f]{10}$`, quest.ID)
	assert.True(t, quest.Manual)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), quest.ExpireDate, time.Minute)

	fallback := publish(t, s, PublishRequest{Duration: "whenever"})
	assert.WithinDuration(t, time.Now().Add(DefaultDuration), fallback.ExpireDate, time.Minute)

	_, err := s.Publish(context.Background(), PublishRequest{GuildID: guildID, Name: " "})
	assert.ErrorIs(t, err, ErrInvalidQuest)
}

func TestService_Lifecycle_Approve(t *testing.T) {
	s, db, notifier, syncer := newTestService(t)
	ctx := context.Background()
	player := testutil.SeedPlayer(t, db, "taker", guildID, 0, 0)
	quest := publish(t, s, PublishRequest{RewardExp: 50, RewardSilver: 20})

	record, err := s.Accept(ctx, player.ID, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, StateOf(record))

	current, err := s.Current(ctx, player.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, current.ID)
	assert.Equal(t, quest.Name, current.Quest.Name)

	_, err = s.Approve(ctx, record.ID, "reviewer", 0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	submitted, err := s.Submit(ctx, player.ID)
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, StateOf(submitted))

	pending, err := s.PendingReviews(ctx, guildID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, record.ID, pending[0].ID)

	notifier.EXPECT().Direct(gomock.Any(), "taker", gomock.Any()).Return(nil)
	result, err := s.Approve(ctx, record.ID, "reviewer", 0)
	require.NoError(t, err)
	assert.Equal(t, StateApproved, StateOf(result.Record))
	assert.Equal(t, int64(50), result.ExpCredit.Entry.Amount)
	assert.Equal(t, int64(20), result.SilverCredit.Entry.Amount)
	assert.Equal(t, 1, syncer.calls)

	loaded := testutil.LoadPlayer(t, db, player.ID)
	assert.Equal(t, int64(50), loaded.Exp)
	assert.Equal(t, int64(20), loaded.Silver)

	_, err = s.Current(ctx, player.ID)
	assert.ErrorIs(t, err, ErrNoActive)

	_, err = s.Approve(ctx, record.ID, "reviewer", 0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestService_ApproveOverride(t *testing.T) {
	s, db, notifier, _ := newTestService(t)
	ctx := context.Background()
	player := testutil.SeedPlayer(t, db, "taker", guildID, 0, 0)
	quest := publish(t, s, PublishRequest{RewardExp: 50})

	record, err := s.Accept(ctx, player.ID, quest.ID)
	require.NoError(t, err)
	_, err = s.Submit(ctx, player.ID)
	require.NoError(t, err)

	notifier.EXPECT().Direct(gomock.Any(), "taker", gomock.Any()).Return(nil)
	result, err := s.Approve(ctx, record.ID, "reviewer", 75)
	require.NoError(t, err)
	assert.Equal(t, int64(75), result.ExpCredit.Entry.Amount)
	assert.Nil(t, result.SilverCredit)
}

func TestService_Reject(t *testing.T) {
	s, db, notifier, syncer := newTestService(t)
	ctx := context.Background()
	player := testutil.SeedPlayer(t, db, "taker", guildID, 0, 0)
	quest := publish(t, s, PublishRequest{RewardExp: 50})

	record, err := s.Accept(ctx, player.ID, quest.ID)
	require.NoError(t, err)
	_, err = s.Submit(ctx, player.ID)
	require.NoError(t, err)

	notifier.EXPECT().Direct(gomock.Any(), "taker", gomock.Any()).Return(nil)
	result, err := s.Reject(ctx, record.ID, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, StateRejected, StateOf(result.Record))
	assert.Zero(t, syncer.calls)
	assert.Equal(t, int64(0), testutil.LoadPlayer(t, db, player.ID).Exp)

	_, err = s.Reject(ctx, 999, "reviewer")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestService_Drop(t *testing.T) {
	s, db, _, _ := newTestService(t)
	ctx := context.Background()
	player := testutil.SeedPlayer(t, db, "taker", guildID, 0, 0)
	quest := publish(t, s, PublishRequest{RewardExp: 50})

	_, err := s.Drop(ctx, player.ID)
	assert.ErrorIs(t, err, ErrNoActive)

	_, err = s.Accept(ctx, player.ID, quest.ID)
	require.NoError(t, err)
	dropped, err := s.Drop(ctx, player.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAbandoned, StateOf(dropped))
	assert.NotNil(t, dropped.FailDate)

	_, err = s.Accept(ctx, player.ID, quest.ID)
	assert.NoError(t, err, "an abandoned quest can be taken again")
}

func TestService_Accept(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, s *Service, db *bun.DB) string
		wantErr error
	}{
		{
			name: "unknown quest",
			setup: func(*testing.T, *Service, *bun.DB) string {
				return "Qmissing000"
			},
			wantErr: ErrQuestNotFound,
		},
		{
			name: "expired quest",
			setup: func(t *testing.T, s *Service, db *bun.DB) string {
				quest := publish(t, s, PublishRequest{})
				_, err := db.NewUpdate().Model((*models.Quest)(nil)).
					Set("expire_date = ?", time.Now().Add(-time.Hour).UTC()).
					Where("id = ?", quest.ID).
					Exec(context.Background())
				require.NoError(t, err)
				return quest.ID
			},
			wantErr: ErrQuestExpired,
		},
		{
			name: "already active",
			setup: func(t *testing.T, s *Service, db *bun.DB) string {
				first := publish(t, s, PublishRequest{Name: "first"})
				_, err := s.Accept(context.Background(), models.PlayerID("taker", guildID), first.ID)
				require.NoError(t, err)
				return publish(t, s, PublishRequest{Name: "second"}).ID
			},
			wantErr: ErrAlreadyActive,
		},
		{
			name: "taken by someone else",
			setup: func(t *testing.T, s *Service, db *bun.DB) string {
				other := testutil.SeedPlayer(t, db, "other", guildID, 0, 0)
				quest := publish(t, s, PublishRequest{})
				_, err := s.Accept(context.Background(), other.ID, quest.ID)
				require.NoError(t, err)
				return quest.ID
			},
			wantErr: ErrQuestUnavailable,
		},
		{
			name: "shared quest",
			setup: func(t *testing.T, s *Service, db *bun.DB) string {
				other := testutil.SeedPlayer(t, db, "other", guildID, 0, 0)
				quest := publish(t, s, PublishRequest{MultipleTakers: true})
				_, err := s.Accept(context.Background(), other.ID, quest.ID)
				require.NoError(t, err)
				return quest.ID
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, db, _, _ := newTestService(t)
			player := testutil.SeedPlayer(t, db, "taker", guildID, 0, 0)
			questID := tt.setup(t, s, db)

			_, err := s.Accept(context.Background(), player.ID, questID)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_ListAvailable(t *testing.T) {
	s, db, notifier, _ := newTestService(t)
	ctx := context.Background()
	player := testutil.SeedPlayer(t, db, "taker", guildID, 0, 0)
	other := testutil.SeedPlayer(t, db, "other", guildID, 0, 0)

	taken := publish(t, s, PublishRequest{Name: "taken"})
	shared := publish(t, s, PublishRequest{Name: "shared", MultipleTakers: true})
	done := publish(t, s, PublishRequest{Name: "done"})
	again := publish(t, s, PublishRequest{Name: "again", Repeatable: true})

	_, err := s.Accept(ctx, other.ID, taken.ID)
	require.NoError(t, err)
	_, err = s.Accept(ctx, other.ID, shared.ID)
	assert.ErrorIs(t, err, ErrAlreadyActive)

	notifier.EXPECT().Direct(gomock.Any(), "taker", gomock.Any()).Return(nil).Times(2)
	for _, q := range []*models.Quest{done, again} {
		record, err := s.Accept(ctx, player.ID, q.ID)
		require.NoError(t, err)
		_, err = s.Submit(ctx, player.ID)
		require.NoError(t, err)
		_, err = s.Approve(ctx, record.ID, "reviewer", 0)
		require.NoError(t, err)
	}

	available, err := s.ListAvailable(ctx, guildID, player.ID)
	require.NoError(t, err)
	var names []string
	for _, q := range available {
		names = append(names, q.Name)
	}
	assert.ElementsMatch(t, []string{"shared", "again"}, names)
}
