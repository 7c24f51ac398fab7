package guildconfig

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig/mock"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
)

var testDefaults = Defaults{DoubleThreshold: 4845, DrawCost: 10, MonthlyDrawLimit: 10}

func newTestService(t *testing.T, store Store) (*Service, *time.Time) {
	s, err := NewService(store, testDefaults, 20*time.Second)
	require.NoError(t, err)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestService_GetOrReload(t *testing.T) {
	store := mock.NewMockStore(gomock.NewController(t))
	store.EXPECT().
		List(gomock.Any(), "g1").
		Return([]*models.GuildConfigItem{{Name: KeyDrawCost, Type: models.ConfigValue, Value: "25"}}, nil).
		Times(2)

	s, now := newTestService(t, store)

	first, err := s.Settings(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), first.DrawCost())

	*now = now.Add(10 * time.Second)
	cached, err := s.Settings(context.Background(), "g1")
	require.NoError(t, err)
	assert.Same(t, first, cached)

	*now = now.Add(15 * time.Second)
	reloaded, err := s.Settings(context.Background(), "g1")
	require.NoError(t, err)
	assert.NotSame(t, first, reloaded)
}

func TestService_InvalidateOnWrite(t *testing.T) {
	store := mock.NewMockStore(gomock.NewController(t))
	gomock.InOrder(
		store.EXPECT().List(gomock.Any(), "g1").Return(nil, nil),
		store.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil),
		store.EXPECT().List(gomock.Any(), "g1").Return([]*models.GuildConfigItem{
			{Name: KeyBotTestMode, Type: models.ConfigValue, Value: "true"},
		}, nil),
	)

	s, _ := newTestService(t, store)

	before, err := s.Settings(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, before.BotTestMode())

	_, err = s.Add(context.Background(), "g1", KeyBotTestMode, models.ConfigValue, "true")
	require.NoError(t, err)

	after, err := s.Settings(context.Background(), "g1")
	require.NoError(t, err)
	assert.True(t, after.BotTestMode())
}

func TestService_WriteDuringReload(t *testing.T) {
	store := mock.NewMockStore(gomock.NewController(t))
	listing := make(chan struct{})
	release := make(chan struct{})
	gomock.InOrder(
		store.EXPECT().List(gomock.Any(), "g1").DoAndReturn(func(context.Context, string) ([]*models.GuildConfigItem, error) {
			close(listing)
			<-release
			return nil, nil
		}),
		store.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil),
		store.EXPECT().List(gomock.Any(), "g1").Return([]*models.GuildConfigItem{
			{Name: KeyBotTestMode, Type: models.ConfigValue, Value: "true"},
		}, nil),
	)

	s, _ := newTestService(t, store)

	stale := make(chan *Settings, 1)
	go func() {
		settings, err := s.Settings(context.Background(), "g1")
		assert.NoError(t, err)
		stale <- settings
	}()
	<-listing

	_, err := s.Add(context.Background(), "g1", KeyBotTestMode, models.ConfigValue, "true")
	require.NoError(t, err)

	close(release)
	assert.False(t, (<-stale).BotTestMode())

	fresh, err := s.Settings(context.Background(), "g1")
	require.NoError(t, err)
	assert.True(t, fresh.BotTestMode())
}

func TestService_Add(t *testing.T) {
	tests := []struct {
		name      string
		typ       models.ConfigType
		existing  *models.GuildConfigItem
		value     string
		wantValue string
	}{
		{
			name:      "first channel",
			typ:       models.ConfigChannel,
			value:     "100",
			wantValue: `["100"]`,
		},
		{
			name:      "append channel",
			typ:       models.ConfigChannel,
			existing:  &models.GuildConfigItem{Value: `["100"]`},
			value:     "200",
			wantValue: `["100","200"]`,
		},
		{
			name:      "duplicate role",
			typ:       models.ConfigRole,
			existing:  &models.GuildConfigItem{Value: `["300"]`},
			value:     "300",
			wantValue: `["300"]`,
		},
		{
			name:      "numeric value",
			typ:       models.ConfigValue,
			value:     "4000",
			wantValue: "4000",
		},
		{
			name:      "plain text value",
			typ:       models.ConfigValue,
			value:     "555",
			wantValue: "555",
		},
		{
			name:      "string value is quoted",
			typ:       models.ConfigValue,
			value:     "role-id",
			wantValue: `"role-id"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mock.NewMockStore(gomock.NewController(t))
			if tt.typ != models.ConfigValue {
				if tt.existing != nil {
					store.EXPECT().Get(gomock.Any(), "g1", "key").Return(tt.existing, nil)
				} else {
					store.EXPECT().Get(gomock.Any(), "g1", "key").Return(nil, &repositories.NotFoundError{Entity: "guild config", ID: "key"})
				}
			}
			store.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, item *models.GuildConfigItem) error {
				assert.Equal(t, tt.wantValue, item.Value)
				assert.Equal(t, tt.typ, item.Type)
				return nil
			})

			s, _ := newTestService(t, store)
			_, err := s.Add(context.Background(), "g1", "key", tt.typ, tt.value)
			require.NoError(t, err)
		})
	}
}

func TestService_DeleteMissing(t *testing.T) {
	store := mock.NewMockStore(gomock.NewController(t))
	store.EXPECT().Delete(gomock.Any(), "g1", "nope").Return(false, nil)

	s, _ := newTestService(t, store)
	err := s.Delete(context.Background(), "g1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
