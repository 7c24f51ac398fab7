package missions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
	"github.com/disgoorg/progression-bot/progression/logger"
)

// DefaultDuration keeps a mission open when no expiry is given.
const DefaultDuration = 365 * 24 * time.Hour

var (
	ErrMissionNotFound = errors.New("mission not found")
	ErrInvalidMission  = errors.New("invalid mission")
)

// MissionConfigurer is the slice of the config service missions write to.
type MissionConfigurer interface {
	SettingsSource
	SetMission(ctx context.Context, guildID string, m guildconfig.Mission) error
	Delete(ctx context.Context, guildID, name string) error
}

type Definition struct {
	QuestID     string
	GuildID     string
	PublisherID string
	Name        string
	Description string
	ChannelID   string
	EmojiID     string
	Reward      int64
	RewardType  models.Currency
	Duration    time.Duration

	// OnceOnly limits each member to a single completion ever. Missions are
	// otherwise repeatable once per day.
	OnceOnly bool
}

// Entry pairs a configured mission with its backing quest row.
type Entry struct {
	Mission guildconfig.Mission
	Quest   *models.Quest
}

func (s *Service) configurer() (MissionConfigurer, error) {
	c, ok := s.settings.(MissionConfigurer)
	if !ok {
		return nil, errors.New("settings source cannot store missions")
	}
	return c, nil
}

// Configure creates or updates a mission. A reward of zero or less removes
// the mission and expires its quest.
func (s *Service) Configure(ctx context.Context, d Definition) (*Entry, error) {
	cfg, err := s.configurer()
	if err != nil {
		return nil, err
	}
	quests := repositories.NewQuestRepository(s.txm.DB())
	now := s.clock.Now().UTC()

	if d.Reward <= 0 {
		if d.QuestID == "" {
			return nil, fmt.Errorf("%w: quest id required to remove a mission", ErrInvalidMission)
		}
		if err := cfg.Delete(ctx, d.GuildID, d.QuestID); err != nil {
			if errors.Is(err, guildconfig.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrMissionNotFound, d.QuestID)
			}
			return nil, err
		}
		if err := quests.Expire(ctx, d.QuestID, now); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		logger.LogEconomy("Mission removed",
			slog.String("guild_id", d.GuildID),
			slog.String("quest_id", d.QuestID))
		return nil, nil
	}

	if d.ChannelID == "" || d.EmojiID == "" || d.Name == "" {
		return nil, fmt.Errorf("%w: name, channel and emoji are required", ErrInvalidMission)
	}
	if d.RewardType == "" {
		d.RewardType = models.CurrencyExp
	}
	if !d.RewardType.Valid() {
		return nil, fmt.Errorf("%w: reward type %q", ErrInvalidMission, d.RewardType)
	}
	if d.QuestID == "" {
		d.QuestID = models.NewQuestID()
	}
	if d.Duration <= 0 {
		d.Duration = DefaultDuration
	}

	quest := &models.Quest{
		ID:               d.QuestID,
		GuildID:          d.GuildID,
		PublisherID:      d.PublisherID,
		Name:             d.Name,
		Description:      d.Description,
		Manual:           false,
		MultipleTakers:   true,
		Repeatable:       !d.OnceOnly,
		PublishedByAdmin: true,
		ExpireDate:       now.Add(d.Duration),
		CreatedAt:        now,
	}
	if d.RewardType == models.CurrencyExp {
		quest.RewardExp = d.Reward
	} else {
		quest.RewardSilver = d.Reward
	}
	if err := quests.Upsert(ctx, quest); err != nil {
		return nil, err
	}

	mission := guildconfig.Mission{
		QuestID:    d.QuestID,
		ChannelID:  d.ChannelID,
		EmojiID:    d.EmojiID,
		Reward:     d.Reward,
		RewardType: d.RewardType,
	}
	if err := cfg.SetMission(ctx, d.GuildID, mission); err != nil {
		return nil, err
	}

	logger.LogEconomy("Mission configured",
		slog.String("guild_id", d.GuildID),
		slog.String("quest_id", d.QuestID),
		slog.String("channel_id", d.ChannelID),
		slog.Int64("reward", d.Reward))
	return &Entry{Mission: mission, Quest: quest}, nil
}

// List returns the guild's missions with their quests, ordered by quest id.
// Missions whose quest row is gone are returned with a nil Quest.
func (s *Service) List(ctx context.Context, guildID string) ([]Entry, error) {
	settings, err := s.settings.Settings(ctx, guildID)
	if err != nil {
		return nil, err
	}

	quests := repositories.NewQuestRepository(s.txm.DB())
	missions := settings.Missions()
	entries := make([]Entry, 0, len(missions))
	for _, m := range missions {
		entry := Entry{Mission: m}
		quest, err := quests.Get(ctx, m.QuestID)
		switch {
		case err == nil:
			entry.Quest = quest
		case !errors.Is(err, repositories.ErrNotFound):
			return nil, err
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Mission.QuestID < entries[j].Mission.QuestID })
	return entries, nil
}
