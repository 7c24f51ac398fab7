package guildconfig

import (
	"encoding/json"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/disgoorg/progression-bot/progression/database/models"
)

// Config item names.
const (
	KeyMissionBroadcastChannel = "missionBroadcastChannel"
	KeyBigRewardChannel        = "bigRewardChannel"
	KeyDrawCommandAllowed      = "drawCommandAllowed"
	KeyUserCommandAllowed      = "userCommandAllowed"
	KeyModLogChannel           = "modLogChannel"
	KeyMissionDivRole          = "missionDivRole"
	KeyPlayerQualifiedRequired = "playerQualifiedRequired"
	KeyLevelRoleMapping        = "levelRoleMapping"
	KeyExpDoubleRole           = "expDoubleRole"
	KeyExpDoubleLimit          = "expDoubleLimit"
	KeyDrawCost                = "drawCost"
	KeyMonthlyDrawLimit        = "monthlyDrawLimit"
	KeyBotTestMode             = "botTestMode"
)

// KnownKeys maps each documented key to the type it is stored as.
var KnownKeys = map[string]models.ConfigType{
	KeyMissionBroadcastChannel: models.ConfigChannel,
	KeyBigRewardChannel:        models.ConfigChannel,
	KeyDrawCommandAllowed:      models.ConfigChannel,
	KeyUserCommandAllowed:      models.ConfigChannel,
	KeyModLogChannel:           models.ConfigChannel,
	KeyMissionDivRole:          models.ConfigRole,
	KeyPlayerQualifiedRequired: models.ConfigRole,
	KeyLevelRoleMapping:        models.ConfigValue,
	KeyExpDoubleRole:           models.ConfigValue,
	KeyExpDoubleLimit:          models.ConfigValue,
	KeyDrawCost:                models.ConfigValue,
	KeyMonthlyDrawLimit:        models.ConfigValue,
	KeyBotTestMode:             models.ConfigValue,
}

// Defaults apply when a guild has not configured a value.
type Defaults struct {
	DoubleThreshold  int64
	DrawCost         int64
	MonthlyDrawLimit int
}

// Mission is a reaction mission bound to one channel and emoji.
type Mission struct {
	QuestID    string          `json:"-"`
	ChannelID  string          `json:"channelId"`
	EmojiID    string          `json:"emojiId"`
	Reward     int64           `json:"reward"`
	RewardType models.Currency `json:"rewardType"`
}

// Settings is an immutable snapshot of one guild's configuration.
type Settings struct {
	GuildID  string
	items    map[string]*models.GuildConfigItem
	missions []Mission
	defaults Defaults
}

func newSettings(guildID string, items []*models.GuildConfigItem, defaults Defaults) *Settings {
	s := &Settings{
		GuildID:  guildID,
		items:    make(map[string]*models.GuildConfigItem, len(items)),
		defaults: defaults,
	}
	for _, item := range items {
		if item.Type == models.ConfigMission {
			var m Mission
			if err := json.Unmarshal([]byte(item.Value), &m); err != nil {
				continue
			}
			m.QuestID = item.Name
			s.missions = append(s.missions, m)
			continue
		}
		s.items[item.Name] = item
	}
	sort.Slice(s.missions, func(i, j int) bool { return s.missions[i].QuestID < s.missions[j].QuestID })
	return s
}

// List returns the ids stored under a list-typed key.
func (s *Settings) List(key string) []string {
	item, ok := s.items[key]
	if !ok {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(item.Value), &ids); err != nil {
		return nil
	}
	return ids
}

func (s *Settings) Contains(key, id string) bool {
	return slices.Contains(s.List(key), id)
}

// HasAny reports whether any of ids is configured under key.
func (s *Settings) HasAny(key string, ids []string) bool {
	configured := s.List(key)
	for _, id := range ids {
		if slices.Contains(configured, id) {
			return true
		}
	}
	return false
}

// String returns a scalar value, unquoting JSON strings.
func (s *Settings) String(key string) string {
	item, ok := s.items[key]
	if !ok {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal([]byte(item.Value), &v); err != nil {
		return strings.TrimSpace(item.Value)
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatInt(int64(val), 10)
	case bool:
		return strconv.FormatBool(val)
	}
	return item.Value
}

func (s *Settings) Int(key string, def int64) int64 {
	raw := s.String(key)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func (s *Settings) Bool(key string) bool {
	b, _ := strconv.ParseBool(s.String(key))
	return b
}

func (s *Settings) DoubleThreshold() int64 {
	return s.Int(KeyExpDoubleLimit, s.defaults.DoubleThreshold)
}

func (s *Settings) DrawCost() int64 {
	return s.Int(KeyDrawCost, s.defaults.DrawCost)
}

func (s *Settings) MonthlyDrawLimit() int {
	return int(s.Int(KeyMonthlyDrawLimit, int64(s.defaults.MonthlyDrawLimit)))
}

func (s *Settings) BotTestMode() bool {
	return s.Bool(KeyBotTestMode)
}

func (s *Settings) ExpDoubleRole() string {
	return s.String(KeyExpDoubleRole)
}

// LevelRoleMapping decodes the {"level": "roleID"} object.
func (s *Settings) LevelRoleMapping() map[int]string {
	item, ok := s.items[KeyLevelRoleMapping]
	if !ok {
		return nil
	}
	var raw map[string]string
	if err := json.Unmarshal([]byte(item.Value), &raw); err != nil {
		return nil
	}
	mapping := make(map[int]string, len(raw))
	for k, roleID := range raw {
		level, err := strconv.Atoi(k)
		if err != nil || level <= 0 || roleID == "" {
			continue
		}
		mapping[level] = roleID
	}
	return mapping
}

func (s *Settings) Missions() []Mission {
	return s.missions
}

// MissionFor finds the mission configured for a channel and emoji. The
// configured emoji may be stored as the emoji name or its id.
func (s *Settings) MissionFor(channelID, emojiName, emojiID string) (Mission, bool) {
	for _, m := range s.missions {
		if m.ChannelID != channelID {
			continue
		}
		if m.EmojiID == emojiName || (emojiID != "" && m.EmojiID == emojiID) {
			return m, true
		}
	}
	return Mission{}, false
}

// MonitorsChannel reports whether any mission listens on the channel.
func (s *Settings) MonitorsChannel(channelID string) bool {
	for _, m := range s.missions {
		if m.ChannelID == channelID {
			return true
		}
	}
	return false
}

// Items returns the raw non-mission items ordered by name.
func (s *Settings) Items() []*models.GuildConfigItem {
	items := make([]*models.GuildConfigItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}
