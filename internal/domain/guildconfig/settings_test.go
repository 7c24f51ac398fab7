package guildconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/disgoorg/progression-bot/progression/database/models"
)

func TestSettings_Accessors(t *testing.T) {
	s := newSettings("g1", []*models.GuildConfigItem{
		{Name: KeyMissionDivRole, Type: models.ConfigRole, Value: `["r1","r2"]`},
		{Name: KeyLevelRoleMapping, Type: models.ConfigValue, Value: `{"10":"role10","15":"role15","x":"bad"}`},
		{Name: KeyExpDoubleLimit, Type: models.ConfigValue, Value: `"5000"`},
		{Name: KeyExpDoubleRole, Type: models.ConfigValue, Value: `"double"`},
		{Name: "Q123", Type: models.ConfigMission, Value: `{"channelId":"c1","emojiId":"✅","reward":20,"rewardType":"exp"}`},
		{Name: "Q999", Type: models.ConfigMission, Value: `{"channelId":"c2","emojiId":"77","reward":5,"rewardType":"silver"}`},
	}, testDefaults)

	assert.True(t, s.HasAny(KeyMissionDivRole, []string{"x", "r2"}))
	assert.False(t, s.HasAny(KeyMissionDivRole, []string{"x"}))
	assert.Equal(t, map[int]string{10: "role10", 15: "role15"}, s.LevelRoleMapping())
	assert.Equal(t, int64(5000), s.DoubleThreshold())
	assert.Equal(t, "double", s.ExpDoubleRole())
	assert.Equal(t, int64(10), s.DrawCost())
	assert.Equal(t, 10, s.MonthlyDrawLimit())
	assert.False(t, s.BotTestMode())

	m, ok := s.MissionFor("c1", "✅", "")
	assert.True(t, ok)
	assert.Equal(t, "Q123", m.QuestID)
	assert.Equal(t, int64(20), m.Reward)

	m, ok = s.MissionFor("c2", "custom", "77")
	assert.True(t, ok)
	assert.Equal(t, models.CurrencySilver, m.RewardType)

	_, ok = s.MissionFor("c1", "❌", "")
	assert.False(t, ok)
	assert.True(t, s.MonitorsChannel("c2"))
	assert.False(t, s.MonitorsChannel("c3"))
}
