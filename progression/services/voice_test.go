package services

import (
	"testing"

	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func member(id snowflake.ID, name string, bot bool) *discord.Member {
	return &discord.Member{User: discord.User{ID: id, Username: name, Bot: bot}}
}

func TestVoiceTracker_Eligible(t *testing.T) {
	guild := snowflake.ID(100)
	lounge := snowflake.ID(200)
	afk := snowflake.ID(201)

	tracker := NewVoiceTracker()
	tracker.SetAFKChannel(guild, &afk)

	tracker.Update(discord.VoiceState{GuildID: guild, UserID: 2, ChannelID: &lounge}, member(2, "bob", false))
	tracker.Update(discord.VoiceState{GuildID: guild, UserID: 1, ChannelID: &lounge}, member(1, "alice", false))
	tracker.Update(discord.VoiceState{GuildID: guild, UserID: 3, ChannelID: &lounge}, member(3, "robot", true))
	tracker.Update(discord.VoiceState{GuildID: guild, UserID: 4, ChannelID: &afk}, member(4, "sleepy", false))
	tracker.Update(discord.VoiceState{GuildID: guild, UserID: 5, ChannelID: &lounge, SelfDeaf: true}, member(5, "deaf", false))

	events := tracker.Eligible()
	require.Len(t, events, 2)
	assert.Equal(t, "1", events[0].Member.UserID)
	assert.Equal(t, "alice", events[0].Member.Username)
	assert.Equal(t, "2", events[1].Member.UserID)
	assert.Equal(t, "100", events[0].GuildID)
}

func TestVoiceTracker_LeaveAndKeepMember(t *testing.T) {
	guild := snowflake.ID(100)
	lounge := snowflake.ID(200)

	tracker := NewVoiceTracker()
	tracker.Update(discord.VoiceState{GuildID: guild, UserID: 1, ChannelID: &lounge}, member(1, "alice", false))
	tracker.Update(discord.VoiceState{GuildID: guild, UserID: 1, ChannelID: &lounge, SelfMute: true}, nil)

	events := tracker.Eligible()
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Member.Username)

	tracker.Update(discord.VoiceState{GuildID: guild, UserID: 1}, nil)
	assert.Empty(t, tracker.Eligible())

	tracker.Update(discord.VoiceState{GuildID: guild, UserID: 1, ChannelID: &lounge}, nil)
	tracker.Forget(guild)
	assert.Empty(t, tracker.Eligible())
}

func TestVoiceTracker_SeedFromCache(t *testing.T) {
	guild := snowflake.ID(100)
	lounge := snowflake.ID(200)

	caches := cache.New(cache.WithCaches(cache.FlagVoiceStates, cache.FlagMembers))
	caches.AddMember(discord.Member{GuildID: guild, User: discord.User{ID: 1, Username: "alice"}})
	caches.AddVoiceState(discord.VoiceState{GuildID: guild, UserID: 1, ChannelID: &lounge})
	caches.AddVoiceState(discord.VoiceState{GuildID: guild, UserID: 2, ChannelID: &lounge})
	caches.AddVoiceState(discord.VoiceState{GuildID: 999, UserID: 3, ChannelID: &lounge})

	tracker := NewVoiceTracker()
	assert.Equal(t, 2, tracker.Seed(caches, guild))

	events := tracker.Eligible()
	require.Len(t, events, 2)
	assert.Equal(t, "alice", events[0].Member.Username)
	assert.Equal(t, "2", events[1].Member.UserID)
}
