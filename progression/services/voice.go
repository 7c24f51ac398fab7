package services

import (
	"sort"
	"sync"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"

	"github.com/disgoorg/progression-bot/internal/domain/activity"
	"github.com/disgoorg/progression-bot/internal/domain/players"
)

type voiceEntry struct {
	channelID snowflake.ID
	deaf      bool
	member    players.Member
}

// VoiceTracker mirrors who sits in which voice channel, fed by gateway voice
// state updates. The voice scan job reads it on every tick.
type VoiceTracker struct {
	mu     sync.RWMutex
	guilds map[snowflake.ID]map[snowflake.ID]voiceEntry
	afk    map[snowflake.ID]snowflake.ID
}

func NewVoiceTracker() *VoiceTracker {
	return &VoiceTracker{
		guilds: make(map[snowflake.ID]map[snowflake.ID]voiceEntry),
		afk:    make(map[snowflake.ID]snowflake.ID),
	}
}

func MemberOf(m discord.Member) players.Member {
	return UserMember(m.User)
}

func UserMember(u discord.User) players.Member {
	return players.Member{
		UserID:   u.ID.String(),
		Username: u.Username,
		Tag:      u.Tag(),
		Bot:      u.Bot,
	}
}

// SetAFKChannel excludes the guild's AFK channel from exp.
func (t *VoiceTracker) SetAFKChannel(guildID snowflake.ID, channelID *snowflake.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if channelID == nil {
		delete(t.afk, guildID)
		return
	}
	t.afk[guildID] = *channelID
}

// Update applies one voice state. A nil channel means the member left voice.
func (t *VoiceTracker) Update(state discord.VoiceState, member *discord.Member) {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := t.guilds[state.GuildID]
	if state.ChannelID == nil {
		delete(users, state.UserID)
		return
	}
	if users == nil {
		users = make(map[snowflake.ID]voiceEntry)
		t.guilds[state.GuildID] = users
	}

	entry := users[state.UserID]
	entry.channelID = *state.ChannelID
	entry.deaf = state.GuildDeaf || state.SelfDeaf
	if member != nil {
		entry.member = MemberOf(*member)
	} else if entry.member.UserID == "" {
		entry.member = players.Member{UserID: state.UserID.String()}
	}
	users[state.UserID] = entry
}

// VoiceCache is the slice of the disgo caches the tracker seeds from.
type VoiceCache interface {
	VoiceStatesForEach(guildID snowflake.ID, fn func(discord.VoiceState))
	Member(guildID snowflake.ID, userID snowflake.ID) (discord.Member, bool)
}

// Seed loads the cached voice states of a guild, e.g. after a reconnect, and
// returns how many were applied.
func (t *VoiceTracker) Seed(c VoiceCache, guildID snowflake.ID) int {
	var states []discord.VoiceState
	c.VoiceStatesForEach(guildID, func(state discord.VoiceState) {
		states = append(states, state)
	})
	for _, state := range states {
		if m, ok := c.Member(guildID, state.UserID); ok {
			t.Update(state, &m)
			continue
		}
		t.Update(state, nil)
	}
	return len(states)
}

// Forget drops every tracked state of a guild.
func (t *VoiceTracker) Forget(guildID snowflake.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.guilds, guildID)
	delete(t.afk, guildID)
}

// Eligible lists members that earn voice exp: not bots, not deafened and not
// in the AFK channel. The order is stable for a given state.
func (t *VoiceTracker) Eligible() []activity.Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var events []activity.Event
	for guildID, users := range t.guilds {
		afk, hasAFK := t.afk[guildID]
		for _, entry := range users {
			if entry.member.Bot || entry.deaf || (hasAFK && entry.channelID == afk) {
				continue
			}
			events = append(events, activity.Event{GuildID: guildID.String(), Member: entry.member})
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].GuildID != events[j].GuildID {
			return events[i].GuildID < events[j].GuildID
		}
		return events[i].Member.UserID < events[j].Member.UserID
	})
	return events
}
