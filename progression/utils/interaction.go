package utils

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
)

func IDStrings(ids []snowflake.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// MemberRoles returns the role ids of the invoking member, nil outside guilds.
func MemberRoles(e *handler.CommandEvent) []string {
	if m := e.Member(); m != nil {
		return IDStrings(m.RoleIDs)
	}
	return nil
}

// IsModerator accepts members with Manage Server or one of the configured
// mission reviewer roles.
func IsModerator(e *handler.CommandEvent, settings *guildconfig.Settings) bool {
	m := e.Member()
	if m == nil {
		return false
	}
	if m.Permissions.Has(discord.PermissionManageGuild) || m.Permissions.Has(discord.PermissionAdministrator) {
		return true
	}
	return settings != nil && settings.HasAny(guildconfig.KeyMissionDivRole, IDStrings(m.RoleIDs))
}

// IsAdmin accepts members with Manage Server.
func IsAdmin(e *handler.CommandEvent) bool {
	m := e.Member()
	return m != nil && (m.Permissions.Has(discord.PermissionManageGuild) || m.Permissions.Has(discord.PermissionAdministrator))
}

// ChannelAllowed reports whether channelID is listed under key. An empty list
// allows every channel.
func ChannelAllowed(settings *guildconfig.Settings, key, channelID string) bool {
	allowed := settings.List(key)
	return len(allowed) == 0 || settings.Contains(key, channelID)
}
