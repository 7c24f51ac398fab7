package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

const memberPageSize = 1000

// DiscordRoles reads and mutates member roles through the gateway cache and
// the REST API.
type DiscordRoles struct {
	client bot.Client
}

func NewDiscordRoles(client bot.Client) *DiscordRoles {
	return &DiscordRoles{client: client}
}

func parseIDs(ids ...string) ([]snowflake.ID, error) {
	out := make([]snowflake.ID, len(ids))
	for i, id := range ids {
		parsed, err := snowflake.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid snowflake %q: %w", id, err)
		}
		out[i] = parsed
	}
	return out, nil
}

// Member returns a guild member from the cache, falling back to REST.
func (r *DiscordRoles) Member(ctx context.Context, guildID, userID snowflake.ID) (discord.Member, error) {
	if member, ok := r.client.Caches().Member(guildID, userID); ok {
		return member, nil
	}
	m, err := r.client.Rest().GetMember(guildID, userID, rest.WithCtx(ctx))
	if err != nil {
		return discord.Member{}, fmt.Errorf("failed to fetch member: %w", err)
	}
	return *m, nil
}

func (r *DiscordRoles) MemberRoles(ctx context.Context, guildID, userID string) ([]string, error) {
	ids, err := parseIDs(guildID, userID)
	if err != nil {
		return nil, err
	}

	member, err := r.Member(ctx, ids[0], ids[1])
	if err != nil {
		return nil, err
	}

	roles := make([]string, len(member.RoleIDs))
	for i, id := range member.RoleIDs {
		roles[i] = id.String()
	}
	return roles, nil
}

func (r *DiscordRoles) AddRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	ids, err := parseIDs(guildID, userID, roleID)
	if err != nil {
		return err
	}
	return r.client.Rest().AddMemberRole(ids[0], ids[1], ids[2], rest.WithCtx(ctx), rest.WithReason(reason))
}

func (r *DiscordRoles) RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	ids, err := parseIDs(guildID, userID, roleID)
	if err != nil {
		return err
	}
	return r.client.Rest().RemoveMemberRole(ids[0], ids[1], ids[2], rest.WithCtx(ctx), rest.WithReason(reason))
}

// GuildMembers pages through every member of a guild.
func (r *DiscordRoles) GuildMembers(ctx context.Context, guildID snowflake.ID) ([]discord.Member, error) {
	var (
		members []discord.Member
		after   snowflake.ID
	)
	for {
		page, err := r.client.Rest().GetMembers(guildID, memberPageSize, after, rest.WithCtx(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list guild members: %w", err)
		}
		members = append(members, page...)
		if len(page) < memberPageSize {
			return members, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// RoleMembers returns the members of guildID holding roleID.
func (r *DiscordRoles) RoleMembers(ctx context.Context, guildID, roleID snowflake.ID) ([]discord.Member, error) {
	members, err := r.GuildMembers(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(members, func(m discord.Member) bool {
		return !slices.Contains(m.RoleIDs, roleID)
	}), nil
}
