package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"

	"github.com/disgoorg/progression-bot/internal/domain/activity"
	"github.com/disgoorg/progression-bot/internal/domain/missions"
	"github.com/disgoorg/progression-bot/internal/domain/players"
	"github.com/disgoorg/progression-bot/progression"
	"github.com/disgoorg/progression-bot/progression/services"
	"github.com/disgoorg/progression-bot/progression/utils"
)

const guildSyncTimeout = 10 * time.Minute

// NewEventListener routes gateway events into the economy engines. Each event
// is handled in its own goroutine with a timeout, and panics are logged.
func NewEventListener(b *progression.Bot) *events.ListenerAdapter {
	return &events.ListenerAdapter{
		OnGuildMessageCreate: func(e *events.GuildMessageCreate) {
			if e.Message.Author.Bot || e.Message.WebhookID != nil {
				return
			}
			dispatch("message_create", utils.EventTimeout, func(ctx context.Context) error {
				return onMessage(ctx, b, e)
			})
		},
		OnGuildMessageReactionAdd: func(e *events.GuildMessageReactionAdd) {
			if e.Member.User.Bot {
				return
			}
			dispatch("reaction_add", utils.EventTimeout, func(ctx context.Context) error {
				return onReaction(ctx, b, e)
			})
		},
		OnGuildMemberJoin: func(e *events.GuildMemberJoin) {
			dispatch("member_join", utils.EventTimeout, func(ctx context.Context) error {
				_, err := b.Players.SyncGuild(ctx, e.GuildID.String(), []players.Member{services.MemberOf(e.Member)})
				return err
			})
		},
		OnGuildReady: func(e *events.GuildReady) {
			b.Voice.SetAFKChannel(e.GuildID, e.Guild.AfkChannelID)
			b.Voice.Seed(b.Client.Caches(), e.GuildID)
			dispatch("guild_ready", guildSyncTimeout, func(ctx context.Context) error {
				return syncGuild(ctx, b, e)
			})
		},
		OnGuildLeave: func(e *events.GuildLeave) {
			b.Voice.Forget(e.GuildID)
		},
		OnGuildVoiceStateUpdate: func(e *events.GuildVoiceStateUpdate) {
			member := e.Member
			b.Voice.Update(e.VoiceState, &member)
		},
	}
}

func dispatch(name string, timeout time.Duration, fn func(ctx context.Context) error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Event handler panic",
					slog.String("type", "error"),
					slog.String("event", name),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.Error("Event handler failed",
				slog.String("type", "error"),
				slog.String("event", name),
				slog.Any("error", err))
		}
	}()
}

func onMessage(ctx context.Context, b *progression.Bot, e *events.GuildMessageCreate) error {
	member := players.Member{
		UserID:   e.Message.Author.ID.String(),
		Username: e.Message.Author.Username,
		Tag:      e.Message.Author.Tag(),
	}
	_, err := b.Activity.CreditChat(ctx, activity.Event{GuildID: e.GuildID.String(), Member: member})
	return err
}

func onReaction(ctx context.Context, b *progression.Bot, e *events.GuildMessageReactionAdd) error {
	guildID := e.GuildID.String()
	channelID := e.ChannelID.String()

	settings, err := b.GuildConfig.Settings(ctx, guildID)
	if err != nil {
		return err
	}
	if !settings.MonitorsChannel(channelID) {
		return nil
	}

	msg, err := b.Client.Rest().GetMessage(e.ChannelID, e.MessageID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to fetch reacted message: %w", err)
	}

	reaction := missions.Reaction{
		GuildID:      guildID,
		ChannelID:    channelID,
		MessageID:    e.MessageID.String(),
		AuthorID:     msg.Author.ID.String(),
		AuthorTag:    msg.Author.Tag(),
		AuthorIsBot:  msg.Author.Bot,
		ReactorID:    e.UserID.String(),
		ReactorIsBot: e.Member.User.Bot,
		MessageTime:  msg.CreatedAt,
	}
	for _, id := range e.Member.RoleIDs {
		reaction.ReactorRoleIDs = append(reaction.ReactorRoleIDs, id.String())
	}
	if e.Emoji.Name != nil {
		reaction.EmojiName = *e.Emoji.Name
	}
	if e.Emoji.ID != nil {
		reaction.EmojiID = e.Emoji.ID.String()
	}

	_, err = b.Missions.HandleReaction(ctx, reaction)
	return err
}

func syncGuild(ctx context.Context, b *progression.Bot, e *events.GuildReady) error {
	members, err := b.Roles.GuildMembers(ctx, e.GuildID)
	if err != nil {
		slog.Warn("Falling back to cached member list",
			slog.String("type", "sys"),
			slog.String("guild_id", e.GuildID.String()),
			slog.Any("error", err))
		members = members[:0]
		b.Client.Caches().MembersForEach(e.GuildID, func(m discord.Member) {
			members = append(members, m)
		})
	}

	list := make([]players.Member, 0, len(members))
	for _, m := range members {
		list = append(list, services.MemberOf(m))
	}
	synced, err := b.Players.SyncGuild(ctx, e.GuildID.String(), list)
	slog.Info("Guild members synced",
		slog.String("type", "sys"),
		slog.String("guild_id", e.GuildID.String()),
		slog.Int("synced", synced))
	return err
}
