package player

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/internal/domain/players"
	"github.com/disgoorg/progression-bot/internal/domain/quota"
	"github.com/disgoorg/progression-bot/progression"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/services"
	"github.com/disgoorg/progression-bot/progression/utils"
)

var User = discord.SlashCommandCreate{
	Name:        "user",
	Description: "Show your level, balances and today's remaining exp",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionUser{
			Name:        "member",
			Description: "Someone else to look up",
			Required:    false,
		},
	},
}

func UserHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		guildID := e.GuildID().String()
		settings, err := b.GuildConfig.Settings(ctx, guildID)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		if !utils.ChannelAllowed(settings, guildconfig.KeyUserCommandAllowed, e.ChannelID().String()) {
			return utils.EH.CreatePermissionError(e, "use this command in this channel")
		}

		if err := e.DeferCreateMessage(false); err != nil {
			return err
		}

		target := e.User()
		roles := utils.MemberRoles(e)
		self := true
		if other, ok := e.SlashCommandInteractionData().OptUser("member"); ok && other.ID != e.User().ID {
			target = other
			self = false
			roles, err = b.Roles.MemberRoles(ctx, guildID, other.ID.String())
			if err != nil {
				slog.Warn("Could not load member roles",
					slog.String("type", "cmd"),
					slog.String("user_id", other.ID.String()),
					slog.Any("error", err))
			}
		}

		if self {
			refresh(ctx, b, e, guildID)
		}

		profile, err := b.Players.Profile(ctx, guildID, target.ID.String(), roles)
		if err != nil {
			return utils.EH.UpdateDomainError(e, err)
		}

		_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
			Embeds: &[]discord.Embed{profileEmbed(target, profile, b)},
		})
		return err
	}
}

// refresh registers the caller, reconciles level roles and pays the one-time
// threshold bonus when due. Failures only degrade the reply.
func refresh(ctx context.Context, b *progression.Bot, e *handler.CommandEvent, guildID string) {
	member := services.MemberOf(e.Member().Member)
	player, err := b.Players.EnsurePlayer(ctx, guildID, member)
	if err != nil {
		slog.Error("Failed to register player", slog.String("type", "cmd"), slog.Any("error", err))
		return
	}
	if _, err := b.Reconciler.ReconcileUser(ctx, guildID, member.UserID, player.Exp); err != nil {
		slog.Warn("Level roles not fully reconciled",
			slog.String("type", "cmd"),
			slog.String("user_id", member.UserID),
			slog.Any("error", err))
	}
	if _, err := b.Players.ClaimThresholdBonus(ctx, player.ID); err != nil {
		slog.Error("Failed to pay threshold bonus", slog.String("type", "cmd"), slog.Any("error", err))
	}
}

func profileEmbed(user discord.User, p *players.Profile, b *progression.Bot) discord.Embed {
	factor := int64(1)
	if p.Doubled {
		factor = 2
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** · Level %d\n", p.Rank, p.DisplayLevel)
	if p.DisplayLevel != p.Level {
		fmt.Fprintf(&sb, "-# Level %d unlocks with a qualified role\n", p.Level)
	}
	fmt.Fprintf(&sb, "`%s` %d/%d (%.0f%%)\n\n",
		utils.ProgressBar(p.Progress.Into, p.Progress.Needed, 12),
		p.Progress.Into, p.Progress.Needed, p.Progress.Percent)

	fmt.Fprintf(&sb, "✨ Exp: **%s**\n", utils.FormatNumber(p.Player.Exp))
	fmt.Fprintf(&sb, "🪙 Silver: **%s**\n\n", utils.FormatNumber(p.Player.Silver))

	if p.Counter != nil {
		fmt.Fprintf(&sb, "💬 Chat left today: %d/%d\n", p.Counter.ChatExp, quota.BaseChat*factor)
		fmt.Fprintf(&sb, "🎙️ Voice left today: %d/%d\n", p.Counter.VoiceExp, quota.BaseVoice*factor)
		fmt.Fprintf(&sb, "🎯 Mission exp left today: %d/%d\n", p.Counter.MissionExp, quota.BaseMission*factor)
	}
	fmt.Fprintf(&sb, "🎲 Draws this period: %d/%d", p.DrawsUsed, p.DrawsLimit)
	if p.Doubled {
		sb.WriteString("\n\n⚡ Daily limits doubled")
	}

	return discord.NewEmbedBuilder().
		SetAuthor(user.Username, "", user.EffectiveAvatarURL()).
		SetDescription(sb.String()).
		SetColor(utils.InfoColor).
		SetFooterText(fmt.Sprintf("Player %s", models.PlayerID(user.ID.String(), p.Player.GuildID))).
		SetTimestamp(b.Clock.Now()).
		Build()
}
