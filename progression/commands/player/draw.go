package player

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/disgoorg/progression-bot/internal/domain/draw"
	"github.com/disgoorg/progression-bot/progression"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/services"
	"github.com/disgoorg/progression-bot/progression/utils"
)

var Draw = discord.SlashCommandCreate{
	Name:        "draw",
	Description: "Spend silver on a lucky draw",
}

func DrawHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		guildID := e.GuildID().String()
		player, err := b.Players.EnsurePlayer(ctx, guildID, services.MemberOf(e.Member().Member))
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}

		outcome, err := b.Draw.Draw(ctx, draw.Request{
			PlayerID:  player.ID,
			GuildID:   guildID,
			UserID:    e.User().ID.String(),
			ChannelID: e.ChannelID().String(),
		})
		if errors.Is(err, draw.ErrDrawLimitReached) && outcome != nil {
			return utils.EH.CreateUserError(e, fmt.Sprintf("You have used all %d draws for this period.", outcome.DrawsLimit))
		}
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}

		return e.CreateMessage(discord.NewMessageCreateBuilder().
			SetEmbeds(outcomeEmbed(e.User(), outcome)).
			Build())
	}
}

func outcomeEmbed(user discord.User, o *draw.Outcome) discord.Embed {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎁 **%s**\n", o.Reward.Name)
	if currency, ok := o.Reward.Currency(); ok && o.Reward.Value != 0 {
		fmt.Fprintf(&sb, "%s %s\n", utils.FormatSigned(o.Reward.Value), currency)
	}
	fmt.Fprintf(&sb, "\n🪙 Silver: %s → %s\n",
		utils.FormatNumber(o.SilverBefore), utils.FormatNumber(o.SilverAfter))
	fmt.Fprintf(&sb, "🎲 Draws left this period: %d/%d", o.Remaining(), o.DrawsLimit)
	if o.TestMode {
		sb.WriteString("\n\n-# Test mode, every draw is announced")
	}

	color := utils.SuccessColor
	if o.Broadcast || o.Reward.Kind == models.RewardOther {
		color = utils.GoldColor
	}
	return discord.NewEmbedBuilder().
		SetAuthor(user.Username, "", user.EffectiveAvatarURL()).
		SetTitle("Lucky Draw").
		SetDescription(sb.String()).
		SetColor(color).
		Build()
}
