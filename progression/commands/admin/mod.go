package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/disgoorg/progression-bot/internal/domain/mods"
	"github.com/disgoorg/progression-bot/internal/domain/players"
	"github.com/disgoorg/progression-bot/progression"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/services"
	"github.com/disgoorg/progression-bot/progression/utils"
)

// BulkTimeout bounds /mod bulk and /mod role, which walk the member list.
const BulkTimeout = 2 * time.Minute

func adjustmentOptions() []discord.ApplicationCommandOption {
	return []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "currency",
			Description: "Balance to change",
			Required:    true,
			Choices: []discord.ApplicationCommandOptionChoiceString{
				{Name: "Exp", Value: string(models.CurrencyExp)},
				{Name: "Silver", Value: string(models.CurrencySilver)},
			},
		},
		discord.ApplicationCommandOptionInt{
			Name:        "amount",
			Description: "Signed amount, negative to take away",
			Required:    true,
		},
		discord.ApplicationCommandOptionString{
			Name:        "note",
			Description: "Why, shown in the ledger and the mod log",
			Required:    false,
			MaxLength:   &[]int{200}[0],
		},
	}
}

var Mod = discord.SlashCommandCreate{
	Name:        "mod",
	Description: "Adjust player balances (moderators)",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "player",
			Description: "Adjust one player",
			Options: append([]discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "member",
					Description: "Player to adjust",
					Required:    true,
				},
			}, adjustmentOptions()...),
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "bulk",
			Description: "Adjust several players at once",
			Options: append([]discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "members",
					Description: "Mentions or ids, separated by spaces or commas",
					Required:    true,
				},
			}, adjustmentOptions()...),
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "role",
			Description: "Adjust every member holding a role",
			Options: append([]discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionRole{
					Name:        "role",
					Description: "Role whose members are adjusted",
					Required:    true,
				},
			}, adjustmentOptions()...),
		},
	},
}

func adjustment(e *handler.CommandEvent, scope string) mods.Adjustment {
	data := e.SlashCommandInteractionData()
	note, _ := data.OptString("note")
	return mods.Adjustment{
		GuildID:     e.GuildID().String(),
		ModeratorID: e.User().ID.String(),
		Currency:    models.Currency(data.String("currency")),
		Amount:      int64(data.Int("amount")),
		Note:        note,
		Scope:       scope,
	}
}

func ModPlayerHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		if !utils.IsAdmin(e) {
			return utils.EH.CreatePermissionError(e, "adjust balances")
		}

		user := e.SlashCommandInteractionData().User("member")
		report, err := b.Mods.Adjust(ctx, adjustment(e, ""), []players.Member{services.UserMember(user)})
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		return reply(e, report)
	}
}

func ModBulkHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if !utils.IsAdmin(e) {
			return utils.EH.CreatePermissionError(e, "adjust balances")
		}

		ids := utils.ParseSnowflakes(e.SlashCommandInteractionData().String("members"))
		if len(ids) == 0 {
			return utils.EH.CreateUserError(e, "Mention the members or paste their ids.")
		}
		if err := e.DeferCreateMessage(false); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), BulkTimeout)
		defer cancel()

		targets := make([]players.Member, 0, len(ids))
		for _, id := range ids {
			member, err := b.Roles.Member(ctx, *e.GuildID(), id)
			if err != nil {
				slog.Warn("Skipping unknown member",
					slog.String("type", "cmd"),
					slog.String("user_id", id.String()),
					slog.Any("error", err))
				continue
			}
			targets = append(targets, services.MemberOf(member))
		}

		report, err := b.Mods.Adjust(ctx, adjustment(e, fmt.Sprintf("%d listed members", len(ids))), targets)
		if err != nil {
			return utils.EH.UpdateDomainError(e, err)
		}
		return update(e, report)
	}
}

func ModRoleHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if !utils.IsAdmin(e) {
			return utils.EH.CreatePermissionError(e, "adjust balances")
		}
		if err := e.DeferCreateMessage(false); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), BulkTimeout)
		defer cancel()

		role := e.SlashCommandInteractionData().Role("role")
		members, err := b.Roles.RoleMembers(ctx, *e.GuildID(), role.ID)
		if err != nil {
			return utils.EH.UpdateDomainError(e, err)
		}
		targets := make([]players.Member, 0, len(members))
		for _, m := range members {
			targets = append(targets, services.MemberOf(m))
		}

		report, err := b.Mods.Adjust(ctx, adjustment(e, "role "+role.Name), targets)
		if err != nil {
			return utils.EH.UpdateDomainError(e, err)
		}
		return update(e, report)
	}
}

func reportEmbed(r *mods.Report) discord.Embed {
	adj := r.Adjustment

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s for %d player(s)\n", utils.FormatSigned(adj.Amount), adj.Currency, r.Succeeded())
	if len(r.Results) == 1 && r.Results[0].Credit != nil {
		c := r.Results[0].Credit
		fmt.Fprintf(&sb, "<@%s>: %s → %s\n", r.Results[0].Member.UserID, utils.FormatNumber(c.Before), utils.FormatNumber(c.After))
	}
	if failed := len(r.Results) - r.Succeeded(); failed > 0 {
		fmt.Fprintf(&sb, "⚠️ %d failed, see logs\n", failed)
	}
	if adj.Note != "" {
		fmt.Fprintf(&sb, "-# %s", adj.Note)
	}

	color := utils.SuccessColor
	if r.Succeeded() < len(r.Results) {
		color = utils.WarningColor
	}
	return discord.NewEmbedBuilder().
		SetTitle("Balance adjusted").
		SetDescription(sb.String()).
		SetColor(color).
		Build()
}

func reply(e *handler.CommandEvent, r *mods.Report) error {
	return e.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(reportEmbed(r)).
		SetAllowedMentions(&discord.AllowedMentions{}).
		Build())
}

func update(e *handler.CommandEvent, r *mods.Report) error {
	_, err := e.UpdateInteractionResponse(discord.MessageUpdate{
		Embeds: &[]discord.Embed{reportEmbed(r)},
	})
	return err
}
