package admin

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/disgoorg/progression-bot/progression"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
	"github.com/disgoorg/progression-bot/progression/services"
	"github.com/disgoorg/progression-bot/progression/utils"
)

const (
	recentEntries = 10
	ExportTimeout = time.Minute
)

var Ledger = discord.SlashCommandCreate{
	Name:        "ledger",
	Description: "Balance history tools (administrators)",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "audit",
			Description: "Compare a player's balances with their ledger",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "member",
					Description: "Player to audit",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "export",
			Description: "Download a month of ledger entries as CSV",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "month",
					Description: "YYYY-MM, defaults to last month",
					Required:    false,
				},
				discord.ApplicationCommandOptionBool{
					Name:        "upload",
					Description: "Also store it in the archive bucket",
					Required:    false,
				},
			},
		},
	},
}

func LedgerAuditHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if ok, err := requireAdmin(e); !ok {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		user := e.SlashCommandInteractionData().User("member")
		playerID := models.PlayerID(user.ID.String(), e.GuildID().String())

		report, err := b.Ledger.Audit(ctx, playerID)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		recent, err := repositories.NewLedgerRepository(b.DB.BunDB()).ListByPlayer(ctx, playerID, recentEntries)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}

		embed := discord.NewEmbedBuilder().
			SetTitle("📒 Ledger audit · " + user.Username).
			SetColor(utils.SuccessColor)
		if !report.Consistent() {
			embed.SetColor(utils.ErrorColor)
		}
		for _, c := range report.Entries {
			status := "✅"
			if c.Drift() != 0 {
				status = "❌ drift " + utils.FormatSigned(c.Drift())
			}
			embed.AddField(string(c.Currency),
				fmt.Sprintf("Balance %s\nLedger %s\n%s", utils.FormatNumber(c.Balance), utils.FormatNumber(c.LedgerSum), status),
				true)
		}

		var sb strings.Builder
		for _, entry := range recent {
			marker := ""
			if entry.Audit {
				marker = " (audit)"
			}
			fmt.Fprintf(&sb, "`%s` %s %s · %s%s\n",
				utils.FormatDate(entry.EffectiveAt, b.Clock.Location),
				utils.FormatSigned(entry.Amount), entry.Currency, entry.Category, marker)
		}
		if sb.Len() > 0 {
			embed.AddField("Recent entries", sb.String(), false)
		}

		return e.CreateMessage(discord.NewMessageCreateBuilder().
			SetEmbeds(embed.Build()).
			SetEphemeral(true).
			Build())
	}
}

func LedgerExportHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if ok, err := requireAdmin(e); !ok {
			return err
		}

		data := e.SlashCommandInteractionData()
		from, to := b.Clock.PreviousMonth(b.Clock.Now())
		if month, ok := data.OptString("month"); ok {
			start, err := time.ParseInLocation("2006-01", strings.TrimSpace(month), b.Clock.Location)
			if err != nil {
				return utils.EH.CreateUserError(e, fmt.Sprintf("Cannot read month %q, use YYYY-MM.", month))
			}
			from, to = start, start.AddDate(0, 1, 0)
		}
		upload, _ := data.OptBool("upload")
		if upload && b.Archive == nil {
			return utils.EH.CreateUserError(e, "The archive bucket is not configured.")
		}

		if err := e.DeferCreateMessage(true); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), ExportTimeout)
		defer cancel()

		archive := b.Archive
		if archive == nil {
			archive = services.NewLedgerArchive(nil, repositories.NewLedgerRepository(b.DB.BunDB()), "", "")
		}

		guildID := e.GuildID().String()
		body, count, err := archive.Export(ctx, guildID, from, to)
		if err != nil {
			return utils.EH.UpdateDomainError(e, err)
		}

		content := fmt.Sprintf("📦 %d ledger entries from %s", count, from.Format("January 2006"))
		if upload {
			key, _, err := archive.Archive(ctx, guildID, from, to)
			if err != nil {
				return utils.EH.UpdateDomainError(e, err)
			}
			content += fmt.Sprintf("\nUploaded to `%s`", key)
		}

		_, err = e.UpdateInteractionResponse(discord.NewMessageUpdateBuilder().
			SetContent(content).
			AddFile(fmt.Sprintf("ledger-%s-%s.csv", guildID, from.Format("2006-01")), "", bytes.NewReader(body)).
			Build())
		return err
	}
}
