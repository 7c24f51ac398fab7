package quest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/disgoorg/progression-bot/progression"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/services"
	"github.com/disgoorg/progression-bot/progression/utils"
)

const autocompleteTimeout = 2 * time.Second

// callerPlayer registers the invoking member and returns their player id.
func callerPlayer(ctx context.Context, b *progression.Bot, e *handler.CommandEvent) (string, error) {
	player, err := b.Players.EnsurePlayer(ctx, e.GuildID().String(), services.MemberOf(e.Member().Member))
	if err != nil {
		return "", err
	}
	return player.ID, nil
}

func ListHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		playerID, err := callerPlayer(ctx, b, e)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		available, err := b.Quests.ListAvailable(ctx, e.GuildID().String(), playerID)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		if len(available) == 0 {
			return utils.EH.CreateInfoEmbed(e, "There are no quests open for you right now.")
		}

		totalPages := (len(available) + utils.QuestsPerPage - 1) / utils.QuestsPerPage
		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * utils.QuestsPerPage
				end := min(start+utils.QuestsPerPage, len(available))

				embed.
					SetTitle("📜 Available Quests").
					SetColor(utils.InfoColor).
					SetFooter(fmt.Sprintf("Page %d/%d • /quest accept to take one", page+1, totalPages), "")
				for _, q := range available[start:end] {
					embed.AddField(fmt.Sprintf("%s · `%s`", q.Name, q.ID), questSummary(q), false)
				}
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}

func AcceptHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		playerID, err := callerPlayer(ctx, b, e)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}

		questID := strings.TrimSpace(e.SlashCommandInteractionData().String("quest"))
		if !models.IsQuestID(questID) {
			// a typed name instead of a picked suggestion
			available, err := b.Quests.ListAvailable(ctx, e.GuildID().String(), playerID)
			if err != nil {
				return utils.EH.HandleDomainError(e, err)
			}
			matches := utils.SearchQuests(questID, available)
			if len(matches) == 0 {
				return utils.EH.CreateUserError(e, fmt.Sprintf("No open quest matches %q.", questID))
			}
			questID = matches[0].ID
		}

		record, err := b.Quests.Accept(ctx, playerID, questID)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}

		name := questID
		if record.Quest != nil {
			name = record.Quest.Name
		}
		return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("✅ You accepted **%s**. Use `/quest submit` when you are done.", name))
	}
}

func AcceptAutocomplete(b *progression.Bot) handler.AutocompleteHandler {
	return func(e *handler.AutocompleteEvent) error {
		if e.GuildID() == nil {
			return e.AutocompleteResult([]discord.AutocompleteChoice{})
		}
		focused := e.Data.Focused()
		if focused.Name != "quest" {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), autocompleteTimeout)
		defer cancel()

		guildID := e.GuildID().String()
		available, err := b.Quests.ListAvailable(ctx, guildID, models.PlayerID(e.User().ID.String(), guildID))
		if err != nil {
			slog.Error("Failed to load quests for autocomplete",
				slog.String("type", "cmd"),
				slog.String("guild_id", guildID),
				slog.Any("error", err))
			return e.AutocompleteResult([]discord.AutocompleteChoice{})
		}
		return e.AutocompleteResult(utils.QuestChoices(utils.FocusedString(focused.Value), available))
	}
}

func CurrentHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		playerID, err := callerPlayer(ctx, b, e)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		record, err := b.Quests.Current(ctx, playerID)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}

		status := "In progress"
		if record.NeedReview {
			status = "Waiting for review"
		}
		embed := discord.NewEmbedBuilder().
			SetTitle("🧭 Current Quest").
			SetColor(utils.InfoColor).
			AddField("Status", status, true).
			AddField("Accepted", utils.Timestamp(record.CreatedAt), true)
		if q := record.Quest; q != nil {
			embed.SetDescription(fmt.Sprintf("**%s** · `%s`\n%s", q.Name, q.ID, questSummary(q)))
		}
		return e.CreateMessage(discord.NewMessageCreateBuilder().
			SetEmbeds(embed.Build()).
			SetEphemeral(true).
			Build())
	}
}

func SubmitHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		playerID, err := callerPlayer(ctx, b, e)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		record, err := b.Quests.Submit(ctx, playerID)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("📨 Submitted for review as record **#%d**.", record.ID))
	}
}

func DropHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		playerID, err := callerPlayer(ctx, b, e)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		if _, err := b.Quests.Drop(ctx, playerID); err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		return utils.EH.CreateSuccessEmbed(e, "🏳️ Quest abandoned.")
	}
}

func questSummary(q *models.Quest) string {
	var sb strings.Builder
	if q.Description != "" {
		sb.WriteString(q.Description + "\n")
	}

	var rewards []string
	if q.RewardExp > 0 {
		rewards = append(rewards, utils.FormatNumber(q.RewardExp)+" exp")
	}
	if q.RewardSilver > 0 {
		rewards = append(rewards, utils.FormatNumber(q.RewardSilver)+" silver")
	}
	if q.RewardDescription != "" {
		rewards = append(rewards, q.RewardDescription)
	}
	if len(rewards) > 0 {
		sb.WriteString("🎁 " + strings.Join(rewards, " + ") + "\n")
	}

	var flags []string
	if q.MultipleTakers {
		flags = append(flags, "multiple takers")
	}
	if q.Repeatable {
		flags = append(flags, "repeatable")
	}
	if len(flags) > 0 {
		sb.WriteString("-# " + strings.Join(flags, ", ") + "\n")
	}
	sb.WriteString("⏳ Ends " + utils.Timestamp(q.ExpireDate))
	return sb.String()
}
