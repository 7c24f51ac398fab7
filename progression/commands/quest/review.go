package quest

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/disgoorg/progression-bot/internal/domain/quests"
	"github.com/disgoorg/progression-bot/progression"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/utils"
)

// pendingShown caps the review queue listing to one embed.
const pendingShown = 20

// requireModerator replies with a permission error and reports false when
// the caller may not review quests.
func requireModerator(ctx context.Context, b *progression.Bot, e *handler.CommandEvent, action string) (bool, error) {
	settings, err := b.GuildConfig.Settings(ctx, e.GuildID().String())
	if err != nil {
		return false, utils.EH.HandleDomainError(e, err)
	}
	if !utils.IsModerator(e, settings) {
		return false, utils.EH.CreatePermissionError(e, action)
	}
	return true, nil
}

func PublishHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		if ok, err := requireModerator(ctx, b, e, "publish quests"); !ok {
			return err
		}

		data := e.SlashCommandInteractionData()
		exp, _ := data.OptInt("exp")
		silver, _ := data.OptInt("silver")
		multiple, _ := data.OptBool("multiple")
		repeatable, _ := data.OptBool("repeatable")
		reward, _ := data.OptString("reward")
		duration, _ := data.OptString("duration")

		guildID := e.GuildID().String()
		quest, err := b.Quests.Publish(ctx, quests.PublishRequest{
			GuildID:           guildID,
			PublisherID:       models.PlayerID(e.User().ID.String(), guildID),
			Name:              data.String("name"),
			Description:       data.String("description"),
			RewardDescription: reward,
			RewardExp:         int64(exp),
			RewardSilver:      int64(silver),
			MultipleTakers:    multiple,
			Repeatable:        repeatable,
			ByAdmin:           utils.IsAdmin(e),
			Duration:          strings.TrimSpace(duration),
		})
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}

		embed := discord.NewEmbedBuilder().
			SetTitle("📜 New Quest: " + quest.Name).
			SetDescription(questSummary(quest)).
			SetColor(utils.SuccessColor).
			SetFooter("Quest "+quest.ID, "").
			Build()
		return e.CreateMessage(discord.NewMessageCreateBuilder().SetEmbeds(embed).Build())
	}
}

func PendingHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		if ok, err := requireModerator(ctx, b, e, "review quests"); !ok {
			return err
		}

		pending, err := b.Quests.PendingReviews(ctx, e.GuildID().String())
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		if len(pending) == 0 {
			return utils.EH.CreateInfoEmbed(e, "Nothing is waiting for review.")
		}

		var sb strings.Builder
		for _, r := range pending[:min(len(pending), pendingShown)] {
			name := r.QuestID
			if r.Quest != nil {
				name = r.Quest.Name
			}
			fmt.Fprintf(&sb, "**#%d** · %s · <@%s> · %s\n", r.ID, name, userOf(r.TakerID), utils.Timestamp(r.CreatedAt))
		}
		if len(pending) > pendingShown {
			fmt.Fprintf(&sb, "-# and %d more", len(pending)-pendingShown)
		}

		return e.CreateMessage(discord.NewMessageCreateBuilder().
			SetEmbeds(discord.NewEmbedBuilder().
				SetTitle("🗂️ Pending Reviews").
				SetDescription(sb.String()).
				SetColor(utils.WarningColor).
				Build()).
			SetEphemeral(true).
			Build())
	}
}

func ApproveHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		if ok, err := requireModerator(ctx, b, e, "review quests"); !ok {
			return err
		}

		data := e.SlashCommandInteractionData()
		recordID := int64(data.Int("record"))
		override, _ := data.OptInt("exp")
		if err := inGuild(ctx, b, e.GuildID().String(), recordID); err != nil {
			return utils.EH.HandleDomainError(e, err)
		}

		result, err := b.Quests.Approve(ctx, recordID, reviewerOf(e), int64(override))
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}

		var paid []string
		if result.ExpCredit != nil {
			paid = append(paid, utils.FormatNumber(result.ExpCredit.Entry.Amount)+" exp")
		}
		if result.SilverCredit != nil {
			paid = append(paid, utils.FormatNumber(result.SilverCredit.Entry.Amount)+" silver")
		}
		msg := fmt.Sprintf("✅ Approved record **#%d** for <@%s>.", recordID, result.Taker.UserID)
		if len(paid) > 0 {
			msg += " Paid " + strings.Join(paid, " and ") + "."
		}
		return utils.EH.CreateSuccessEmbed(e, msg)
	}
}

func RejectHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		if ok, err := requireModerator(ctx, b, e, "review quests"); !ok {
			return err
		}

		recordID := int64(e.SlashCommandInteractionData().Int("record"))
		if err := inGuild(ctx, b, e.GuildID().String(), recordID); err != nil {
			return utils.EH.HandleDomainError(e, err)
		}

		result, err := b.Quests.Reject(ctx, recordID, reviewerOf(e))
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("❌ Rejected record **#%d** from <@%s>.", recordID, result.Taker.UserID))
	}
}

// inGuild keeps moderators from reviewing another guild's submissions.
func inGuild(ctx context.Context, b *progression.Bot, guildID string, recordID int64) error {
	pending, err := b.Quests.PendingReviews(ctx, guildID)
	if err != nil {
		return err
	}
	for _, r := range pending {
		if r.ID == recordID {
			return nil
		}
	}
	return fmt.Errorf("%w: %d", quests.ErrRecordNotFound, recordID)
}

func reviewerOf(e *handler.CommandEvent) string {
	return models.PlayerID(e.User().ID.String(), e.GuildID().String())
}

func userOf(playerID string) string {
	userID, _, _ := strings.Cut(playerID, "-")
	return userID
}
