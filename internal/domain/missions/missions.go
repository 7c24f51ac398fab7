// Package missions credits reaction missions: a moderator reacts with the
// configured emoji on a message in a mission channel and the author earns
// the mission reward, once per message and within the daily mission limit.
package missions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/internal/domain/ledger"
	"github.com/disgoorg/progression-bot/internal/domain/notify"
	"github.com/disgoorg/progression-bot/internal/domain/period"
	"github.com/disgoorg/progression-bot/internal/domain/quota"
	"github.com/disgoorg/progression-bot/internal/metrics"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
	"github.com/disgoorg/progression-bot/progression/logger"
)

type Status string

const (
	StatusCredited Status = "credited"
	StatusRejected Status = "rejected"
	StatusSkipped  Status = "skipped"
	StatusIgnored  Status = "ignored"
)

const (
	ReasonDuplicate     = "duplicate event"
	ReasonQuestMissing  = "quest not found"
	ReasonQuestExpired  = "quest expired"
	ReasonLimitReached  = "daily mission limit reached"
	ReasonNoReward      = "mission has no reward"
	ReasonNotMission    = "not a mission reaction"
	ReasonBot           = "bot involved"
	ReasonNotReviewer   = "reactor lacks mission role"
	ReasonBadMessageRef = "unparsable message id"
)

type Reaction struct {
	GuildID        string
	ChannelID      string
	MessageID      string
	AuthorID       string
	AuthorTag      string
	AuthorIsBot    bool
	ReactorID      string
	ReactorIsBot   bool
	ReactorRoleIDs []string
	EmojiName      string
	EmojiID        string
	// MessageTime defaults to the timestamp encoded in MessageID.
	MessageTime time.Time
}

type Outcome struct {
	Status   Status
	Reason   string
	Mission  guildconfig.Mission
	Quest    *models.Quest
	Granted  int64
	Currency models.Currency
	Credit   *ledger.CreditResult
}

type SettingsSource interface {
	Settings(ctx context.Context, guildID string) (*guildconfig.Settings, error)
}

// RoleSyncer brings milestone roles in line after an exp change.
type RoleSyncer interface {
	Sync(ctx context.Context, guildID, userID string, before, after int64)
}

type Service struct {
	txm      *database.TxManager
	ledger   *ledger.Service
	quota    *quota.Service
	settings SettingsSource
	roles    RoleSyncer
	notifier notify.Notifier
	clock    period.Clock
}

func NewService(
	txm *database.TxManager,
	ledgerService *ledger.Service,
	quotaService *quota.Service,
	settings SettingsSource,
	roles RoleSyncer,
	notifier notify.Notifier,
	clock period.Clock,
) *Service {
	return &Service{
		txm:      txm,
		ledger:   ledgerService,
		quota:    quotaService,
		settings: settings,
		roles:    roles,
		notifier: notifier,
		clock:    clock,
	}
}

func ignored(reason string) Outcome {
	return Outcome{Status: StatusIgnored, Reason: reason}
}

// HandleReaction evaluates one reaction event and credits the message author
// when it completes a mission.
func (s *Service) HandleReaction(ctx context.Context, r Reaction) (Outcome, error) {
	outcome, err := s.handle(ctx, r)
	if err != nil {
		metrics.MissionOutcomes.WithLabelValues("error").Inc()
		return outcome, err
	}
	metrics.MissionOutcomes.WithLabelValues(string(outcome.Status)).Inc()

	if outcome.Status != StatusIgnored {
		logger.LogEconomy("Mission reaction processed",
			slog.String("guild_id", r.GuildID),
			slog.String("message_id", r.MessageID),
			slog.String("author_id", r.AuthorID),
			slog.String("reactor_id", r.ReactorID),
			slog.String("status", string(outcome.Status)),
			slog.String("reason", outcome.Reason),
			slog.Int64("granted", outcome.Granted))
	}
	return outcome, nil
}

func (s *Service) handle(ctx context.Context, r Reaction) (Outcome, error) {
	if r.ReactorIsBot || r.AuthorIsBot || r.AuthorID == "" {
		return ignored(ReasonBot), nil
	}

	settings, err := s.settings.Settings(ctx, r.GuildID)
	if err != nil {
		return Outcome{}, err
	}
	if !settings.MonitorsChannel(r.ChannelID) {
		return ignored(ReasonNotMission), nil
	}
	mission, ok := settings.MissionFor(r.ChannelID, r.EmojiName, r.EmojiID)
	if !ok {
		return ignored(ReasonNotMission), nil
	}
	if !settings.HasAny(guildconfig.KeyMissionDivRole, r.ReactorRoleIDs) {
		return ignored(ReasonNotReviewer), nil
	}

	messageTime := r.MessageTime
	if messageTime.IsZero() {
		id, err := snowflake.Parse(r.MessageID)
		if err != nil {
			return ignored(ReasonBadMessageRef), nil
		}
		messageTime = id.Time()
	}
	messageTime = messageTime.UTC()

	currency := mission.RewardType
	if !currency.Valid() {
		currency = models.CurrencyExp
	}
	outcome := Outcome{Mission: mission, Currency: currency}
	if mission.Reward <= 0 {
		outcome.Status, outcome.Reason = StatusSkipped, ReasonNoReward
		return outcome, nil
	}

	players := repositories.NewPlayerRepository(s.txm.DB())
	author, err := players.Ensure(ctx, r.AuthorID, r.GuildID, r.AuthorTag)
	if err != nil {
		return Outcome{}, err
	}
	reviewer, err := players.Ensure(ctx, r.ReactorID, r.GuildID, "")
	if err != nil {
		return Outcome{}, err
	}

	threshold := settings.DoubleThreshold()
	dayStart, dayEnd := s.clock.Day(messageTime)
	now := s.clock.Now()

	err = s.txm.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		player, err := repositories.NewPlayerRepository(tx).GetForUpdate(ctx, author.ID)
		if err != nil {
			return err
		}

		quest, err := repositories.NewQuestRepository(tx).Get(ctx, mission.QuestID)
		if errors.Is(err, repositories.ErrNotFound) {
			outcome.Status, outcome.Reason = StatusRejected, ReasonQuestMissing
			return nil
		}
		if err != nil {
			return err
		}
		outcome.Quest = quest
		if quest.Expired(now) {
			outcome.Status, outcome.Reason = StatusRejected, ReasonQuestExpired
			return nil
		}

		records := repositories.NewQuestRecordRepository(tx)
		duplicate, err := records.ExistsByNote(ctx, quest.ID, player.ID, r.MessageID)
		if err != nil {
			return err
		}
		if !duplicate {
			if quest.Repeatable {
				duplicate, err = records.CompletedBetween(ctx, quest.ID, player.ID, dayStart, dayEnd)
			} else {
				duplicate, err = records.CompletedEver(ctx, quest.ID, player.ID)
			}
			if err != nil {
				return err
			}
		}
		if duplicate {
			outcome.Status, outcome.Reason = StatusRejected, ReasonDuplicate
			return nil
		}

		granted := mission.Reward
		if currency == models.CurrencyExp {
			factor := quota.Factor(player.Exp, threshold)
			used, err := repositories.NewLedgerRepository(tx).SumPositive(ctx, player.ID,
				models.CurrencyExp, models.CategoryMissionReward, dayStart, dayEnd)
			if err != nil {
				return err
			}
			remaining := max(0, quota.BaseMission*factor-used)
			granted = min(mission.Reward*factor, remaining)
		}
		if granted <= 0 {
			outcome.Status, outcome.Reason = StatusSkipped, ReasonLimitReached
			return nil
		}

		completed := messageTime
		err = records.Create(ctx, &models.QuestRecord{
			QuestID:      quest.ID,
			TakerID:      player.ID,
			ReviewerID:   reviewer.ID,
			RecordNote:   r.MessageID,
			Manual:       false,
			NeedReview:   false,
			CompleteDate: &completed,
			QuestEnded:   true,
		})
		if err != nil {
			return err
		}

		credit, err := s.ledger.CreditTx(ctx, tx, ledger.CreditRequest{
			PlayerID:    player.ID,
			Amount:      granted,
			Currency:    currency,
			Category:    models.CategoryMissionReward,
			Reason:      fmt.Sprintf("Mission reward - %s - channel %s", quest.Name, r.ChannelID),
			ActorID:     r.ReactorID,
			EffectiveAt: messageTime,
		})
		if err != nil {
			return err
		}

		if currency == models.CurrencyExp && s.clock.SameDay(now, messageTime) {
			if _, err := s.quota.ConsumeTx(ctx, tx, player, threshold, granted, quota.KindMission); err != nil {
				return err
			}
		}

		outcome.Status = StatusCredited
		outcome.Granted = credit.Entry.Amount
		outcome.Credit = credit
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to process mission reaction: %w", err)
	}

	if outcome.Status == StatusCredited {
		s.afterCredit(ctx, r, settings, outcome)
	}
	return outcome, nil
}

func (s *Service) afterCredit(ctx context.Context, r Reaction, settings *guildconfig.Settings, outcome Outcome) {
	msg := notify.Message{
		Title: "Mission complete",
		Content: fmt.Sprintf("<@%s> completed mission %s in <#%s> and received %d %s",
			r.AuthorID, outcome.Quest.Name, r.ChannelID, outcome.Granted, outcome.Currency),
	}

	if channels := settings.List(guildconfig.KeyMissionBroadcastChannel); len(channels) > 0 {
		if err := s.notifier.Broadcast(ctx, channels, msg); err != nil {
			logger.LogEconomyWarn("Mission broadcast failed",
				slog.String("guild_id", r.GuildID),
				slog.Any("error", err))
		}
	}
	if err := s.notifier.Direct(ctx, r.AuthorID, msg); err != nil {
		logger.LogEconomyWarn("Mission DM failed",
			slog.String("user_id", r.AuthorID),
			slog.Any("error", err))
	}

	if outcome.Currency == models.CurrencyExp && s.roles != nil {
		s.roles.Sync(ctx, r.GuildID, r.AuthorID, outcome.Credit.Before, outcome.Credit.After)
	}
}
