// Package quests runs player quests: admins publish them, players accept one
// at a time, submit it for review and a reviewer approves or rejects it.
package quests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/disgoorg/progression-bot/internal/domain/ledger"
	"github.com/disgoorg/progression-bot/internal/domain/notify"
	"github.com/disgoorg/progression-bot/internal/metrics"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
	"github.com/disgoorg/progression-bot/progression/logger"
)

var (
	ErrQuestNotFound     = errors.New("quest not found")
	ErrRecordNotFound    = errors.New("quest record not found")
	ErrAlreadyActive     = errors.New("player already has an active quest")
	ErrNoActive          = errors.New("player has no active quest")
	ErrQuestExpired      = errors.New("quest has expired")
	ErrQuestUnavailable  = errors.New("quest is not available")
	ErrInvalidTransition = errors.New("invalid quest state transition")
	ErrInvalidQuest      = errors.New("invalid quest")
)

type State string

const (
	StateAccepted  State = "accepted"
	StateSubmitted State = "submitted"
	StateApproved  State = "approved"
	StateRejected  State = "rejected"
	StateAbandoned State = "abandoned"
)

// StateOf derives a record's lifecycle state from its columns.
func StateOf(r *models.QuestRecord) State {
	switch {
	case !r.QuestEnded && r.NeedReview:
		return StateSubmitted
	case !r.QuestEnded:
		return StateAccepted
	case r.CompleteDate != nil:
		return StateApproved
	case r.ReviewerID != "":
		return StateRejected
	default:
		return StateAbandoned
	}
}

// RoleSyncer brings milestone roles in line after an exp change.
type RoleSyncer interface {
	Sync(ctx context.Context, guildID, userID string, before, after int64)
}

type Service struct {
	txm      *database.TxManager
	ledger   *ledger.Service
	roles    RoleSyncer
	notifier notify.Notifier
	now      func() time.Time
}

func NewService(txm *database.TxManager, ledgerService *ledger.Service, roles RoleSyncer, notifier notify.Notifier) *Service {
	return &Service{
		txm:      txm,
		ledger:   ledgerService,
		roles:    roles,
		notifier: notifier,
		now:      time.Now,
	}
}

type PublishRequest struct {
	GuildID           string
	PublisherID       string
	Name              string
	Description       string
	RewardDescription string
	RewardExp         int64
	RewardSilver      int64
	MultipleTakers    bool
	Repeatable        bool
	ByAdmin           bool
	// Duration uses the 1w2d3h4m5s notation.
	Duration string
}

func (s *Service) Publish(ctx context.Context, req PublishRequest) (*models.Quest, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidQuest)
	}
	if req.RewardExp < 0 || req.RewardSilver < 0 {
		return nil, fmt.Errorf("%w: rewards cannot be negative", ErrInvalidQuest)
	}

	now := s.now().UTC()
	quest := &models.Quest{
		ID:                models.NewQuestID(),
		GuildID:           req.GuildID,
		PublisherID:       req.PublisherID,
		Name:              req.Name,
		Description:       req.Description,
		RewardDescription: req.RewardDescription,
		RewardExp:         req.RewardExp,
		RewardSilver:      req.RewardSilver,
		Manual:            true,
		MultipleTakers:    req.MultipleTakers,
		Repeatable:        req.Repeatable,
		PublishedByAdmin:  req.ByAdmin,
		ExpireDate:        now.Add(DurationOrDefault(req.Duration)),
		CreatedAt:         now,
	}
	if err := repositories.NewQuestRepository(s.txm.DB()).Create(ctx, quest); err != nil {
		return nil, err
	}

	logger.LogEconomy("Quest published",
		slog.String("guild_id", quest.GuildID),
		slog.String("quest_id", quest.ID),
		slog.Time("expires", quest.ExpireDate))
	return quest, nil
}

// ListAvailable returns the open player quests a player may accept: quests
// held by someone else are hidden unless they allow multiple takers, and
// completed quests are hidden unless repeatable.
func (s *Service) ListAvailable(ctx context.Context, guildID, playerID string) ([]*models.Quest, error) {
	db := s.txm.DB()
	active, err := repositories.NewQuestRepository(db).ListActive(ctx, guildID, true, s.now())
	if err != nil {
		return nil, err
	}

	records := repositories.NewQuestRecordRepository(db)
	held, err := records.HeldQuestIDs(ctx, guildID)
	if err != nil {
		return nil, err
	}
	completed, err := records.CompletedQuestIDs(ctx, playerID)
	if err != nil {
		return nil, err
	}

	available := make([]*models.Quest, 0, len(active))
	for _, quest := range active {
		if !quest.MultipleTakers && slices.Contains(held, quest.ID) {
			continue
		}
		if !quest.Repeatable && slices.Contains(completed, quest.ID) {
			continue
		}
		available = append(available, quest)
	}
	return available, nil
}

// Missions lists the guild's unexpired reaction missions.
func (s *Service) Missions(ctx context.Context, guildID string) ([]*models.Quest, error) {
	return repositories.NewQuestRepository(s.txm.DB()).ListActive(ctx, guildID, false, s.now())
}

func (s *Service) Accept(ctx context.Context, playerID, questID string) (*models.QuestRecord, error) {
	var record *models.QuestRecord
	err := s.txm.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := repositories.NewPlayerRepository(tx).GetForUpdate(ctx, playerID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: %s", ledger.ErrPlayerNotFound, playerID)
			}
			return err
		}

		records := repositories.NewQuestRecordRepository(tx)
		if _, err := records.GetOpenByTaker(ctx, playerID); err == nil {
			return ErrAlreadyActive
		} else if !errors.Is(err, repositories.ErrNotFound) {
			return err
		}

		quest, err := repositories.NewQuestRepository(tx).Get(ctx, questID)
		if errors.Is(err, repositories.ErrNotFound) || (err == nil && !quest.Manual) {
			return fmt.Errorf("%w: %s", ErrQuestNotFound, questID)
		}
		if err != nil {
			return err
		}
		if quest.Expired(s.now()) {
			return fmt.Errorf("%w: %s", ErrQuestExpired, questID)
		}

		if !quest.MultipleTakers {
			held, err := records.HeldQuestIDs(ctx, quest.GuildID)
			if err != nil {
				return err
			}
			if slices.Contains(held, quest.ID) {
				return fmt.Errorf("%w: already taken", ErrQuestUnavailable)
			}
		}
		if !quest.Repeatable {
			done, err := records.CompletedEver(ctx, quest.ID, playerID)
			if err != nil {
				return err
			}
			if done {
				return fmt.Errorf("%w: already completed", ErrQuestUnavailable)
			}
		}

		record = &models.QuestRecord{
			QuestID: quest.ID,
			TakerID: playerID,
			Manual:  true,
		}
		if err := records.Create(ctx, record); err != nil {
			return err
		}
		record.Quest = quest
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.transition(record, StateAccepted)
	return record, nil
}

// Current returns the player's open quest record.
func (s *Service) Current(ctx context.Context, playerID string) (*models.QuestRecord, error) {
	record, err := repositories.NewQuestRecordRepository(s.txm.DB()).GetOpenByTaker(ctx, playerID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNoActive
	}
	return record, err
}

func (s *Service) Submit(ctx context.Context, playerID string) (*models.QuestRecord, error) {
	return s.updateOpen(ctx, playerID, StateSubmitted, func(r *models.QuestRecord) {
		r.NeedReview = true
	})
}

func (s *Service) Drop(ctx context.Context, playerID string) (*models.QuestRecord, error) {
	return s.updateOpen(ctx, playerID, StateAbandoned, func(r *models.QuestRecord) {
		failed := s.now().UTC()
		r.FailDate = &failed
		r.QuestEnded = true
	})
}

// updateOpen applies a player-initiated transition to the open record, which
// must currently be accepted.
func (s *Service) updateOpen(ctx context.Context, playerID string, to State, apply func(*models.QuestRecord)) (*models.QuestRecord, error) {
	var record *models.QuestRecord
	err := s.txm.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := repositories.NewPlayerRepository(tx).GetForUpdate(ctx, playerID); err != nil {
			return err
		}

		records := repositories.NewQuestRecordRepository(tx)
		var err error
		record, err = records.GetOpenByTaker(ctx, playerID)
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNoActive
		}
		if err != nil {
			return err
		}
		if from := StateOf(record); from != StateAccepted {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
		}

		apply(record)
		return records.Update(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	s.transition(record, to)
	return record, nil
}

func (s *Service) PendingReviews(ctx context.Context, guildID string) ([]*models.QuestRecord, error) {
	return repositories.NewQuestRecordRepository(s.txm.DB()).ListPendingReview(ctx, guildID)
}

type ReviewResult struct {
	Record       *models.QuestRecord
	Taker        *models.Player
	ExpCredit    *ledger.CreditResult
	SilverCredit *ledger.CreditResult
}

// Approve completes a submitted record and credits the quest reward. A
// positive expOverride replaces the quest's exp reward.
func (s *Service) Approve(ctx context.Context, recordID int64, reviewerID string, expOverride int64) (*ReviewResult, error) {
	result := &ReviewResult{}
	err := s.review(ctx, recordID, StateApproved, func(ctx context.Context, tx bun.Tx, record *models.QuestRecord) error {
		completed := s.now().UTC()
		record.ReviewerID = reviewerID
		record.NeedReview = false
		record.QuestEnded = true
		record.CompleteDate = &completed
		if err := repositories.NewQuestRecordRepository(tx).Update(ctx, record); err != nil {
			return err
		}

		exp := record.Quest.RewardExp
		if expOverride > 0 {
			exp = expOverride
		}
		reason := fmt.Sprintf("Quest reward - %s", record.Quest.Name)
		if exp > 0 {
			credit, err := s.ledger.CreditTx(ctx, tx, ledger.CreditRequest{
				PlayerID: record.TakerID,
				Amount:   exp,
				Currency: models.CurrencyExp,
				Category: models.CategoryQuestReward,
				Reason:   reason,
				ActorID:  reviewerID,
			})
			if err != nil {
				return err
			}
			result.ExpCredit = credit
		}
		if record.Quest.RewardSilver > 0 {
			credit, err := s.ledger.CreditTx(ctx, tx, ledger.CreditRequest{
				PlayerID: record.TakerID,
				Amount:   record.Quest.RewardSilver,
				Currency: models.CurrencySilver,
				Category: models.CategoryQuestReward,
				Reason:   reason,
				ActorID:  reviewerID,
			})
			if err != nil {
				return err
			}
			result.SilverCredit = credit
		}
		result.Record = record
		return nil
	}, result)
	if err != nil {
		return nil, err
	}

	if result.ExpCredit != nil && s.roles != nil {
		s.roles.Sync(ctx, result.Taker.GuildID, result.Taker.UserID, result.ExpCredit.Before, result.ExpCredit.After)
	}
	s.notifyTaker(ctx, result.Taker, notify.Message{
		Title:   "Quest approved",
		Content: fmt.Sprintf("Your quest %s was approved.%s", result.Record.Quest.Name, rewardSummary(result)),
	})
	return result, nil
}

// Reject ends a submitted record without credit.
func (s *Service) Reject(ctx context.Context, recordID int64, reviewerID string) (*ReviewResult, error) {
	result := &ReviewResult{}
	err := s.review(ctx, recordID, StateRejected, func(ctx context.Context, tx bun.Tx, record *models.QuestRecord) error {
		failed := s.now().UTC()
		record.ReviewerID = reviewerID
		record.NeedReview = false
		record.QuestEnded = true
		record.FailDate = &failed
		result.Record = record
		return repositories.NewQuestRecordRepository(tx).Update(ctx, record)
	}, result)
	if err != nil {
		return nil, err
	}

	s.notifyTaker(ctx, result.Taker, notify.Message{
		Title:   "Quest rejected",
		Content: fmt.Sprintf("Your submission for %s was rejected.", result.Record.Quest.Name),
	})
	return result, nil
}

// review locks the taker before the record so reviews and player actions
// acquire row locks in the same order.
func (s *Service) review(ctx context.Context, recordID int64, to State, apply func(context.Context, bun.Tx, *models.QuestRecord) error, result *ReviewResult) error {
	peek, err := repositories.NewQuestRecordRepository(s.txm.DB()).Get(ctx, recordID)
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrRecordNotFound, recordID)
	}
	if err != nil {
		return err
	}

	err = s.txm.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taker, err := repositories.NewPlayerRepository(tx).GetForUpdate(ctx, peek.TakerID)
		if err != nil {
			return err
		}
		result.Taker = taker

		record, err := repositories.NewQuestRecordRepository(tx).GetForUpdate(ctx, recordID)
		if err != nil {
			return err
		}
		if from := StateOf(record); from != StateSubmitted {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
		}
		return apply(ctx, tx, record)
	})
	if err != nil {
		return err
	}

	s.transition(result.Record, to)
	return nil
}

func (s *Service) transition(record *models.QuestRecord, to State) {
	metrics.QuestTransitions.WithLabelValues(string(to)).Inc()
	logger.LogEconomy("Quest record transition",
		slog.Int64("record_id", record.ID),
		slog.String("quest_id", record.QuestID),
		slog.String("taker_id", record.TakerID),
		slog.String("state", string(to)))
}

func (s *Service) notifyTaker(ctx context.Context, taker *models.Player, msg notify.Message) {
	if s.notifier == nil || taker == nil {
		return
	}
	if err := s.notifier.Direct(ctx, taker.UserID, msg); err != nil {
		logger.LogEconomyWarn("Quest DM failed",
			slog.String("user_id", taker.UserID),
			slog.Any("error", err))
	}
}

func rewardSummary(r *ReviewResult) string {
	var parts []string
	if r.ExpCredit != nil {
		parts = append(parts, fmt.Sprintf("%d exp", r.ExpCredit.Entry.Amount))
	}
	if r.SilverCredit != nil {
		parts = append(parts, fmt.Sprintf("%d silver", r.SilverCredit.Entry.Amount))
	}
	if len(parts) == 0 {
		return ""
	}
	return " You received " + strings.Join(parts, " and ") + "."
}
