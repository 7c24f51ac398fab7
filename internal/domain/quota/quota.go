// Package quota tracks the daily exp allowances of each player.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/internal/domain/ledger"
	"github.com/disgoorg/progression-bot/internal/domain/period"
	"github.com/disgoorg/progression-bot/internal/metrics"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
	"github.com/disgoorg/progression-bot/progression/logger"
)

type Kind string

const (
	KindChat    Kind = "chat"
	KindVoice   Kind = "voice"
	KindMission Kind = "mission"
)

const (
	BaseChat    int64 = 10
	BaseVoice   int64 = 90
	BaseMission int64 = 100

	DailyResetReason = "Daily Reset"

	defaultResetParallelism = 8
)

var ErrUnknownKind = errors.New("unknown quota kind")

// Factor is 2 for players at or above the double threshold.
func Factor(exp, threshold int64) int64 {
	if exp >= threshold {
		return 2
	}
	return 1
}

// DailyLimit is the combined chat and voice allowance.
func DailyLimit(factor int64) int64 {
	return (BaseChat + BaseVoice) * factor
}

type SettingsSource interface {
	Settings(ctx context.Context, guildID string) (*guildconfig.Settings, error)
}

type Service struct {
	txm         *database.TxManager
	ledger      *ledger.Service
	settings    SettingsSource
	clock       period.Clock
	parallelism int64
}

func NewService(txm *database.TxManager, ledgerService *ledger.Service, settings SettingsSource, clock period.Clock) *Service {
	return &Service{
		txm:         txm,
		ledger:      ledgerService,
		settings:    settings,
		clock:       clock,
		parallelism: defaultResetParallelism,
	}
}

func fresh(playerID string, factor int64) *models.DailyCounter {
	return &models.DailyCounter{
		PlayerID:   playerID,
		ChatExp:    BaseChat * factor,
		VoiceExp:   BaseVoice * factor,
		MissionExp: BaseMission * factor,
		Doubled:    factor > 1,
	}
}

// Threshold returns the double threshold configured for a guild.
func (s *Service) Threshold(ctx context.Context, guildID string) (int64, error) {
	settings, err := s.settings.Settings(ctx, guildID)
	if err != nil {
		return 0, err
	}
	return settings.DoubleThreshold(), nil
}

// Consume grants up to amount from the player's remaining allowance of kind.
func (s *Service) Consume(ctx context.Context, playerID string, amount int64, kind Kind) (int64, error) {
	player, err := s.ledger.Balance(ctx, playerID)
	if err != nil {
		return 0, err
	}
	threshold, err := s.Threshold(ctx, player.GuildID)
	if err != nil {
		return 0, err
	}

	var granted int64
	err = s.txm.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		locked, err := repositories.NewPlayerRepository(tx).GetForUpdate(ctx, playerID)
		if err != nil {
			return err
		}
		granted, err = s.ConsumeTx(ctx, tx, locked, threshold, amount, kind)
		return err
	})
	return granted, err
}

// ConsumeTx runs inside the caller's transaction. player must be the row the
// caller locked; its exp decides the factor of a lazily created counter.
func (s *Service) ConsumeTx(ctx context.Context, tx bun.IDB, player *models.Player, threshold, amount int64, kind Kind) (int64, error) {
	counter, err := s.counterTx(ctx, tx, player, threshold)
	if err != nil {
		return 0, err
	}

	var remaining *int64
	switch kind {
	case KindChat:
		remaining = &counter.ChatExp
	case KindVoice:
		remaining = &counter.VoiceExp
	case KindMission:
		remaining = &counter.MissionExp
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	granted := min(max(amount, 0), *remaining)
	if granted <= 0 {
		metrics.QuotaExhausted.WithLabelValues(string(kind)).Inc()
		return 0, nil
	}

	*remaining -= granted
	if err := repositories.NewCounterRepository(tx).Update(ctx, counter); err != nil {
		return 0, err
	}
	metrics.QuotaGranted.WithLabelValues(string(kind)).Add(float64(granted))
	return granted, nil
}

func (s *Service) counterTx(ctx context.Context, tx bun.IDB, player *models.Player, threshold int64) (*models.DailyCounter, error) {
	counters := repositories.NewCounterRepository(tx)
	counter, err := counters.GetForUpdate(ctx, player.ID)
	if err == nil {
		return counter, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	counter = fresh(player.ID, Factor(player.Exp, threshold))
	counter.ResetAt = s.clock.Now().UTC()
	if err := counters.Create(ctx, counter); err != nil {
		return nil, err
	}
	return counters.GetForUpdate(ctx, player.ID)
}

// Remaining returns the player's counter, or the allowance a new counter
// would start with.
func (s *Service) Remaining(ctx context.Context, player *models.Player) (*models.DailyCounter, error) {
	counter, err := repositories.NewCounterRepository(s.txm.DB()).Get(ctx, player.ID)
	if err == nil {
		return counter, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	threshold, err := s.Threshold(ctx, player.GuildID)
	if err != nil {
		return nil, err
	}
	return fresh(player.ID, Factor(player.Exp, threshold)), nil
}

// Reset documents the exp earned since the last reset with an audit entry
// and refills the counter, doubled on the player's current exp.
func (s *Service) Reset(ctx context.Context, playerID string) (int64, error) {
	player, err := s.ledger.Balance(ctx, playerID)
	if err != nil {
		return 0, err
	}
	threshold, err := s.Threshold(ctx, player.GuildID)
	if err != nil {
		return 0, err
	}

	var earned int64
	err = s.txm.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		locked, err := repositories.NewPlayerRepository(tx).GetForUpdate(ctx, playerID)
		if err != nil {
			return err
		}
		counters := repositories.NewCounterRepository(tx)
		counter, err := counters.GetForUpdate(ctx, playerID)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			counter = nil
		case err != nil:
			return err
		}

		if counter != nil {
			factor := int64(1)
			if counter.Doubled {
				factor = 2
			}
			earned = DailyLimit(factor) - (counter.ChatExp + counter.VoiceExp)
			if earned > 0 {
				_, err := s.ledger.AppendAudit(ctx, tx, ledger.CreditRequest{
					PlayerID: playerID,
					Amount:   earned,
					Currency: models.CurrencyExp,
					Category: models.CategoryDailyReset,
					Reason:   DailyResetReason,
				})
				if err != nil {
					return err
				}
			}
		}

		next := fresh(playerID, Factor(locked.Exp, threshold))
		next.ResetAt = s.clock.Now().UTC()
		if counter == nil {
			return counters.Create(ctx, next)
		}
		return counters.Update(ctx, next)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reset counter of %s: %w", playerID, err)
	}
	return max(earned, 0), nil
}

type ResetSummary struct {
	Total  int
	Failed int
	Earned int64
}

// ResetAll resets every counter, one transaction per player. A failing player
// is logged and skipped.
func (s *Service) ResetAll(ctx context.Context) (ResetSummary, error) {
	ids, err := repositories.NewCounterRepository(s.txm.DB()).ListPlayerIDs(ctx)
	if err != nil {
		return ResetSummary{}, err
	}

	var earned, failed atomic.Int64
	sem := semaphore.NewWeighted(s.parallelism)
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			n, err := s.Reset(gctx, id)
			if err != nil {
				failed.Add(1)
				logger.LogError("Daily reset failed for player",
					err,
					slog.String("player_id", id))
				return nil
			}
			earned.Add(n)
			return nil
		})
	}
	_ = g.Wait()

	return ResetSummary{Total: len(ids), Failed: int(failed.Load()), Earned: earned.Load()}, ctx.Err()
}
