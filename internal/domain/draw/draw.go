// Package draw runs the paid reward draw: a silver cost buys one weighted
// pick from the reward catalog, bounded by a per-player monthly limit and
// catalog-wide caps on rare rewards.
package draw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/uptrace/bun"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/internal/domain/ledger"
	"github.com/disgoorg/progression-bot/internal/domain/notify"
	"github.com/disgoorg/progression-bot/internal/domain/period"
	"github.com/disgoorg/progression-bot/internal/metrics"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
	"github.com/disgoorg/progression-bot/progression/logger"
)

var (
	ErrDrawLimitReached   = errors.New("monthly draw limit reached")
	ErrInsufficientSilver = errors.New("insufficient silver")
	ErrNoRewards          = errors.New("no draw rewards available")
	ErrChannelNotAllowed  = errors.New("draw is not allowed in this channel")
)

// Source picks a uniform integer in [0, n).
type Source interface {
	IntN(n int) int
}

type SettingsSource interface {
	Settings(ctx context.Context, guildID string) (*guildconfig.Settings, error)
}

type Request struct {
	PlayerID string
	GuildID  string
	UserID   string
	// ChannelID is checked against drawCommandAllowed when set.
	ChannelID string
}

type Outcome struct {
	Reward       *models.DrawReward
	Cost         int64
	SilverBefore int64
	SilverAfter  int64
	DrawsUsed    int
	DrawsLimit   int
	Credit       *ledger.CreditResult
	Broadcast    bool
	TestMode     bool
}

// Remaining is the number of draws left in the current period.
func (o *Outcome) Remaining() int {
	return max(0, o.DrawsLimit-o.DrawsUsed)
}

type Service struct {
	txm      *database.TxManager
	ledger   *ledger.Service
	settings SettingsSource
	notifier notify.Notifier
	clock    period.Clock

	mu  sync.Mutex
	rng Source
}

func NewService(txm *database.TxManager, ledgerService *ledger.Service, settings SettingsSource, notifier notify.Notifier, clock period.Clock) *Service {
	return &Service{
		txm:      txm,
		ledger:   ledgerService,
		settings: settings,
		notifier: notifier,
		clock:    clock,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithSource replaces the random source, mainly for tests.
func (s *Service) WithSource(src Source) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = src
	return s
}

func (s *Service) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// ChannelAllowed reports whether draws may run in the channel. An empty
// drawCommandAllowed list allows every channel.
func ChannelAllowed(settings *guildconfig.Settings, channelID string) bool {
	allowed := settings.List(guildconfig.KeyDrawCommandAllowed)
	return len(allowed) == 0 || slices.Contains(allowed, channelID)
}

func (s *Service) Draw(ctx context.Context, req Request) (*Outcome, error) {
	settings, err := s.settings.Settings(ctx, req.GuildID)
	if err != nil {
		return nil, err
	}
	if req.ChannelID != "" && !ChannelAllowed(settings, req.ChannelID) {
		return nil, ErrChannelNotAllowed
	}

	cost := settings.DrawCost()
	limit := settings.MonthlyDrawLimit()
	from, to := s.clock.DrawPeriod(s.clock.Now())

	outcome := &Outcome{Cost: cost, DrawsLimit: limit, TestMode: settings.BotTestMode()}
	err = s.txm.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		player, err := repositories.NewPlayerRepository(tx).GetForUpdate(ctx, req.PlayerID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: %s", ledger.ErrPlayerNotFound, req.PlayerID)
			}
			return err
		}

		draws := repositories.NewDrawRepository(tx)
		used, err := draws.CountPlayerDraws(ctx, player.ID, from, to)
		if err != nil {
			return err
		}
		if used >= limit {
			outcome.DrawsUsed = used
			return ErrDrawLimitReached
		}
		if player.Silver < cost {
			return fmt.Errorf("%w: need %d, have %d", ErrInsufficientSilver, cost, player.Silver)
		}

		catalog, err := draws.ListRewards(ctx)
		if err != nil {
			return err
		}
		if len(catalog) == 0 {
			return ErrNoRewards
		}

		debit, err := s.ledger.CreditTx(ctx, tx, ledger.CreditRequest{
			PlayerID: player.ID,
			Amount:   -cost,
			Currency: models.CurrencySilver,
			Category: models.CategoryDrawCost,
			Reason:   "Draw cost",
			ActorID:  models.ActorSystem,
		})
		if err != nil {
			return err
		}
		outcome.SilverBefore = debit.Before
		outcome.SilverAfter = debit.After

		exhausted, err := s.exhaustedRewards(ctx, draws, from, to)
		if err != nil {
			return err
		}
		reward := s.pick(catalog, exhausted)
		outcome.Reward = reward

		err = draws.InsertHistory(ctx, &models.DrawHistory{
			PlayerID: player.ID,
			GuildID:  player.GuildID,
			RewardID: reward.ID,
			DrawDate: s.clock.Now(),
		})
		if err != nil {
			return err
		}
		outcome.DrawsUsed = used + 1

		if currency, ok := reward.Currency(); ok && reward.Value > 0 {
			credit, err := s.ledger.CreditTx(ctx, tx, ledger.CreditRequest{
				PlayerID: player.ID,
				Amount:   reward.Value,
				Currency: currency,
				Category: models.CategoryDrawReward,
				Reason:   "Draw reward - " + reward.Name,
				ActorID:  models.ActorSystem,
			})
			if err != nil {
				return err
			}
			outcome.Credit = credit
			if currency == models.CurrencySilver {
				outcome.SilverAfter = credit.After
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDrawLimitReached) {
			return outcome, err
		}
		return nil, err
	}

	metrics.Draws.WithLabelValues(string(outcome.Reward.Kind)).Inc()
	logger.LogEconomy("Draw completed",
		slog.String("player_id", req.PlayerID),
		slog.String("reward", outcome.Reward.Name),
		slog.Int("draws_used", outcome.DrawsUsed),
		slog.Int("draws_limit", outcome.DrawsLimit))

	outcome.Broadcast = outcome.TestMode || outcome.Reward.Kind == models.RewardOther
	if outcome.Broadcast {
		s.announce(ctx, settings, req.UserID, outcome)
	}
	return outcome, nil
}

// exhaustedRewards locks the capped rewards and returns the ids that already
// reached their cap within the period.
func (s *Service) exhaustedRewards(ctx context.Context, draws repositories.DrawRepository, from, to time.Time) (map[int64]bool, error) {
	capped, err := draws.LockCappedRewards(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(capped))
	for _, r := range capped {
		ids = append(ids, r.ID)
	}
	counts, err := draws.CountByReward(ctx, ids, from, to)
	if err != nil {
		return nil, err
	}

	exhausted := make(map[int64]bool, len(capped))
	for _, r := range capped {
		if counts[r.ID] >= r.PeriodCap {
			exhausted[r.ID] = true
		}
	}
	return exhausted, nil
}

// Tickets is the weight of a reward in the pool: one ticket per hundredth of
// a percentage point, at least one.
func Tickets(r *models.DrawReward) int {
	return max(1, int(math.Round(r.Probability*100)))
}

func (s *Service) pick(catalog []*models.DrawReward, exhausted map[int64]bool) *models.DrawReward {
	pool := make([]*models.DrawReward, 0, len(catalog))
	total := 0
	for _, r := range catalog {
		if exhausted[r.ID] {
			continue
		}
		pool = append(pool, r)
		total += Tickets(r)
	}
	if len(pool) == 0 {
		return fallback(catalog)
	}

	ticket := s.intN(total)
	for _, r := range pool {
		ticket -= Tickets(r)
		if ticket < 0 {
			return r
		}
	}
	return pool[len(pool)-1]
}

func fallback(catalog []*models.DrawReward) *models.DrawReward {
	for _, r := range catalog {
		if r.Kind == models.RewardExp && r.Value == 0 {
			return r
		}
	}
	return catalog[0]
}

func (s *Service) announce(ctx context.Context, settings *guildconfig.Settings, userID string, outcome *Outcome) {
	channels := settings.List(guildconfig.KeyBigRewardChannel)
	if len(channels) == 0 {
		logger.LogEconomyWarn("No big reward channel configured",
			slog.String("guild_id", settings.GuildID))
		return
	}

	content := fmt.Sprintf("Congratulations <@%s>, you drew **%s**! Contact a moderator to claim it.", userID, outcome.Reward.Name)
	if outcome.TestMode {
		content += "\n(test mode: every outcome is announced)"
	}
	err := s.notifier.Broadcast(ctx, channels, notify.Message{
		Title:   "Grand prize",
		Content: content,
		Color:   0xFFD700,
	})
	if err != nil {
		logger.LogEconomyWarn("Draw announcement failed",
			slog.String("guild_id", settings.GuildID),
			slog.Any("error", err))
	}
}
