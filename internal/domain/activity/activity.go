// Package activity turns chat messages and voice presence into exp, bounded
// by the daily quota.
package activity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/internal/domain/ledger"
	"github.com/disgoorg/progression-bot/internal/domain/players"
	"github.com/disgoorg/progression-bot/internal/domain/quota"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
	"github.com/disgoorg/progression-bot/progression/logger"
)

const (
	ChatExpPerMessage   int64 = 10
	DefaultVoicePerTick int64 = 10
)

type SettingsSource interface {
	Settings(ctx context.Context, guildID string) (*guildconfig.Settings, error)
}

type PlayerEnsurer interface {
	EnsurePlayer(ctx context.Context, guildID string, m players.Member) (*models.Player, error)
}

// ExpSyncer reacts to committed exp changes; *players.Service implements it.
type ExpSyncer interface {
	Sync(ctx context.Context, guildID, userID string, before, after int64)
}

type Service struct {
	txm          *database.TxManager
	ledger       *ledger.Service
	quota        *quota.Service
	settings     SettingsSource
	players      PlayerEnsurer
	syncer       ExpSyncer
	voicePerTick int64
}

func NewService(
	txm *database.TxManager,
	ledgerService *ledger.Service,
	quotaService *quota.Service,
	settings SettingsSource,
	playerEnsurer PlayerEnsurer,
	syncer ExpSyncer,
	voicePerTick int64,
) *Service {
	if voicePerTick <= 0 {
		voicePerTick = DefaultVoicePerTick
	}
	return &Service{
		txm:          txm,
		ledger:       ledgerService,
		quota:        quotaService,
		settings:     settings,
		players:      playerEnsurer,
		syncer:       syncer,
		voicePerTick: voicePerTick,
	}
}

type Event struct {
	GuildID string
	Member  players.Member
}

type Result struct {
	Granted int64
	Credit  *ledger.CreditResult
}

// CreditChat grants the per-message chat exp.
func (s *Service) CreditChat(ctx context.Context, e Event) (Result, error) {
	return s.credit(ctx, e, ChatExpPerMessage, quota.KindChat, models.CategoryChat, "Chat message")
}

// CreditVoice grants one voice scan tick of exp.
func (s *Service) CreditVoice(ctx context.Context, e Event) (Result, error) {
	return s.credit(ctx, e, s.voicePerTick, quota.KindVoice, models.CategoryVoice, "Voice activity")
}

func (s *Service) credit(ctx context.Context, e Event, amount int64, kind quota.Kind, category models.LedgerCategory, reason string) (Result, error) {
	if e.Member.Bot {
		return Result{}, nil
	}

	player, err := s.players.EnsurePlayer(ctx, e.GuildID, e.Member)
	if err != nil {
		return Result{}, err
	}
	settings, err := s.settings.Settings(ctx, e.GuildID)
	if err != nil {
		return Result{}, err
	}
	threshold := settings.DoubleThreshold()

	var result Result
	err = s.txm.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		locked, err := repositories.NewPlayerRepository(tx).GetForUpdate(ctx, player.ID)
		if err != nil {
			return err
		}
		granted, err := s.quota.ConsumeTx(ctx, tx, locked, threshold, amount, kind)
		if err != nil || granted <= 0 {
			return err
		}

		credit, err := s.ledger.CreditTx(ctx, tx, ledger.CreditRequest{
			PlayerID: locked.ID,
			Amount:   granted,
			Currency: models.CurrencyExp,
			Category: category,
			Reason:   reason,
			ActorID:  models.ActorSystem,
		})
		if err != nil {
			return err
		}
		result = Result{Granted: granted, Credit: credit}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to credit %s exp: %w", kind, err)
	}

	if result.Credit != nil {
		logger.LogEconomyDebug("Activity exp credited",
			slog.String("kind", string(kind)),
			slog.String("player_id", player.ID),
			slog.Int64("granted", result.Granted))
		if s.syncer != nil {
			s.syncer.Sync(ctx, e.GuildID, e.Member.UserID, result.Credit.Before, result.Credit.After)
		}
	}
	return result, nil
}
