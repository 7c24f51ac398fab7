// Package players keeps the player registry: it creates player rows on first
// contact, assembles profiles and pays the one-time threshold bonus.
package players

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/internal/domain/ledger"
	"github.com/disgoorg/progression-bot/internal/domain/leveling"
	"github.com/disgoorg/progression-bot/internal/domain/period"
	"github.com/disgoorg/progression-bot/internal/domain/quota"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
	"github.com/disgoorg/progression-bot/progression/logger"
)

// ThresholdBonus is the silver paid once when a player first reaches the
// double threshold.
const ThresholdBonus int64 = 100

var ErrPlayerNotFound = errors.New("player not found")

type SettingsSource interface {
	Settings(ctx context.Context, guildID string) (*guildconfig.Settings, error)
}

// RoleSyncer is satisfied by *leveling.Reconciler.
type RoleSyncer interface {
	Sync(ctx context.Context, guildID, userID string, before, after int64)
}

type Service struct {
	txm      *database.TxManager
	ledger   *ledger.Service
	quota    *quota.Service
	settings SettingsSource
	roles    RoleSyncer
	clock    period.Clock
}

func NewService(txm *database.TxManager, ledgerService *ledger.Service, quotaService *quota.Service, settings SettingsSource, roles RoleSyncer, clock period.Clock) *Service {
	return &Service{
		txm:      txm,
		ledger:   ledgerService,
		quota:    quotaService,
		settings: settings,
		roles:    roles,
		clock:    clock,
	}
}

type Member struct {
	UserID   string
	Username string
	Tag      string
	Bot      bool
}

// EnsurePlayer registers the guild, the user and the player when missing and
// refreshes the stored names.
func (s *Service) EnsurePlayer(ctx context.Context, guildID string, m Member) (*models.Player, error) {
	db := s.txm.DB()
	guilds := repositories.NewGuildRepository(db)
	if err := guilds.Touch(ctx, guildID); err != nil {
		return nil, err
	}
	if err := guilds.UpsertUser(ctx, m.UserID, m.Username); err != nil {
		return nil, err
	}
	return repositories.NewPlayerRepository(db).Ensure(ctx, m.UserID, guildID, m.Tag)
}

// SyncGuild registers every non-bot member and returns how many were
// processed. One member failing does not stop the rest.
func (s *Service) SyncGuild(ctx context.Context, guildID string, members []Member) (int, error) {
	var (
		synced int
		errs   []error
	)
	for _, m := range members {
		if m.Bot {
			continue
		}
		if _, err := s.EnsurePlayer(ctx, guildID, m); err != nil {
			errs = append(errs, fmt.Errorf("member %s: %w", m.UserID, err))
			continue
		}
		synced++
	}
	if len(errs) > 0 {
		slog.Warn("Guild sync incomplete",
			slog.String("type", "sys"),
			slog.String("guild_id", guildID),
			slog.Int("synced", synced),
			slog.Int("failed", len(errs)))
	}
	return synced, errors.Join(errs...)
}

type Profile struct {
	Player       *models.Player
	Level        int
	DisplayLevel int
	Rank         string
	Progress     leveling.Progress
	Counter      *models.DailyCounter
	Doubled      bool
	DrawsUsed    int
	DrawsLimit   int
	Metadata     *models.PlayerMetadata
}

// Profile assembles what /user shows. memberRoles gate the displayed level
// when playerQualifiedRequired roles are configured.
func (s *Service) Profile(ctx context.Context, guildID, userID string, memberRoles []string) (*Profile, error) {
	db := s.txm.DB()
	players := repositories.NewPlayerRepository(db)

	player, err := players.Get(ctx, models.PlayerID(userID, guildID))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Settings(ctx, guildID)
	if err != nil {
		return nil, err
	}
	counter, err := s.quota.Remaining(ctx, player)
	if err != nil {
		return nil, err
	}

	from, to := s.clock.DrawPeriod(s.clock.Now())
	used, err := repositories.NewDrawRepository(db).CountPlayerDraws(ctx, player.ID, from, to)
	if err != nil {
		return nil, err
	}

	meta, err := players.GetMetadata(ctx, player.ID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	display := leveling.DisplayLevel(player.Exp, settings.List(guildconfig.KeyPlayerQualifiedRequired), memberRoles)
	return &Profile{
		Player:       player,
		Level:        leveling.LevelOf(player.Exp),
		DisplayLevel: display,
		Rank:         leveling.RankNameOf(display),
		Progress:     leveling.ProgressOf(player.Exp),
		Counter:      counter,
		Doubled:      player.Exp >= settings.DoubleThreshold(),
		DrawsUsed:    used,
		DrawsLimit:   settings.MonthlyDrawLimit(),
		Metadata:     meta,
	}, nil
}

// ClaimThresholdBonus pays ThresholdBonus silver the first time the player's
// exp is at or above the double threshold. It returns nil when nothing was
// paid.
func (s *Service) ClaimThresholdBonus(ctx context.Context, playerID string) (*ledger.CreditResult, error) {
	player, err := s.ledger.Balance(ctx, playerID)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Settings(ctx, player.GuildID)
	if err != nil {
		return nil, err
	}
	threshold := settings.DoubleThreshold()

	var credit *ledger.CreditResult
	err = s.txm.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		players := repositories.NewPlayerRepository(tx)
		locked, err := players.GetForUpdate(ctx, playerID)
		if err != nil {
			return err
		}
		if locked.Exp < threshold {
			return nil
		}
		flipped, err := players.MarkInitSilverGiven(ctx, playerID)
		if err != nil || !flipped {
			return err
		}
		credit, err = s.ledger.CreditTx(ctx, tx, ledger.CreditRequest{
			PlayerID: playerID,
			Amount:   ThresholdBonus,
			Currency: models.CurrencySilver,
			Category: models.CategoryThresholdBonus,
			Reason:   "Reached the double exp threshold",
			ActorID:  models.ActorSystem,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if credit != nil {
		logger.LogEconomy("Threshold bonus paid",
			slog.String("player_id", playerID),
			slog.Int64("silver", ThresholdBonus))
	}
	return credit, nil
}

// Sync follows an exp change: roles move with milestones and the threshold
// bonus is paid when the change crossed the double threshold.
func (s *Service) Sync(ctx context.Context, guildID, userID string, before, after int64) {
	if s.roles != nil {
		s.roles.Sync(ctx, guildID, userID, before, after)
	}
	if after <= before {
		return
	}

	settings, err := s.settings.Settings(ctx, guildID)
	if err != nil {
		slog.Error("Failed to load guild config for threshold bonus", slog.Any("error", err))
		return
	}
	if after < settings.DoubleThreshold() {
		return
	}
	if _, err := s.ClaimThresholdBonus(ctx, models.PlayerID(userID, guildID)); err != nil {
		logger.LogError("Failed to pay threshold bonus",
			err,
			slog.String("guild_id", guildID),
			slog.String("user_id", userID))
	}
}
