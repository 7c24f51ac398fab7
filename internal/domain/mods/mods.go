// Package mods applies moderator balance adjustments to one or many players
// and reports them to the guild's mod log.
package mods

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/internal/domain/ledger"
	"github.com/disgoorg/progression-bot/internal/domain/notify"
	"github.com/disgoorg/progression-bot/internal/domain/players"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/logger"
)

var (
	ErrInvalidAdjustment = errors.New("invalid adjustment")
	ErrNoTargets         = errors.New("no players to adjust")
)

// MaxTargets bounds a single bulk adjustment.
const MaxTargets = 500

type Registry interface {
	EnsurePlayer(ctx context.Context, guildID string, m players.Member) (*models.Player, error)
}

type RoleSyncer interface {
	Sync(ctx context.Context, guildID, userID string, before, after int64)
}

type SettingsSource interface {
	Settings(ctx context.Context, guildID string) (*guildconfig.Settings, error)
}

type Adjustment struct {
	GuildID     string
	ModeratorID string
	Currency    models.Currency
	// Amount is signed. Debits stop at a zero balance.
	Amount int64
	Note   string
	// Scope describes the selection for the mod log, e.g. "role @Artists".
	Scope string
}

type Result struct {
	Member players.Member
	Credit *ledger.CreditResult
	Err    error
}

type Report struct {
	Adjustment Adjustment
	Results    []Result
}

// Succeeded counts the targets whose balance entry was written.
func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Applied sums the amounts actually applied after clamping.
func (r *Report) Applied() int64 {
	var total int64
	for _, res := range r.Results {
		if res.Credit != nil {
			total += res.Credit.Entry.Amount
		}
	}
	return total
}

type Service struct {
	ledger   *ledger.Service
	registry Registry
	roles    RoleSyncer
	settings SettingsSource
	notifier notify.Notifier
}

func NewService(ledgerService *ledger.Service, registry Registry, roles RoleSyncer, settings SettingsSource, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		ledger:   ledgerService,
		registry: registry,
		roles:    roles,
		settings: settings,
		notifier: notifier,
	}
}

func (a Adjustment) validate() error {
	if a.Amount == 0 {
		return fmt.Errorf("%w: amount must not be zero", ErrInvalidAdjustment)
	}
	if !a.Currency.Valid() {
		return fmt.Errorf("%w: currency %q", ErrInvalidAdjustment, a.Currency)
	}
	if a.ModeratorID == "" {
		return fmt.Errorf("%w: moderator is required", ErrInvalidAdjustment)
	}
	return nil
}

// Adjust credits every non-bot target once, each in its own transaction. A
// failing target is recorded in the report and does not stop the others.
func (s *Service) Adjust(ctx context.Context, adj Adjustment, targets []players.Member) (*Report, error) {
	if err := adj.validate(); err != nil {
		return nil, err
	}
	adj.Note = strings.TrimSpace(adj.Note)

	seen := make(map[string]bool, len(targets))
	unique := make([]players.Member, 0, len(targets))
	for _, m := range targets {
		if m.Bot || seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		unique = append(unique, m)
	}
	if len(unique) == 0 {
		return nil, ErrNoTargets
	}
	if len(unique) > MaxTargets {
		return nil, fmt.Errorf("%w: %d players selected, at most %d", ErrInvalidAdjustment, len(unique), MaxTargets)
	}

	report := &Report{Adjustment: adj, Results: make([]Result, 0, len(unique))}
	for _, m := range unique {
		credit, err := s.adjustOne(ctx, adj, m)
		if err != nil {
			logger.LogError("Adjustment failed",
				err,
				slog.String("guild_id", adj.GuildID),
				slog.String("user_id", m.UserID))
		}
		report.Results = append(report.Results, Result{Member: m, Credit: credit, Err: err})
	}

	logger.LogEconomy("Moderator adjustment applied",
		slog.String("guild_id", adj.GuildID),
		slog.String("moderator_id", adj.ModeratorID),
		slog.String("currency", string(adj.Currency)),
		slog.Int64("amount", adj.Amount),
		slog.Int("targets", len(unique)),
		slog.Int("succeeded", report.Succeeded()))

	s.log(ctx, report)
	return report, nil
}

func (s *Service) adjustOne(ctx context.Context, adj Adjustment, m players.Member) (*ledger.CreditResult, error) {
	player, err := s.registry.EnsurePlayer(ctx, adj.GuildID, m)
	if err != nil {
		return nil, err
	}

	reason := "Admin adjustment"
	if adj.Note != "" {
		reason += " - " + adj.Note
	}
	credit, err := s.ledger.Credit(ctx, ledger.CreditRequest{
		PlayerID: player.ID,
		Amount:   adj.Amount,
		Currency: adj.Currency,
		Category: models.CategoryAdmin,
		Reason:   reason,
		ActorID:  adj.ModeratorID,
	})
	if err != nil {
		return nil, err
	}

	if adj.Currency == models.CurrencyExp && s.roles != nil && credit.Before != credit.After {
		s.roles.Sync(ctx, adj.GuildID, m.UserID, credit.Before, credit.After)
	}
	return credit, nil
}

// log posts the report to modLogChannel. Delivery problems are only logged.
func (s *Service) log(ctx context.Context, r *Report) {
	settings, err := s.settings.Settings(ctx, r.Adjustment.GuildID)
	if err != nil {
		logger.LogEconomyWarn("Mod log skipped",
			slog.String("guild_id", r.Adjustment.GuildID),
			slog.Any("error", err))
		return
	}
	channels := settings.List(guildconfig.KeyModLogChannel)
	if len(channels) == 0 {
		return
	}
	if err := s.notifier.Broadcast(ctx, channels, LogMessage(r)); err != nil {
		logger.LogEconomyWarn("Mod log delivery failed",
			slog.String("guild_id", r.Adjustment.GuildID),
			slog.Any("error", err))
	}
}

// LogMessage renders a report for the mod log.
func LogMessage(r *Report) notify.Message {
	adj := r.Adjustment

	var sb strings.Builder
	fmt.Fprintf(&sb, "<@%s> adjusted %s by %+d", adj.ModeratorID, adj.Currency, adj.Amount)
	if adj.Scope != "" {
		fmt.Fprintf(&sb, " for %s", adj.Scope)
	}
	sb.WriteString("\n")
	if adj.Note != "" {
		fmt.Fprintf(&sb, "Note: %s\n", adj.Note)
	}
	fmt.Fprintf(&sb, "Players: %d/%d, applied %+d", r.Succeeded(), len(r.Results), r.Applied())

	const listed = 10
	if len(r.Results) <= listed {
		sb.WriteString("\n")
		for _, res := range r.Results {
			switch {
			case res.Err != nil:
				fmt.Fprintf(&sb, "\n<@%s> failed", res.Member.UserID)
			default:
				fmt.Fprintf(&sb, "\n<@%s> %d → %d", res.Member.UserID, res.Credit.Before, res.Credit.After)
			}
		}
	}

	return notify.Message{Title: "Balance adjustment", Content: sb.String()}
}
