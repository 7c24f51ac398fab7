// Package ledger owns every balance change. Each change appends an entry and
// updates the player's balance inside one transaction with the player row
// locked, so the non-audit entries of a player always sum to its balances.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/disgoorg/progression-bot/internal/metrics"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
	"github.com/disgoorg/progression-bot/progression/logger"
)

var (
	ErrPlayerNotFound  = errors.New("player not found")
	ErrInvalidCurrency = errors.New("invalid currency")
)

type CreditRequest struct {
	PlayerID string
	Amount   int64
	Currency models.Currency
	Category models.LedgerCategory
	Reason   string
	ActorID  string
	// EffectiveAt is the business time the change counts toward. Zero means now.
	EffectiveAt time.Time
}

type CreditResult struct {
	Entry     *models.LedgerEntry
	Requested int64
	Before    int64
	After     int64
}

// Clamped reports whether the applied amount differs from the requested one.
func (r *CreditResult) Clamped() bool {
	return r.Entry.Amount != r.Requested
}

type Service struct {
	txm *database.TxManager
	now func() time.Time
}

func NewService(txm *database.TxManager) *Service {
	return &Service{txm: txm, now: time.Now}
}

// Credit applies a signed amount in its own transaction.
func (s *Service) Credit(ctx context.Context, req CreditRequest) (*CreditResult, error) {
	var result *CreditResult
	err := s.txm.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		result, err = s.CreditTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreditTx applies a signed amount inside the caller's transaction. The
// balance never drops below zero; the entry records the amount actually
// applied, which is zero for a debit against an empty balance.
func (s *Service) CreditTx(ctx context.Context, tx bun.IDB, req CreditRequest) (*CreditResult, error) {
	if !req.Currency.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCurrency, req.Currency)
	}

	players := repositories.NewPlayerRepository(tx)
	player, err := players.GetForUpdate(ctx, req.PlayerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, req.PlayerID)
		}
		return nil, err
	}

	before := player.Value(req.Currency)
	after := before + req.Amount
	if after < 0 {
		after = 0
	}

	entry := s.newEntry(player, req, after-before, false)
	if err := repositories.NewLedgerRepository(tx).Insert(ctx, entry); err != nil {
		return nil, err
	}
	if after != before {
		if err := players.SetBalance(ctx, player.ID, req.Currency, after); err != nil {
			return nil, err
		}
	}

	result := &CreditResult{Entry: entry, Requested: req.Amount, Before: before, After: after}
	s.observe(result)
	return result, nil
}

// AppendAudit writes an entry that documents changes already reflected in
// the balance. It never moves a balance.
func (s *Service) AppendAudit(ctx context.Context, tx bun.IDB, req CreditRequest) (*models.LedgerEntry, error) {
	if !req.Currency.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCurrency, req.Currency)
	}

	player, err := repositories.NewPlayerRepository(tx).Get(ctx, req.PlayerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, req.PlayerID)
		}
		return nil, err
	}

	entry := s.newEntry(player, req, req.Amount, true)
	if err := repositories.NewLedgerRepository(tx).Insert(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Balance reads the current player row outside of any transaction.
func (s *Service) Balance(ctx context.Context, playerID string) (*models.Player, error) {
	player, err := repositories.NewPlayerRepository(s.txm.DB()).Get(ctx, playerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
		}
		return nil, err
	}
	return player, nil
}

func (s *Service) newEntry(player *models.Player, req CreditRequest, applied int64, audit bool) *models.LedgerEntry {
	now := s.now().UTC()
	effective := req.EffectiveAt
	if effective.IsZero() {
		effective = now
	}
	actor := req.ActorID
	if actor == "" {
		actor = models.ActorSystem
	}
	category := req.Category
	if category == "" {
		category = models.CategoryAdmin
	}

	return &models.LedgerEntry{
		PlayerID:    player.ID,
		GuildID:     player.GuildID,
		Amount:      applied,
		Currency:    req.Currency,
		Category:    category,
		Reason:      req.Reason,
		ActorID:     actor,
		Audit:       audit,
		EffectiveAt: effective.UTC(),
		CreatedAt:   now,
	}
}

func (s *Service) observe(result *CreditResult) {
	entry := result.Entry
	metrics.LedgerCredits.WithLabelValues(string(entry.Currency), string(entry.Category)).Inc()
	amount := entry.Amount
	if amount < 0 {
		amount = -amount
	}
	metrics.LedgerAmount.WithLabelValues(string(entry.Currency), string(entry.Category)).Add(float64(amount))

	if result.Clamped() {
		metrics.ClampedDebits.WithLabelValues(string(entry.Currency)).Inc()
		logger.LogEconomyWarn("Debit clamped at zero balance",
			slog.String("player_id", entry.PlayerID),
			slog.String("currency", string(entry.Currency)),
			slog.Int64("requested", result.Requested),
			slog.Int64("applied", entry.Amount))
	}
}
