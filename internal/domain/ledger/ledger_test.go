package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disgoorg/progression-bot/internal/testutil"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
)

func newTestService(t *testing.T) (*Service, *database.TxManager) {
	db := testutil.NewDB(t)
	txm := database.NewTxManager(db)
	return NewService(txm), txm
}

func TestService_CreditTx(t *testing.T) {
	tests := []struct {
		name        string
		silver      int64
		amount      int64
		wantApplied int64
		wantAfter   int64
		wantClamped bool
	}{
		{name: "credit", silver: 5, amount: 10, wantApplied: 10, wantAfter: 15},
		{name: "debit within balance", silver: 20, amount: -10, wantApplied: -10, wantAfter: 10},
		{name: "debit clamped", silver: 5, amount: -10, wantApplied: -5, wantAfter: 0, wantClamped: true},
		{name: "debit on empty balance", silver: 0, amount: -10, wantApplied: 0, wantAfter: 0, wantClamped: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, txm := newTestService(t)
			player := testutil.SeedPlayer(t, txm.DB(), "1", "9", 0, 0)
			if tt.silver > 0 {
				_, err := s.Credit(context.Background(), CreditRequest{PlayerID: player.ID, Amount: tt.silver, Currency: models.CurrencySilver, Category: models.CategoryAdmin})
				require.NoError(t, err)
			}

			res, err := s.Credit(context.Background(), CreditRequest{
				PlayerID: player.ID,
				Amount:   tt.amount,
				Currency: models.CurrencySilver,
				Category: models.CategoryDrawCost,
				Reason:   "test",
			})
			require.NoError(t, err)

			assert.Equal(t, tt.silver, res.Before)
			assert.Equal(t, tt.wantAfter, res.After)
			assert.Equal(t, tt.wantApplied, res.Entry.Amount)
			assert.Equal(t, tt.wantClamped, res.Clamped())
			assert.Equal(t, models.ActorSystem, res.Entry.ActorID)
			assert.Equal(t, tt.wantAfter, testutil.LoadPlayer(t, txm.DB(), player.ID).Silver)

			report, err := s.Audit(context.Background(), player.ID)
			require.NoError(t, err)
			assert.True(t, report.Consistent())
		})
	}
}

func TestService_CreditErrors(t *testing.T) {
	s, txm := newTestService(t)
	player := testutil.SeedPlayer(t, txm.DB(), "1", "9", 0, 0)

	_, err := s.Credit(context.Background(), CreditRequest{PlayerID: "missing-9", Amount: 1, Currency: models.CurrencyExp})
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("service.Credit() error = %v, want %v", err, ErrPlayerNotFound)
	}

	_, err = s.Credit(context.Background(), CreditRequest{PlayerID: player.ID, Amount: 1, Currency: "gold"})
	if !errors.Is(err, ErrInvalidCurrency) {
		t.Errorf("service.Credit() error = %v, want %v", err, ErrInvalidCurrency)
	}
}

func TestService_EffectiveAt(t *testing.T) {
	s, txm := newTestService(t)
	player := testutil.SeedPlayer(t, txm.DB(), "1", "9", 0, 0)
	yesterday := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	res, err := s.Credit(context.Background(), CreditRequest{
		PlayerID:    player.ID,
		Amount:      50,
		Currency:    models.CurrencyExp,
		Category:    models.CategoryMissionReward,
		EffectiveAt: yesterday,
	})
	require.NoError(t, err)
	assert.True(t, res.Entry.EffectiveAt.Equal(yesterday))

	sum, err := repositories.NewLedgerRepository(txm.DB()).SumPositive(context.Background(), player.ID,
		models.CurrencyExp, models.CategoryMissionReward, yesterday.Add(-time.Hour), yesterday.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(50), sum)
}

func TestService_AppendAuditDoesNotMoveBalance(t *testing.T) {
	s, txm := newTestService(t)
	player := testutil.SeedPlayer(t, txm.DB(), "1", "9", 0, 0)
	_, err := s.Credit(context.Background(), CreditRequest{PlayerID: player.ID, Amount: 30, Currency: models.CurrencyExp, Category: models.CategoryChat})
	require.NoError(t, err)

	entry, err := s.AppendAudit(context.Background(), txm.DB(), CreditRequest{
		PlayerID: player.ID,
		Amount:   30,
		Currency: models.CurrencyExp,
		Category: models.CategoryDailyReset,
		Reason:   "Daily Reset",
	})
	require.NoError(t, err)
	assert.True(t, entry.Audit)

	assert.Equal(t, int64(30), testutil.LoadPlayer(t, txm.DB(), player.ID).Exp)
	report, err := s.Audit(context.Background(), player.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
}

func TestService_AuditDetectsDrift(t *testing.T) {
	s, txm := newTestService(t)
	player := testutil.SeedPlayer(t, txm.DB(), "1", "9", 0, 0)
	_, err := s.Credit(context.Background(), CreditRequest{PlayerID: player.ID, Amount: 10, Currency: models.CurrencyExp})
	require.NoError(t, err)

	require.NoError(t, repositories.NewPlayerRepository(txm.DB()).SetBalance(context.Background(), player.ID, models.CurrencyExp, 25))

	report, err := s.Audit(context.Background(), player.ID)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.Equal(t, int64(15), report.Entries[0].Drift())
}
