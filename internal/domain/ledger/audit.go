package ledger

import (
	"context"

	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
)

type CurrencyAudit struct {
	Currency  models.Currency
	LedgerSum int64
	Balance   int64
}

func (c CurrencyAudit) Drift() int64 {
	return c.Balance - c.LedgerSum
}

type AuditReport struct {
	PlayerID string
	Entries  []CurrencyAudit
}

// Consistent reports whether every stored balance equals its ledger sum.
func (r *AuditReport) Consistent() bool {
	for _, c := range r.Entries {
		if c.Drift() != 0 {
			return false
		}
	}
	return true
}

// Audit compares the stored balances of a player with the sum of its
// balance-moving ledger entries.
func (s *Service) Audit(ctx context.Context, playerID string) (*AuditReport, error) {
	player, err := s.Balance(ctx, playerID)
	if err != nil {
		return nil, err
	}

	sums, err := repositories.NewLedgerRepository(s.txm.DB()).SumByCurrency(ctx, playerID)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{PlayerID: playerID}
	for _, c := range []models.Currency{models.CurrencyExp, models.CurrencySilver} {
		report.Entries = append(report.Entries, CurrencyAudit{
			Currency:  c,
			LedgerSum: sums[c],
			Balance:   player.Value(c),
		})
	}
	return report, nil
}
