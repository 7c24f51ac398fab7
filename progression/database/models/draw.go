package models

import (
	"time"

	"github.com/uptrace/bun"
)

type RewardKind string

const (
	RewardExp    RewardKind = "exp"
	RewardSilver RewardKind = "silver"
	RewardOther  RewardKind = "other"
)

type DrawReward struct {
	bun.BaseModel `bun:"table:draw_rewards,alias:dr"`

	ID          int64      `bun:"id,pk,autoincrement"`
	Name        string     `bun:"name,notnull"`
	Kind        RewardKind `bun:"kind,notnull"`
	Value       int64      `bun:"value,notnull,default:0"`
	Probability float64    `bun:"probability,notnull"`
	PeriodCap   int        `bun:"period_cap,notnull,default:0"`
	Enabled     bool       `bun:"enabled,notnull"`
}

// Currency maps a currency-bearing reward to its ledger currency.
func (r *DrawReward) Currency() (Currency, bool) {
	switch r.Kind {
	case RewardExp:
		return CurrencyExp, true
	case RewardSilver:
		return CurrencySilver, true
	}
	return "", false
}

type DrawHistory struct {
	bun.BaseModel `bun:"table:draw_history,alias:dh"`

	ID       int64     `bun:"id,pk,autoincrement"`
	PlayerID string    `bun:"player_id,notnull"`
	GuildID  string    `bun:"guild_id,notnull"`
	RewardID int64     `bun:"reward_id,notnull"`
	DrawDate time.Time `bun:"draw_date,notnull"`
}
