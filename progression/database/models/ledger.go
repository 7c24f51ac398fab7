package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Currency string

const (
	CurrencyExp    Currency = "exp"
	CurrencySilver Currency = "silver"
)

func (c Currency) Valid() bool {
	return c == CurrencyExp || c == CurrencySilver
}

// LedgerCategory is the structured reason of a balance change.
type LedgerCategory string

const (
	CategoryChat           LedgerCategory = "chat"
	CategoryVoice          LedgerCategory = "voice"
	CategoryMissionReward  LedgerCategory = "mission-reward"
	CategoryQuestReward    LedgerCategory = "quest-reward"
	CategoryDrawCost       LedgerCategory = "draw-cost"
	CategoryDrawReward     LedgerCategory = "draw-reward"
	CategoryAdmin          LedgerCategory = "admin"
	CategoryThresholdBonus LedgerCategory = "threshold-bonus"
	CategoryDailyReset     LedgerCategory = "daily-reset"
)

// ActorSystem marks entries written by the bot itself.
const ActorSystem = "system"

// LedgerEntry is an append-only balance change. Amount is the value actually
// applied after clamping. Audit entries summarize changes already applied and
// never move a balance.
type LedgerEntry struct {
	bun.BaseModel `bun:"table:ledger_entries,alias:le"`

	ID          int64          `bun:"id,pk,autoincrement"`
	PlayerID    string         `bun:"player_id,notnull"`
	GuildID     string         `bun:"guild_id,notnull"`
	Amount      int64          `bun:"amount,notnull"`
	Currency    Currency       `bun:"currency,notnull"`
	Category    LedgerCategory `bun:"category,notnull"`
	Reason      string         `bun:"reason,notnull,default:''"`
	ActorID     string         `bun:"actor_id,notnull"`
	Audit       bool           `bun:"audit,notnull,default:false"`
	EffectiveAt time.Time      `bun:"effective_at,notnull"`
	CreatedAt   time.Time      `bun:"created_at,notnull"`
}
