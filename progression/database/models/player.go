package models

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Player is one user's standing inside one guild.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id,notnull"`
	GuildID   string    `bun:"guild_id,notnull"`
	DcTag     string    `bun:"dc_tag,notnull,default:''"`
	Exp       int64     `bun:"exp,notnull,default:0"`
	Silver    int64     `bun:"silver,notnull,default:0"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// PlayerID builds the composite player key.
func PlayerID(userID, guildID string) string {
	return fmt.Sprintf("%s-%s", userID, guildID)
}

// Value returns the balance for the given currency.
func (p *Player) Value(c Currency) int64 {
	if c == CurrencySilver {
		return p.Silver
	}
	return p.Exp
}

type PlayerMetadata struct {
	bun.BaseModel `bun:"table:player_metadata,alias:pm"`

	ID              string    `bun:"id,pk"`
	UserID          string    `bun:"user_id,notnull"`
	GuildID         string    `bun:"guild_id,notnull"`
	InitSilverGiven bool      `bun:"init_silver_given,notnull,default:false"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
}

// DailyCounter holds the remaining daily allowances of a player.
type DailyCounter struct {
	bun.BaseModel `bun:"table:daily_counters,alias:dc"`

	ID         int64     `bun:"id,pk,autoincrement"`
	PlayerID   string    `bun:"player_id,notnull,unique"`
	ChatExp    int64     `bun:"chat_exp,notnull"`
	VoiceExp   int64     `bun:"voice_exp,notnull"`
	MissionExp int64     `bun:"mission_exp,notnull"`
	Doubled    bool      `bun:"doubled,notnull,default:false"`
	ResetAt    time.Time `bun:"reset_at,notnull"`
}
