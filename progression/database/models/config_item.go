package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ConfigType string

const (
	ConfigChannel ConfigType = "channel"
	ConfigRole    ConfigType = "role"
	ConfigUser    ConfigType = "user"
	ConfigValue   ConfigType = "value"
	ConfigMission ConfigType = "mission"
)

// GuildConfigItem is a named JSON value scoped to a guild.
type GuildConfigItem struct {
	bun.BaseModel `bun:"table:guild_config_items,alias:gci"`

	ID        int64      `bun:"id,pk,autoincrement"`
	GuildID   string     `bun:"guild_id,notnull"`
	Name      string     `bun:"name,notnull"`
	Value     string     `bun:"value,notnull"`
	Type      ConfigType `bun:"type,notnull"`
	UpdatedAt time.Time  `bun:"updated_at,notnull"`
}
