package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Guild struct {
	bun.BaseModel `bun:"table:guilds,alias:g"`

	ID           string    `bun:"id,pk"`
	Deleted      bool      `bun:"deleted,notnull,default:false"`
	LastInteract time.Time `bun:"last_interact,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk"`
	Username  string    `bun:"username,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
