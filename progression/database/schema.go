package database

import (
	"context"
	"fmt"

	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/uptrace/bun"
)

const schemaVersion = 1

var tables = []interface{}{
	(*models.Guild)(nil),
	(*models.User)(nil),
	(*models.Player)(nil),
	(*models.PlayerMetadata)(nil),
	(*models.DailyCounter)(nil),
	(*models.LedgerEntry)(nil),
	(*models.Quest)(nil),
	(*models.QuestRecord)(nil),
	(*models.DrawReward)(nil),
	(*models.DrawHistory)(nil),
	(*models.GuildConfigItem)(nil),
}

type index struct {
	name    string
	model   interface{}
	columns []string
	unique  bool
	where   string
}

var indexes = []index{
	{name: "idx_players_guild_exp", model: (*models.Player)(nil), columns: []string{"guild_id", "exp"}},
	{name: "idx_ledger_mission_day", model: (*models.LedgerEntry)(nil), columns: []string{"player_id", "currency", "category", "effective_at"}},
	{name: "idx_ledger_guild_created", model: (*models.LedgerEntry)(nil), columns: []string{"guild_id", "created_at"}},
	{name: "idx_quests_guild_expire", model: (*models.Quest)(nil), columns: []string{"guild_id", "expire_date"}},
	{name: "idx_quest_records_quest_taker", model: (*models.QuestRecord)(nil), columns: []string{"quest_id", "taker_id"}},
	{
		name:    "uq_quest_records_message",
		model:   (*models.QuestRecord)(nil),
		columns: []string{"quest_id", "taker_id", "record_note"},
		unique:  true,
		where:   "record_note <> ''",
	},
	{
		name:    "uq_quest_records_open_manual",
		model:   (*models.QuestRecord)(nil),
		columns: []string{"taker_id"},
		unique:  true,
		where:   "quest_ended = false AND manual = true",
	},
	{name: "idx_draw_history_player_date", model: (*models.DrawHistory)(nil), columns: []string{"player_id", "draw_date"}},
	{name: "idx_draw_history_reward_date", model: (*models.DrawHistory)(nil), columns: []string{"reward_id", "draw_date"}},
	{name: "uq_guild_config_items_name", model: (*models.GuildConfigItem)(nil), columns: []string{"guild_id", "name"}, unique: true},
}

// CreateSchema creates every table and index if missing. It only uses bun
// query builders so the same schema applies to Postgres and sqlite.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	for _, idx := range indexes {
		q := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists()
		if idx.unique {
			q = q.Unique()
		}
		if idx.where != "" {
			q = q.Where(idx.where)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}
