package commands

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/disgoorg/progression-bot/progression"
	"github.com/disgoorg/progression-bot/progression/commands/admin"
	"github.com/disgoorg/progression-bot/progression/commands/player"
	"github.com/disgoorg/progression-bot/progression/commands/quest"
	"github.com/disgoorg/progression-bot/progression/commands/system"
	"github.com/disgoorg/progression-bot/progression/handlers"
)

var Commands = []discord.ApplicationCommandCreate{}

func init() {
	Commands = append(Commands, admin.Commands...)
	Commands = append(Commands, player.Commands...)
	Commands = append(Commands, quest.Commands...)
	Commands = append(Commands, system.Commands...)
}

// Register binds every command path to its handler.
func Register(h handler.Router, b *progression.Bot) {
	// System commands
	h.Command("/version", system.VersionHandler(b))

	// Player commands
	h.Command("/user", handlers.WrapWithLogging("user", player.UserHandler(b)))
	h.Command("/draw", handlers.WrapWithLogging("draw", player.DrawHandler(b)))
	h.Command("/leaderboard", handlers.WrapWithLogging("leaderboard", player.LeaderboardHandler(b)))

	// Quest commands
	h.Command("/quest/list", handlers.WrapWithLogging("quest-list", quest.ListHandler(b)))
	h.Command("/quest/accept", handlers.WrapWithLogging("quest-accept", quest.AcceptHandler(b)))
	h.Autocomplete("/quest/accept", quest.AcceptAutocomplete(b))
	h.Command("/quest/current", handlers.WrapWithLogging("quest-current", quest.CurrentHandler(b)))
	h.Command("/quest/submit", handlers.WrapWithLogging("quest-submit", quest.SubmitHandler(b)))
	h.Command("/quest/drop", handlers.WrapWithLogging("quest-drop", quest.DropHandler(b)))
	h.Command("/quest/publish", handlers.WrapWithLogging("quest-publish", quest.PublishHandler(b)))
	h.Command("/quest/pending", handlers.WrapWithLogging("quest-pending", quest.PendingHandler(b)))
	h.Command("/quest/approve", handlers.WrapWithLogging("quest-approve", quest.ApproveHandler(b)))
	h.Command("/quest/reject", handlers.WrapWithLogging("quest-reject", quest.RejectHandler(b)))

	// Admin commands
	h.Command("/mod/player", handlers.WrapWithLogging("mod-player", admin.ModPlayerHandler(b)))
	h.Command("/mod/bulk", handlers.WrapWithLoggingTimeout("mod-bulk", admin.BulkTimeout, admin.ModBulkHandler(b)))
	h.Command("/mod/role", handlers.WrapWithLoggingTimeout("mod-role", admin.BulkTimeout, admin.ModRoleHandler(b)))
	h.Command("/config/add", handlers.WrapWithLogging("config-add", admin.ConfigAddHandler(b)))
	h.Command("/config/del", handlers.WrapWithLogging("config-del", admin.ConfigDelHandler(b)))
	h.Command("/config/show", handlers.WrapWithLogging("config-show", admin.ConfigShowHandler(b)))
	h.Command("/config/mission", handlers.WrapWithLogging("config-mission", admin.ConfigMissionHandler(b)))
	h.Autocomplete("/config/mission", admin.ConfigMissionAutocomplete(b))
	h.Command("/config/mshow", handlers.WrapWithLogging("config-mshow", admin.ConfigMissionShowHandler(b)))
	h.Command("/ledger/audit", handlers.WrapWithLogging("ledger-audit", admin.LedgerAuditHandler(b)))
	h.Command("/ledger/export", handlers.WrapWithLoggingTimeout("ledger-export", admin.ExportTimeout, admin.LedgerExportHandler(b)))
}
