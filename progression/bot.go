package progression

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"
	gocache "github.com/patrickmn/go-cache"

	"github.com/disgoorg/progression-bot/internal/domain/activity"
	"github.com/disgoorg/progression-bot/internal/domain/draw"
	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/internal/domain/ledger"
	"github.com/disgoorg/progression-bot/internal/domain/leveling"
	"github.com/disgoorg/progression-bot/internal/domain/missions"
	"github.com/disgoorg/progression-bot/internal/domain/mods"
	"github.com/disgoorg/progression-bot/internal/domain/period"
	"github.com/disgoorg/progression-bot/internal/domain/players"
	"github.com/disgoorg/progression-bot/internal/domain/quests"
	"github.com/disgoorg/progression-bot/internal/domain/quota"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
	"github.com/disgoorg/progression-bot/progression/logger"
	"github.com/disgoorg/progression-bot/progression/services"
	"github.com/disgoorg/progression-bot/progression/utils"
)

const (
	notifyPerSecond = 5
	notifyBurst     = 5
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:         cfg,
		Paginator:   paginator.New(),
		Version:     version,
		Commit:      commit,
		Clock:       period.NewClock(cfg.Economy.Location()),
		Voice:       services.NewVoiceTracker(),
		Leaderboard: gocache.New(cfg.Economy.LeaderboardMaxAge(), 2*cfg.Economy.LeaderboardMaxAge()),
		Processes:   utils.NewBackgroundProcessManager(),
	}
}

type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string
	DB        *database.DB
	Clock     period.Clock

	GuildConfig *guildconfig.Service
	Ledger      *ledger.Service
	Quota       *quota.Service
	Reconciler  *leveling.Reconciler
	Players     *players.Service
	Activity    *activity.Service
	Missions    *missions.Service
	Quests      *quests.Service
	Draw        *draw.Service
	Mods        *mods.Service

	Roles       *services.DiscordRoles
	Notifier    *services.DiscordNotifier
	Voice       *services.VoiceTracker
	Archive     *services.LedgerArchive
	Scheduler   *services.Scheduler
	Leaderboard *gocache.Cache
	Processes   *utils.BackgroundProcessManager
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(
			gateway.IntentGuilds,
			gateway.IntentGuildMembers,
			gateway.IntentGuildMessages,
			gateway.IntentGuildMessageReactions,
			gateway.IntentGuildVoiceStates,
		)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds, cache.FlagMembers, cache.FlagRoles, cache.FlagVoiceStates)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

// SetupServices builds the economy engines on top of the database and the
// Discord client. It must run after SetupBot and before the gateway opens.
func (b *Bot) SetupServices(ctx context.Context) error {
	if b.DB == nil || b.Client == nil {
		return fmt.Errorf("database and client must be ready before services")
	}

	bunDB := b.DB.BunDB()
	txm := database.NewTxManager(bunDB)

	settings, err := guildconfig.NewService(
		repositories.NewGuildConfigRepository(bunDB),
		b.Cfg.Economy.Defaults(),
		b.Cfg.Economy.ConfigMaxAge(),
	)
	if err != nil {
		return err
	}
	b.GuildConfig = settings

	b.Roles = services.NewDiscordRoles(b.Client)
	b.Notifier = services.NewDiscordNotifier(b.Client, notifyPerSecond, notifyBurst)

	b.Ledger = ledger.NewService(txm)
	b.Quota = quota.NewService(txm, b.Ledger, settings, b.Clock)
	b.Reconciler = leveling.NewReconciler(b.Roles, settings)
	b.Players = players.NewService(txm, b.Ledger, b.Quota, settings, b.Reconciler, b.Clock)
	b.Activity = activity.NewService(txm, b.Ledger, b.Quota, settings, b.Players, b.Players, b.Cfg.Economy.VoiceExpPerTick)
	b.Missions = missions.NewService(txm, b.Ledger, b.Quota, settings, b.Players, b.Notifier, b.Clock)
	b.Quests = quests.NewService(txm, b.Ledger, b.Players, b.Notifier)
	b.Draw = draw.NewService(txm, b.Ledger, settings, b.Notifier, b.Clock)
	b.Mods = mods.NewService(b.Ledger, b.Players, b.Players, settings, b.Notifier)

	if b.Cfg.Archive.Enabled {
		client, err := services.NewS3Client(ctx, services.ArchiveOptions{
			Endpoint: b.Cfg.Archive.Endpoint,
			Region:   b.Cfg.Archive.Region,
			Bucket:   b.Cfg.Archive.Bucket,
			Key:      b.Cfg.Archive.Key,
			Secret:   b.Cfg.Archive.Secret,
			Prefix:   b.Cfg.Archive.Prefix,
		})
		if err != nil {
			return err
		}
		b.Archive = services.NewLedgerArchive(client, repositories.NewLedgerRepository(bunDB), b.Cfg.Archive.Bucket, b.Cfg.Archive.Prefix)
	}

	b.Scheduler = services.NewScheduler(b.Processes, b.Clock, services.ScheduleOptions{
		ResetAt:       b.Cfg.Economy.ResetAt,
		VoiceInterval: b.Cfg.Economy.VoiceEvery(),
		Concurrency:   b.Cfg.Economy.JobConcurrency,
	}, b.Quota, b.Activity, b.Voice, b.Archive)

	logger.LogSystem("Economy services initialized",
		slog.String("timezone", b.Clock.Location.String()),
		slog.Bool("archive", b.Archive != nil))
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	logger.LogSystem("Progression bot is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithWatchingActivity("the leaderboard"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence",
			slog.String("type", "error"),
			slog.Any("error", err))
	}
}
