package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/disgoorg/progression-bot/internal/metrics"
	"github.com/disgoorg/progression-bot/progression"
	"github.com/disgoorg/progression-bot/progression/commands"
	"github.com/disgoorg/progression-bot/progression/database"
	"github.com/disgoorg/progression-bot/progression/handlers"
	"github.com/disgoorg/progression-bot/progression/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

const shutdownTimeout = 15 * time.Second

func main() {
	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	migrateOnly := flag.Bool("migrate", false, "Apply the database schema and exit")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := progression.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.AddSource)

	slog.Info("Starting progression bot",
		slog.String("version", version),
		slog.String("commit", commit))

	upSince := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("type", "db"),
			slog.Any("error", err),
			slog.Duration("attempted_for", time.Since(upSince)))
		os.Exit(-1)
	}
	defer db.Close()

	slog.Info("Database connected successfully",
		slog.String("type", "db"),
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(upSince)))

	if err = db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("type", "db"),
			slog.Any("error", err))
		os.Exit(-1)
	}
	if *migrateOnly {
		logger.LogSystem("Schema is up to date, exiting")
		return
	}

	b := progression.New(*cfg, version, commit)
	b.DB = db

	h := handler.New()
	commands.Register(h, b)

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady), handlers.NewEventListener(b)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("error_details", fmt.Sprintf("%+v", err)),
			slog.String("component", "bot_setup"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	if err = b.SetupServices(ctx); err != nil {
		slog.Error("Failed to setup services",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("component", "services"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}
	b.Scheduler.Start()

	if cfg.Metrics.Enabled {
		router := metrics.NewRouter(db, upSince)
		b.Processes.StartProcess("metrics", "Prometheus and health endpoints", func(ctx context.Context) {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, router); err != nil {
				slog.Error("Metrics server stopped",
					slog.String("type", "sys"),
					slog.String("addr", cfg.Metrics.Addr),
					slog.Any("error", err))
			}
		})
	}

	if *shouldSyncCommands {
		logger.LogSystem("Syncing commands", slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err),
				slog.String("error_details", fmt.Sprintf("%+v", err)),
				slog.String("component", "command_sync"),
				slog.String("status", "failed"),
			)
		}
	}

	gatewayCtx, gatewayCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gatewayCancel()
	if err = b.Client.OpenGateway(gatewayCtx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("error_details", fmt.Sprintf("%+v", err)),
			slog.String("component", "gateway"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}

	logger.LogSystem("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	logger.LogSystem("Shutting down bot...")

	if err = b.Processes.Shutdown(shutdownTimeout); err != nil {
		slog.Warn("Background processes did not stop cleanly",
			slog.String("type", "sys"),
			slog.Any("error", err))
	}
}
