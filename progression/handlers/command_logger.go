package handlers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/handler"

	"github.com/disgoorg/progression-bot/internal/metrics"
	"github.com/disgoorg/progression-bot/progression/logger"
	"github.com/disgoorg/progression-bot/progression/utils"
)

// runLogged runs fn, logging start, completion, slowness and timeouts.
func runLogged(name string, timeout time.Duration, base []any, fn func() error) error {
	start := time.Now()
	slog.Debug("Interaction started", append([]any{
		slog.String("type", "cmd"),
		slog.String("name", name),
	}, base...)...)

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in %s: %v", name, r)
			}
		}()
		done <- fn()
	}()

	select {
	case err := <-done:
		took := time.Since(start)
		status := "success"
		switch {
		case err != nil:
			status = "failed"
		case took > utils.SlowCommand:
			status = "slow"
			slog.Warn("Interaction executed slowly", append([]any{
				slog.String("type", "cmd"),
				slog.String("name", name),
				slog.Duration("took", took),
			}, base...)...)
		}
		logger.LogCommand(name, took, err, append(base, slog.String("status", status))...)
		metrics.CommandDuration.WithLabelValues(name, status).Observe(took.Seconds())
		return err

	case <-time.After(timeout):
		slog.Error("Interaction timed out", append([]any{
			slog.String("type", "cmd"),
			slog.String("name", name),
			slog.String("status", "timeout"),
			slog.Duration("timeout", timeout),
		}, base...)...)
		metrics.CommandDuration.WithLabelValues(name, "timeout").Observe(timeout.Seconds())
		return fmt.Errorf("%s timed out after %s", name, timeout)
	}
}

// WrapWithLogging wraps a command handler with logging functionality
func WrapWithLogging(name string, h handler.CommandHandler) handler.CommandHandler {
	return WrapWithLoggingTimeout(name, utils.CommandTimeout, h)
}

// WrapWithLoggingTimeout is WrapWithLogging for long running commands.
func WrapWithLoggingTimeout(name string, timeout time.Duration, h handler.CommandHandler) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if e.GuildID() == nil {
			return utils.EH.CreateErrorEmbed(e, "This command only works inside a server.")
		}
		return runLogged(name, timeout, []any{
			slog.String("user_id", e.User().ID.String()),
			slog.String("user_name", e.User().Username),
			slog.String("guild_id", e.GuildID().String()),
			slog.String("channel_id", e.ChannelID().String()),
		}, func() error { return h(e) })
	}
}
