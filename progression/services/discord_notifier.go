package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"

	"github.com/disgoorg/progression-bot/internal/domain/notify"
	"github.com/disgoorg/progression-bot/internal/metrics"
)

// DiscordNotifier posts notifications as embeds. Sends share one limiter so
// bursts of mission broadcasts do not trip Discord's global rate limit.
type DiscordNotifier struct {
	client  bot.Client
	limiter *rate.Limiter
}

func NewDiscordNotifier(client bot.Client, perSecond float64, burst int) *DiscordNotifier {
	return &DiscordNotifier{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func embedOf(msg notify.Message) discord.MessageCreate {
	embed := discord.NewEmbedBuilder().
		SetDescription(msg.Content).
		SetColor(msg.Color)
	if msg.Title != "" {
		embed.SetTitle(msg.Title)
	}
	return discord.NewMessageCreateBuilder().
		SetEmbeds(embed.Build()).
		SetAllowedMentions(&discord.AllowedMentions{}).
		Build()
}

func (n *DiscordNotifier) send(ctx context.Context, target string, channelID snowflake.ID, msg notify.Message) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := n.client.Rest().CreateMessage(channelID, embedOf(msg), rest.WithCtx(ctx))
	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.NotificationsSent.WithLabelValues(target, status).Inc()
	return err
}

// Broadcast posts msg to every channel and returns the joined failures.
func (n *DiscordNotifier) Broadcast(ctx context.Context, channelIDs []string, msg notify.Message) error {
	var errs []error
	for _, id := range channelIDs {
		channelID, err := snowflake.Parse(id)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid channel %q: %w", id, err))
			continue
		}
		if err := n.send(ctx, "channel", channelID, msg); err != nil {
			slog.Warn("Failed to broadcast notification",
				slog.String("type", "sys"),
				slog.String("channel_id", id),
				slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Direct sends msg to the user's DM channel.
func (n *DiscordNotifier) Direct(ctx context.Context, userID string, msg notify.Message) error {
	id, err := snowflake.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user %q: %w", userID, err)
	}
	channel, err := n.client.Rest().CreateDMChannel(id, rest.WithCtx(ctx))
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("direct", "failed").Inc()
		return fmt.Errorf("failed to open DM channel: %w", err)
	}
	return n.send(ctx, "direct", channel.ID(), msg)
}
