package utils

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/disgoorg/progression-bot/internal/domain/draw"
	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/internal/domain/ledger"
	"github.com/disgoorg/progression-bot/internal/domain/missions"
	"github.com/disgoorg/progression-bot/internal/domain/mods"
	"github.com/disgoorg/progression-bot/internal/domain/players"
	"github.com/disgoorg/progression-bot/internal/domain/quests"
)

// ResponseHandler provides standardized response methods for commands and components
type ResponseHandler struct{}

var EH = &ResponseHandler{}

// ErrorType represents different categories of errors for consistent handling
type ErrorType int

const (
	// UserError - bad input
	UserError ErrorType = iota
	// SystemError - database or Discord failures
	SystemError
	// NotFoundError - unknown player, quest or record
	NotFoundError
	// PermissionError - command used in the wrong place or by the wrong member
	PermissionError
	// BusinessLogicError - limits, balances and quest rules
	BusinessLogicError
)

func (t ErrorType) prefix() string {
	switch t {
	case UserError:
		return "⚠️"
	case SystemError:
		return "🔧"
	case NotFoundError:
		return "🔍"
	case PermissionError:
		return "🚫"
	case BusinessLogicError:
		return "⏳"
	default:
		return "❌"
	}
}

func (t ErrorType) color() int {
	switch t {
	case UserError, BusinessLogicError:
		return WarningColor
	case NotFoundError:
		return InfoColor
	default:
		return ErrorColor
	}
}

// Classify maps domain errors to a response category. Unknown errors are
// system errors and are never shown verbatim.
func Classify(err error) (ErrorType, string) {
	switch {
	case errors.Is(err, ledger.ErrPlayerNotFound), errors.Is(err, players.ErrPlayerNotFound):
		return NotFoundError, "You are not registered yet. Say something in the server first."
	case errors.Is(err, quests.ErrQuestNotFound), errors.Is(err, missions.ErrMissionNotFound):
		return NotFoundError, "That quest does not exist."
	case errors.Is(err, quests.ErrRecordNotFound):
		return NotFoundError, "That quest submission does not exist."
	case errors.Is(err, guildconfig.ErrNotFound):
		return NotFoundError, "That config item is not set."
	case errors.Is(err, mods.ErrNoTargets):
		return UserError, "Nobody matched that selection."
	case errors.Is(err, quests.ErrNoActive):
		return BusinessLogicError, "You have no active quest."
	case errors.Is(err, quests.ErrAlreadyActive):
		return BusinessLogicError, "You already have an active quest. Submit or drop it first."
	case errors.Is(err, quests.ErrQuestExpired):
		return BusinessLogicError, "That quest has expired."
	case errors.Is(err, quests.ErrQuestUnavailable):
		return BusinessLogicError, "That quest cannot be taken right now."
	case errors.Is(err, quests.ErrInvalidTransition):
		return BusinessLogicError, "That quest is not waiting for this action."
	case errors.Is(err, draw.ErrInsufficientSilver):
		return BusinessLogicError, "You do not have enough silver to draw."
	case errors.Is(err, draw.ErrDrawLimitReached):
		return BusinessLogicError, "You have used all draws for this period."
	case errors.Is(err, draw.ErrNoRewards):
		return SystemError, "The reward pool is empty."
	case errors.Is(err, draw.ErrChannelNotAllowed):
		return PermissionError, "Draws are not allowed in this channel."
	case errors.Is(err, quests.ErrInvalidQuest), errors.Is(err, missions.ErrInvalidMission),
		errors.Is(err, guildconfig.ErrInvalidValue), errors.Is(err, ledger.ErrInvalidCurrency),
		errors.Is(err, mods.ErrInvalidAdjustment):
		return UserError, err.Error()
	default:
		return SystemError, "Something went wrong. Please try again later."
	}
}

func errorEmbed(t ErrorType, message string) discord.Embed {
	return discord.Embed{
		Description: t.prefix() + " " + message,
		Color:       t.color(),
	}
}

// CreateClassifiedError creates an error response with automatic categorization
func (h *ResponseHandler) CreateClassifiedError(event *handler.CommandEvent, errorType ErrorType, message string) error {
	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{errorEmbed(errorType, message)},
		Flags:  discord.MessageFlagEphemeral,
	})
}

// HandleDomainError replies with the user facing text for err. System
// errors are logged with their cause.
func (h *ResponseHandler) HandleDomainError(event *handler.CommandEvent, err error) error {
	errorType, message := Classify(err)
	if errorType == SystemError {
		slog.Error("Command error",
			slog.String("type", "error"),
			slog.String("command", event.Data.CommandName()),
			slog.Any("error", err))
	}
	return h.CreateClassifiedError(event, errorType, message)
}

func (h *ResponseHandler) CreateUserError(event *handler.CommandEvent, message string) error {
	return h.CreateClassifiedError(event, UserError, message)
}

func (h *ResponseHandler) CreatePermissionError(event *handler.CommandEvent, action string) error {
	return h.CreateClassifiedError(event, PermissionError, fmt.Sprintf("You don't have permission to %s", action))
}

func (h *ResponseHandler) CreateErrorEmbed(event *handler.CommandEvent, message string) error {
	return h.CreateClassifiedError(event, SystemError, message)
}

func (h *ResponseHandler) CreateSuccessEmbed(event *handler.CommandEvent, message string) error {
	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{Description: message, Color: SuccessColor}},
	})
}

func (h *ResponseHandler) CreateInfoEmbed(event *handler.CommandEvent, message string) error {
	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{Description: message, Color: InfoColor}},
	})
}

// UpdateDomainError replaces a deferred response with the text for err.
func (h *ResponseHandler) UpdateDomainError(event *handler.CommandEvent, err error) error {
	errorType, message := Classify(err)
	if errorType == SystemError {
		slog.Error("Command error",
			slog.String("type", "error"),
			slog.String("command", event.Data.CommandName()),
			slog.Any("error", err))
	}
	_, uerr := event.UpdateInteractionResponse(discord.MessageUpdate{
		Embeds: &[]discord.Embed{errorEmbed(errorType, message)},
	})
	return uerr
}

func (h *ResponseHandler) CreateEphemeralError(event *handler.ComponentEvent, message string) error {
	return event.CreateMessage(discord.MessageCreate{
		Content: "❌ " + message,
		Flags:   discord.MessageFlagEphemeral,
	})
}

func (h *ResponseHandler) CreateEphemeralSuccess(event *handler.ComponentEvent, message string) error {
	return event.CreateMessage(discord.MessageCreate{
		Content: "✅ " + message,
		Flags:   discord.MessageFlagEphemeral,
	})
}
