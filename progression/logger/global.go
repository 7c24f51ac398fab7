package logger

import (
	"log/slog"
	"time"
)

// LogCommand logs command execution
func LogCommand(name string, duration time.Duration, err error, extra ...any) {
	attrs := append([]any{
		slog.String("type", "cmd"),
		slog.String("name", name),
		slog.Duration("took", duration),
	}, extra...)

	if err != nil {
		slog.Error("Command failed", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Info("Command executed", attrs...)
	}
}

// LogQuery logs database operations
func LogQuery(query string, start time.Time, err error) {
	attrs := []any{
		slog.String("type", "db"),
		slog.Duration("took", since(start)),
		slog.String("query", query),
	}

	if err != nil {
		slog.Error("Query failed", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Debug("Query executed", attrs...)
	}
}

// LogSystem logs system events
func LogSystem(msg string, attrs ...any) {
	slog.Info(msg, append([]any{slog.String("type", "sys")}, attrs...)...)
}

// LogEconomy logs balance-affecting events
func LogEconomy(msg string, attrs ...any) {
	slog.Info(msg, append([]any{slog.String("type", "economy")}, attrs...)...)
}

// LogEconomyWarn logs a balance-affecting event that was skipped or only
// partially applied.
func LogEconomyWarn(msg string, attrs ...any) {
	slog.Warn(msg, append([]any{slog.String("type", "economy")}, attrs...)...)
}

func LogEconomyDebug(msg string, attrs ...any) {
	slog.Debug(msg, append([]any{slog.String("type", "economy")}, attrs...)...)
}

// LogError logs error events
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}
