package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCustomHandler(t *testing.T) {
	tests := []struct {
		name     string
		log      func(l *slog.Logger)
		contains []string
		empty    bool
	}{
		{
			name: "command log",
			log: func(l *slog.Logger) {
				l.Info("Command executed", slog.String("type", "cmd"), slog.String("name", "draw"), slog.String("user_name", "alice"))
			},
			contains: []string{"[TOB]", "INFO", "CMD", "Command executed [draw by alice]"},
		},
		{
			name: "economy log with attributes",
			log: func(l *slog.Logger) {
				l.Info("Draw completed", slog.String("type", "economy"), slog.String("reward", "100 exp"))
			},
			contains: []string{"ECO", "Draw completed", "reward=100 exp"},
		},
		{
			name: "error log",
			log: func(l *slog.Logger) {
				l.Error("Query failed", slog.String("type", "db"), slog.String("error_location", "db.go:10"), slog.Any("error", errors.New("boom")))
			},
			contains: []string{"ERROR", "DB", "Query failed (db.go:10): boom"},
		},
		{
			name: "below level",
			log: func(l *slog.Logger) {
				l.Debug("hidden")
			},
			empty: true,
		},
		{
			name: "disgo noise",
			log: func(l *slog.Logger) {
				l.Info("sending heartbeat")
			},
			empty: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(slog.New(NewHandlerWithWriter(&buf, slog.LevelInfo)))

			if tt.empty {
				assert.Empty(t, buf.String())
				return
			}
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestCustomHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandlerWithWriter(&buf, slog.LevelDebug)).With(slog.String("guild_id", "g1"))

	l.Debug("Scan finished")
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "guild_id=g1")
	assert.Contains(t, buf.String(), "SYS")
}

func TestGlobalHelpers(t *testing.T) {
	tests := []struct {
		name     string
		log      func()
		contains []string
	}{
		{
			name:     "economy",
			log:      func() { LogEconomy("Draw completed", slog.String("user_id", "u1")) },
			contains: []string{"INFO", "ECO", "Draw completed", "user_id=u1"},
		},
		{
			name:     "economy warning",
			log:      func() { LogEconomyWarn("Voice credit failed") },
			contains: []string{"WARN", "ECO", "Voice credit failed"},
		},
		{
			name:     "economy debug",
			log:      func() { LogEconomyDebug("Voice scan finished", slog.Int("members", 3)) },
			contains: []string{"DEBUG", "ECO", "members=3"},
		},
		{
			name:     "error",
			log:      func() { LogError("Daily reset failed for player", errors.New("locked")) },
			contains: []string{"ERROR", "ERR", "Daily reset failed for player", "locked"},
		},
		{
			name:     "system",
			log:      func() { LogSystem("Schema is up to date, exiting") },
			contains: []string{"INFO", "SYS", "Schema is up to date, exiting"},
		},
		{
			name:     "command failed",
			log:      func() { LogCommand("draw", time.Second, errors.New("no silver"), slog.String("user_name", "alice")) },
			contains: []string{"ERROR", "CMD", "draw by alice", "no silver"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			prev := slog.Default()
			slog.SetDefault(slog.New(NewHandlerWithWriter(&buf, slog.LevelDebug)))
			t.Cleanup(func() { slog.SetDefault(prev) })

			tt.log()
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}
