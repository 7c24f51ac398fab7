package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

type LogType string

const (
	TypeCommand LogType = "CMD"
	TypeDB      LogType = "DB"
	TypeSystem  LogType = "SYS"
	TypeError   LogType = "ERR"
	TypeEconomy LogType = "ECO"
)

// internalAttrs are folded into the message instead of printed as key=value.
var internalAttrs = []string{"type", "name", "user_name", "status", "error", "error_location", "took"}

// skippedMessages are chatty disgo internals.
var skippedMessages = []string{
	"locking buckets",
	"unlocking buckets",
	"gateway event",
	"cleaning up bucket",
	"cleaned up rate limit buckets",
	"binary message received",
	"received gateway message",
	"opening gateway connection",
	"locking gateway rate limiter",
	"unlocking gateway rate limiter",
	"sending gateway command",
	"new request",
	"new response",
	"locking rest bucket",
	"unlocking rest bucket",
	"rate limit response headers",
	"sending heartbeat",
}

type CustomHandler struct {
	opts   *slog.HandlerOptions
	out    io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

func NewHandler(level slog.Leveler) *CustomHandler {
	return NewHandlerWithWriter(os.Stdout, level)
}

func NewHandlerWithWriter(out io.Writer, level slog.Leveler) *CustomHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &CustomHandler{
		opts: &slog.HandlerOptions{Level: level},
		out:  out,
		mu:   &sync.Mutex{},
	}
}

func (h *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CustomHandler{
		opts:   h.opts,
		out:    h.out,
		mu:     h.mu,
		attrs:  append(slices.Clip(h.attrs), attrs...),
		groups: h.groups,
	}
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	return &CustomHandler{
		opts:   h.opts,
		out:    h.out,
		mu:     h.mu,
		attrs:  h.attrs,
		groups: append(slices.Clip(h.groups), name),
	}
}

func (h *CustomHandler) Handle(_ context.Context, r slog.Record) error {
	if shouldSkipLog(&r) {
		return nil
	}

	var levelColor, levelText string
	switch {
	case r.Level >= slog.LevelError:
		levelColor, levelText = colorRed, "ERROR"
	case r.Level >= slog.LevelWarn:
		levelColor, levelText = colorYellow, "WARN"
	case r.Level >= slog.LevelInfo:
		levelColor, levelText = colorGreen, "INFO"
	default:
		levelColor, levelText = colorPurple, "DEBUG"
	}

	attrs := make(map[string]slog.Value)
	var extra []string
	collect := func(a slog.Attr) {
		if slices.Contains(internalAttrs, a.Key) {
			attrs[a.Key] = a.Value
			return
		}
		extra = append(extra, fmt.Sprintf("%s=%v", a.Key, a.Value))
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})

	message := r.Message
	if r.Level >= slog.LevelError {
		location := stringAttr(attrs, "error_location")
		if location == "" {
			location = sourceLocation()
		}
		if location != "" {
			message = fmt.Sprintf("%s (%s)", message, location)
		}
		if e, ok := attrs["error"]; ok {
			message = fmt.Sprintf("%s: %v", message, e)
		}
	} else if e, ok := attrs["error"]; ok {
		extra = append(extra, fmt.Sprintf("error=%v", e))
	}

	if name, user := stringAttr(attrs, "name"), stringAttr(attrs, "user_name"); name != "" && user != "" {
		message = fmt.Sprintf("%s [%s by %s]", message, name, user)
	}
	if status := stringAttr(attrs, "status"); status != "" {
		message = fmt.Sprintf("%s [Status: %s]", message, status)
	}
	if took, ok := attrs["took"]; ok {
		message = fmt.Sprintf("%s (took %s)", message, took)
	}

	var attrsStr string
	if len(extra) > 0 {
		attrsStr = " " + strings.Join(extra, " ")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintf(h.out, "%s[TOB] [%s] [%s%s%s] [%s%s%s] %s%s%s\n",
		colorWhite,
		r.Time.Format("15:04:05"),
		levelColor,
		levelText,
		colorWhite,
		colorCyan,
		logType(attrs),
		colorWhite,
		message,
		attrsStr,
		colorReset,
	)
	return err
}

func shouldSkipLog(r *slog.Record) bool {
	msg := strings.ToLower(r.Message)
	for _, skip := range skippedMessages {
		if strings.Contains(msg, skip) {
			return true
		}
	}
	return false
}

func logType(attrs map[string]slog.Value) LogType {
	switch stringAttr(attrs, "type") {
	case "cmd":
		return TypeCommand
	case "db":
		return TypeDB
	case "error":
		return TypeError
	case "economy":
		return TypeEconomy
	}
	return TypeSystem
}

func stringAttr(attrs map[string]slog.Value, key string) string {
	v, ok := attrs[key]
	if !ok {
		return ""
	}
	return v.String()
}

func sourceLocation() string {
	_, file, line, ok := runtime.Caller(4)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// Setup installs the handler as the slog default. Format "json" switches to
// the standard JSON handler for log shipping.
func Setup(level slog.Level, format string, addSource bool) {
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level, AddSource: addSource})
	default:
		handler = NewHandler(level)
	}
	slog.SetDefault(slog.New(handler))
}

func since(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
