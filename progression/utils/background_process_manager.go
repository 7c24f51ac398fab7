package utils

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BackgroundProcessManager owns the long running jobs of the bot. Every job
// runs under a child of the manager context and is awaited on Shutdown.
type BackgroundProcessManager struct {
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	processes map[string]*process
}

type process struct {
	description string
	started     time.Time
	cancel      context.CancelFunc
}

func NewBackgroundProcessManager() *BackgroundProcessManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &BackgroundProcessManager{
		ctx:       ctx,
		cancel:    cancel,
		processes: make(map[string]*process),
	}
}

// Context is cancelled when the manager shuts down.
func (m *BackgroundProcessManager) Context() context.Context {
	return m.ctx
}

// StartProcess runs fn in its own goroutine. A process already registered
// under name is stopped first.
func (m *BackgroundProcessManager) StartProcess(name, description string, fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.processes[name]; ok {
		slog.Warn("Process already running, replacing it",
			slog.String("type", "sys"),
			slog.String("process", name))
		m.stopLocked(name)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	p := &process{description: description, started: time.Now(), cancel: cancel}
	m.processes[name] = p

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Background process panic",
					slog.String("type", "error"),
					slog.String("process", name),
					slog.Any("panic", r))
			}
			m.mu.Lock()
			if m.processes[name] == p {
				delete(m.processes, name)
			}
			m.mu.Unlock()
			cancel()
		}()

		slog.Info("Starting background process",
			slog.String("type", "sys"),
			slog.String("process", name),
			slog.String("description", description))

		fn(ctx)

		slog.Info("Background process ended",
			slog.String("type", "sys"),
			slog.String("process", name))
	}()
}

// Every runs fn each interval until the process is stopped. When immediate is
// set fn also runs once right away.
func (m *BackgroundProcessManager) Every(name, description string, interval time.Duration, immediate bool, fn func(ctx context.Context)) {
	m.StartProcess(name, description, func(ctx context.Context) {
		if immediate {
			fn(ctx)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	})
}

// At runs fn every time next reports a new wake-up time.
func (m *BackgroundProcessManager) At(name, description string, next func(now time.Time) (time.Time, error), fn func(ctx context.Context)) {
	m.StartProcess(name, description, func(ctx context.Context) {
		for {
			wake, err := next(time.Now())
			if err != nil {
				slog.Error("Cannot schedule background process",
					slog.String("type", "error"),
					slog.String("process", name),
					slog.Any("error", err))
				return
			}
			timer := time.NewTimer(time.Until(wake))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				fn(ctx)
			}
		}
	})
}

func (m *BackgroundProcessManager) StopProcess(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(name)
}

func (m *BackgroundProcessManager) stopLocked(name string) {
	if p, ok := m.processes[name]; ok {
		p.cancel()
		delete(m.processes, name)
		slog.Info("Stopped background process",
			slog.String("type", "sys"),
			slog.String("process", name))
	}
}

// Shutdown cancels every process and waits up to timeout for them to return.
func (m *BackgroundProcessManager) Shutdown(timeout time.Duration) error {
	slog.Info("Shutting down background processes",
		slog.String("type", "sys"),
		slog.Int("process_count", m.ProcessCount()))

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("All background processes stopped", slog.String("type", "sys"))
		return nil
	case <-time.After(timeout):
		slog.Warn("Timeout waiting for background processes to stop",
			slog.String("type", "sys"),
			slog.Duration("timeout", timeout))
		return context.DeadlineExceeded
	}
}

func (m *BackgroundProcessManager) ProcessCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.processes)
}
