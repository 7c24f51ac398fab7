package utils

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackgroundProcessManager_Shutdown(t *testing.T) {
	m := NewBackgroundProcessManager()

	var stopped atomic.Bool
	m.StartProcess("wait", "waits for cancellation", func(ctx context.Context) {
		<-ctx.Done()
		stopped.Store(true)
	})
	assert.Equal(t, 1, m.ProcessCount())

	require.NoError(t, m.Shutdown(time.Second))
	assert.True(t, stopped.Load())
	assert.Error(t, m.Context().Err())
}

func TestBackgroundProcessManager_ReplaceAndFinish(t *testing.T) {
	m := NewBackgroundProcessManager()
	defer m.Shutdown(time.Second)

	first := make(chan struct{})
	m.StartProcess("job", "first", func(ctx context.Context) {
		<-ctx.Done()
		close(first)
	})
	m.StartProcess("job", "second", func(ctx context.Context) {})

	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("replaced process was not cancelled")
	}
	assert.Eventually(t, func() bool { return m.ProcessCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBackgroundProcessManager_Every(t *testing.T) {
	m := NewBackgroundProcessManager()

	var runs atomic.Int32
	m.Every("tick", "counts ticks", 5*time.Millisecond, true, func(context.Context) {
		runs.Add(1)
	})

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Shutdown(time.Second))
}

func TestBackgroundProcessManager_RecoversPanic(t *testing.T) {
	m := NewBackgroundProcessManager()
	m.StartProcess("panics", "panics", func(context.Context) { panic("boom") })

	assert.Eventually(t, func() bool { return m.ProcessCount() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Shutdown(time.Second))
}
