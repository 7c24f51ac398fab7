package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disgoorg/progression-bot/internal/domain/activity"
	"github.com/disgoorg/progression-bot/internal/domain/period"
	"github.com/disgoorg/progression-bot/internal/domain/players"
	"github.com/disgoorg/progression-bot/internal/domain/quota"
	"github.com/disgoorg/progression-bot/progression/utils"
)

type staticVoice []activity.Event

func (s staticVoice) Eligible() []activity.Event { return s }

type recordingCrediter struct {
	mu    sync.Mutex
	users []string
	fail  string
}

func (r *recordingCrediter) CreditVoice(_ context.Context, e activity.Event) (activity.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, e.Member.UserID)
	if e.Member.UserID == r.fail {
		return activity.Result{}, errors.New("database is gone")
	}
	return activity.Result{Granted: 10}, nil
}

type countingResetter struct{ calls int }

func (c *countingResetter) ResetAll(context.Context) (quota.ResetSummary, error) {
	c.calls++
	return quota.ResetSummary{Total: 3, Earned: 120}, nil
}

func newScheduler(t *testing.T, resetter Resetter, crediter VoiceCrediter, tracker VoiceSource) *Scheduler {
	t.Helper()
	pm := utils.NewBackgroundProcessManager()
	t.Cleanup(func() { _ = pm.Shutdown(time.Second) })
	return NewScheduler(pm, period.NewClock(time.UTC), ScheduleOptions{ResetAt: "23:55", VoiceInterval: time.Minute, Concurrency: 2}, resetter, crediter, tracker, nil)
}

func TestScheduler_VoiceScan(t *testing.T) {
	events := staticVoice{
		{GuildID: "g1", Member: players.Member{UserID: "u1"}},
		{GuildID: "g1", Member: players.Member{UserID: "u2"}},
		{GuildID: "g2", Member: players.Member{UserID: "u3"}},
	}
	crediter := &recordingCrediter{fail: "u2"}
	s := newScheduler(t, &countingResetter{}, crediter, events)

	require.NoError(t, s.VoiceScan(context.Background()))
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, crediter.users)
}

func TestScheduler_DailyReset(t *testing.T) {
	resetter := &countingResetter{}
	s := newScheduler(t, resetter, &recordingCrediter{}, staticVoice{})

	require.NoError(t, s.DailyReset(context.Background()))
	assert.Equal(t, 1, resetter.calls)
}

func TestScheduler_NextMonthStart(t *testing.T) {
	s := newScheduler(t, &countingResetter{}, &recordingCrediter{}, staticVoice{})

	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 10, 0, 0, time.UTC)},
		{time.Date(2024, 4, 1, 0, 5, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 10, 0, 0, time.UTC)},
		{time.Date(2024, 4, 1, 0, 10, 0, 0, time.UTC), time.Date(2024, 5, 1, 0, 10, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := s.nextMonthStart(tt.now)
		require.NoError(t, err)
		assert.True(t, tt.want.Equal(got), "now %s: got %s want %s", tt.now, got, tt.want)
	}
}
