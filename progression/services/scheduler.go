package services

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/disgoorg/progression-bot/internal/domain/activity"
	"github.com/disgoorg/progression-bot/internal/domain/period"
	"github.com/disgoorg/progression-bot/internal/domain/quota"
	"github.com/disgoorg/progression-bot/internal/metrics"
	"github.com/disgoorg/progression-bot/progression/logger"
	"github.com/disgoorg/progression-bot/progression/utils"
)

const (
	JobDailyReset    = "daily-reset"
	JobVoiceScan     = "voice-scan"
	JobLedgerArchive = "ledger-archive"

	archiveAt = "00:10"
)

type Resetter interface {
	ResetAll(ctx context.Context) (quota.ResetSummary, error)
}

type VoiceCrediter interface {
	CreditVoice(ctx context.Context, e activity.Event) (activity.Result, error)
}

type VoiceSource interface {
	Eligible() []activity.Event
}

type ScheduleOptions struct {
	ResetAt       string
	VoiceInterval time.Duration
	Concurrency   int64
}

// Scheduler registers the recurring economy jobs with the process manager.
type Scheduler struct {
	pm      *utils.BackgroundProcessManager
	clock   period.Clock
	opts    ScheduleOptions
	quota   Resetter
	voice   VoiceCrediter
	tracker VoiceSource
	archive *LedgerArchive
}

func NewScheduler(pm *utils.BackgroundProcessManager, clock period.Clock, opts ScheduleOptions, resetter Resetter, voice VoiceCrediter, tracker VoiceSource, archive *LedgerArchive) *Scheduler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Scheduler{
		pm:      pm,
		clock:   clock,
		opts:    opts,
		quota:   resetter,
		voice:   voice,
		tracker: tracker,
		archive: archive,
	}
}

// Start schedules every job. The archive job only runs when an archive is
// configured.
func (s *Scheduler) Start() {
	s.pm.At(JobDailyReset, "resets daily quotas", func(now time.Time) (time.Time, error) {
		return s.clock.NextAt(now, s.opts.ResetAt)
	}, func(ctx context.Context) {
		s.run(ctx, JobDailyReset, s.DailyReset)
	})

	s.pm.Every(JobVoiceScan, "credits voice presence", s.opts.VoiceInterval, false, func(ctx context.Context) {
		s.run(ctx, JobVoiceScan, s.VoiceScan)
	})

	if s.archive != nil {
		s.pm.At(JobLedgerArchive, "archives last month's ledger", s.nextMonthStart, func(ctx context.Context) {
			s.run(ctx, JobLedgerArchive, s.ArchivePreviousMonth)
		})
	}
}

func (s *Scheduler) nextMonthStart(now time.Time) (time.Time, error) {
	next, err := s.clock.NextAt(now, archiveAt)
	if err != nil {
		return time.Time{}, err
	}
	for next.In(s.clock.Location).Day() != 1 {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

func (s *Scheduler) run(ctx context.Context, name string, job func(context.Context) error) {
	start := time.Now()
	err := job(ctx)
	metrics.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "failed"
		slog.Error("Background job failed",
			slog.String("type", "error"),
			slog.String("job", name),
			slog.Duration("took", time.Since(start)),
			slog.Any("error", err))
	}
	metrics.JobRuns.WithLabelValues(name, status).Inc()
}

func (s *Scheduler) DailyReset(ctx context.Context) error {
	summary, err := s.quota.ResetAll(ctx)
	logger.LogEconomy("Daily quotas reset",
		slog.Int("players", summary.Total),
		slog.Int("failed", summary.Failed),
		slog.Int64("earned", summary.Earned))
	return err
}

// VoiceScan credits one tick to every eligible voice member. Failures are
// logged per member and do not stop the scan.
func (s *Scheduler) VoiceScan(ctx context.Context) error {
	events := s.tracker.Eligible()
	if len(events) == 0 {
		return nil
	}

	var credited, failed atomic.Int64
	sem := semaphore.NewWeighted(s.opts.Concurrency)
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range events {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			res, err := s.voice.CreditVoice(gctx, e)
			if err != nil {
				failed.Add(1)
				logger.LogEconomyWarn("Voice credit failed",
					slog.String("guild_id", e.GuildID),
					slog.String("user_id", e.Member.UserID),
					slog.Any("error", err))
				return nil
			}
			if res.Granted > 0 {
				credited.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.LogEconomyDebug("Voice scan finished",
		slog.Int("members", len(events)),
		slog.Int64("credited", credited.Load()),
		slog.Int64("failed", failed.Load()))
	return ctx.Err()
}

func (s *Scheduler) ArchivePreviousMonth(ctx context.Context) error {
	from, to := s.clock.PreviousMonth(s.clock.Now())
	_, _, err := s.archive.Archive(ctx, "", from, to)
	return err
}
