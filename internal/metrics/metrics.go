package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerCredits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progression_ledger_credits_total",
		Help: "Total number of ledger entries written",
	}, []string{"currency", "category"})

	LedgerAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progression_ledger_amount_total",
		Help: "Sum of absolute amounts applied to balances",
	}, []string{"currency", "category"})

	ClampedDebits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progression_ledger_clamped_debits_total",
		Help: "Debits that were reduced to keep a balance at zero",
	}, []string{"currency"})

	QuotaGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progression_quota_granted_total",
		Help: "Exp granted through the daily quota",
	}, []string{"kind"})

	QuotaExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progression_quota_exhausted_total",
		Help: "Quota requests that granted nothing",
	}, []string{"kind"})

	MissionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progression_mission_outcomes_total",
		Help: "Mission reaction outcomes",
	}, []string{"status"})

	QuestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progression_quest_transitions_total",
		Help: "Quest record state transitions",
	}, []string{"transition"})

	Draws = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progression_draws_total",
		Help: "Draw outcomes by reward kind",
	}, []string{"kind"})

	RoleMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progression_role_mutations_total",
		Help: "Level role changes issued to Discord",
	}, []string{"op", "status"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progression_notifications_sent_total",
		Help: "Discord notifications sent",
	}, []string{"target", "status"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progression_job_runs_total",
		Help: "Background job executions",
	}, []string{"job", "status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "progression_job_duration_seconds",
		Help:    "Duration of background jobs",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "progression_command_duration_seconds",
		Help:    "Duration of slash command handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"command", "status"})
)
