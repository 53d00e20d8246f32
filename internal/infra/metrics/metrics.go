// Package metrics provides Prometheus metrics for Astra.
// Counters, gauges, and histograms for XP awards, chat traffic, the mentor
// completion service, and health checks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Gamification ───────────────────────────────────────────────────────────

// XPAwarded tracks XP granted, labelled by affected skill ("none" if absent).
var XPAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "astra",
	Name:      "xp_awarded_total",
	Help:      "Total XP granted to children.",
}, []string{"skill"})

// LevelUps tracks level transitions.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "astra",
	Name:      "level_ups_total",
	Help:      "Total level-ups across all children.",
})

// BadgesEarned tracks badge unlocks by badge id.
var BadgesEarned = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "astra",
	Name:      "badges_earned_total",
	Help:      "Total badges earned.",
}, []string{"badge"})

// AwardDuration tracks the full award read-modify-write time.
var AwardDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "astra",
	Name:      "award_duration_seconds",
	Help:      "Duration of a single XP award including storage.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
})

// AwardFailures tracks failed awards by reason.
var AwardFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "astra",
	Name:      "award_failures_total",
	Help:      "Total failed XP awards.",
}, []string{"reason"})

// ─── Chat ───────────────────────────────────────────────────────────────────

// ChatMessages tracks inbound chat messages by kind (question, chat, no_user_turn, unconfigured).
var ChatMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "astra",
	Name:      "chat_messages_total",
	Help:      "Total chat messages handled.",
}, []string{"kind"})

// MentorLatency tracks completion round-trip time.
var MentorLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "astra",
	Name:      "mentor_latency_seconds",
	Help:      "Mentor completion round-trip latency.",
	Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
})

// MentorFallbacks tracks replies served from the fallback set.
var MentorFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "astra",
	Name:      "mentor_fallbacks_total",
	Help:      "Total fallback replies served instead of a completion.",
}, []string{"reason"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "astra",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "astra",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
