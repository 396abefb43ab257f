// Copyright 2025 Certen Protocol
//
// Package metrics exposes the Calendar block engine's Prometheus metrics.
// The teacher declares github.com/prometheus/client_golang as a dependency
// but never wires a collector beyond a MetricsAddr config field; this
// wires it fully across every component that reports counts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BlocksAppended counts Block Store appends by type.
	BlocksAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calendar",
		Name:      "blocks_appended_total",
		Help:      "Blocks appended to the Block Store, by type.",
	}, []string{"type"})

	// AnchorsSubmitted counts btc-a blocks appended by the Anchor Engine.
	AnchorsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "calendar",
		Name:      "anchors_submitted_total",
		Help:      "btc-a blocks appended.",
	})

	// AnchorsConfirmed counts btc-c blocks appended by the Confirmer.
	AnchorsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "calendar",
		Name:      "anchors_confirmed_total",
		Help:      "btc-c blocks appended.",
	})

	// AuditRounds counts completed audit rounds.
	AuditRounds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "calendar",
		Name:      "audit_rounds_total",
		Help:      "Audit rounds executed by the elected leader.",
	})

	// AuditResults counts per-task audit results by overall pass/fail.
	AuditResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calendar",
		Name:      "audit_results_total",
		Help:      "Audit task results, by overall outcome.",
	}, []string{"outcome"})

	// RewardsPaid counts reward messages processed, by transfer outcome.
	RewardsPaid = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calendar",
		Name:      "rewards_paid_total",
		Help:      "Reward messages processed, by transfer outcome.",
	}, []string{"outcome"})

	// LockHeld reports whether this process currently holds a given named
	// lock/role (1) or not (0).
	LockHeld = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "calendar",
		Name:      "lock_held",
		Help:      "Whether this process currently holds the named lock/role.",
	}, []string{"key"})
)

// Handler returns the HTTP handler serving the Prometheus exposition
// format.
func Handler() http.Handler {
	return promhttp.Handler()
}
