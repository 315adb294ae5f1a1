// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-certcache.
//
// go-certcache is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for certificate
// container imports. It counts imports per storage policy and outcome,
// fallbacks from the ephemeral to the machine policy, failures per error
// kind, and the number of live cached handles.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all certcache metrics
	Namespace = "certcache"

	// Label names
	LabelPolicy = "policy"
	LabelStatus = "status"
	LabelKind   = "kind"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// ImportsTotal tracks completed container loads by the policy that
	// produced the final result and its status.
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "imports_total",
			Help:      "Total number of container imports by storage policy and status",
		},
		[]string{LabelPolicy, LabelStatus},
	)

	// ImportDuration tracks the wall time of a container load, including a
	// fallback attempt.
	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "import_duration_seconds",
			Help:      "Duration of container imports in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{LabelPolicy},
	)

	// FallbacksTotal counts loads that were retried under the machine policy
	// because the ephemeral policy was rejected.
	FallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fallbacks_total",
			Help:      "Total number of imports that fell back to the machine storage policy",
		},
	)

	// ImportErrorsTotal counts failed loads by error kind.
	ImportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "import_errors_total",
			Help:      "Total number of failed container imports by error kind",
		},
		[]string{LabelKind},
	)

	// HandlesActive tracks the number of open cached handles.
	HandlesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "handles_active",
			Help:      "Number of open cached certificate handles",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordImport records a successful load under policy. fallback reports
// whether the ephemeral attempt was rejected first.
func RecordImport(policy string, fallback bool, duration time.Duration) {
	if !enabled.Load() {
		return
	}
	ImportsTotal.WithLabelValues(policy, StatusSuccess).Inc()
	ImportDuration.WithLabelValues(policy).Observe(duration.Seconds())
	if fallback {
		FallbacksTotal.Inc()
	}
}

// RecordImportError records a failed load. kind is the error kind name,
// e.g. "import failed".
func RecordImportError(policy, kind string, duration time.Duration) {
	if !enabled.Load() {
		return
	}
	ImportsTotal.WithLabelValues(policy, StatusError).Inc()
	ImportDuration.WithLabelValues(policy).Observe(duration.Seconds())
	ImportErrorsTotal.WithLabelValues(kind).Inc()
}

// HandleOpened increments the live handle gauge.
func HandleOpened() {
	if !enabled.Load() {
		return
	}
	HandlesActive.Inc()
}

// HandleClosed decrements the live handle gauge.
func HandleClosed() {
	if !enabled.Load() {
		return
	}
	HandlesActive.Dec()
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
