// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package verifier

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records verification outcomes.
type Metrics struct {
	requests *prometheus.CounterVec
	duration prometheus.Histogram
	swept    prometheus.Counter
}

// NewMetrics creates the verifier metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apbridge",
			Subsystem: "verifier",
			Name:      "requests_total",
			Help:      "Signed requests processed, by outcome code",
		}, []string{"code", "chain"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "apbridge",
			Subsystem: "verifier",
			Name:      "verify_duration_seconds",
			Help:      "Time spent verifying one request",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apbridge",
			Subsystem: "verifier",
			Name:      "nonces_swept_total",
			Help:      "Expired nonce ledger entries removed",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.swept)
	}
	return m
}

func (m *Metrics) observe(code Code, chain string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(code), chain).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) addSwept(n int) {
	if m == nil || n == 0 {
		return
	}
	m.swept.Add(float64(n))
}
