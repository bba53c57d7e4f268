// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Auth request outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Metrics holds the passgate collectors.
type Metrics struct {
	AuthRequests *prometheus.CounterVec
	OTPSwept     prometheus.Counter
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates the passgate collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "passgate_auth_requests_total",
				Help: "Auth operations by operation and outcome (success, failure, error).",
			},
			[]string{"operation", "outcome"},
		),
		OTPSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "passgate_otp_swept_total",
			Help: "Expired reset codes removed by the sweeper.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "passgate_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status code.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
	}
	reg.MustRegister(m.AuthRequests, m.OTPSwept, m.HTTPDuration)
	return m
}

// RecordAuth counts one auth operation.
func (m *Metrics) RecordAuth(operation, outcome string) {
	m.AuthRequests.WithLabelValues(operation, outcome).Inc()
}

// RecordSwept adds n swept reset codes.
func (m *Metrics) RecordSwept(n int64) {
	if n > 0 {
		m.OTPSwept.Add(float64(n))
	}
}

// ObserveHTTP records the latency of one request.
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
