// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import "github.com/prometheus/client_golang/prometheus"

// Login results recorded by Metrics.
const (
	LoginSuccess = "success"
	LoginInvalid = "invalid_credentials"
	LoginLocked  = "locked"
	LoginError   = "error"
)

// Metrics holds the auth counters.
type Metrics struct {
	LoginsTotal        *prometheus.CounterVec
	RegistrationsTotal prometheus.Counter
	GateRejections     prometheus.Counter
}

// NewMetrics creates and registers the auth counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskforge_auth_logins_total",
				Help: "Total number of login attempts by result",
			},
			[]string{"result"},
		),
		RegistrationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskforge_auth_registrations_total",
			Help: "Total number of successful registrations",
		}),
		GateRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskforge_auth_gate_rejections_total",
			Help: "Total number of requests rejected by the auth gate",
		}),
	}

	reg.MustRegister(m.LoginsTotal)
	reg.MustRegister(m.RegistrationsTotal)
	reg.MustRegister(m.GateRejections)

	return m
}

func (m *Metrics) login(result string) {
	if m != nil {
		m.LoginsTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) registered() {
	if m != nil {
		m.RegistrationsTotal.Inc()
	}
}

func (m *Metrics) rejected() {
	if m != nil {
		m.GateRejections.Inc()
	}
}
