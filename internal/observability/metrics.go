// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/authcore/authcore/internal/auth"
)

// AuthMetrics holds the authcore counters. It implements auth.MetricsRecorder.
type AuthMetrics struct {
	AuthAttempts      *prometheus.CounterVec
	SessionsIssued    prometheus.Counter
	SessionsDestroyed prometheus.Counter
	SessionChecks     *prometheus.CounterVec
	PasswordChanges   *prometheus.CounterVec
	SessionsSwept     prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
}

// NewAuthMetrics creates the counters and registers them with reg.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	m := &AuthMetrics{
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_auth_attempts_total",
				Help: "Credential checks by result",
			},
			[]string{"result"},
		),
		SessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_sessions_issued_total",
			Help: "Sessions created after successful authentication",
		}),
		SessionsDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_sessions_destroyed_total",
			Help: "Sessions removed by logout",
		}),
		SessionChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_session_checks_total",
				Help: "Session validations by result",
			},
			[]string{"result"},
		),
		PasswordChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_password_changes_total",
				Help: "Password change attempts by result",
			},
			[]string{"result"},
		),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_sessions_swept_total",
			Help: "Expired sessions removed by the sweeper",
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_http_requests_total",
				Help: "Web requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	reg.MustRegister(
		m.AuthAttempts,
		m.SessionsIssued,
		m.SessionsDestroyed,
		m.SessionChecks,
		m.PasswordChanges,
		m.SessionsSwept,
		m.HTTPRequests,
	)
	return m
}

// AuthAttempt implements auth.MetricsRecorder.
func (m *AuthMetrics) AuthAttempt(result string) { m.AuthAttempts.WithLabelValues(result).Inc() }

// SessionIssued implements auth.MetricsRecorder.
func (m *AuthMetrics) SessionIssued() { m.SessionsIssued.Inc() }

// SessionDestroyed implements auth.MetricsRecorder.
func (m *AuthMetrics) SessionDestroyed() { m.SessionsDestroyed.Inc() }

// SessionCheck implements auth.MetricsRecorder.
func (m *AuthMetrics) SessionCheck(result string) { m.SessionChecks.WithLabelValues(result).Inc() }

// PasswordChange implements auth.MetricsRecorder.
func (m *AuthMetrics) PasswordChange(result string) { m.PasswordChanges.WithLabelValues(result).Inc() }

// SessionsSweptAdd counts sessions removed in one sweep.
func (m *AuthMetrics) SessionsSweptAdd(n int64) {
	if n > 0 {
		m.SessionsSwept.Add(float64(n))
	}
}

// HTTPRequest counts one handled web request.
func (m *AuthMetrics) HTTPRequest(route, code string) {
	m.HTTPRequests.WithLabelValues(route, code).Inc()
}

var _ auth.MetricsRecorder = (*AuthMetrics)(nil)
