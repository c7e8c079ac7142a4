package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates Prometheus instrumentation for the API. A nil
// receiver is a no-op so tests can skip wiring it.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	registrations prometheus.Counter
	loginAttempts prometheus.Counter
	loginFailures prometheus.Counter
	lockouts      prometheus.Counter
	verifications prometheus.Counter
	emailsSent    *prometheus.CounterVec
	dishOps       *prometheus.CounterVec
}

// NewMetrics registers the Prometheus collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	registrations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_registrations_total",
		Help: "Total accounts registered",
	})

	loginAttempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_login_attempts_total",
		Help: "Total login attempts",
	})

	loginFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_login_failures_total",
		Help: "Total failed login attempts",
	})

	lockouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_lockouts_total",
		Help: "Total account lockouts applied",
	})

	verifications := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_email_verifications_total",
		Help: "Total successful email verifications",
	})

	emailsSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Total verification emails by outcome",
	}, []string{"outcome"})

	dishOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "menu_operations_total",
		Help: "Total menu mutations by entity and operation",
	}, []string{"entity", "operation"})

	registry.MustRegister(requestDuration, requestTotal, registrations, loginAttempts, loginFailures, lockouts, verifications, emailsSent, dishOps)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		registrations:   registrations,
		loginAttempts:   loginAttempts,
		loginFailures:   loginFailures,
		lockouts:        lockouts,
		verifications:   verifications,
		emailsSent:      emailsSent,
		dishOps:         dishOps,
	}
}

// Handler exposes the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return m.handler
}

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, status).Inc()
}

// RegistrationsInc counts a completed registration.
func (m *Metrics) RegistrationsInc() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

// LoginAttemptsInc counts a login attempt.
func (m *Metrics) LoginAttemptsInc() {
	if m == nil {
		return
	}
	m.loginAttempts.Inc()
}

// LoginFailuresInc counts a rejected login.
func (m *Metrics) LoginFailuresInc() {
	if m == nil {
		return
	}
	m.loginFailures.Inc()
}

// LockoutsInc counts a lockout being applied.
func (m *Metrics) LockoutsInc() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

// VerificationsInc counts a successful email verification.
func (m *Metrics) VerificationsInc() {
	if m == nil {
		return
	}
	m.verifications.Inc()
}

// EmailSent counts a verification email delivery attempt by outcome.
func (m *Metrics) EmailSent(outcome string) {
	if m == nil {
		return
	}
	m.emailsSent.WithLabelValues(outcome).Inc()
}

// MenuOpInc counts a menu mutation.
func (m *Metrics) MenuOpInc(entity, operation string) {
	if m == nil {
		return
	}
	m.dishOps.WithLabelValues(entity, operation).Inc()
}
