// Package metrics exposes Prometheus counters for the auth flows.
package metrics

import (
	"errors"
	"net/http"

	"github.com/msomdec/modfusion-console/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "modfusion"

// Auth holds the auth-flow counters. A nil *Auth records nothing.
type Auth struct {
	Logins         *prometheus.CounterVec
	Verifications  *prometheus.CounterVec
	Registrations  *prometheus.CounterVec
	Deletions      prometheus.Counter
	SessionChanges *prometheus.CounterVec
	RateLimited    prometheus.Counter
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewAuth creates the auth counters and registers them with reg.
func NewAuth(reg prometheus.Registerer) *Auth {
	a := &Auth{
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Password login attempts by result.",
		}, []string{"result"}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_verifications_total",
			Help:      "Verification code submissions by result.",
		}, []string{"result"}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration attempts by result.",
		}, []string{"result"}),
		Deletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_deletions_total",
			Help:      "Accounts deleted.",
		}),
		SessionChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_changes_total",
			Help:      "Session slot writes by kind.",
		}, []string{"kind"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Auth requests rejected by the rate limiter.",
		}),
	}
	reg.MustRegister(a.Logins, a.Verifications, a.Registrations, a.Deletions, a.SessionChanges, a.RateLimited)
	return a
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Result maps an operation error onto a bounded label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, domain.ErrNoPendingLogin):
		return "no_pending_login"
	case errors.Is(err, domain.ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, domain.ErrPasswordMismatch):
		return "password_mismatch"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}

func (a *Auth) ObserveLogin(err error) {
	if a != nil {
		a.Logins.WithLabelValues(Result(err)).Inc()
	}
}

func (a *Auth) ObserveVerification(err error) {
	if a != nil {
		a.Verifications.WithLabelValues(Result(err)).Inc()
	}
}

func (a *Auth) ObserveRegistration(err error) {
	if a != nil {
		a.Registrations.WithLabelValues(Result(err)).Inc()
	}
}

func (a *Auth) ObserveDeletion() {
	if a != nil {
		a.Deletions.Inc()
	}
}

// ObserveSession counts a session slot change; a nil user is a logout.
func (a *Auth) ObserveSession(ev domain.SessionEvent) {
	if a == nil {
		return
	}
	kind := "set"
	if ev.User == nil {
		kind = "clear"
	}
	a.SessionChanges.WithLabelValues(kind).Inc()
}

func (a *Auth) ObserveRateLimited() {
	if a != nil {
		a.RateLimited.Inc()
	}
}
