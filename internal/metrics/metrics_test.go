package metrics_test

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/msomdec/modfusion-console/internal/domain"
	"github.com/msomdec/modfusion-console/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{domain.ErrInvalidCredentials, "invalid_credentials"},
		{fmt.Errorf("%w: expired", domain.ErrInvalidCode), "invalid_code"},
		{domain.ErrDuplicateEmail, "duplicate_email"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := metrics.Result(tt.err); got != tt.want {
			t.Errorf("Result(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestAuth_Counters(t *testing.T) {
	reg := metrics.NewRegistry()
	m := metrics.NewAuth(reg)

	m.ObserveLogin(nil)
	m.ObserveLogin(domain.ErrInvalidCredentials)
	m.ObserveLogin(domain.ErrInvalidCredentials)
	m.ObserveSession(domain.SessionEvent{User: &domain.User{ID: "u1"}})
	m.ObserveSession(domain.SessionEvent{})
	m.ObserveDeletion()

	if got := testutil.ToFloat64(m.Logins.WithLabelValues("invalid_credentials")); got != 2 {
		t.Fatalf("expected 2 failed logins, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionChanges.WithLabelValues("clear")); got != 1 {
		t.Fatalf("expected 1 session clear, got %v", got)
	}
	if got := testutil.ToFloat64(m.Deletions); got != 1 {
		t.Fatalf("expected 1 deletion, got %v", got)
	}
}

func TestAuth_NilIsNoop(t *testing.T) {
	var m *metrics.Auth
	m.ObserveLogin(nil)
	m.ObserveVerification(nil)
	m.ObserveRegistration(nil)
	m.ObserveDeletion()
	m.ObserveSession(domain.SessionEvent{})
	m.ObserveRateLimited()
}

func TestHandler(t *testing.T) {
	reg := metrics.NewRegistry()
	m := metrics.NewAuth(reg)
	m.ObserveRegistration(nil)

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `modfusion_registrations_total{result="success"} 1`) {
		t.Fatalf("registration counter missing from output:\n%s", body)
	}
}
