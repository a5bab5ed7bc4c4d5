package handler

import (
	"net/http"

	"github.com/msomdec/modfusion-console/internal/metrics"
	"github.com/msomdec/modfusion-console/internal/service"
)

// Services bundles what the HTTP layer depends on.
type Services struct {
	Auth    *service.AuthController
	Store   *service.IdentityStore
	Tokens  *service.TokenService
	Avatars *service.AvatarService
	Limiter *service.RateLimiter
	Metrics *metrics.Auth
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// ReadyChecks back /readyz.
	ReadyChecks  map[string]CheckFunc
	CookieSecure bool
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, s Services) {
	authH := NewAuthHandler(s.Auth, s.Tokens, s.CookieSecure)
	profileH := NewProfileHandler(s.Auth, s.Store, s.Avatars, s.CookieSecure)
	adminH := NewAdminHandler(s.Store, s.Avatars)
	eventsH := NewEventsHandler(s.Store)
	readyH := NewReadyHandler(s.ReadyChecks)

	limited := func(h http.HandlerFunc) http.Handler {
		return RateLimit(s.Limiter, s.Metrics, h)
	}
	authed := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(s.Tokens, s.Auth, h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(s.Tokens, s.Auth, RequireAdmin(h))
	}

	mux.HandleFunc("GET /healthz", HandleHealthz)
	mux.HandleFunc("GET /readyz", readyH.HandleReadyz)
	if s.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.MetricsHandler)
	}
	mux.Handle("GET /", OptionalAuth(s.Tokens, s.Auth, http.HandlerFunc(HandleHome)))

	// Auth flow.
	mux.Handle("POST /api/auth/login", limited(authH.HandleLogin))
	mux.Handle("POST /api/auth/verify", limited(authH.HandleVerify))
	mux.Handle("POST /api/auth/register", limited(authH.HandleRegister))
	mux.HandleFunc("POST /api/auth/logout", authH.HandleLogout)
	mux.HandleFunc("GET /api/auth/state", authH.HandleState)
	mux.Handle("GET /api/auth/me", authed(authH.HandleMe))

	// Own profile.
	mux.Handle("PATCH /api/profile", authed(profileH.HandleUpdate))
	mux.Handle("DELETE /api/profile", authed(profileH.HandleDelete))
	mux.Handle("POST /api/profile/promote", authed(profileH.HandlePromote))
	mux.Handle("PUT /api/profile/avatar", authed(profileH.HandleUploadAvatar))
	mux.Handle("GET /api/users/{id}/avatar", authed(profileH.HandleGetAvatar))

	// Live session changes.
	mux.Handle("GET /api/session/events", authed(eventsH.HandleSessionEvents))

	// Admin console.
	mux.Handle("GET /api/users", admin(adminH.HandleListUsers))
	mux.Handle("DELETE /api/users", admin(adminH.HandleReset))
	mux.Handle("POST /api/users/{id}/promote", admin(adminH.HandlePromote))
	mux.Handle("POST /api/users/{id}/demote", admin(adminH.HandleDemote))
	mux.Handle("DELETE /api/users/{id}", admin(adminH.HandleDeleteUser))
	mux.Handle("GET /api/logs/login", admin(adminH.HandleLoginLog))
	mux.Handle("GET /api/logs/deletion", admin(adminH.HandleDeletionLog))
}
