package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/msomdec/modfusion-console/internal/domain"
	"github.com/msomdec/modfusion-console/internal/service"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	auth         *service.AuthController
	tokens       *service.TokenService
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthController, tokens *service.TokenService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, tokens: tokens, cookieSecure: cookieSecure}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *loginRequest) normalize() {
	r.Email = domain.NormalizeEmail(r.Email)
}

type verifyRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type registerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	FirstName       string `json:"firstName" validate:"required,max=100"`
	LastName        string `json:"lastName" validate:"required,max=100"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	AdminCode       string `json:"adminCode"`
}

func (r *registerRequest) normalize() {
	r.Email = domain.NormalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

func (r *verifyRequest) normalize() {
	r.Code = strings.TrimSpace(r.Code)
}

// HandleLogin checks the password and sends a verification code.
// POST /api/auth/login
// Request:  {"email":"...","password":"..."}
// Response: {"success":true,"pendingVerification":true,"email":"...","expiresAt":"..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	challenge, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, "login user", err)
		return
	}

	writeOK(w, http.StatusOK, map[string]any{
		"pendingVerification": true,
		"email":               challenge.Email,
		"expiresAt":           challenge.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// HandleVerify completes a pending login and sets the auth cookie.
// POST /api/auth/verify
// Request:  {"code":"123456"}
// Response: {"success":true,"user":{...}}
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.auth.VerifyCode(r.Context(), req.Code)
	if err != nil {
		writeServiceError(w, "verify code", err)
		return
	}

	if !h.issueCookie(w, user) {
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"user": toUserDTO(user)})
}

// HandleRegister creates an account. It signs the user in directly or, when
// registration requires verification, answers 202 and waits for the code.
// POST /api/auth/register
// Request:  {"email":"...","firstName":"...","lastName":"...","password":"...","confirmPassword":"...","adminCode":"..."}
// Response: {"success":true,"user":{...},"pendingVerification":bool}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	reg, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		AdminCode:       req.AdminCode,
	})
	if err != nil {
		writeServiceError(w, "register user", err)
		return
	}

	if reg.PendingVerification {
		writeOK(w, http.StatusAccepted, map[string]any{
			"user":                toUserDTO(reg.User),
			"pendingVerification": true,
			"expiresAt":           reg.ExpiresAt.UTC().Format(time.RFC3339),
		})
		return
	}

	if !h.issueCookie(w, reg.User) {
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{
		"user":                toUserDTO(reg.User),
		"pendingVerification": false,
	})
}

// HandleLogout clears the auth cookie. The session itself ends only when the
// cookie names the signed-in user, so a stranger cannot sign the operator
// out. Logging out without a session succeeds.
// POST /api/auth/logout
// Response: {"success":true}
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if _, err := authenticateRequest(r, h.tokens, h.auth); err == nil {
		if err := h.auth.Logout(r.Context()); err != nil {
			writeServiceError(w, "logout user", err)
			return
		}
	}
	clearAuthCookie(w, h.cookieSecure)
	writeOK(w, http.StatusOK, nil)
}

// HandleMe returns the currently authenticated user.
// GET /api/auth/me
// Response: {"success":true,"user":{...}} or 401
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	writeOK(w, http.StatusOK, map[string]any{"user": toUserDTO(user)})
}

// HandleState reports the sign-in flow state without requiring a cookie.
// The pending email is masked.
// GET /api/auth/state
// Response: {"success":true,"state":"...","pendingEmail":"j***@example.com"}
func (h *AuthHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, map[string]any{
		"state":        h.auth.State().String(),
		"pendingEmail": maskEmail(h.auth.PendingEmail()),
	})
}

// maskEmail keeps the first character of the local part and the domain.
func maskEmail(email string) string {
	local, domainPart, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return ""
	}
	return string([]rune(local)[:1]) + "***@" + domainPart
}

func (h *AuthHandler) issueCookie(w http.ResponseWriter, user *domain.User) bool {
	token, err := h.tokens.Issue(user)
	if err != nil {
		slog.Error("issue session token", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return false
	}
	setAuthCookie(w, token, int(h.tokens.TTL().Seconds()), h.cookieSecure)
	return true
}
