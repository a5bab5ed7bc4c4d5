package handler

import (
	"net/http"
	"strconv"

	"github.com/msomdec/modfusion-console/internal/service"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// AdminHandler serves the admin console. Every route is behind RequireAdmin.
type AdminHandler struct {
	store   *service.IdentityStore
	avatars *service.AvatarService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(store *service.IdentityStore, avatars *service.AvatarService) *AdminHandler {
	return &AdminHandler{store: store, avatars: avatars}
}

// HandleListUsers returns every user in registration order.
// GET /api/users
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, "list users", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"users": toUserDTOs(users)})
}

// HandlePromote grants the admin role.
// POST /api/users/{id}/promote
func (h *AdminHandler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.PromoteByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "promote user", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"user": toUserDTO(user)})
}

// HandleDemote revokes the admin role.
// POST /api/users/{id}/demote
func (h *AdminHandler) HandleDemote(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.Demote(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "demote user", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"user": toUserDTO(user)})
}

// HandleDeleteUser removes an account.
// DELETE /api/users/{id}
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.DeleteUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "delete user", err)
		return
	}
	h.avatars.Discard(r.Context(), deleted.Avatar)
	writeOK(w, http.StatusOK, nil)
}

// HandleReset deletes every user and ends the session. Activity logs are
// kept.
// DELETE /api/users
func (h *AdminHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(r.Context()); err != nil {
		writeServiceError(w, "reset users", err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// HandleLoginLog returns recent logins, newest first.
// GET /api/logs/login?limit=50
func (h *AdminHandler) HandleLoginLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.LoginLog(r.Context(), logLimit(r))
	if err != nil {
		writeServiceError(w, "list login log", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"entries": toActivityDTOs(entries)})
}

// HandleDeletionLog returns recent account deletions, newest first.
// GET /api/logs/deletion?limit=50
func (h *AdminHandler) HandleDeletionLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.DeletionLog(r.Context(), logLimit(r))
	if err != nil {
		writeServiceError(w, "list deletion log", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"entries": toActivityDTOs(entries)})
}

func logLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultLogLimit
	}
	return min(n, maxLogLimit)
}
