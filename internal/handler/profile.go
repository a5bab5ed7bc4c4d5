package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/msomdec/modfusion-console/internal/domain"
	"github.com/msomdec/modfusion-console/internal/service"
)

const maxAvatarUpload = 2<<20 + 1<<10 // avatar limit plus multipart overhead

// ProfileHandler serves the signed-in user's own account.
type ProfileHandler struct {
	auth         *service.AuthController
	store        *service.IdentityStore
	avatars      *service.AvatarService
	cookieSecure bool
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(auth *service.AuthController, store *service.IdentityStore, avatars *service.AvatarService, cookieSecure bool) *ProfileHandler {
	return &ProfileHandler{auth: auth, store: store, avatars: avatars, cookieSecure: cookieSecure}
}

type updateProfileRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
	Password  *string `json:"password" validate:"omitempty,min=8,max=72"`
}

func (r *updateProfileRequest) normalize() {
	if r.Email != nil {
		email := domain.NormalizeEmail(*r.Email)
		r.Email = &email
	}
}

type promoteRequest struct {
	AdminCode string `json:"adminCode" validate:"required"`
}

// HandleUpdate applies a partial profile update.
// PATCH /api/profile
// Request:  {"firstName":"...","lastName":"...","email":"...","password":"..."}
// Response: {"success":true,"user":{...}}
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), domain.UserUpdate{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		writeServiceError(w, "update profile", err)
		return
	}

	writeOK(w, http.StatusOK, map[string]any{"user": toUserDTO(user)})
}

// HandlePromote grants the admin role to the signed-in user.
// POST /api/profile/promote
// Request:  {"adminCode":"..."}
// Response: {"success":true,"user":{...}}
func (h *ProfileHandler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.auth.PromoteToAdmin(r.Context(), req.AdminCode)
	if err != nil {
		writeServiceError(w, "promote user", err)
		return
	}

	writeOK(w, http.StatusOK, map[string]any{"user": toUserDTO(user)})
}

// HandleDelete deletes the signed-in account and clears the auth cookie.
// DELETE /api/profile
// Response: {"success":true}
func (h *ProfileHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.auth.DeleteAccount(r.Context())
	if err != nil {
		writeServiceError(w, "delete account", err)
		return
	}
	h.avatars.Discard(r.Context(), deleted.Avatar)

	clearAuthCookie(w, h.cookieSecure)
	writeOK(w, http.StatusOK, nil)
}

// HandleUploadAvatar replaces the signed-in user's avatar.
// PUT /api/profile/avatar (multipart field "avatar")
// Response: {"success":true,"user":{...}}
func (h *ProfileHandler) HandleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	current := UserFromContext(r.Context())
	if current == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarUpload)
	if err := r.ParseMultipartForm(maxAvatarUpload); err != nil {
		writeError(w, http.StatusBadRequest, "File too large or malformed upload.")
		return
	}
	file, _, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No avatar file provided.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read avatar.")
		return
	}

	key, err := h.avatars.Store(r.Context(), data)
	if err != nil {
		writeServiceError(w, "store avatar", err)
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), domain.UserUpdate{Avatar: &key})
	if err != nil {
		h.avatars.Discard(r.Context(), key)
		writeServiceError(w, "set avatar", err)
		return
	}
	if current.Avatar != "" && current.Avatar != key {
		h.avatars.Discard(r.Context(), current.Avatar)
	}

	writeOK(w, http.StatusOK, map[string]any{"user": toUserDTO(user)})
}

// HandleGetAvatar serves a user's avatar image.
// GET /api/users/{id}/avatar
func (h *ProfileHandler) HandleGetAvatar(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "get user", err)
		return
	}

	data, contentType, err := h.avatars.Load(r.Context(), user.Avatar)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found.")
			return
		}
		slog.Error("load avatar", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(data)
}
