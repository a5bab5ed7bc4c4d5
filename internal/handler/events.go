package handler

import (
	"log/slog"
	"net/http"

	"github.com/msomdec/modfusion-console/internal/domain"
	"github.com/msomdec/modfusion-console/internal/service"
	"github.com/msomdec/modfusion-console/internal/view"
	"github.com/starfederation/datastar-go/datastar"
)

// EventsHandler streams session-slot changes to the console over SSE.
type EventsHandler struct {
	store *service.IdentityStore
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(store *service.IdentityStore) *EventsHandler {
	return &EventsHandler{store: store}
}

// sessionSignals is the datastar signal payload for the console.
type sessionSignals struct {
	Session sessionSignal `json:"session"`
}

type sessionSignal struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
}

func toSessionSignals(user *domain.User) sessionSignals {
	if user == nil {
		return sessionSignals{}
	}
	return sessionSignals{Session: sessionSignal{
		Authenticated: true,
		UserID:        user.ID,
		Email:         user.Email,
		Name:          view.DisplayName(user),
		Role:          string(user.Role),
	}}
}

// HandleSessionEvents sends the current session, then one patch per session
// change until the client disconnects. Only the latest pending change is
// kept for slow clients.
// GET /api/session/events
func (h *EventsHandler) HandleSessionEvents(w http.ResponseWriter, r *http.Request) {
	events := make(chan domain.SessionEvent, 1)
	unsubscribe := h.store.Subscribe(func(ev domain.SessionEvent) {
		for {
			select {
			case events <- ev:
				return
			default:
			}
			select {
			case <-events:
			default:
			}
		}
	})
	defer unsubscribe()

	current, err := h.store.CurrentSession(r.Context())
	if err != nil {
		writeServiceError(w, "load session", err)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := patchSession(sse, current); err != nil {
		slog.Debug("session stream closed", "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			if err := patchSession(sse, ev.User); err != nil {
				slog.Debug("session stream closed", "error", err)
				return
			}
		}
	}
}

func patchSession(sse *datastar.ServerSentEventGenerator, user *domain.User) error {
	if err := sse.MarshalAndPatchSignals(toSessionSignals(user)); err != nil {
		return err
	}
	return sse.PatchElementTempl(view.SessionBadge(user))
}
