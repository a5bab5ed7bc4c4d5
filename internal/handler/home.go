package handler

import (
	"net/http"

	"github.com/msomdec/modfusion-console/internal/view"
)

// HandleHome renders the console shell.
func HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	view.ConsolePage(UserFromContext(r.Context())).Render(r.Context(), w)
}
