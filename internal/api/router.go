package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/annotator"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *annotator.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Annotation runs.
	r.Post("/annotate", h.Annotate)
	r.Post("/validate", h.ValidateTree)
	r.Get("/annotations", h.ListAnnotations)
	r.Get("/annotations/{id}", h.GetAnnotation)
	r.Delete("/annotations/{id}", h.DeleteAnnotation)

	// Template registry.
	r.Get("/templates", h.ListTemplates)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
