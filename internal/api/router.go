package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/taxon/internal/tagservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether mutating actions require the Bearer token.
// sseHandler, if non-nil, is mounted at GET /events behind the same token.
// metrics, if non-nil, records every action call.
func NewRouter(svc *tagservice.Service, authEnabled bool, token string, sseHandler http.Handler, metrics *Metrics) chi.Router {
	h := NewHandler(svc, authEnabled, token, metrics)

	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(h.instrument)
		r.Get("/action/{name}", h.Action)
		r.Post("/action/{name}", h.Action)
		r.Get("/3/action/{name}", h.Action)
		r.Post("/3/action/{name}", h.Action)
	})

	if sseHandler != nil {
		r.With(AuthMiddleware(authEnabled, token)).Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
