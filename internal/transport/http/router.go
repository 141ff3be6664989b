package httptransport

import (
	"net/http"

	"paysession-be/internal/logger"

	"github.com/go-chi/chi/v5"
)

// NewRouter mounts the handler. Middlewares run outermost first.
func NewRouter(h *Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", h.Health)

	r.Route("/payments", func(r chi.Router) {
		r.Get("/return", h.Return)
		r.Post("/return", h.Return)
		r.Post("/gateway/callback", h.Callback)

		r.Route("/{orderId}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Get("/events", h.Events)
			r.Post("/checkout", h.StartCheckout)
			r.Post("/cancel", h.Cancel)
		})
	})

	return r
}
