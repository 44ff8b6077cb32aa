package api

import (
	"net/http"
	"time"

	"burn.note/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func SetupRouter(h *Handler, log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health
	r.Get("/health", h.Health)

	// Anything that reads a secret must never be served from a cache.
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoCache)

		r.Route("/api", func(r chi.Router) {
			r.With(JSONOnly).Post("/create", h.CreateSecret)
			r.Get("/secrets/{id}", h.GetSecret)
		})

		r.Get("/view/{id}", h.ViewSecret)
	})

	// Frontend
	r.Get("/", h.Index)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(web.StaticFS())))

	return r
}
