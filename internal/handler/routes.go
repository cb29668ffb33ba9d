package handler

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"

	"github.com/YannKr/deepguard/internal/visitor"
)

func (h *Handler) Routes(staticFS fs.FS, selectRL *RateLimiter) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Handle("/static/*", http.StripPrefix("/static/",
		http.FileServer(http.FS(staticFS))))
	r.Get("/healthz", h.Healthz)

	secure := h.Cfg.SecureCookies()
	csrfProtect := csrf.Protect(
		[]byte(h.Cfg.SessionSecret),
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
	)

	r.Group(func(r chi.Router) {
		r.Use(noStore)
		r.Use(visitor.Middleware(h.Cfg.SessionSecret, secure))
		r.Use(h.limitUploads)
		if !secure {
			r.Use(plaintext)
		}
		r.Use(csrfProtect)

		r.Get("/", h.Index)
		r.With(selectRL.Middleware).Post("/media", h.SelectMedia)
		r.Post("/media/clear", h.ClearMedia)
		r.Post("/analyze", h.Analyze)

		r.Get("/events", h.Events)
		r.Get("/events/ws", h.EventsWS)
		r.Get("/preview/{id}", h.Preview)

		r.Get("/api/v1/session", h.APISession)
	})

	return r
}
