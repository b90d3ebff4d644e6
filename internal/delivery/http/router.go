package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mmuslimabdulj/goat-doodle/internal/middleware"
	"github.com/rs/zerolog"
)

// RouterOptions carries the pieces of the router that live outside the Handler
type RouterOptions struct {
	APILimiter *middleware.IPRateLimiter
	WSLimiter  *middleware.IPRateLimiter
	Metrics    http.Handler
	StaticDir  string
	Log        zerolog.Logger
}

// Routes builds the full HTTP surface of the server.
func (h *Handler) Routes(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(opts.Log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)

	r.Get("/", h.HandleLobby)
	r.Get("/healthz", h.HandleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.StaticDir != "" {
		fs := http.FileServer(http.Dir(opts.StaticDir))
		r.Handle("/static/*", http.StripPrefix("/static/", fs))
	}

	r.Group(func(r chi.Router) {
		if opts.WSLimiter != nil {
			r.Use(middleware.RateLimitMiddleware(opts.WSLimiter))
		}
		r.Get("/ws", h.HandleWebSocket)
	})

	r.Route("/api", func(r chi.Router) {
		if opts.APILimiter != nil {
			r.Use(middleware.RateLimitMiddleware(opts.APILimiter))
		}
		r.Post("/rooms", h.HandleCreateRoom)
		r.Get("/rooms/{code}", h.HandleGetRoom)
		r.Post("/rooms/{code}/join", h.HandleJoinRoom)
		r.Get("/games/recent", h.HandleRecentGames)
	})

	return r
}
