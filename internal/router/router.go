package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"cryptopal-backend/internal/handlers"
	"cryptopal-backend/internal/middleware"
	"cryptopal-backend/internal/websocket"
)

func New(
	sessions *middleware.SessionManager,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	chatRateLimit int,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)

	// Chat rate limiter (per IP per minute)
	chatLimiter := middleware.NewRateLimiter(chatRateLimit, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)

		// ──── Page ────
		r.Get("/", chatHandler.Index)
		r.With(chatLimiter.Middleware).Post("/", chatHandler.Index)
		r.Post("/clear", chatHandler.Clear)

		// ──── JSON API ────
		mountAPI := func(r chi.Router) {
			r.With(chatLimiter.Middleware).Post("/chat", chatHandler.Chat)
			r.Get("/status", chatHandler.Status)
			r.Get("/models", chatHandler.Models)
		}
		mountAPI(r)
		r.Route("/api", func(r chi.Router) {
			mountAPI(r)
			r.Post("/clear", chatHandler.Clear)
		})

		// ──── WebSocket ────
		if wsHub != nil {
			r.Get("/ws", wsHub.HandleWebSocket)
		}
	})

	return r
}
