package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"dtw-backend/internal/handlers"
	"dtw-backend/internal/middleware"
)

func New(
	log *zap.Logger,
	onboardingHandler *handlers.OnboardingHandler,
	checkinHandler *handlers.CheckinHandler,
	chatHandler *handlers.ChatHandler,
	healthHandler *handlers.HealthHandler,
	wsHandler http.HandlerFunc,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/healthz", healthHandler.Health)
	r.Get("/health", healthHandler.Health)

	r.Route("/api", func(r chi.Router) {

		// ──── Onboarding ────
		r.Route("/onboarding", func(r chi.Router) {
			r.Post("/", onboardingHandler.Onboard)
			r.Post("/chat", chatHandler.Chat)
			r.Get("/chat/history", chatHandler.History)
		})

		// ──── Check-ins ────
		r.Route("/checkin", func(r chi.Router) {
			r.Post("/", checkinHandler.Create)
			r.Get("/{userID}", checkinHandler.List)
		})

		// ──── Realtime ────
		if wsHandler != nil {
			r.Get("/ws", wsHandler)
		}
	})

	return r
}
