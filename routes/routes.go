package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/handlers"
	"github.com/upb/llm-router/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware. Recoverer guards the HTTP surface only; the router
	// itself never swallows panics.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(deps.Config.Server.WriteTimeout))
	r.Use(middleware.PropagateRequestID)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var dbChecker handlers.HealthChecker
	if deps.DB != nil {
		dbChecker = deps.DB
	}
	healthHandler := handlers.NewHealthHandler(dbChecker)
	completionHandler := handlers.NewCompletionHandler(deps.Router, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleLiveness)
	r.Get("/readyz", healthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		if deps.AuthEnabled {
			r.Use(deps.AuthMiddleware.RequireAuth)
		}
		r.Get("/models", completionHandler.HandleListModels)
		r.Post("/chat/completions", completionHandler.HandleChatCompletion)
	})

	return r
}

// NewServer builds the HTTP server around the configured routes.
func NewServer(deps *app.Dependencies) *http.Server {
	return &http.Server{
		Addr:              deps.Config.Server.Address(),
		Handler:           SetupRoutes(deps),
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
