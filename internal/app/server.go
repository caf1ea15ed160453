package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/claimsmart/claimsmart-backend/internal/api/handlers"
	appMiddleware "github.com/claimsmart/claimsmart-backend/internal/api/middlewares"
	"github.com/claimsmart/claimsmart-backend/internal/config"
	"github.com/claimsmart/claimsmart-backend/internal/core"
	"github.com/claimsmart/claimsmart-backend/internal/models"
	"github.com/claimsmart/claimsmart-backend/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, store core.ClaimStore, claims *services.ClaimService, log *zap.Logger) *Server {
	authHandler := handlers.NewAuthHandler(store, cfg.JWTSecret, log)
	claimHandler := handlers.NewClaimHandler(claims, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// authenticated endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			protected.Post("/claims", claimHandler.SubmitClaim)
			protected.Get("/claims", claimHandler.ListClaims)
			protected.Get("/claims/{id}", claimHandler.GetClaim)

			// insurer-only surfaces see true statuses and may decide
			protected.Group(func(insurer chi.Router) {
				insurer.Use(appMiddleware.RequireRole(models.RoleInsurer))
				insurer.Get("/insurer/claims", claimHandler.ListAllClaims)
				insurer.Post("/insurer/claims/{id}/decision", claimHandler.Decide)
			})
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
