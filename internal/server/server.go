package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/apnisec/apiserver/config"
	"github.com/apnisec/apiserver/internal/db"
	"github.com/apnisec/apiserver/internal/handlers"
	"github.com/apnisec/apiserver/internal/notify"
	"github.com/apnisec/apiserver/internal/services"
	"github.com/apnisec/apiserver/internal/storage"
	"github.com/apnisec/apiserver/internal/store"
	"github.com/apnisec/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server, router, and owned resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	notifier   *notify.Service
	limiter    *handlers.RateLimiter
}

// New wires the full service graph and router.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.JWT.Secret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	notifier, err := notify.New(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	reports, err := storage.New(ctx, cfg)
	if err != nil {
		notifier.Close()
		_ = dbConn.Close()
		return nil, err
	}
	if reports != nil {
		if err := reports.EnsureBucket(ctx); err != nil {
			notifier.Close()
			_ = dbConn.Close()
			return nil, err
		}
	}

	userRepo := store.NewUserRepository(dbConn)
	profileRepo := store.NewProfileRepository(dbConn)
	issueRepo := store.NewIssueRepository(dbConn)

	authService := services.NewAuthService(userRepo, notifier, jwtSecret, cfg.JWT.TTL)
	userService := services.NewUserService(profileRepo, userRepo, notifier)
	issueService := services.NewIssueService(issueRepo, userRepo, notifier, reports)

	handlers.SetDevMode(cfg.IsDev())
	requireAuth := handlers.RequireAuth(jwtSecret)
	limiter := handlers.NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	rateLimit := limiter.Middleware()

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/health", handlers.Health)
	router.Route("/api/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, requireAuth, rateLimit)
	})
	router.Route("/api/issues", func(r chi.Router) {
		handlers.IssueRouter(r, issueService, requireAuth, rateLimit)
	})
	router.Route("/api/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, requireAuth, rateLimit)
	})
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(types.APIResponse{Success: false, Error: "Route not found"})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 3001
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		notifier:   notifier,
		limiter:    limiter,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server and releases owned resources. Pending
// notification goroutines are drained before the backend closes.
func (s *Server) Shutdown() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.notifier != nil {
		s.notifier.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
