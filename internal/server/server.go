package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/leave-notifier/apiserver/config"
	"github.com/leave-notifier/apiserver/internal/db"
	"github.com/leave-notifier/apiserver/internal/handlers"
	"github.com/leave-notifier/apiserver/internal/metrics"
	"github.com/leave-notifier/apiserver/internal/notify"
	"github.com/leave-notifier/apiserver/internal/services"
	"github.com/leave-notifier/apiserver/internal/storage"
	"github.com/leave-notifier/apiserver/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	notifier   *notify.Notifier
}

// New constructs a Server with all collaborators wired up.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if strings.TrimSpace(cfg.Tokens.Key) == "" {
		return nil, errors.New("TOKENS_KEY is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	broker, err := notify.NewBroker(ctx, cfg.Notify)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	notifier := notify.NewNotifier(broker, slog.Default())

	objectStore, err := storage.NewObjectStore(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		_ = notifier.Close()
		return nil, err
	}
	attachments := storage.NewAttachments(objectStore)
	if attachments.Enabled() {
		if err := attachments.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			_ = notifier.Close()
			return nil, err
		}
	}

	userRepo := store.NewUserRepository(dbConn)
	leaveRepo := store.NewLeaveRepository(dbConn)

	userService := services.NewUserService(userRepo)
	leaveService := services.NewLeaveService(leaveRepo, userRepo, notifier, attachments, slog.Default())

	authMiddleware := handlers.RequireAuth(cfg.Tokens)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		metrics.Middleware,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, cfg.Tokens)
	})
	router.Route("/api/users", func(r chi.Router) {
		handlers.UsersRouter(r, userService, authMiddleware)
	})
	router.Route("/api/leaves", func(r chi.Router) {
		handlers.LeavesRouter(r, leaveService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
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

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.notifier != nil {
		_ = s.notifier.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
