// Package server is the composition root: it wires config, storage, the
// auth boundary, the directory service, the job bus, and the email client
// into one HTTP application, and owns every lifecycle.
//
// All handles are constructed here and injected downward — no package builds
// its own clients at init time. The dependency chain:
//
//	sqlite.DB → DirectoryService → UserHandler / AuthHandler → chi router
//	redis → jobs.Dispatcher ↗            ↘ jobs.Worker → email.Client
//
// main.go stays minimal: load config, build the logger, call New and Start.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/splitr/internal/auth"
	"github.com/sakif/splitr/internal/config"
	"github.com/sakif/splitr/internal/email"
	"github.com/sakif/splitr/internal/handler"
	"github.com/sakif/splitr/internal/jobs"
	"github.com/sakif/splitr/internal/middleware"
	sqliteRepo "github.com/sakif/splitr/internal/repository/sqlite"
	"github.com/sakif/splitr/internal/service"
)

// Server holds the HTTP router and every dependency whose lifecycle it owns.
// db and rdb are closed during graceful shutdown; worker is stopped first so
// no handler runs against a closed client.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger

	db     *sqliteRepo.DB
	rdb    *redis.Client // nil: job bus disabled
	worker *jobs.Worker  // nil: job bus disabled
}

// New assembles the full dependency graph.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	// The job bus is optional: without REDIS_ADDR the directory runs fine
	// and only the welcome email is skipped.
	var dispatcher service.EventDispatcher
	if cfg.RedisAddr != "" {
		rdb, err := jobs.NewRedisClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting job bus: %w", err)
		}
		s.rdb = rdb
		dispatcher = jobs.NewDispatcher(rdb)

		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "splitr"
		}
		s.worker = jobs.NewWorker(rdb, hostname, logger)
		s.registerJobHandlers()
	} else {
		logger.Warn("REDIS_ADDR not set — background jobs are disabled")
	}

	directory := service.NewDirectoryService(db, dispatcher, logger)

	if err := s.setupRoutes(directory); err != nil {
		s.closeClients()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and all route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz                 → liveness
//	GET  /auth/github/login       → start OAuth sign-in
//	GET  /auth/github/callback    → finish sign-in, set session cookie
//	POST /auth/logout             → clear session cookie
//	POST /api/users/store         → upsert the caller            [auth]
//	GET  /api/users/me            → caller's stored record       [auth]
//	GET  /api/users/search?q=...  → participant search           [auth]
func (s *Server) setupRoutes(directory *service.DirectoryService) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	tokens, err := auth.NewTokenService(s.cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	callbackURL := s.cfg.GitHubCallbackURL
	if callbackURL == "" {
		callbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", s.cfg.Port)
	}
	github := auth.NewGitHubProvider(s.cfg.GitHubClientID, s.cfg.GitHubClientSecret, callbackURL)

	authHandler := handler.NewAuthHandler(github, tokens, directory, s.logger)
	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	userHandler := handler.NewUserHandler(directory, s.logger)
	s.router.Route("/api/users", func(r chi.Router) {
		r.Use(auth.RequireIdentity(tokens))
		r.Post("/store", userHandler.HandleStore)
		r.Get("/me", userHandler.HandleMe)
		r.Get("/search", userHandler.HandleSearch)
	})

	return nil
}

// registerJobHandlers wires each job event to its handler. The email client
// is built here because only job handlers send mail; without an API key the
// welcome job is skipped instead of poisoning the stream with sends that can
// never succeed.
func (s *Server) registerJobHandlers() {
	if s.cfg.EmailAPIKey == "" {
		s.logger.Warn("EMAIL_API_KEY not set — welcome emails are disabled")
		return
	}

	mail := email.New(s.cfg.EmailAPIBase, s.cfg.EmailAPIKey, s.cfg.EmailFrom)

	s.worker.Register(service.EventUserCreated, func(ctx context.Context, evt jobs.Event) error {
		var p service.UserCreatedPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", evt.Name, err)
		}
		if p.Email == "" {
			// Provider hid the address — nothing to send, nothing to retry.
			return nil
		}

		id, err := mail.Send(ctx, email.Message{
			To:      p.Email,
			Subject: "Welcome to Splitr",
			HTML: fmt.Sprintf(
				"<p>Hi %s,</p><p>Welcome to Splitr — the smartest way to split expenses with friends.</p>",
				p.Name,
			),
		})
		if err != nil {
			return err
		}

		s.logger.Info("welcome email sent",
			slog.String("userID", p.UserID),
			slog.String("messageID", id),
		)
		return nil
	})
}

// Start runs the HTTP server (and the job worker, when configured) until a
// shutdown signal arrives, then drains in order: stop accepting connections,
// finish in-flight requests, stop the worker, close redis and the database.
func (s *Server) Start() error {
	defer s.closeClients()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Worker lifecycle: cancelled during shutdown, waited on via done.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	workerDone := make(chan struct{})
	if s.worker != nil {
		go func() {
			defer close(workerDone)
			if err := s.worker.Run(workerCtx); err != nil {
				s.logger.Error("job worker exited", slog.String("error", err.Error()))
			}
		}()
	} else {
		close(workerDone)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
			slog.Bool("jobs", s.worker != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		stopWorker()
		select {
		case <-workerDone:
		case <-ctx.Done():
			s.logger.Warn("job worker did not stop in time")
		}

		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// closeClients releases the database and redis connections. Safe to call
// more than once: Close on an already-closed pool returns an error we ignore
// on the second pass.
func (s *Server) closeClients() {
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			s.logger.Warn("closing redis client", slog.String("error", err.Error()))
		}
		s.rdb = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("closing database", slog.String("error", err.Error()))
		}
		s.db = nil
	}
}
