// Package server is the composition root: it opens the database, builds the
// services and handlers, and maps them onto routes.
//
// DEPENDENCY FLOW:
//
//	config.Config
//	  └─ sqlite.DB (repository.Store)
//	       ├─ AuditLog ─┐
//	       ├─ UserService ◄─ PasswordService
//	       ├─ SnippetService ◄─ metrics-wrapped Chroma highlighter
//	       └─ AuthService ◄─ TokenService, PasswordService
//	handlers receive services only; they never see the database.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/snippets/internal/auth"
	"github.com/sakif/snippets/internal/config"
	"github.com/sakif/snippets/internal/handler"
	"github.com/sakif/snippets/internal/highlight"
	"github.com/sakif/snippets/internal/metrics"
	"github.com/sakif/snippets/internal/middleware"
	sqliteRepo "github.com/sakif/snippets/internal/repository/sqlite"
	"github.com/sakif/snippets/internal/service"
)

// shutdownTimeout is how long in-flight requests get to finish.
const shutdownTimeout = 30 * time.Second

// Server owns the database connection and the router.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	metrics *metrics.Metrics

	tokens   *auth.TokenService
	users    *service.UserService
	snippets *service.SnippetService
	audit    *service.AuditLog
	auth     *service.AuthService
	github   *auth.GitHubProvider // nil unless configured
}

// New opens the database and wires every dependency. Call Close (or Start,
// which closes on return) to release the database.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.TTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	m := metrics.New()
	passwords := auth.NewPasswordService(cfg.Auth.Cost)
	audit := service.NewAuditLog(db, logger)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		metrics:  m,
		tokens:   tokens,
		audit:    audit,
		users:    service.NewUserService(db, audit, passwords, logger),
		snippets: service.NewSnippetService(db, m.Highlighter(highlight.NewChroma()), logger),
		auth:     service.NewAuthService(db, tokens, passwords, logger),
	}
	if cfg.GitHub.Enabled() {
		s.github = auth.NewGitHubProvider(cfg.GitHub.ID, cfg.GitHub.Secret, cfg.GitHub.Callback)
	}

	s.setupRoutes()
	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Users exposes the user service for administrative commands.
func (s *Server) Users() *service.UserService {
	return s.users
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes registers middleware and routes.
//
// MIDDLEWARE ORDER:
//  1. RequestID    tags the request for log correlation
//  2. RealIP       trusts X-Forwarded-For / X-Real-IP
//  3. Logger       one line per request
//  4. Metrics      request counter and latency histogram
//  5. Recoverer    turns panics into 500s (inside Logger so they are logged)
//  6. StripSlashes "/snippets/" and "/snippets" are the same route
//  7. GetHead      HEAD falls back to the GET handler; repeated in each
//                  Route block, since a mounted subrouter matches any method
//  8. Authenticate resolves the caller; never rejects
//
// ROUTES:
//
//	GET                  /                          discovery document
//	GET|POST             /snippets/
//	GET|PUT|PATCH|DELETE /snippets/{id}/
//	GET                  /snippets/{id}/highlight/  stored HTML
//	GET                  /users/
//	POST                 /users/create
//	GET                  /users/{id}/
//	GET                  /apiactions/               administrators only
//	POST                 /auth/login, /auth/logout
//	GET                  /auth/me
//	GET                  /auth/github/login, /auth/github/callback (if configured)
//	GET                  /metrics, /healthz
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Metrics(s.metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.StripSlashes)
	r.Use(chimiddleware.GetHead)
	r.Use(auth.Authenticate(s.auth, s.logger))

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	snippets := handler.NewSnippetHandler(s.snippets, s.logger)
	users := handler.NewUserHandler(s.users, s.logger)
	actions := handler.NewAPIActionHandler(s.audit)
	authH := handler.NewAuthHandler(s.auth, s.tokens, s.github, s.config.Auth.Secure, s.logger)

	r.Get("/", handler.HandleRoot)
	r.Options("/", handler.Options(http.MethodGet, http.MethodHead, http.MethodOptions))

	r.Route("/snippets", func(r chi.Router) {
		r.Use(chimiddleware.GetHead)

		r.Get("/", snippets.HandleList)
		r.Post("/", snippets.HandleCreate)
		r.Options("/", handler.Options(http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions))

		r.Route("/{id}", func(r chi.Router) {
			r.Use(chimiddleware.GetHead)

			r.Get("/", snippets.HandleGet)
			r.Put("/", snippets.HandleUpdate)
			r.Patch("/", snippets.HandleUpdate)
			r.Delete("/", snippets.HandleDelete)
			r.Options("/", handler.Options(
				http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead, http.MethodOptions,
			))

			r.Get("/highlight", snippets.HandleHighlight)
			r.Options("/highlight", handler.Options(http.MethodGet, http.MethodHead, http.MethodOptions))
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(chimiddleware.GetHead)

		r.Get("/", users.HandleList)
		r.Options("/", handler.Options(http.MethodGet, http.MethodHead, http.MethodOptions))

		r.Post("/create", users.HandleCreate)
		r.Options("/create", handler.Options(http.MethodPost, http.MethodOptions))

		r.Get("/{id}", users.HandleGet)
		r.Options("/{id}", handler.Options(http.MethodGet, http.MethodHead, http.MethodOptions))
	})

	r.Get("/apiactions", actions.HandleList)
	r.Options("/apiactions", handler.Options(http.MethodGet, http.MethodHead, http.MethodOptions))

	r.Route("/auth", func(r chi.Router) {
		r.Use(chimiddleware.GetHead)

		r.Post("/login", authH.HandleLogin)
		r.Post("/logout", authH.HandleLogout)
		r.With(auth.RequireAuth).Get("/me", authH.HandleMe)

		if s.github != nil {
			r.Get("/github/login", authH.HandleGitHubLogin)
			r.Get("/github/callback", authH.HandleGitHubCallback)
		}
	})

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/healthz", handler.HandleHealth(s.db))
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully:
//  1. stop accepting connections
//  2. wait up to shutdownTimeout for in-flight requests
//  3. close the database
func (s *Server) Start(ctx context.Context) error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Database.Path),
			slog.Bool("github", s.github != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}
