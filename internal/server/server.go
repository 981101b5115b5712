// Package server is the wiring layer: it maps URLs to handlers, decides
// which routes need authentication, and runs the HTTP server with graceful
// shutdown.
//
// Construction of the services themselves happens in cmd/server, the
// composition root; this package only receives them.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/eduqa/internal/auth"
	"github.com/sakif/eduqa/internal/handler"
	"github.com/sakif/eduqa/internal/middleware"
	"github.com/sakif/eduqa/internal/service"
)

// Config holds the HTTP-level settings.
type Config struct {
	Port            int
	CORSOrigins     []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the already-built collaborators the routes need.
type Deps struct {
	Tokens     *auth.TokenService
	Cookies    auth.CookiePolicy
	Accounts   *service.AuthService
	Users      *service.UserService
	Categories *service.CategoryService
	Questions  *service.QuestionService
	Store      Pinger
}

// Server owns the router and the running http.Server.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	store  Pinger
}

// New builds the router. It does not start listening.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  deps.Store,
	}
	s.setupRoutes(deps)
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes registers middleware and every endpoint.
//
// MIDDLEWARE ORDER:
//  1. RequestID: assigns an id the logger picks up
//  2. RealIP: client IP from proxy headers
//  3. Logger: one line per request
//  4. Recoverer: a panic becomes a 500 instead of a dead connection
//  5. CORS: the frontend origin, with credentials for the cookie
//  6. Timeout: cancels the request context after RequestTimeout
func (s *Server) setupRoutes(deps Deps) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(chimiddleware.Timeout(s.config.RequestTimeout))

	authH := handler.NewAuthHandler(deps.Accounts, deps.Cookies, s.logger)
	userH := handler.NewUserHandler(deps.Users, s.logger)
	categoryH := handler.NewCategoryHandler(deps.Categories, s.logger)
	questionH := handler.NewQuestionHandler(deps.Questions, s.logger)

	requireAuth := auth.RequireAuth(deps.Tokens, s.logger)

	s.router.Get("/healthz", s.handleHealth)

	// === Public routes ===
	s.router.Post("/register", authH.HandleRegister)
	s.router.Post("/login", authH.HandleLogin)
	s.router.Post("/auth", authH.HandleFederated)
	s.router.Post("/forgot-password", authH.HandleForgotPassword)
	s.router.Post("/reset-password/{token}", authH.HandleResetPassword)
	s.router.With(auth.OptionalAuth(deps.Tokens)).Get("/verify-email/{token}", authH.HandleVerifyEmail)

	s.router.Post("/add-category", categoryH.HandleCreate)
	s.router.Get("/all-categories", categoryH.HandleList)

	s.router.Get("/questions", questionH.HandleList)
	s.router.Get("/question/{id}", questionH.HandleGet)
	s.router.Get("/get-user/{username}", userH.HandleGetUser)

	// === Authenticated routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Post("/logout", authH.HandleLogout)

		r.Post("/update-categories", categoryH.HandleToggle)
		r.Get("/categories-preferences", categoryH.HandlePreferences)

		r.Post("/create-question", questionH.HandleCreate)
		r.Put("/update-question/{id}", questionH.HandleUpdate)
		r.Delete("/delete-question/{id}", questionH.HandleDelete)
		r.Get("/timeline", questionH.HandleTimeline)

		r.Get("/profile", userH.HandleProfile)
		r.Put("/update-password", userH.HandleUpdatePassword)
		r.Put("/update-role/{username}", userH.HandleUpdateRole)
		r.Put("/update-info", userH.HandleUpdateInfo)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.logger.Error("health check failed", slog.String("error", err.Error()))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Start listens on the configured port and blocks until SIGINT/SIGTERM or
// ctx is cancelled, then drains in-flight requests for up to
// ShutdownTimeout. Closing the store and the mail queue is the caller's job,
// after Start returns.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.config.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
