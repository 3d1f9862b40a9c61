// Package server wires the chi router, middleware chain, and handlers into
// the opsdesk HTTP service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/dashboard"
	"github.com/opsdesk/opsdesk/internal/handler"
	"github.com/opsdesk/opsdesk/internal/metrics"
	"github.com/opsdesk/opsdesk/internal/server/middleware"
	"github.com/opsdesk/opsdesk/internal/service"
	"github.com/opsdesk/opsdesk/internal/ticket"
	"github.com/opsdesk/opsdesk/internal/ui"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	EnableUI        bool
	LoginRateLimit  int // requests per minute per IP on the login endpoint
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		EnableUI:        true,
		LoginRateLimit:  20,
	}
}

// Pinger reports upstream reachability for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps bundles the services the server routes requests to.
type Deps struct {
	Store     *config.Store
	AuthSvc   *service.AuthService
	Dashboard *dashboard.Service
	Tickets   *ticket.Controller
	Metrics   metrics.Source
	Upstream  Pinger
	MCP       http.Handler // optional; mounted at /mcp when non-nil
}

// Server is the top-level HTTP server for opsdesk. It owns the chi router
// and delegates to the dashboard, ticket, and system handlers.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI document (no auth required) ---
	baseURL := fmt.Sprintf("http://%s:%d", s.cfg.Host, s.cfg.Port)
	r.Get("/openapi.json", handler.NewOpenAPIHandler(baseURL).ServeSpec)

	// --- API routes ---
	sysHandler := handler.NewSystemHandler(s.deps.Store, s.deps.AuthSvc)
	dashHandler := handler.NewDashboardHandler(s.deps.Dashboard, s.deps.Metrics)
	ticketHandler := handler.NewTicketHandler(s.deps.Tickets)

	r.Route("/api/v1", func(r chi.Router) {
		// Session endpoints are unauthenticated (login) or self-authenticated
		// (logout). Login is rate limited to slow down credential stuffing.
		r.With(middleware.RateLimit(s.cfg.LoginRateLimit)).Post("/session", sysHandler.Login)
		r.Delete("/session", sysHandler.Logout)

		// Dashboard and triage endpoints accept operator JWTs or API keys.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.deps.AuthSvc))

			r.Get("/dashboard", dashHandler.GetDashboard)
			r.Get("/metrics/system", dashHandler.SystemMetrics)
			r.Get("/metrics/activity", dashHandler.ActivityMetrics)

			r.Get("/tickets", ticketHandler.ListTickets)
			r.Get("/tickets/{ticketID}", ticketHandler.GetTicket)
			r.Put("/tickets/{ticketID}/status", ticketHandler.UpdateStatus)
		})

		// Account and key management requires a signed-in operator.
		r.Route("/system", func(r chi.Router) {
			r.Use(middleware.Authenticate(s.deps.AuthSvc))
			r.Use(middleware.RequireAdmin())

			r.Get("/admin", sysHandler.ListAdmins)
			r.Post("/admin", sysHandler.CreateAdmin)

			r.Get("/api-key", sysHandler.ListAPIKeys)
			r.Post("/api-key", sysHandler.CreateAPIKey)
			r.Delete("/api-key/{keyID}", sysHandler.RevokeAPIKey)
		})
	})

	// --- MCP streamable HTTP transport ---
	if s.deps.MCP != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.deps.AuthSvc))
			r.Handle("/mcp", s.deps.MCP)
			r.Handle("/mcp/*", s.deps.MCP)
		})
	}

	// --- Embedded admin page ---
	if s.cfg.EnableUI {
		distFS, err := fs.Sub(ui.Dist, "dist")
		if err != nil {
			s.logger.Error("failed to create sub filesystem for UI", "error", err)
		} else {
			fileServer := http.FileServer(http.FS(distFS))
			r.Handle("/assets/*", fileServer)
			pageHandler := func(w http.ResponseWriter, r *http.Request) {
				f, err := distFS.Open("index.html")
				if err != nil {
					http.Error(w, "UI not available", http.StatusNotFound)
					return
				}
				defer f.Close()
				stat, _ := f.Stat()
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				http.ServeContent(w, r, "index.html", stat.ModTime(), f.(io.ReadSeeker))
			}
			r.Get("/admin", pageHandler)
			r.Get("/admin/*", pageHandler)
			r.Get("/", pageHandler)
		}
	}

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the upstream helpdesk
// API is reachable, or 503 when it is not.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]string{"upstream": "ok"}

	if s.deps.Upstream != nil {
		if err := s.deps.Upstream.Ping(r.Context()); err != nil {
			checks["upstream"] = "error: " + err.Error()
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
