package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"drugscreen/internal/config"
	"drugscreen/internal/logging"
	"drugscreen/internal/metrics"
	"drugscreen/internal/services"
	"drugscreen/internal/store"
	"drugscreen/internal/workflow"
)

// Documents stores uploaded documents.
type Documents interface {
	Put(ctx context.Context, filename, mimeType string, content []byte) (*store.Document, error)
}

// Server serves the screening HTTP API.
type Server struct {
	bind     string
	token    string
	maxBody  int64
	logger   *slog.Logger
	manager  *workflow.Manager
	docs     Documents
	router   chi.Router
	server   *http.Server
	listener net.Listener
}

const defaultMaxBody = 20 << 20

// NewServer builds the router. docs may be nil, in which case document
// uploads answer 503.
func NewServer(cfg *config.Config, manager *workflow.Manager, docs Documents, logger *slog.Logger) *Server {
	s := &Server{
		bind:    strings.TrimSpace(cfg.Paths.APIBind),
		token:   strings.TrimSpace(cfg.Paths.APIToken),
		maxBody: defaultMaxBody,
		logger:  logging.NewComponentLogger(logger, "api"),
		manager: manager,
		docs:    docs,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestContext)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router.Group(func(r chi.Router) {
		r.Use(bearerAuth(s.token))
		r.Post("/hooks/tests/{id}/saved", s.handleSaveHook)
		r.Get("/tests/{id}", s.handleGetTest)
		r.Post("/tests/{id}/screen", s.handleScreen)
		r.Post("/tests/{id}/decision", s.handleDecision)
		r.Post("/tests/{id}/confirmation", s.handleConfirmation)
		r.Post("/tests/{id}/inconclusive", s.handleInconclusive)
		r.Post("/tests/{id}/notifications", s.handleNotifications)
		r.Post("/tests/{id}/documents", s.handleDocument)
	})
}

// requestContext carries chi's request id into the services context so
// pipeline logs correlate with the HTTP request.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(services.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured bind address and serves until ctx ends or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return services.Wrap(services.ErrConfiguration, "api", "start", "api_bind is empty", nil)
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "api_serve_failed"),
				logging.String(logging.FieldErrorHint, "check api_bind and port availability"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound listener address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
