// Package server exposes the placement check over HTTP: an HTML form for reviewers and a
// small JSON API.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/spigell/placement-checker/internal/config"
	"github.com/spigell/placement-checker/internal/matcher"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg       *config.Config
	cache     *matcher.Cache
	scorer    *matcher.Scorer
	logger    *zap.Logger
	templates *template.Template
	handler   http.Handler
}

func New(cfg *config.Config, cache *matcher.Cache, scorer *matcher.Scorer, logger *zap.Logger) (*Server, error) {
	if cfg == nil || cfg.Server == nil {
		return nil, errors.New("server config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		cache:     cache,
		scorer:    scorer,
		logger:    logger,
		templates: tmpl,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.handler = withRequestID(withLogging(logger, withTimeout(cfg.Server.RequestTimeout, mux)))

	return s, nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleForm)
	mux.HandleFunc("POST /match", s.handleMatch)
	mux.HandleFunc("GET /api/roles", s.handleRoles)
	mux.HandleFunc("POST /api/match", s.handleAPIMatch)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving placement checks", zap.String("address", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down the server", zap.Duration("timeout", shutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}

	return nil
}
