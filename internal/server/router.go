// Package server hosts every service router on one listener, routed by host
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/hostrouter"

	"github.com/baely/tab/internal/common/errors"
)

// AnyHost maps a router to every host without its own mapping
const AnyHost = "*"

type Server struct {
	*http.Server

	hostRouter hostrouter.Routes
	logger     *slog.Logger
}

// Config contains configuration for the Server
type Config struct {
	Addr   string
	Logger *slog.Logger
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:   ":8080",
		Logger: slog.Default(),
	}
}

// NewWithConfig creates a Server listening on cfg.Addr
func NewWithConfig(cfg *Config) *Server {
	hr := hostrouter.New()

	s := &Server{
		Server: &http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		hostRouter: hr,
		logger:     cfg.Logger,
	}

	r := chi.NewRouter()
	r.Mount("/", hr)
	s.Server.Handler = r

	return s
}

// RegisterDomain serves router for domain. AnyHost is the fallback.
func (s *Server) RegisterDomain(domain string, router chi.Router) {
	s.logger.Info("Registering domain", "domain", domain)
	s.hostRouter.Map(domain, router)
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to grace before returning
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return errors.Wrap(err, "failed to listen on %s", s.Addr)
	}
	return s.Serve(ctx, ln, grace)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener, grace time.Duration) error {
	// request contexts end with ctx so open streams return before Shutdown
	s.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", "addr", ln.Addr().String())
		errCh <- s.Server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server", "grace", grace.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server failed")
	}
	return nil
}
