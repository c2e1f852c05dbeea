// Package httpserver assembles the chi router and owns the net/http server.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/linkdeck/internal/config"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/mw"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/routes"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

// Server owns the listener lifecycle of the HTTP API.
type Server struct {
	srv     *http.Server
	logger  logger.Logger
	started time.Time
}

// New builds the server. The write timeout leaves room past the handler
// deadline so a timed-out handler can still send its 503.
func New(cfg *config.Config, loggerClient logger.Logger, d deps.Deps) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              cfg.ListenPort,
			Handler:           NewRouter(loggerClient, d, cfg.RequestTimeout),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
			IdleTimeout:       time.Minute,
			MaxHeaderBytes:    1 << 20,
		},
		logger:  loggerClient,
		started: d.StartTime,
	}
}

// NewRouter returns the handler tree: global middlewares, then every
// registered route group. requestTimeout <= 0 disables the per-request
// deadline.
func NewRouter(loggerClient logger.Logger, d deps.Deps, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.GetHead,
		middleware.RequestID,
		middleware.Recoverer,
	)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}
	r.Use(mw.Log(loggerClient, d.TrustProxy))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Not Found"}` + "\n"))
	})

	routes.MountAll(r, d)
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. It returns nil after a graceful Stop.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("HTTP server listening", logger.String("addr", ln.Addr().String()))
	if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down",
		logger.Duration("uptime", time.Since(s.started)))
	return s.srv.Shutdown(ctx)
}
