// Package server implements kiln's development HTTP server: static files
// from the project root, the build output, and the live-reload endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conneroisu/kiln/internal/build"
	"github.com/conneroisu/kiln/internal/config"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/livereload"
	"github.com/conneroisu/kiln/internal/logging"
)

// StatusPath serves the HTML status page.
const StatusPath = "/__kiln/status"

// BuildStatus is the view of the build session shown on the status page.
type BuildStatus interface {
	Metrics() build.MetricsSnapshot
	Errors() []kerrors.BuildError
}

// Server is the development file server.
type Server struct {
	cfg      config.ServerConfig
	resolver Resolver
	mountID  string
	hub      *livereload.Hub
	status   BuildStatus
	logger   logging.Logger
	errs     *kerrors.ErrorHandler
	router   chi.Router

	serverMutex  sync.RWMutex
	httpServer   *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
}

// New creates a server for cfg. hub receives the live-reload clients and
// status may be nil when no build session runs.
func New(cfg *config.Config, hub *livereload.Hub, status BuildStatus, logger logging.Logger) (*Server, error) {
	resolver, err := NewResolver(cfg.Project.Root, cfg.Project.OutDir, cfg.Project.Index)
	if err != nil {
		return nil, err
	}
	if hub == nil {
		hub = livereload.NewHub(logger)
	}
	if logger == nil {
		logger = logging.Discard()
	}

	logger = logger.WithComponent("server")
	s := &Server{
		cfg:      cfg.Server,
		resolver: resolver,
		mountID:  cfg.Project.MountID,
		hub:      hub,
		status:   status,
		logger:   logger,
		errs:     kerrors.NewErrorHandler(logger),
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get(s.cfg.ReloadPath, s.hub.ServeSSE)
	r.Get(s.cfg.WebSocketPath, s.handleWebSocket)
	r.Get(StatusPath, s.handleStatus)
	r.Get("/health", s.handleHealth)
	r.Handle("/*", http.HandlerFunc(s.handleStatic))

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug(r.Context(), "Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWebSocket(s.AllowedHosts()).ServeHTTP(w, r)
}

// AllowedHosts returns the host:port pairs accepted as WebSocket origins:
// the listen address, its localhost and 127.0.0.1 aliases, and the hosts of
// server.allowed_origins.
func (s *Server) AllowedHosts() []string {
	port := strconv.Itoa(s.cfg.Port)
	host := s.cfg.Host
	if addr := s.boundAddr(); addr != nil {
		if h, p, err := net.SplitHostPort(addr.String()); err == nil {
			port = p
			if host == "" {
				host = h
			}
		}
	}
	return AllowedHosts(host, port, s.cfg.AllowedOrigins)
}

// AllowedHosts builds the origin allow list for a server on host:port.
// Entries of extra may be full origins or bare host:port pairs.
func AllowedHosts(host, port string, extra []string) []string {
	hosts := []string{
		net.JoinHostPort("localhost", port),
		net.JoinHostPort("127.0.0.1", port),
	}
	if host != "" && host != "localhost" && host != "127.0.0.1" {
		hosts = append(hosts, net.JoinHostPort(host, port))
	}
	for _, origin := range extra {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, origin)
	}
	return hosts
}

// Listen binds the configured address. Port 0 picks a free port.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.serverMutex.Lock()
	s.listener = ln
	s.httpServer = &http.Server{Handler: s}
	s.serverMutex.Unlock()
	return nil
}

// URL returns the base URL browsers should open: the configured host with
// the bound port, or the configured port before Listen.
func (s *Server) URL() string {
	port := strconv.Itoa(s.cfg.Port)
	if addr, ok := s.boundAddr().(*net.TCPAddr); ok {
		port = strconv.Itoa(addr.Port)
	}
	return "http://" + net.JoinHostPort(displayHost(s.cfg.Host), port)
}

// displayHost maps wildcard listen hosts onto localhost.
func displayHost(host string) string {
	switch host {
	case "", "0.0.0.0", "::":
		return "localhost"
	}
	return host
}

func (s *Server) boundAddr() net.Addr {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve handles requests on the listener bound by Listen until ctx is done
// or Shutdown is called.
func (s *Server) Serve(ctx context.Context) error {
	s.serverMutex.RLock()
	srv, ln := s.httpServer, s.listener
	s.serverMutex.RUnlock()
	if srv == nil {
		return errors.New("server is not listening")
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, err, "Server shutdown failed")
		}
	})
	defer stop()

	s.logger.Info(ctx, "Server listening", "url", s.URL())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Start listens and serves. It blocks like http.ListenAndServe.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Shutdown disconnects every live-reload client and stops the HTTP server.
// It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		// Streaming handlers only return once their listener is closed.
		s.hub.Close()

		s.serverMutex.RLock()
		srv := s.httpServer
		s.serverMutex.RUnlock()

		if srv != nil {
			shutdownErr = srv.Shutdown(ctx)
		}
	})

	return shutdownErr
}
