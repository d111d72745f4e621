package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/bgtable/pkg/advisor"
	"github.com/yourusername/bgtable/pkg/table"
)

// ServerConfig holds the server configuration.
type ServerConfig struct {
	Addr         string        // Address to listen on (default "localhost:8080")
	ReadTimeout  time.Duration // Read timeout (default 30s)
	WriteTimeout time.Duration // Write timeout (default 30s)
	IdleTimeout  time.Duration // Idle timeout (default 60s)
	Pool         PoolConfig
}

// DefaultConfig returns a ServerConfig with sensible defaults.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		Addr:         "localhost:8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		Pool:         DefaultPoolConfig(),
	}
}

// Server is the HTTP API server.
type Server struct {
	config   ServerConfig
	handlers *Handlers
	server   *http.Server
	listener net.Listener
}

// NewServer creates a server over the tables in reg.
func NewServer(reg *table.Registry, oracle advisor.Oracle, config ServerConfig, version string, opts Options) *Server {
	pool := NewWorkerPool(config.Pool)
	return &Server{
		config:   config,
		handlers: NewHandlers(reg, oracle, pool, version, opts),
	}
}

// Handlers returns the handlers, for attaching restored tables.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Pool returns the worker pool for monitoring.
func (s *Server) Pool() *WorkerPool {
	return s.handlers.pool
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs all requests.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request-id", middleware.GetReqID(r.Context())).
			Msg("http-request")
	})
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	h := s.handlers
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/api/health", h.Health)
	r.Route("/api/games", func(r chi.Router) {
		r.Get("/", h.ListGames)
		r.Post("/", h.CreateGame)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetGame)
			r.Delete("/", h.DeleteGame)
			r.Get("/legal", h.Legal)
			r.Get("/log", h.Log)
			r.Get("/match.mat", h.MatchFile)
			r.Get("/hint", h.Hint)
			r.Get("/ws", h.WebSocket)
			r.Post("/{action}", h.Action)
		})
	})

	// The oracle this server plays with, for other bots and tools
	r.Mount("/api/oracle", http.StripPrefix("/api/oracle", advisor.Handler(h.oracle)))
	return r
}

// Start binds the listen address. Serve runs the server on it.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	return nil
}

// Addr returns the bound address once Start has returned.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run starts the server and serves until ctx is done, then shuts down
// gracefully and stops the bots.
func (s *Server) Run(ctx context.Context) error {
	if s.server == nil {
		if err := s.Start(); err != nil {
			return err
		}
	}
	log.Info().Str("addr", s.listener.Addr().String()).Msg("api-listening")

	errc := make(chan error, 1)
	go func() {
		errc <- s.server.Serve(s.listener)
	}()

	select {
	case err := <-errc:
		s.handlers.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)
	s.handlers.Close()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info().Msg("api-stopped")
	return nil
}
