// Package webui serves the HTTP surface: the SSE generation stream, the REST
// API (health, GPU, variables, history, unload), a WebSocket status
// broadcaster, and the embedded dashboard page.
package webui

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"zexplorer/core"
	"zexplorer/db"
	"zexplorer/metrics"
	"zexplorer/modelcfg"
)

// AuthProvider gates access to the UI and API. It is implemented by
// auth.Middleware; the interface keeps this package free of an import cycle
// and makes authentication optional (nil disables it).
type AuthProvider interface {
	Middleware(next http.Handler) http.Handler
	LoginHandler() http.HandlerFunc
	LogoutHandler() http.HandlerFunc
}

// GenerateFunc runs one generation batch synchronously, emitting progress
// events to onProgress. core.Generator.Generate satisfies it.
type GenerateFunc func(ctx context.Context, req core.GenerationRequest, onProgress core.ProgressFunc) core.GenerationResult

// Unloader frees engine memory on demand. engines.Residency satisfies it.
type Unloader interface {
	UnloadAll() error
}

// Deps are the collaborators the server exposes over HTTP. Generate is
// required; everything else degrades gracefully when nil (the corresponding
// endpoint reports unavailable).
type Deps struct {
	Generate  GenerateFunc
	Variables core.VariableStore
	History   *db.Repository
	GPU       metrics.GPUReader
	Engines   Unloader
	Presets   *modelcfg.Presets
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string
	Port int

	ReadTimeout time.Duration
	// WriteTimeout must stay zero (disabled): the SSE stream holds its
	// response open for the full duration of a batch.
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Keepalive is the SSE comment interval for silent workers.
	Keepalive time.Duration

	// LogSkipPaths are request paths excluded from access logging.
	LogSkipPaths []string
}

// DefaultServerConfig returns the production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "localhost",
		Port:            8000,
		ReadTimeout:     30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Keepalive:       200 * time.Millisecond,
		LogSkipPaths:    []string{"/api/health"},
	}
}

// Server wires the handlers, middleware, and broadcaster behind one
// http.Server.
type Server struct {
	httpServer  *http.Server
	mux         *http.ServeMux
	config      ServerConfig
	deps        Deps
	logger      *zap.Logger
	auth        AuthProvider
	broadcaster *StatusBroadcaster
}

// NewServer builds a fully-routed server. auth may be nil to disable
// authentication.
func NewServer(config ServerConfig, deps Deps, auth AuthProvider, logger *zap.Logger) (*Server, error) {
	if deps.Generate == nil {
		return nil, fmt.Errorf("webui: Deps.Generate is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Keepalive <= 0 {
		config.Keepalive = DefaultServerConfig().Keepalive
	}

	s := &Server{
		mux:         http.NewServeMux(),
		config:      config,
		deps:        deps,
		logger:      logger,
		auth:        auth,
		broadcaster: NewStatusBroadcaster(logger),
	}
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.rootHandler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	logger.Info("web server created",
		zap.String("addr", addr),
		zap.Bool("auth_enabled", auth != nil),
	)
	return s, nil
}

func (s *Server) setupRoutes() {
	// Health stays reachable without a session so probes work.
	s.mux.HandleFunc("/api/health", s.handleHealth)

	protected := http.NewServeMux()
	protected.HandleFunc("/api/generate/stream", s.handleGenerateStream)
	protected.HandleFunc("/api/gpu", s.handleGPU)
	protected.HandleFunc("/api/variables", s.handleVariables)
	protected.HandleFunc("/api/history", s.handleHistory)
	protected.HandleFunc("/api/models", s.handleModels)
	protected.HandleFunc("/api/unload", s.handleUnload)
	protected.HandleFunc("/ws", s.broadcaster.HandleConnection)
	protected.HandleFunc("/", s.handleIndex)

	if s.auth != nil {
		s.mux.HandleFunc("/login", s.auth.LoginHandler())
		s.mux.HandleFunc("/logout", s.auth.LogoutHandler())
		s.mux.Handle("/", s.auth.Middleware(protected))
	} else {
		s.mux.Handle("/", protected)
	}
}

// rootHandler wraps the mux with access logging.
func (s *Server) rootHandler() http.Handler {
	mw := NewLoggingMiddleware(s.logger, LoggingConfig{SkipPaths: s.config.LogSkipPaths})
	return mw.Handler(s.mux)
}

// Start runs the broadcaster and blocks serving HTTP until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	go s.broadcaster.Start(ctx)

	s.logger.Info("web server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webui: serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webui: shutdown: %w", err)
	}
	s.logger.Info("web server stopped")
	return nil
}

// Broadcaster exposes the WebSocket status broadcaster so other components
// (engine residency, generation summaries) can push updates.
func (s *Server) Broadcaster() *StatusBroadcaster {
	return s.broadcaster
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the fully-wired root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.rootHandler()
}
