package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"door-opener-bridge/internal/bridge"
	"door-opener-bridge/internal/door"
	"door-opener-bridge/internal/health"
	"door-opener-bridge/internal/registration"
	"door-opener-bridge/internal/types"
)

// EventSubmitter hands host events to the dispatch loop
type EventSubmitter interface {
	Submit(ctx context.Context, env types.Envelope) (bridge.Result, error)
}

// DoorDirectory is the part of the door directory the API exposes
type DoorDirectory interface {
	All() []*door.TrackedDoor
	Get(id types.DoorID) (*door.TrackedDoor, error)
}

// RegistrationManager is the part of the interaction registry the API exposes
type RegistrationManager interface {
	Register(actor uuid.UUID, intent registration.Intent)
	Pending(actor uuid.UUID) bool
	Unregister(actor uuid.UUID) bool
}

// HealthReporter produces the body of the health endpoint
type HealthReporter interface {
	Check(ctx context.Context) health.SystemHealth
}

// ServerConfig holds API server specific configuration
type ServerConfig struct {
	Addr         string
	AuthEnabled  bool
	JWTSecret    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default API server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8081",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server represents the HTTP API server
type Server struct {
	config        ServerConfig
	logger        *logrus.Logger
	router        *mux.Router
	httpServer    *http.Server
	upgrader      websocket.Upgrader
	events        EventSubmitter
	doors         DoorDirectory
	registrations RegistrationManager
	health        HealthReporter
}

// ServerOption is a functional option for configuring the Server
type ServerOption func(*Server)

// WithHealth reports component health on the health endpoint
func WithHealth(reporter HealthReporter) ServerOption {
	return func(s *Server) {
		s.health = reporter
	}
}

// NewServer creates a new API server instance
func NewServer(cfg ServerConfig, logger *logrus.Logger, events EventSubmitter, doors DoorDirectory, registrations RegistrationManager, opts ...ServerOption) *Server {
	s := &Server{
		config:        cfg,
		logger:        logger,
		router:        mux.NewRouter(),
		events:        events,
		doors:         doors,
		registrations: registrations,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	s.logger.WithFields(logrus.Fields{
		"addr":         listener.Addr().String(),
		"auth_enabled": s.config.AuthEnabled,
	}).Info("Starting API server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		return s.Shutdown()
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("Error during server shutdown")
		return err
	}

	s.logger.Info("API server shutdown complete")
	return nil
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Health endpoint (no auth required)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.authenticationMiddleware)

	protected.HandleFunc("/events/toggle", s.handleToggle).Methods(http.MethodPost)
	protected.HandleFunc("/events/interaction", s.handleInteraction).Methods(http.MethodPost)
	protected.HandleFunc("/events/stream", s.handleStream).Methods(http.MethodGet)

	protected.HandleFunc("/doors", s.handleListDoors).Methods(http.MethodGet)
	protected.HandleFunc("/doors/{id:[0-9]+}", s.handleGetDoor).Methods(http.MethodGet)
	protected.HandleFunc("/doors/{id:[0-9]+}/invert", s.handleSetInvert).Methods(http.MethodPut)
	protected.HandleFunc("/doors/{id:[0-9]+}/open", s.handleOpenDoor).Methods(http.MethodPost)

	protected.HandleFunc("/registrations/{actor}", s.handleRegister).Methods(http.MethodPost)
	protected.HandleFunc("/registrations/{actor}", s.handleGetRegistration).Methods(http.MethodGet)
	protected.HandleFunc("/registrations/{actor}", s.handleUnregister).Methods(http.MethodDelete)
}
