package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"door-opener-bridge/internal/api"
	"door-opener-bridge/internal/bridge"
	"door-opener-bridge/internal/config"
	"door-opener-bridge/internal/database"
	"door-opener-bridge/internal/door"
	"door-opener-bridge/internal/gate"
	"door-opener-bridge/internal/health"
	"door-opener-bridge/internal/logging"
	"door-opener-bridge/internal/queue"
	"door-opener-bridge/internal/registration"
)

// Manager wires the door directory, the event consumers and the transports
type Manager struct {
	mu     sync.RWMutex
	config *config.Config
	logger *logrus.Logger

	store      door.Store
	doors      *door.Directory
	registry   *registration.Registry
	plugin     *bridge.Plugin
	dispatcher *bridge.Dispatcher
	apiServer  *api.Server
	health     *health.HealthMonitor

	isRunning bool
	started   bool
	startTime time.Time
	cancel    context.CancelFunc
}

// ManagerOption is a functional option for configuring the Manager
type ManagerOption func(*Manager)

// WithLogger sets the logger instead of building one from the config
func WithLogger(logger *logrus.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithStore sets the door store instead of opening the configured database
func WithStore(store door.Store) ManagerOption {
	return func(m *Manager) {
		m.store = store
	}
}

// NewManager creates the bridge and loads the tracked doors
func NewManager(ctx context.Context, cfg *config.Config, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{config: cfg}
	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = logging.Initialize(cfg.LogLevel)
		if cfg.LogFile != "" {
			if err := logging.SetupFileLogging(m.logger, cfg.LogFile); err != nil {
				logging.LogConfigError(logging.NewComponentLogger(m.logger, "manager"), err, "setup_file_logging")
				return nil, fmt.Errorf("failed to setup file logging: %w", err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		logging.LogConfigError(logging.NewComponentLogger(m.logger, "manager"), err, "validate")
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := m.initializeComponents(ctx); err != nil {
		if m.store != nil {
			m.store.Close()
		}
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return m, nil
}

func (m *Manager) initializeComponents(ctx context.Context) error {
	m.logger.Info("Initializing bridge components")

	if m.store == nil {
		store, err := database.Open(m.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open door store: %w", err)
		}
		m.store = store
	}

	m.doors = door.NewDirectory(m.store, door.WithLogger(m.logger))
	if err := m.doors.Load(ctx); err != nil {
		return fmt.Errorf("failed to load doors: %w", err)
	}

	// A completed registration usually changed door settings, so flush them all.
	m.registry = registration.NewRegistry(
		registration.WithLogger(m.logger),
		registration.WithConsumedHook(m.saveDoors),
	)

	toggles := gate.NewToggleListener(m.doors, gate.WithLogger(m.logger))
	m.plugin = bridge.NewPlugin(toggles, m.registry)
	m.dispatcher = bridge.NewDispatcher(m.plugin, m.config.Dispatch.Buffer, m.logger)

	m.health = health.NewHealthMonitor(
		health.WithLogger(m.logger),
		health.WithVersion(logging.Version),
		health.WithQueue(m.dispatcher),
	)
	if checker, ok := m.store.(interface{ Health(context.Context) error }); ok {
		m.health.AddCheck("door_store", true, checker.Health)
	}

	if m.config.API.Enabled {
		m.apiServer = api.NewServer(api.ServerConfig{
			Addr:         m.config.APIAddr(),
			AuthEnabled:  m.config.API.AuthEnabled,
			JWTSecret:    m.config.API.JWTSecret,
			ReadTimeout:  time.Duration(m.config.API.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(m.config.API.WriteTimeout) * time.Second,
		}, m.logger, m.dispatcher, m.doors, m.registry, api.WithHealth(m.health))
	}

	m.logger.WithField("doors", m.doors.Len()).Info("Bridge components initialized successfully")
	return nil
}

func (m *Manager) saveDoors() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.doors.Save(ctx); err != nil {
		logging.LogStorageError(logging.NewComponentLogger(m.logger, "manager"), err, "save_doors")
	}
}

// Start runs every transport until ctx is cancelled or Stop is called, then shuts down.
// A manager can only be started once.
func (m *Manager) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("bridge manager can only be started once")
	}
	m.started = true
	m.cancel = cancel
	m.mu.Unlock()

	// Dial without holding the lock so Stop can abort it
	var source *queue.RedisSource
	if m.config.Redis.Enabled {
		var err error
		source, err = queue.NewRedisSource(runCtx, queue.RedisConfig{
			Addr:     m.config.Redis.Addr,
			Password: m.config.Redis.Password,
			DB:       m.config.Redis.DB,
			Queue:    m.config.Redis.Queue,
		}, m.dispatcher, m.logger)
		if err != nil {
			return errors.Join(err, m.shutdown())
		}
		defer source.Close()
		m.health.AddCheck("redis", false, source.Health)
	}

	m.mu.Lock()
	m.logger.Info("Starting bridge manager")
	m.startTime = time.Now()
	m.isRunning = true
	m.dispatcher.Start(runCtx)

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	if m.apiServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.apiServer.Start(runCtx); err != nil {
				errChan <- fmt.Errorf("API server: %w", err)
			}
		}()
	}

	if source != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := source.Run(runCtx); err != nil {
				errChan <- fmt.Errorf("redis source: %w", err)
			}
		}()
	}

	m.logger.Info("Bridge manager started successfully")
	m.mu.Unlock()

	var runErr error
	select {
	case <-runCtx.Done():
	case runErr = <-errChan:
		m.logger.WithError(runErr).Error("Transport stopped with error")
		cancel()
	}

	wg.Wait()
	return errors.Join(runErr, m.shutdown())
}

// Stop asks a running manager to shut down
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	m.mu.RUnlock()

	if cancel != nil {
		m.logger.Info("Stopping bridge manager")
		cancel()
	}
}

func (m *Manager) shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Shutting down bridge manager")

	m.dispatcher.Stop()

	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.doors.Save(ctx); err != nil {
		m.logger.WithError(err).Error("Failed to save doors")
		errs = append(errs, fmt.Errorf("save doors: %w", err))
	}

	if err := m.store.Close(); err != nil {
		m.logger.WithError(err).Error("Failed to close door store")
		errs = append(errs, fmt.Errorf("door store close: %w", err))
	}

	m.isRunning = false
	m.cancel = nil

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with errors: %w", errors.Join(errs...))
	}

	m.logger.Info("Bridge manager shutdown completed successfully")
	return nil
}

// IsRunning returns true if the bridge manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning
}

// Uptime returns how long the manager has been running
func (m *Manager) Uptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.isRunning {
		return 0
	}
	return time.Since(m.startTime)
}

// Plugin returns the host-facing event consumer
func (m *Manager) Plugin() *bridge.Plugin {
	return m.plugin
}

// Dispatcher returns the queue every transport submits through
func (m *Manager) Dispatcher() *bridge.Dispatcher {
	return m.dispatcher
}

// Health returns the component health monitor
func (m *Manager) Health() *health.HealthMonitor {
	return m.health
}

// Doors returns the tracked door directory
func (m *Manager) Doors() *door.Directory {
	return m.doors
}
