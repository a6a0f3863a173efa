package health

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthStatus represents the overall health status of the bridge
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// String returns the string representation of the health status
func (h HealthStatus) String() string {
	return string(h)
}

// CheckFunc checks one dependency
type CheckFunc func(ctx context.Context) error

// QueueDepth reports how full the dispatch queue is
type QueueDepth interface {
	Pending() int
	Capacity() int
}

// ComponentHealth is the result of one check
type ComponentHealth struct {
	Name     string       `json:"name"`
	Status   HealthStatus `json:"status"`
	Critical bool         `json:"critical"`
	Error    string       `json:"error,omitempty"`
}

// SystemHealth represents the complete health information of the bridge
type SystemHealth struct {
	Status     HealthStatus      `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components []ComponentHealth `json:"components"`
	QueueDepth int               `json:"queueDepth"`
	Uptime     string            `json:"uptime"`
	Version    string            `json:"version"`
}

type check struct {
	name     string
	critical bool
	fn       CheckFunc
}

// HealthMonitor aggregates dependency checks into one status
type HealthMonitor struct {
	mu        sync.RWMutex
	logger    *logrus.Entry
	startTime time.Time
	version   string
	timeout   time.Duration

	checks []check
	queue  QueueDepth

	lastHealth SystemHealth
}

// HealthMonitorOption is a functional option for configuring the HealthMonitor
type HealthMonitorOption func(*HealthMonitor)

// WithLogger sets the logger for the health monitor
func WithLogger(logger *logrus.Logger) HealthMonitorOption {
	return func(h *HealthMonitor) {
		h.logger = logger.WithField("component", "health")
	}
}

// WithVersion sets the version reported by the health monitor
func WithVersion(version string) HealthMonitorOption {
	return func(h *HealthMonitor) {
		h.version = version
	}
}

// WithQueue reports the dispatch queue depth; a queue more than half full is degraded
func WithQueue(queue QueueDepth) HealthMonitorOption {
	return func(h *HealthMonitor) {
		h.queue = queue
	}
}

// WithCheck adds a dependency check. A failing critical check makes the bridge unhealthy,
// any other failing check makes it degraded.
func WithCheck(name string, critical bool, fn CheckFunc) HealthMonitorOption {
	return func(h *HealthMonitor) {
		h.checks = append(h.checks, check{name: name, critical: critical, fn: fn})
	}
}

// WithCheckTimeout bounds each check
func WithCheckTimeout(timeout time.Duration) HealthMonitorOption {
	return func(h *HealthMonitor) {
		h.timeout = timeout
	}
}

// AddCheck registers a check after construction
func (h *HealthMonitor) AddCheck(name string, critical bool, fn CheckFunc) {
	h.mu.Lock()
	h.checks = append(h.checks, check{name: name, critical: critical, fn: fn})
	h.mu.Unlock()
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(opts ...HealthMonitorOption) *HealthMonitor {
	h := &HealthMonitor{
		logger:    logrus.NewEntry(logrus.StandardLogger()).WithField("component", "health"),
		startTime: time.Now(),
		version:   "unknown",
		timeout:   2 * time.Second,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Check runs every check and returns the aggregated health
func (h *HealthMonitor) Check(ctx context.Context) SystemHealth {
	h.mu.RLock()
	checks := append([]check(nil), h.checks...)
	h.mu.RUnlock()

	now := time.Now()
	components := make([]ComponentHealth, 0, len(checks))

	for _, c := range checks {
		component := ComponentHealth{Name: c.name, Status: HealthStatusHealthy, Critical: c.critical}

		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := c.fn(checkCtx)
		cancel()

		if err != nil {
			component.Error = err.Error()
			component.Status = HealthStatusDegraded
			if c.critical {
				component.Status = HealthStatusUnhealthy
			}
			h.logger.WithError(err).WithField("check", c.name).Warn("Health check failed")
		}
		components = append(components, component)
	}

	queueDepth := 0
	if h.queue != nil {
		queueDepth = h.queue.Pending()
	}

	health := SystemHealth{
		Status:     h.determineOverallHealth(components, queueDepth),
		Timestamp:  now,
		Components: components,
		QueueDepth: queueDepth,
		Uptime:     now.Sub(h.startTime).Round(time.Second).String(),
		Version:    h.version,
	}

	h.mu.Lock()
	h.lastHealth = health
	h.mu.Unlock()

	return health
}

// GetCurrentHealth returns the result of the last Check
func (h *HealthMonitor) GetCurrentHealth() SystemHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastHealth
}

func (h *HealthMonitor) determineOverallHealth(components []ComponentHealth, queueDepth int) HealthStatus {
	status := HealthStatusHealthy

	for _, c := range components {
		switch c.Status {
		case HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		case HealthStatusDegraded:
			status = HealthStatusDegraded
		}
	}

	// High queue depth indicates the host is producing faster than we dispatch
	if h.queue != nil && h.queue.Capacity() > 0 && queueDepth > h.queue.Capacity()/2 {
		status = HealthStatusDegraded
	}

	return status
}
