package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	pending  int
	capacity int
}

func (q fakeQueue) Pending() int  { return q.pending }
func (q fakeQueue) Capacity() int { return q.capacity }

func ok(context.Context) error { return nil }

func failing(context.Context) error { return errors.New("connection refused") }

func TestHealthMonitor_Check(t *testing.T) {
	logger, hook := test.NewNullLogger()

	tests := []struct {
		name     string
		opts     []HealthMonitorOption
		expected HealthStatus
	}{
		{
			name:     "no checks",
			expected: HealthStatusHealthy,
		},
		{
			name:     "all checks pass",
			opts:     []HealthMonitorOption{WithCheck("door_store", true, ok), WithCheck("redis", false, ok)},
			expected: HealthStatusHealthy,
		},
		{
			name:     "non-critical check fails",
			opts:     []HealthMonitorOption{WithCheck("door_store", true, ok), WithCheck("redis", false, failing)},
			expected: HealthStatusDegraded,
		},
		{
			name:     "critical check fails",
			opts:     []HealthMonitorOption{WithCheck("door_store", true, failing), WithCheck("redis", false, failing)},
			expected: HealthStatusUnhealthy,
		},
		{
			name:     "queue more than half full",
			opts:     []HealthMonitorOption{WithQueue(fakeQueue{pending: 6, capacity: 10})},
			expected: HealthStatusDegraded,
		},
		{
			name:     "queue half full",
			opts:     []HealthMonitorOption{WithQueue(fakeQueue{pending: 5, capacity: 10})},
			expected: HealthStatusHealthy,
		},
		{
			name:     "unbuffered queue",
			opts:     []HealthMonitorOption{WithQueue(fakeQueue{})},
			expected: HealthStatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthMonitor(append(tt.opts, WithLogger(logger), WithVersion("1.2.3"))...)

			health := h.Check(context.Background())

			assert.Equal(t, tt.expected, health.Status)
			assert.Equal(t, "1.2.3", health.Version)
			assert.Equal(t, health, h.GetCurrentHealth())
		})
	}

	assert.NotEmpty(t, hook.AllEntries())
}

func TestHealthMonitor_ComponentDetails(t *testing.T) {
	h := NewHealthMonitor(
		WithCheck("door_store", true, ok),
		WithCheck("redis", false, failing),
		WithQueue(fakeQueue{pending: 3, capacity: 256}),
	)

	health := h.Check(context.Background())

	require.Len(t, health.Components, 2)
	assert.Equal(t, ComponentHealth{Name: "door_store", Status: HealthStatusHealthy, Critical: true}, health.Components[0])
	assert.Equal(t, "redis", health.Components[1].Name)
	assert.Equal(t, HealthStatusDegraded, health.Components[1].Status)
	assert.Equal(t, "connection refused", health.Components[1].Error)
	assert.Equal(t, 3, health.QueueDepth)
}

func TestHealthMonitor_CheckTimeout(t *testing.T) {
	h := NewHealthMonitor(
		WithCheckTimeout(20*time.Millisecond),
		WithCheck("slow", true, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	)

	start := time.Now()
	health := h.Check(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, HealthStatusUnhealthy, health.Status)
}

func TestHealthStatus_String(t *testing.T) {
	assert.Equal(t, "degraded", HealthStatusDegraded.String())
}

func TestHealthMonitor_AddCheck(t *testing.T) {
	h := NewHealthMonitor(WithCheck("door_store", true, ok))
	assert.Equal(t, HealthStatusHealthy, h.Check(context.Background()).Status)

	h.AddCheck("redis", false, failing)

	health := h.Check(context.Background())
	assert.Equal(t, HealthStatusDegraded, health.Status)
	assert.Len(t, health.Components, 2)
}
