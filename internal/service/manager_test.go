package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"door-opener-bridge/internal/config"
	"door-opener-bridge/internal/database"
	"door-opener-bridge/internal/door"
	"door-opener-bridge/internal/health"
	"door-opener-bridge/internal/logging"
	"door-opener-bridge/internal/registration"
	"door-opener-bridge/internal/types"
)

type closeTrackingStore struct {
	mu     sync.Mutex
	saved  int
	closed bool
}

func (s *closeTrackingStore) LoadDoors(context.Context) ([]door.Record, error) {
	return []door.Record{{ID: 1, World: "world", Enabled: true}}, nil
}

func (s *closeTrackingStore) SaveDoor(context.Context, door.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved++
	return nil
}

func (s *closeTrackingStore) DeleteDoor(context.Context, types.DoorID) error {
	return nil
}

func (s *closeTrackingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *closeTrackingStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "doors.db")
	cfg.API.Enabled = false
	cfg.Redis.Enabled = false
	return cfg
}

func seedDoors(t *testing.T, path string, records ...door.Record) {
	t.Helper()

	store, err := database.NewSQLiteStore(database.Config{DatabasePath: path})
	require.NoError(t, err)
	defer store.Close()

	for _, r := range records {
		require.NoError(t, store.SaveDoor(context.Background(), r))
	}
}

func TestNewManagerLoadsDoors(t *testing.T) {
	cfg := testConfig(t)
	seedDoors(t, cfg.Database.Path,
		door.Record{ID: 1, World: "world", Enabled: true},
		door.Record{ID: 2, World: "nether", Enabled: true, InvertOpen: true},
	)

	logger, _ := test.NewNullLogger()
	m, err := NewManager(context.Background(), cfg, WithLogger(logger))
	require.NoError(t, err)

	assert.Equal(t, 2, m.Doors().Len())
	d, ok := m.Doors().Lookup(2)
	require.True(t, ok)
	assert.True(t, d.InvertOpen())
	assert.False(t, m.IsRunning())
	assert.Zero(t, m.Uptime())

	report := m.Health().Check(context.Background())
	assert.Equal(t, health.HealthStatusHealthy, report.Status)
	require.Len(t, report.Components, 1)
	assert.Equal(t, "door_store", report.Components[0].Name)
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"

	_, err := NewManager(context.Background(), cfg)
	assert.Error(t, err)
}

func TestManagerRunsAndPersistsOnShutdown(t *testing.T) {
	cfg := testConfig(t)
	seedDoors(t, cfg.Database.Path, door.Record{ID: 5, World: "world", Enabled: true, StayOpen: 10})

	logger, _ := test.NewNullLogger()
	m, err := NewManager(context.Background(), cfg, WithLogger(logger))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	require.Eventually(t, m.IsRunning, 2*time.Second, 10*time.Millisecond)

	// A consumed registration flips the invert flag through the dispatcher
	actor := uuid.New()
	m.Plugin().Registry().Register(actor, registration.IntentFunc(func(*types.InteractionEvent) (bool, error) {
		d, _ := m.Doors().Lookup(5)
		d.SetInvertOpen(true)
		return true, nil
	}))

	result, err := m.Dispatcher().Submit(ctx, types.NewInteractionEnvelope(&types.InteractionEvent{
		Actor:  actor,
		Action: types.ActionRightClickBlock,
	}))
	require.NoError(t, err)
	assert.Equal(t, registration.OutcomeConsumed, result.Outcome)

	// OPEN is ignored once inverted
	_, err = m.Dispatcher().Submit(ctx, types.NewToggleEnvelope(types.ToggleEvent{
		DoorID: 5, Type: types.ToggleOpen, Completed: true,
	}))
	require.NoError(t, err)
	d, _ := m.Doors().Lookup(5)
	assert.False(t, d.HeldOpen(time.Now()))

	_, err = m.Dispatcher().Submit(ctx, types.NewToggleEnvelope(types.ToggleEvent{
		DoorID: 5, Type: types.ToggleClose, Completed: true,
	}))
	require.NoError(t, err)
	assert.True(t, d.HeldOpen(time.Now()))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}
	assert.False(t, m.IsRunning())

	store, err := database.NewSQLiteStore(database.Config{DatabasePath: cfg.Database.Path})
	require.NoError(t, err)
	defer store.Close()

	records, err := store.LoadDoors(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].InvertOpen)
}

func TestManagerStop(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m, err := NewManager(context.Background(), testConfig(t), WithLogger(logger))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background()) }()
	require.Eventually(t, m.IsRunning, 2*time.Second, 10*time.Millisecond)

	m.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}

	assert.Error(t, m.Start(context.Background()))
}

func TestManagerStartClosesStoreWhenRedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	store := &closeTrackingStore{}
	logger, _ := test.NewNullLogger()
	m, err := NewManager(context.Background(), cfg, WithLogger(logger), WithStore(store))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background()) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("start did not give up on redis")
	}

	assert.True(t, store.isClosed())
	assert.False(t, m.IsRunning())
	assert.Error(t, m.Start(context.Background()))
}

func TestNewManagerLogsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"

	logger, hook := test.NewNullLogger()
	_, err := NewManager(context.Background(), cfg, WithLogger(logger))
	require.Error(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logging.ErrorCategoryConfig, entry.Data["error_category"])
	assert.Equal(t, "validate", entry.Data["operation"])
}
