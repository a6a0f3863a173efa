package door

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"door-opener-bridge/internal/types"
)

func TestNewTrackedDoor(t *testing.T) {
	d := NewTrackedDoor(7, "world", types.BlockPos{X: 1, Y: 2, Z: 3})

	assert.Equal(t, types.DoorID(7), d.ID())
	assert.Equal(t, "world", d.World())
	assert.True(t, d.Enabled())
	assert.False(t, d.InvertOpen())
	assert.Equal(t, 0, d.StayOpen())
	assert.False(t, d.HeldOpen(time.Now()))
}

func TestTrackedDoor_MarkOpened(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := FromRecord(Record{ID: 1, Enabled: true, StayOpen: 30})
	d.now = func() time.Time { return base }

	d.MarkOpening()
	assert.True(t, d.HeldOpen(base.Add(time.Hour)), "waiting for open holds the door")

	d.MarkOpened()
	assert.Equal(t, base.Add(30*time.Second), d.OpenTill())
	assert.True(t, d.HeldOpen(base.Add(29*time.Second)))
	assert.False(t, d.HeldOpen(base.Add(30*time.Second)))
}

func TestTrackedDoor_InvertOpen(t *testing.T) {
	d := NewTrackedDoor(1, "world", types.BlockPos{})

	assert.True(t, d.ApplyOpen(true))
	assert.True(t, d.ToggleInvertOpen())
	assert.False(t, d.ApplyOpen(true))

	d.SetInvertOpen(false)
	assert.False(t, d.InvertOpen())
}

func TestTrackedDoor_OpenDirection(t *testing.T) {
	d := NewTrackedDoor(1, "world", types.BlockPos{})
	assert.Equal(t, types.ToggleOpen, d.OpenDirection())

	d.SetInvertOpen(true)
	assert.Equal(t, types.ToggleClose, d.OpenDirection())
}

func TestTrackedDoor_MoveTo(t *testing.T) {
	d := NewTrackedDoor(1, "world", types.BlockPos{X: 1})

	var calls int
	d.setOnChange(func(*TrackedDoor) { calls++ })

	d.MoveTo("nether", types.BlockPos{X: -4, Y: 70, Z: 9})

	assert.Equal(t, 1, calls)
	assert.Equal(t, "nether", d.Record().World)
	assert.Equal(t, types.BlockPos{X: -4, Y: 70, Z: 9}, d.Position())
}

func TestTrackedDoor_ChangeHook(t *testing.T) {
	d := NewTrackedDoor(1, "world", types.BlockPos{})

	var calls int
	d.setOnChange(func(*TrackedDoor) { calls++ })

	d.MarkOpened()
	d.SetStayOpen(-5)
	d.SetEnabled(false)
	d.ToggleInvertOpen()
	d.MarkOpening()

	assert.Equal(t, 4, calls, "MarkOpening does not persist")
	assert.Equal(t, 0, d.StayOpen())
}

type memoryStore struct {
	mu      sync.Mutex
	records map[types.DoorID]Record
	saves   int
	saveErr error
}

func newMemoryStore(records ...Record) *memoryStore {
	s := &memoryStore{records: make(map[types.DoorID]Record)}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *memoryStore) LoadDoors(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

func (s *memoryStore) SaveDoor(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.records[record.ID] = record
	return nil
}

func (s *memoryStore) DeleteDoor(ctx context.Context, id types.DoorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) get(id types.DoorID) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return r, ok
}

func TestDirectory_LoadAndLookup(t *testing.T) {
	store := newMemoryStore(
		Record{ID: 9, World: "nether", Enabled: true},
		Record{ID: 7, World: "world", Enabled: true, InvertOpen: true},
	)
	dir := NewDirectory(store)

	require.NoError(t, dir.Load(context.Background()))
	assert.Equal(t, 2, dir.Len())

	d, ok := dir.Lookup(7)
	require.True(t, ok)
	assert.True(t, d.InvertOpen())

	_, ok = dir.Lookup(8)
	assert.False(t, ok)

	_, err := dir.Get(8)
	assert.ErrorIs(t, err, ErrDoorNotFound)

	all := dir.All()
	require.Len(t, all, 2)
	assert.Equal(t, types.DoorID(7), all[0].ID())
	assert.Equal(t, types.DoorID(9), all[1].ID())
}

func TestDirectory_TrackPersistsChanges(t *testing.T) {
	store := newMemoryStore()
	dir := NewDirectory(store)
	ctx := context.Background()

	d := NewTrackedDoor(3, "world", types.BlockPos{X: 10})
	require.NoError(t, dir.Track(ctx, d))

	record, ok := store.get(3)
	require.True(t, ok)
	assert.False(t, record.InvertOpen)

	d.SetInvertOpen(true)
	record, _ = store.get(3)
	assert.True(t, record.InvertOpen)

	require.NoError(t, dir.Untrack(ctx, 3))
	_, ok = store.get(3)
	assert.False(t, ok)

	savesBefore := store.saves
	d.SetStayOpen(10)
	assert.Equal(t, savesBefore, store.saves, "untracked door no longer persists")

	assert.ErrorIs(t, dir.Untrack(ctx, 3), ErrDoorNotFound)
}

func TestDirectory_SaveReportsErrors(t *testing.T) {
	store := newMemoryStore()
	dir := NewDirectory(store)
	require.NoError(t, dir.Track(context.Background(), NewTrackedDoor(1, "world", types.BlockPos{})))

	store.saveErr = errors.New("disk full")
	err := dir.Save(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestDirectory_WithoutStore(t *testing.T) {
	dir := NewDirectory(nil)
	ctx := context.Background()

	require.NoError(t, dir.Load(ctx))
	require.NoError(t, dir.Track(ctx, NewTrackedDoor(1, "world", types.BlockPos{})))
	require.NoError(t, dir.Save(ctx))

	d, ok := dir.Lookup(1)
	require.True(t, ok)
	d.MarkOpened()
}
