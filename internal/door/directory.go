package door

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"door-opener-bridge/internal/types"
)

// ErrDoorNotFound is returned when a door is not tracked
var ErrDoorNotFound = errors.New("door not found")

// Store persists tracked doors
type Store interface {
	LoadDoors(ctx context.Context) ([]Record, error)
	SaveDoor(ctx context.Context, record Record) error
	DeleteDoor(ctx context.Context, id types.DoorID) error
	Close() error
}

// Directory holds the tracked doors keyed by host door id
type Directory struct {
	mu     sync.RWMutex
	doors  map[types.DoorID]*TrackedDoor
	store  Store
	logger *logrus.Entry
}

// DirectoryOption is a functional option for configuring the Directory
type DirectoryOption func(*Directory)

// WithLogger sets the logger for the directory
func WithLogger(logger *logrus.Logger) DirectoryOption {
	return func(d *Directory) {
		d.logger = logger.WithField("component", "door_directory")
	}
}

// NewDirectory creates an empty directory persisting to store. store may be nil.
func NewDirectory(store Store, opts ...DirectoryOption) *Directory {
	d := &Directory{
		doors:  make(map[types.DoorID]*TrackedDoor),
		store:  store,
		logger: logrus.NewEntry(logrus.StandardLogger()).WithField("component", "door_directory"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Lookup returns the tracked door for id
func (d *Directory) Lookup(id types.DoorID) (*TrackedDoor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	door, ok := d.doors[id]
	return door, ok
}

// Get is Lookup with an error for callers that need one
func (d *Directory) Get(id types.DoorID) (*TrackedDoor, error) {
	door, ok := d.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrDoorNotFound, id)
	}
	return door, nil
}

// All returns the tracked doors ordered by id
func (d *Directory) All() []*TrackedDoor {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doors := make([]*TrackedDoor, 0, len(d.doors))
	for _, door := range d.doors {
		doors = append(doors, door)
	}
	sort.Slice(doors, func(i, j int) bool { return doors[i].ID() < doors[j].ID() })
	return doors
}

// Len returns the number of tracked doors
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.doors)
}

// Track starts tracking door, replacing any door with the same id, and persists it
func (d *Directory) Track(ctx context.Context, door *TrackedDoor) error {
	d.attach(door)

	if err := d.persist(ctx, door); err != nil {
		return err
	}

	d.logger.WithFields(logrus.Fields{
		"door_id":     door.ID(),
		"world":       door.World(),
		"invert_open": door.InvertOpen(),
	}).Info("Door tracked")
	return nil
}

// Untrack stops tracking the door and removes it from the store
func (d *Directory) Untrack(ctx context.Context, id types.DoorID) error {
	d.mu.Lock()
	door, ok := d.doors[id]
	delete(d.doors, id)
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrDoorNotFound, id)
	}
	door.setOnChange(nil)

	if d.store != nil {
		if err := d.store.DeleteDoor(ctx, id); err != nil {
			return fmt.Errorf("failed to delete door %d: %w", id, err)
		}
	}

	d.logger.WithField("door_id", id).Info("Door untracked")
	return nil
}

// Load replaces the tracked doors with the store's content
func (d *Directory) Load(ctx context.Context) error {
	if d.store == nil {
		return nil
	}

	records, err := d.store.LoadDoors(ctx)
	if err != nil {
		return fmt.Errorf("failed to load doors: %w", err)
	}

	d.mu.Lock()
	for _, door := range d.doors {
		door.setOnChange(nil)
	}
	d.doors = make(map[types.DoorID]*TrackedDoor, len(records))
	d.mu.Unlock()

	for _, record := range records {
		d.attach(FromRecord(record))
	}

	if len(records) == 0 {
		d.logger.Info("No doors defined")
	} else {
		d.logger.WithField("count", len(records)).Info("Doors loaded")
	}
	return nil
}

// Save persists every tracked door
func (d *Directory) Save(ctx context.Context) error {
	if d.store == nil {
		return nil
	}

	var errs []error
	for _, door := range d.All() {
		if err := d.persist(ctx, door); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Directory) attach(door *TrackedDoor) {
	d.mu.Lock()
	if previous, ok := d.doors[door.ID()]; ok && previous != door {
		previous.setOnChange(nil)
	}
	d.doors[door.ID()] = door
	d.mu.Unlock()

	door.setOnChange(d.doorChanged)
}

func (d *Directory) doorChanged(door *TrackedDoor) {
	if err := d.persist(context.Background(), door); err != nil {
		d.logger.WithError(err).WithField("door_id", door.ID()).Error("Failed to persist door change")
	}
}

func (d *Directory) persist(ctx context.Context, door *TrackedDoor) error {
	if d.store == nil {
		return nil
	}
	if err := d.store.SaveDoor(ctx, door.Record()); err != nil {
		return fmt.Errorf("failed to save door %d: %w", door.ID(), err)
	}
	return nil
}
