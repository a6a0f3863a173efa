package door

import (
	"sync"
	"time"

	"door-opener-bridge/internal/types"
)

// Record is the persisted form of a tracked door
type Record struct {
	ID         types.DoorID   `json:"id"`
	World      string         `json:"world"`
	Position   types.BlockPos `json:"position"`
	Enabled    bool           `json:"enabled"`
	InvertOpen bool           `json:"invertOpen"`
	StayOpen   int            `json:"stayOpen"` // seconds
}

// TrackedDoor is a host door whose condition state the bridge manages
type TrackedDoor struct {
	mu sync.RWMutex

	id         types.DoorID
	world      string
	position   types.BlockPos
	enabled    bool
	invertOpen bool
	stayOpen   int

	waitForOpen bool
	openTill    time.Time

	now      func() time.Time
	onChange func(*TrackedDoor)
}

// NewTrackedDoor creates an enabled door that treats the OPEN direction as opened
func NewTrackedDoor(id types.DoorID, world string, position types.BlockPos) *TrackedDoor {
	return FromRecord(Record{
		ID:       id,
		World:    world,
		Position: position,
		Enabled:  true,
	})
}

// FromRecord restores a door from its persisted form
func FromRecord(r Record) *TrackedDoor {
	return &TrackedDoor{
		id:         r.ID,
		world:      r.World,
		position:   r.Position,
		enabled:    r.Enabled,
		invertOpen: r.InvertOpen,
		stayOpen:   r.StayOpen,
		now:        time.Now,
	}
}

// Record returns a snapshot of the persisted fields
func (d *TrackedDoor) Record() Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return Record{
		ID:         d.id,
		World:      d.world,
		Position:   d.position,
		Enabled:    d.enabled,
		InvertOpen: d.invertOpen,
		StayOpen:   d.stayOpen,
	}
}

func (d *TrackedDoor) ID() types.DoorID {
	return d.id
}

func (d *TrackedDoor) World() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.world
}

func (d *TrackedDoor) Position() types.BlockPos {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.position
}

// MoveTo relocates the door's anchor block and persists it
func (d *TrackedDoor) MoveTo(world string, position types.BlockPos) {
	d.mu.Lock()
	d.world = world
	d.position = position
	d.mu.Unlock()
	d.changed()
}

// InvertOpen reports whether the door's opened condition is the physical CLOSE direction.
// Doors registered while standing open are tracked this way.
func (d *TrackedDoor) InvertOpen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.invertOpen
}

func (d *TrackedDoor) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// StayOpen returns how many seconds the door is held open after it opened
func (d *TrackedDoor) StayOpen() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stayOpen
}

// MarkOpening records that an open was requested and the toggle is in flight
func (d *TrackedDoor) MarkOpening() {
	d.mu.Lock()
	d.waitForOpen = true
	d.mu.Unlock()
}

// MarkOpened is called once a toggle moved the door into its opened condition.
// It starts the stay-open window and persists the door.
func (d *TrackedDoor) MarkOpened() {
	d.mu.Lock()
	d.waitForOpen = false
	d.openTill = d.now().Add(time.Duration(d.stayOpen) * time.Second)
	d.mu.Unlock()

	d.changed()
}

// HeldOpen reports whether condition checks should be skipped and the door kept open
func (d *TrackedDoor) HeldOpen(now time.Time) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.waitForOpen {
		return true
	}
	return d.openTill.After(now)
}

// OpenTill returns the end of the current stay-open window
func (d *TrackedDoor) OpenTill() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.openTill
}

// ApplyOpen translates a desired logical state into the physical one
func (d *TrackedDoor) ApplyOpen(open bool) bool {
	if d.InvertOpen() {
		return !open
	}
	return open
}

// OpenDirection is the toggle the host has to perform to open the door
func (d *TrackedDoor) OpenDirection() types.ToggleType {
	if d.ApplyOpen(true) {
		return types.ToggleOpen
	}
	return types.ToggleClose
}

func (d *TrackedDoor) SetInvertOpen(invert bool) {
	d.mu.Lock()
	d.invertOpen = invert
	d.mu.Unlock()
	d.changed()
}

// ToggleInvertOpen flips the invert flag and returns the new value
func (d *TrackedDoor) ToggleInvertOpen() bool {
	d.mu.Lock()
	d.invertOpen = !d.invertOpen
	invert := d.invertOpen
	d.mu.Unlock()

	d.changed()
	return invert
}

func (d *TrackedDoor) SetStayOpen(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	d.mu.Lock()
	d.stayOpen = seconds
	d.mu.Unlock()
	d.changed()
}

func (d *TrackedDoor) SetEnabled(enabled bool) {
	d.mu.Lock()
	d.enabled = enabled
	d.mu.Unlock()
	d.changed()
}

func (d *TrackedDoor) setOnChange(fn func(*TrackedDoor)) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

func (d *TrackedDoor) changed() {
	d.mu.RLock()
	fn := d.onChange
	d.mu.RUnlock()

	if fn != nil {
		fn(d)
	}
}
