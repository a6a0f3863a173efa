package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DoorID is the stable identifier the host game engine assigns to a door
type DoorID uint64

// ToggleType is the direction a door mechanism moved in
type ToggleType int

// ToggleType constants
const (
	ToggleOpen ToggleType = iota + 1
	ToggleClose
	ToggleStatic
)

// String returns the wire name of the toggle type
func (t ToggleType) String() string {
	switch t {
	case ToggleOpen:
		return "open"
	case ToggleClose:
		return "close"
	case ToggleStatic:
		return "static"
	default:
		return fmt.Sprintf("toggle(%d)", int(t))
	}
}

// ParseToggleType parses the wire name of a toggle type
func ParseToggleType(s string) (ToggleType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return ToggleOpen, nil
	case "close":
		return ToggleClose, nil
	case "static":
		return ToggleStatic, nil
	default:
		return 0, fmt.Errorf("unknown toggle type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (t ToggleType) MarshalText() ([]byte, error) {
	switch t {
	case ToggleOpen, ToggleClose, ToggleStatic:
		return []byte(t.String()), nil
	default:
		return nil, fmt.Errorf("cannot marshal toggle type %d", int(t))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *ToggleType) UnmarshalText(text []byte) error {
	parsed, err := ParseToggleType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ToggleEvent is delivered by the host once a door mechanism has moved
type ToggleEvent struct {
	DoorID    DoorID     `json:"doorId"`
	Type      ToggleType `json:"toggleType"`
	Completed bool       `json:"completed"`
	Timestamp time.Time  `json:"timestamp,omitempty"`
}

// InteractionAction describes what kind of click the actor performed
type InteractionAction string

// InteractionAction constants
const (
	ActionLeftClickBlock  InteractionAction = "left_click_block"
	ActionRightClickBlock InteractionAction = "right_click_block"
	ActionLeftClickAir    InteractionAction = "left_click_air"
	ActionRightClickAir   InteractionAction = "right_click_air"
	ActionPhysical        InteractionAction = "physical"
)

// IsValidInteractionAction checks if the provided action is known
func IsValidInteractionAction(action InteractionAction) bool {
	switch action {
	case ActionLeftClickBlock, ActionRightClickBlock, ActionLeftClickAir, ActionRightClickAir, ActionPhysical:
		return true
	default:
		return false
	}
}

// BlockPos is an integer block coordinate
type BlockPos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (p BlockPos) String() string {
	return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z)
}

// InteractionEvent is delivered by the host whenever an actor interacts with the world.
// Everything besides Actor is payload that only intents look at.
type InteractionEvent struct {
	Actor     uuid.UUID         `json:"actor"`
	World     string            `json:"world,omitempty"`
	Action    InteractionAction `json:"action"`
	Block     *BlockPos         `json:"block,omitempty"`
	Timestamp time.Time         `json:"timestamp,omitempty"`

	cancelled bool
}

// Cancel asks the host to suppress the interaction's default effect
func (e *InteractionEvent) Cancel() {
	e.cancelled = true
}

// Cancelled reports whether an intent cancelled the interaction
func (e *InteractionEvent) Cancelled() bool {
	return e.cancelled
}
