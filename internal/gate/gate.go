package gate

import (
	"door-opener-bridge/internal/door"
	"door-opener-bridge/internal/types"
)

// Action is the outcome of evaluating a toggle against a tracked door
type Action int

// Action constants
const (
	ActionNone Action = iota
	ActionNotifyOpened
)

func (a Action) String() string {
	switch a {
	case ActionNotifyOpened:
		return "notify_opened"
	default:
		return "none"
	}
}

// Decision carries the action and, for ActionNotifyOpened, the door to notify
type Decision struct {
	Action Action
	Door   *door.TrackedDoor
	Reason string
}

// Reasons reported with ActionNone
const (
	ReasonUntracked        = "untracked_door"
	ReasonStatic           = "static_toggle"
	ReasonIgnoredDirection = "ignored_direction"
	ReasonUnknownType      = "unknown_toggle_type"
	ReasonInProgress       = "in_progress"
)

func none(reason string) Decision {
	return Decision{Action: ActionNone, Reason: reason}
}

// Evaluate decides whether a completed toggle moved d into its opened condition.
// It never mutates d; the caller applies MarkOpened on ActionNotifyOpened.
func Evaluate(event types.ToggleEvent, d *door.TrackedDoor) Decision {
	if d == nil {
		return none(ReasonUntracked)
	}

	// STATIC is a replay and must be filtered before any direction logic.
	if event.Type == types.ToggleStatic {
		return none(ReasonStatic)
	}

	if event.Type != types.ToggleOpen && event.Type != types.ToggleClose {
		return none(ReasonUnknownType)
	}

	if event.Type == IgnoredDirection(d.InvertOpen()) {
		return none(ReasonIgnoredDirection)
	}

	return Decision{Action: ActionNotifyOpened, Door: d}
}

// IgnoredDirection returns the toggle direction that does not represent "opened"
func IgnoredDirection(invertOpen bool) types.ToggleType {
	if invertOpen {
		return types.ToggleOpen
	}
	return types.ToggleClose
}
