package gate

import (
	"github.com/sirupsen/logrus"

	"door-opener-bridge/internal/door"
	"door-opener-bridge/internal/types"
)

// DoorLookup resolves a host door id to a tracked door
type DoorLookup interface {
	Lookup(id types.DoorID) (*door.TrackedDoor, bool)
}

// ToggleListener applies Evaluate to toggle events coming from the host
type ToggleListener struct {
	doors  DoorLookup
	logger *logrus.Entry
}

// ListenerOption is a functional option for configuring the ToggleListener
type ListenerOption func(*ToggleListener)

// WithLogger sets the logger for the listener
func WithLogger(logger *logrus.Logger) ListenerOption {
	return func(l *ToggleListener) {
		l.logger = logger.WithField("component", "toggle_gate")
	}
}

// NewToggleListener creates a listener resolving doors through doors
func NewToggleListener(doors DoorLookup, opts ...ListenerOption) *ToggleListener {
	l := &ToggleListener{
		doors:  doors,
		logger: logrus.NewEntry(logrus.StandardLogger()).WithField("component", "toggle_gate"),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// OnToggle handles one toggle event and returns the decision that was applied
func (l *ToggleListener) OnToggle(event types.ToggleEvent) Decision {
	if !event.Completed {
		return none(ReasonInProgress)
	}

	d, _ := l.doors.Lookup(event.DoorID)
	decision := Evaluate(event, d)

	fields := logrus.Fields{
		"door_id":     event.DoorID,
		"toggle_type": event.Type.String(),
		"action":      decision.Action.String(),
	}
	if decision.Reason != "" {
		fields["reason"] = decision.Reason
	}

	if decision.Action == ActionNotifyOpened {
		decision.Door.MarkOpened()
		l.logger.WithFields(fields).Info("Door reached opened condition")
		return decision
	}

	l.logger.WithFields(fields).Debug("Toggle ignored")
	return decision
}
