package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidEnvelope is returned when a transport payload cannot be turned into an event
var ErrInvalidEnvelope = errors.New("invalid event envelope")

// Envelope type constants
const (
	EnvelopeToggle      = "toggle"
	EnvelopeInteraction = "interaction"
)

// Envelope wraps a host event for transports that carry both kinds on one channel
type Envelope struct {
	Type        string            `json:"type"`
	Toggle      *ToggleEvent      `json:"toggle,omitempty"`
	Interaction *InteractionEvent `json:"interaction,omitempty"`
}

// NewToggleEnvelope wraps a toggle event
func NewToggleEnvelope(event ToggleEvent) Envelope {
	return Envelope{Type: EnvelopeToggle, Toggle: &event}
}

// NewInteractionEnvelope wraps an interaction event
func NewInteractionEnvelope(event *InteractionEvent) Envelope {
	return Envelope{Type: EnvelopeInteraction, Interaction: event}
}

// DecodeEnvelope parses and validates a JSON envelope
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Validate checks that the envelope carries exactly the event its type names
func (e Envelope) Validate() error {
	switch e.Type {
	case EnvelopeToggle:
		if e.Toggle == nil {
			return fmt.Errorf("%w: toggle envelope without toggle event", ErrInvalidEnvelope)
		}
		return ValidateToggleEvent(*e.Toggle)
	case EnvelopeInteraction:
		if e.Interaction == nil {
			return fmt.Errorf("%w: interaction envelope without interaction event", ErrInvalidEnvelope)
		}
		return ValidateInteractionEvent(e.Interaction)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEnvelope, e.Type)
	}
}

// ValidateToggleEvent checks the fields a toggle event must carry
func ValidateToggleEvent(event ToggleEvent) error {
	switch event.Type {
	case ToggleOpen, ToggleClose, ToggleStatic:
		return nil
	default:
		return fmt.Errorf("%w: toggle type is required", ErrInvalidEnvelope)
	}
}

// ValidateInteractionEvent checks the fields an interaction event must carry
func ValidateInteractionEvent(event *InteractionEvent) error {
	if event.Actor == uuid.Nil {
		return fmt.Errorf("%w: actor is required", ErrInvalidEnvelope)
	}
	if !IsValidInteractionAction(event.Action) {
		return fmt.Errorf("%w: unknown interaction action %q", ErrInvalidEnvelope, event.Action)
	}
	return nil
}
