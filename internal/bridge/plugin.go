package bridge

import (
	"door-opener-bridge/internal/gate"
	"door-opener-bridge/internal/registration"
	"door-opener-bridge/internal/types"
)

// Host is what the host event bus calls into. Calls arrive one at a time.
type Host interface {
	OnToggle(event types.ToggleEvent)
	OnInteraction(event *types.InteractionEvent) registration.Outcome
}

// Plugin routes host events to the toggle gate and the interaction registry
type Plugin struct {
	toggles  *gate.ToggleListener
	registry *registration.Registry
}

// NewPlugin composes the two event consumers
func NewPlugin(toggles *gate.ToggleListener, registry *registration.Registry) *Plugin {
	return &Plugin{
		toggles:  toggles,
		registry: registry,
	}
}

// OnToggle implements Host
func (p *Plugin) OnToggle(event types.ToggleEvent) {
	p.toggles.OnToggle(event)
}

// OnInteraction implements Host
func (p *Plugin) OnInteraction(event *types.InteractionEvent) registration.Outcome {
	return p.registry.Dispatch(event)
}

// Registry returns the interaction registry so collaborators can register intents
func (p *Plugin) Registry() *registration.Registry {
	return p.registry
}
