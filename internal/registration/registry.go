package registration

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"door-opener-bridge/internal/logging"
	"door-opener-bridge/internal/types"
)

// Intent captures interactions of one actor until it reports done
type Intent interface {
	// Invoke is called for every interaction of the registered actor.
	// Returning true consumes the registration. An error also consumes it.
	Invoke(event *types.InteractionEvent) (done bool, err error)
}

// IntentFunc adapts a function to the Intent interface
type IntentFunc func(event *types.InteractionEvent) (bool, error)

// Invoke calls f(event)
func (f IntentFunc) Invoke(event *types.InteractionEvent) (bool, error) {
	return f(event)
}

// Outcome reports what Dispatch did with an interaction
type Outcome string

// Outcome constants
const (
	OutcomeNone     Outcome = "none"
	OutcomeRetained Outcome = "retained"
	OutcomeConsumed Outcome = "consumed"
	OutcomeFailed   Outcome = "failed"
)

// entry boxes an intent so removal can check identity without comparing intent values
type entry struct {
	intent Intent
}

// Registry holds at most one pending intent per actor
type Registry struct {
	mu      sync.Mutex
	pending map[uuid.UUID]*entry

	// dispatchMu keeps intents from running concurrently with each other
	dispatchMu sync.Mutex

	onConsumed func()
	logger     *logrus.Entry
}

// RegistryOption is a functional option for configuring the Registry
type RegistryOption func(*Registry)

// WithLogger sets the logger for the registry
func WithLogger(logger *logrus.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logging.NewComponentLogger(logger, "interaction_registry")
	}
}

// WithConsumedHook sets a function run after an intent reported done
func WithConsumedHook(fn func()) RegistryOption {
	return func(r *Registry) {
		r.onConsumed = fn
	}
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		pending: make(map[uuid.UUID]*entry),
		logger:  logging.NewComponentLogger(logrus.StandardLogger(), "interaction_registry"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register binds intent to actor, replacing any intent already pending for it
func (r *Registry) Register(actor uuid.UUID, intent Intent) {
	r.mu.Lock()
	_, replaced := r.pending[actor]
	r.pending[actor] = &entry{intent: intent}
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"actor":    actor,
		"replaced": replaced,
	}).Debug("Interaction registered")
}

// Unregister drops the pending intent of actor and reports whether there was one
func (r *Registry) Unregister(actor uuid.UUID) bool {
	r.mu.Lock()
	_, ok := r.pending[actor]
	delete(r.pending, actor)
	r.mu.Unlock()

	if ok {
		r.logger.WithField("actor", actor).Debug("Interaction unregistered")
	}
	return ok
}

// Pending reports whether actor has an intent registered
func (r *Registry) Pending(actor uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[actor]
	return ok
}

// Len returns the number of pending registrations
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Dispatch routes an interaction to the actor's pending intent, if any.
// Failing intents are logged and removed; nothing is returned to the caller but the outcome.
func (r *Registry) Dispatch(event *types.InteractionEvent) Outcome {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	e, ok := r.pending[event.Actor]
	r.mu.Unlock()

	if !ok {
		return OutcomeNone
	}

	done, err := invoke(e.intent, event)
	if err != nil {
		r.remove(event.Actor, e)
		logging.LogStructuredError(r.logger, logging.NewStructuredError(err, logging.ErrorContext{
			Category:  logging.ErrorCategoryRegistration,
			Severity:  logging.ErrorSeverityMedium,
			Component: "interaction_registry",
			Operation: "dispatch",
			Metadata: map[string]interface{}{
				"actor":  event.Actor.String(),
				"action": string(event.Action),
			},
		}))
		return OutcomeFailed
	}

	if !done {
		return OutcomeRetained
	}

	r.remove(event.Actor, e)
	r.logger.WithField("actor", event.Actor).Debug("Interaction registration consumed")

	if r.onConsumed != nil {
		r.onConsumed()
	}
	return OutcomeConsumed
}

// remove deletes the entry only if it is still the one that was invoked
func (r *Registry) remove(actor uuid.UUID, e *entry) {
	r.mu.Lock()
	if r.pending[actor] == e {
		delete(r.pending, actor)
	}
	r.mu.Unlock()
}

func invoke(intent Intent, event *types.InteractionEvent) (done bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			done = true
			err = fmt.Errorf("intent panicked: %v", rec)
		}
	}()

	return intent.Invoke(event)
}
