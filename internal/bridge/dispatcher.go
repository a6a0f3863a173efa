package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"door-opener-bridge/internal/logging"
	"door-opener-bridge/internal/registration"
	"door-opener-bridge/internal/types"
)

// ErrDispatcherClosed is returned by Submit once the dispatcher stopped
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Result is what a submitter learns about its event
type Result struct {
	Type      string               `json:"type"`
	Outcome   registration.Outcome `json:"outcome,omitempty"`
	Cancelled bool                 `json:"cancelled"`
}

type job struct {
	env   types.Envelope
	reply chan Result
}

// Dispatcher delivers events from every transport to the Host on a single goroutine,
// in the order they were submitted.
type Dispatcher struct {
	host   Host
	jobs   chan job
	logger *logrus.Entry

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	started bool

	// stopping is closed before the write lock is taken so blocked senders let go of the read lock
	stopping chan struct{}
	stopOnce sync.Once
}

// NewDispatcher creates a dispatcher with a queue of buffer pending events
func NewDispatcher(host Host, buffer int, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		host:   host,
		jobs:   make(chan job, buffer),
		logger:   logging.NewComponentLogger(logger, "dispatcher"),
		done:     make(chan struct{}),
		stopping: make(chan struct{}),
	}
}

// Start runs the dispatch loop until ctx is cancelled or Stop is called
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	go d.loop(ctx)
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			// close may wait on a Submit blocked on a full queue, so drain concurrently
			go d.close()
			d.drain()
			return
		case j, ok := <-d.jobs:
			if !ok {
				return
			}
			j.reply <- d.deliver(j.env)
		}
	}
}

// drain answers events queued before shutdown so no submitter blocks forever
func (d *Dispatcher) drain() {
	for j := range d.jobs {
		j.reply <- d.deliver(j.env)
	}
}

func (d *Dispatcher) deliver(env types.Envelope) Result {
	switch env.Type {
	case types.EnvelopeToggle:
		d.host.OnToggle(*env.Toggle)
		return Result{Type: env.Type}
	case types.EnvelopeInteraction:
		outcome := d.host.OnInteraction(env.Interaction)
		return Result{
			Type:      env.Type,
			Outcome:   outcome,
			Cancelled: env.Interaction.Cancelled(),
		}
	default:
		d.logger.WithField("type", env.Type).Warn("Dropping event of unknown type")
		return Result{Type: env.Type}
	}
}

// Submit queues env and waits until the host handled it
func (d *Dispatcher) Submit(ctx context.Context, env types.Envelope) (Result, error) {
	if err := env.Validate(); err != nil {
		return Result{}, err
	}

	reply := make(chan Result, 1)

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return Result{}, ErrDispatcherClosed
	}
	select {
	case d.jobs <- job{env: env, reply: reply}:
		d.mu.RUnlock()
	case <-d.stopping:
		d.mu.RUnlock()
		return Result{}, ErrDispatcherClosed
	case <-ctx.Done():
		d.mu.RUnlock()
		return Result{}, fmt.Errorf("failed to queue event: %w", ctx.Err())
	}

	select {
	case result := <-reply:
		return result, nil
	case <-ctx.Done():
		return Result{}, fmt.Errorf("event queued but not acknowledged: %w", ctx.Err())
	}
}

// Stop stops accepting events and waits until queued ones were handled.
// Events queued on a dispatcher that was never started are handled by Stop itself.
func (d *Dispatcher) Stop() {
	d.close()

	d.mu.Lock()
	started := d.started
	d.started = true
	d.mu.Unlock()

	if started {
		<-d.done
		return
	}
	d.drain()
	close(d.done)
}

func (d *Dispatcher) close() {
	d.stopOnce.Do(func() { close(d.stopping) })

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
}

// Pending returns the number of queued events not yet picked up
func (d *Dispatcher) Pending() int {
	return len(d.jobs)
}

// Capacity returns the size of the event queue
func (d *Dispatcher) Capacity() int {
	return cap(d.jobs)
}
