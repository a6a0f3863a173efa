package registration

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"door-opener-bridge/internal/types"
)

func newTestRegistry(opts ...RegistryOption) (*Registry, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	return NewRegistry(append([]RegistryOption{WithLogger(logger)}, opts...)...), &buf
}

func click(actor uuid.UUID) *types.InteractionEvent {
	return &types.InteractionEvent{Actor: actor, Action: types.ActionRightClickBlock, Block: &types.BlockPos{X: 1}}
}

// countingIntent records how often it ran and answers with done
type countingIntent struct {
	calls int
	done  bool
}

func (c *countingIntent) Invoke(*types.InteractionEvent) (bool, error) {
	c.calls++
	return c.done, nil
}

func TestRegistry_DispatchWithoutRegistration(t *testing.T) {
	registry, _ := newTestRegistry()
	assert.Equal(t, OutcomeNone, registry.Dispatch(click(uuid.New())))
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	registry, _ := newTestRegistry()
	actor := uuid.New()

	first := &countingIntent{done: true}
	second := &countingIntent{done: true}
	registry.Register(actor, first)
	registry.Register(actor, second)

	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, OutcomeConsumed, registry.Dispatch(click(actor)))
	assert.Equal(t, 0, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestRegistry_ConsumeThenGone(t *testing.T) {
	var consumed int
	registry, _ := newTestRegistry(WithConsumedHook(func() { consumed++ }))
	actor := uuid.New()

	intent := &countingIntent{done: true}
	registry.Register(actor, intent)

	assert.Equal(t, OutcomeConsumed, registry.Dispatch(click(actor)))
	assert.False(t, registry.Pending(actor))
	assert.Equal(t, OutcomeNone, registry.Dispatch(click(actor)))
	assert.Equal(t, 1, intent.calls)
	assert.Equal(t, 1, consumed)
}

func TestRegistry_RetainOnFalse(t *testing.T) {
	registry, _ := newTestRegistry()
	actor := uuid.New()

	intent := &countingIntent{done: false}
	registry.Register(actor, intent)

	assert.Equal(t, OutcomeRetained, registry.Dispatch(click(actor)))
	assert.Equal(t, OutcomeRetained, registry.Dispatch(click(actor)))
	assert.Equal(t, 2, intent.calls)
	assert.True(t, registry.Pending(actor))
}

func TestRegistry_OtherActorsUntouched(t *testing.T) {
	registry, _ := newTestRegistry()
	a, b := uuid.New(), uuid.New()

	intent := &countingIntent{done: true}
	registry.Register(a, intent)

	assert.Equal(t, OutcomeNone, registry.Dispatch(click(b)))
	assert.Equal(t, 0, intent.calls)
	assert.True(t, registry.Pending(a))
}

func TestRegistry_Unregister(t *testing.T) {
	registry, _ := newTestRegistry()
	actor := uuid.New()

	assert.False(t, registry.Unregister(actor))

	intent := &countingIntent{done: true}
	registry.Register(actor, intent)
	assert.True(t, registry.Unregister(actor))
	assert.Equal(t, OutcomeNone, registry.Dispatch(click(actor)))
	assert.Equal(t, 0, intent.calls)
}

func TestRegistry_FailingIntentIsRemoved(t *testing.T) {
	var consumed int
	registry, buf := newTestRegistry(WithConsumedHook(func() { consumed++ }))
	actor := uuid.New()

	registry.Register(actor, IntentFunc(func(*types.InteractionEvent) (bool, error) {
		return false, errors.New("block is not a chest")
	}))

	assert.Equal(t, OutcomeFailed, registry.Dispatch(click(actor)))
	assert.False(t, registry.Pending(actor))
	assert.Equal(t, 0, consumed)
	assert.Contains(t, buf.String(), "block is not a chest")
	assert.Contains(t, buf.String(), "registration")
}

func TestRegistry_PanickingIntentIsRemoved(t *testing.T) {
	registry, buf := newTestRegistry()
	actor := uuid.New()

	registry.Register(actor, IntentFunc(func(*types.InteractionEvent) (bool, error) {
		panic("boom")
	}))

	assert.NotPanics(t, func() {
		assert.Equal(t, OutcomeFailed, registry.Dispatch(click(actor)))
	})
	assert.False(t, registry.Pending(actor))
	assert.Contains(t, buf.String(), "intent panicked: boom")
}

func TestRegistry_ReRegisterFromIntent(t *testing.T) {
	registry, _ := newTestRegistry()
	actor := uuid.New()

	follow := &countingIntent{done: true}
	registry.Register(actor, IntentFunc(func(*types.InteractionEvent) (bool, error) {
		registry.Register(actor, follow)
		return true, nil
	}))

	assert.Equal(t, OutcomeConsumed, registry.Dispatch(click(actor)))
	require.True(t, registry.Pending(actor), "registration made during the intent survives")

	assert.Equal(t, OutcomeConsumed, registry.Dispatch(click(actor)))
	assert.Equal(t, 1, follow.calls)
}

func TestRegistry_ConcurrentDispatchSerializesIntents(t *testing.T) {
	registry, _ := newTestRegistry()
	actor := uuid.New()

	var (
		mu      sync.Mutex
		running int
		overlap bool
		calls   int
	)
	registry.Register(actor, IntentFunc(func(*types.InteractionEvent) (bool, error) {
		mu.Lock()
		running++
		if running > 1 {
			overlap = true
		}
		calls++
		mu.Unlock()

		mu.Lock()
		running--
		mu.Unlock()
		return false, nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			registry.Dispatch(click(actor))
		}()
		go func() {
			defer wg.Done()
			registry.Pending(actor)
		}()
	}
	wg.Wait()

	assert.False(t, overlap)
	assert.Equal(t, 50, calls)
}
