package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"door-opener-bridge/internal/door"
	"door-opener-bridge/internal/gate"
	"door-opener-bridge/internal/registration"
	"door-opener-bridge/internal/types"
)

func newTestPlugin(t *testing.T) (*Plugin, *door.Directory) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	doors := door.NewDirectory(nil, door.WithLogger(logger))
	d := door.NewTrackedDoor(1, "world", types.BlockPos{})
	d.SetStayOpen(60)
	require.NoError(t, doors.Track(context.Background(), d))

	listener := gate.NewToggleListener(doors, gate.WithLogger(logger))
	registry := registration.NewRegistry(registration.WithLogger(logger))
	return NewPlugin(listener, registry), doors
}

func TestPluginRoutesToggles(t *testing.T) {
	plugin, doors := newTestPlugin(t)
	d, _ := doors.Lookup(1)

	plugin.OnToggle(types.ToggleEvent{DoorID: 1, Type: types.ToggleClose, Completed: true})
	assert.False(t, d.HeldOpen(time.Now()))

	plugin.OnToggle(types.ToggleEvent{DoorID: 1, Type: types.ToggleOpen, Completed: true})
	assert.True(t, d.HeldOpen(time.Now()))
}

func TestPluginRoutesInteractions(t *testing.T) {
	plugin, _ := newTestPlugin(t)
	actor := uuid.New()

	event := &types.InteractionEvent{Actor: actor, Action: types.ActionLeftClickAir}
	assert.Equal(t, registration.OutcomeNone, plugin.OnInteraction(event))

	calls := 0
	plugin.Registry().Register(actor, registration.IntentFunc(func(*types.InteractionEvent) (bool, error) {
		calls++
		return calls == 2, nil
	}))

	assert.Equal(t, registration.OutcomeRetained, plugin.OnInteraction(event))
	assert.Equal(t, registration.OutcomeConsumed, plugin.OnInteraction(event))
	assert.Equal(t, registration.OutcomeNone, plugin.OnInteraction(event))
	assert.Equal(t, 2, calls)
}

func TestPluginImplementsHost(t *testing.T) {
	var _ Host = (*Plugin)(nil)
}
