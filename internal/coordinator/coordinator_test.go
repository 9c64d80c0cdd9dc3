package coordinator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/trv-controller/internal/actuator"
	"github.com/thatsimonsguy/trv-controller/internal/engine"
	"github.com/thatsimonsguy/trv-controller/internal/model"
	"github.com/thatsimonsguy/trv-controller/internal/sensors"
)

type memStore struct {
	mu       sync.Mutex
	inserted []string
	deleted  []string
}

func (s *memStore) SaveRuntime(roomID string, rt model.Runtime) error { return nil }

func (s *memStore) InsertRoom(cfg model.RoomConfig, rt model.Runtime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, cfg.ID)
	return nil
}

func (s *memStore) DeleteRoom(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}

func room(id string) model.RoomConfig {
	return model.RoomConfig{
		ID:               id,
		Name:             id,
		TempSensor:       id + "_temp",
		TRV:              id + "_trv",
		ReturnSensor:     id + "_return",
		WindowSensor:     id + "_window",
		CloseThreshold:   32.0,
		OpenThreshold:    30.0,
		MaxValvePosition: 100,
		Step:             0.5,
		MinTemp:          5.0,
		MaxTemp:          30.0,
	}
}

func newTestCoordinator(t *testing.T, store Store) *Coordinator {
	t.Helper()
	coord := New(sensors.NewView(), engine.Deps{Actuator: actuator.NewFake()}, store)
	t.Cleanup(coord.Shutdown)
	return coord
}

func TestAddRoomDuplicate(t *testing.T) {
	coord := newTestCoordinator(t, nil)

	require.NoError(t, coord.AddRoom(room("living"), model.Runtime{}))

	err := coord.AddRoom(room("living"), model.Runtime{})
	assert.ErrorIs(t, err, model.ErrDuplicateRoom)

	// The registry is unchanged by the failed add.
	assert.Len(t, coord.Attributes(), 1)
}

func TestAddRoomInvalidConfig(t *testing.T) {
	coord := newTestCoordinator(t, nil)

	bad := room("kitchen")
	bad.CloseThreshold = 28.0 // below open threshold
	err := coord.AddRoom(bad, model.Runtime{})
	assert.ErrorIs(t, err, model.ErrInvalidThresholds)
	assert.Empty(t, coord.Attributes())
}

func TestRemoveRoom(t *testing.T) {
	store := &memStore{}
	coord := newTestCoordinator(t, store)

	require.NoError(t, coord.AddRoom(room("living"), model.Runtime{}))
	require.NoError(t, coord.RemoveRoom("living"))

	_, err := coord.Room("living")
	assert.ErrorIs(t, err, model.ErrRoomNotFound)
	assert.Equal(t, []string{"living"}, store.deleted)

	// Commands against the removed room fail, the rest are untouched.
	assert.ErrorIs(t, coord.RemoveRoom("living"), model.ErrRoomNotFound)
}

func TestRemoveRoomUnknown(t *testing.T) {
	coord := newTestCoordinator(t, nil)

	assert.ErrorIs(t, coord.RemoveRoom("nope"), model.ErrRoomNotFound)
}

func TestHandleSensorRoutesToOwningRoom(t *testing.T) {
	coord := newTestCoordinator(t, nil)

	require.NoError(t, coord.AddRoom(room("living"), model.Runtime{}))
	require.NoError(t, coord.AddRoom(room("bedroom"), model.Runtime{}))

	coord.HandleSensor("living_window", "open")

	living, err := coord.Room("living")
	require.NoError(t, err)
	bedroom, err := coord.Room("bedroom")
	require.NoError(t, err)

	assert.True(t, living.Attributes().WindowOpen)
	assert.False(t, bedroom.Attributes().WindowOpen)
}

func TestRoomsIsolatedUnderConcurrentLoad(t *testing.T) {
	coord := newTestCoordinator(t, nil)

	require.NoError(t, coord.AddRoom(room("living"), model.Runtime{}))
	require.NoError(t, coord.AddRoom(room("bedroom"), model.Runtime{}))

	bedroom, err := coord.Room("bedroom")
	require.NoError(t, err)

	const cycles = 50

	var wg sync.WaitGroup
	wg.Add(3)

	// Living: alternating return readings, every one a valve transition.
	go func() {
		defer wg.Done()
		for i := 0; i < cycles; i++ {
			if i%2 == 0 {
				coord.HandleSensor("living_return", "33.0")
			} else {
				coord.HandleSensor("living_return", "29.0")
			}
		}
	}()

	// Bedroom: window open/close cycles.
	go func() {
		defer wg.Done()
		for i := 0; i < cycles/2; i++ {
			coord.HandleSensor("bedroom_window", "open")
			coord.HandleSensor("bedroom_window", "closed")
		}
	}()

	// Bedroom: synchronous target commands racing the window events.
	go func() {
		defer wg.Done()
		for i := 0; i < cycles; i++ {
			if err := bedroom.SetTargetTemperature(18.0 + float64(i%4)); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	wg.Wait()

	living, err := coord.Room("living")
	require.NoError(t, err)

	// Counters are exact: no event leaked to the other room and none was
	// lost or double-applied.
	la := living.Attributes()
	assert.Equal(t, cycles, la.ValveAdjustments)
	assert.Equal(t, 0, la.WindowEvents)
	assert.Equal(t, 0, la.Actions)
	assert.Equal(t, 100, la.ValvePosition) // last reading reopened the valve

	ba := bedroom.Attributes()
	assert.Equal(t, cycles, ba.Actions)
	assert.Equal(t, cycles/2, ba.WindowEvents)
	assert.Equal(t, 0, ba.ValveAdjustments)
	assert.False(t, ba.WindowOpen)
	assert.Equal(t, model.ModeHeat, ba.Mode)
	assert.Equal(t, 19.0, ba.TargetTemp) // last command in its goroutine
}

func TestHandleSensorUnknownSensor(t *testing.T) {
	coord := newTestCoordinator(t, nil)
	require.NoError(t, coord.AddRoom(room("living"), model.Runtime{}))

	// Must not panic or disturb any room.
	coord.HandleSensor("garage_door", "open")
	assert.False(t, coord.Attributes()[0].WindowOpen)
}

func TestSensorRoutesClearedOnRemove(t *testing.T) {
	coord := newTestCoordinator(t, nil)

	require.NoError(t, coord.AddRoom(room("living"), model.Runtime{}))
	require.NoError(t, coord.RemoveRoom("living"))

	_, routed := coord.SensorKind("living_window")
	assert.False(t, routed)
	assert.Empty(t, coord.SensorIDs())
}

func TestAttributesSortedByID(t *testing.T) {
	coord := newTestCoordinator(t, nil)

	require.NoError(t, coord.AddRoom(room("bedroom"), model.Runtime{}))
	require.NoError(t, coord.AddRoom(room("attic"), model.Runtime{}))
	require.NoError(t, coord.AddRoom(room("living"), model.Runtime{}))

	attrs := coord.Attributes()
	require.Len(t, attrs, 3)
	assert.Equal(t, "attic", attrs[0].ID)
	assert.Equal(t, "bedroom", attrs[1].ID)
	assert.Equal(t, "living", attrs[2].ID)
}

func TestSensorIDs(t *testing.T) {
	coord := newTestCoordinator(t, nil)
	require.NoError(t, coord.AddRoom(room("living"), model.Runtime{}))

	ids := coord.SensorIDs()
	assert.Equal(t, []string{"living_return", "living_temp", "living_window"}, ids)
}

func TestAddRoomPersists(t *testing.T) {
	store := &memStore{}
	coord := newTestCoordinator(t, store)

	require.NoError(t, coord.AddRoom(room("living"), model.Runtime{}))
	assert.Equal(t, []string{"living"}, store.inserted)
}
