// Package coordinator owns the set of room engines, fans sensor updates out
// to them, and serializes room add/remove so no engine is torn down while an
// event for it is being routed.
package coordinator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/trv-controller/internal/engine"
	"github.com/thatsimonsguy/trv-controller/internal/model"
	"github.com/thatsimonsguy/trv-controller/internal/sensors"
)

// Store persists room configuration and runtime. All methods must be safe
// for concurrent use.
type Store interface {
	engine.RuntimeStore
	InsertRoom(cfg model.RoomConfig, rt model.Runtime) error
	DeleteRoom(id string) error
}

type sensorRoute struct {
	roomID string
	kind   model.SensorKind
}

type Coordinator struct {
	mu       sync.Mutex
	rooms    map[string]*engine.Engine
	bySensor map[string]sensorRoute

	view  *sensors.View
	deps  engine.Deps
	store Store // optional
}

func New(view *sensors.View, deps engine.Deps, store Store) *Coordinator {
	deps.View = view
	deps.Store = store
	return &Coordinator{
		rooms:    make(map[string]*engine.Engine),
		bySensor: make(map[string]sensorRoute),
		view:     view,
		deps:     deps,
		store:    store,
	}
}

// AddRoom validates, persists and starts a new room engine.
func (c *Coordinator) AddRoom(cfg model.RoomConfig, rt model.Runtime) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.rooms[cfg.ID]; exists {
		return fmt.Errorf("%w: %s", model.ErrDuplicateRoom, cfg.ID)
	}

	if c.store != nil {
		if err := c.store.InsertRoom(cfg, rt); err != nil {
			return fmt.Errorf("persist room %s: %w", cfg.ID, err)
		}
	}

	eng := engine.New(cfg, rt, c.deps)
	c.rooms[cfg.ID] = eng
	c.indexSensors(cfg)
	eng.Start()

	log.Info().Str("room", cfg.ID).Int("rooms", len(c.rooms)).Msg("Room registered")
	return nil
}

// RemoveRoom stops the engine, cancels its scheduler and discards queued
// events. Unknown ids are a no-op beyond the error.
func (c *Coordinator) RemoveRoom(id string) error {
	c.mu.Lock()
	eng, exists := c.rooms[id]
	if !exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", model.ErrRoomNotFound, id)
	}

	delete(c.rooms, id)
	for sensor, route := range c.bySensor {
		if route.roomID == id {
			delete(c.bySensor, sensor)
		}
	}

	if c.store != nil {
		if err := c.store.DeleteRoom(id); err != nil {
			log.Error().Err(err).Str("room", id).Msg("Failed to delete persisted room")
		}
	}
	c.mu.Unlock()

	eng.Stop()
	log.Info().Str("room", id).Msg("Room removed")
	return nil
}

// Room returns the engine for a room id.
func (c *Coordinator) Room(id string) (*engine.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	eng, exists := c.rooms[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", model.ErrRoomNotFound, id)
	}
	return eng, nil
}

// HandleSensor records a sensor delivery in the view and dispatches it to
// the owning room, if any.
func (c *Coordinator) HandleSensor(sensorID, raw string) {
	reading := c.view.Set(sensorID, raw)

	c.mu.Lock()
	route, routed := c.bySensor[sensorID]
	var eng *engine.Engine
	if routed {
		eng = c.rooms[route.roomID]
	}
	c.mu.Unlock()

	if eng == nil {
		return
	}
	eng.OnSensorUpdate(route.kind, reading)
}

// Attributes returns snapshots for every room, ordered by id.
func (c *Coordinator) Attributes() []model.Attributes {
	c.mu.Lock()
	engines := make([]*engine.Engine, 0, len(c.rooms))
	for _, eng := range c.rooms {
		engines = append(engines, eng)
	}
	c.mu.Unlock()

	attrs := make([]model.Attributes, 0, len(engines))
	for _, eng := range engines {
		attrs = append(attrs, eng.Attributes())
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].ID < attrs[j].ID })
	return attrs
}

// SensorKind reports how a sensor id is interpreted by its owning room.
func (c *Coordinator) SensorKind(sensorID string) (model.SensorKind, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	route, routed := c.bySensor[sensorID]
	return route.kind, routed
}

// SensorIDs returns every sensor id currently routed, for ingest
// subscription setup.
func (c *Coordinator) SensorIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.bySensor))
	for sensor := range c.bySensor {
		ids = append(ids, sensor)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown stops every engine.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	engines := make([]*engine.Engine, 0, len(c.rooms))
	for _, eng := range c.rooms {
		engines = append(engines, eng)
	}
	c.rooms = make(map[string]*engine.Engine)
	c.bySensor = make(map[string]sensorRoute)
	c.mu.Unlock()

	for _, eng := range engines {
		eng.Stop()
	}
	log.Info().Int("rooms", len(engines)).Msg("Coordinator shut down")
}

// indexSensors must be called with the lock held.
func (c *Coordinator) indexSensors(cfg model.RoomConfig) {
	c.bySensor[cfg.TempSensor] = sensorRoute{roomID: cfg.ID, kind: model.SensorRoomTemp}
	c.bySensor[cfg.ReturnSensor] = sensorRoute{roomID: cfg.ID, kind: model.SensorReturnTemp}
	if cfg.WindowSensor != "" {
		c.bySensor[cfg.WindowSensor] = sensorRoute{roomID: cfg.ID, kind: model.SensorWindow}
	}
}
