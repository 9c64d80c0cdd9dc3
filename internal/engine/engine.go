// Package engine runs the per-room control loop: return-temperature valve
// hysteresis, window override with mode restoration, and periodic TRV
// resynchronization. One goroutine owns each room's state; every command and
// sensor event goes through its queue, so no partial update is observable.
package engine

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/trv-controller/internal/actuator"
	"github.com/thatsimonsguy/trv-controller/internal/metrics"
	"github.com/thatsimonsguy/trv-controller/internal/model"
	"github.com/thatsimonsguy/trv-controller/internal/sensors"
)

// RuntimeStore persists the durable slice of room state across restarts.
type RuntimeStore interface {
	SaveRuntime(roomID string, rt model.Runtime) error
}

// Notifier sends operator notifications.
type Notifier interface {
	Send(title, message string) error
}

// Consecutive actuator failures before the operator is notified. Failed calls
// are retried on the next sync tick, never in a tight loop.
const actuatorFailureNotifyAfter = 3

type reqKind int

const (
	reqSetTarget reqKind = iota
	reqSetMode
	reqSetValve
	reqSetThresholds
	reqSensor
	reqTick
	reqAttributes
)

type request struct {
	kind reqKind

	target         float64
	mode           model.HVACMode
	valvePos       int
	closeThreshold float64
	openThreshold  float64
	sensorKind     model.SensorKind
	reading        sensors.Reading

	reply chan error
	attrs chan model.Attributes
}

type Deps struct {
	Actuator     actuator.Actuator
	View         *sensors.View
	Store        RuntimeStore // optional
	Notifier     Notifier     // optional
	SyncInterval time.Duration
}

type Engine struct {
	cfg   model.RoomConfig
	state model.RoomState

	act      actuator.Actuator
	view     *sensors.View
	store    RuntimeStore
	notifier Notifier

	syncInterval time.Duration
	tickPending  atomic.Bool
	actFailures  int

	events chan request
	stop   chan struct{}
	done   chan struct{}
}

func New(cfg model.RoomConfig, rt model.Runtime, deps Deps) *Engine {
	if rt.CloseThreshold != 0 {
		cfg.CloseThreshold = rt.CloseThreshold
	}
	if rt.OpenThreshold != 0 {
		cfg.OpenThreshold = rt.OpenThreshold
	}

	mode := rt.Mode
	if !model.ValidMode(mode) {
		mode = model.ModeHeat
	}
	target := rt.TargetTemp
	if target == 0 {
		target = 20.0
	}

	interval := deps.SyncInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Engine{
		cfg: cfg,
		state: model.RoomState{
			TargetTemp:    cfg.SnapTarget(target),
			Mode:          mode,
			ValveState:    model.ValveOpen,
			ValvePosition: cfg.MaxValvePosition,
		},
		act:          deps.Actuator,
		view:         deps.View,
		store:        deps.Store,
		notifier:     deps.Notifier,
		syncInterval: interval,
		events:       make(chan request, 64),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (e *Engine) Config() model.RoomConfig {
	return e.cfg
}

// Start launches the room's event loop and its sync scheduler.
func (e *Engine) Start() {
	log.Info().Str("room", e.cfg.ID).Msg("Starting room engine")
	go e.run()
	go e.runScheduler()
}

// Done is closed once the event loop has exited. Long-lived consumers such
// as attribute streams watch it to learn the room is gone.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Stop cancels the scheduler and discards queued events. Idempotent.
func (e *Engine) Stop() {
	select {
	case <-e.stop:
		return
	default:
	}
	close(e.stop)
	<-e.done
	log.Info().Str("room", e.cfg.ID).Msg("Room engine stopped")
}

func (e *Engine) run() {
	defer close(e.done)

	e.evaluateInitial()

	for {
		select {
		case <-e.stop:
			return
		case req := <-e.events:
			e.handle(req)
		}
	}
}

// evaluateInitial seeds the loop from whatever the sensor view already
// knows, window first since it can veto everything else.
func (e *Engine) evaluateInitial() {
	if e.view == nil {
		return
	}
	if e.cfg.WindowSensor != "" {
		if reading, ok := e.view.Get(e.cfg.WindowSensor); ok {
			e.handleWindow(reading)
		}
	}
	if reading, ok := e.view.Get(e.cfg.ReturnSensor); ok {
		e.handleReturnTemp(reading)
	}
	if reading, ok := e.view.Get(e.cfg.TempSensor); ok {
		e.handleRoomTemp(reading)
	}
}

func (e *Engine) handle(req request) {
	switch req.kind {
	case reqSetTarget:
		req.reply <- e.setTarget(req.target)
	case reqSetMode:
		req.reply <- e.setMode(req.mode)
	case reqSetValve:
		req.reply <- e.setValve(req.valvePos)
	case reqSetThresholds:
		req.reply <- e.setThresholds(req.closeThreshold, req.openThreshold)
	case reqSensor:
		e.handleSensor(req.sensorKind, req.reading)
	case reqTick:
		e.sync()
		e.tickPending.Store(false)
	case reqAttributes:
		req.attrs <- e.snapshot()
	}
}

// SetTargetTemperature clamps to the configured range, snaps to the step
// grid, and forwards the setpoint to the TRV when heating is live.
func (e *Engine) SetTargetTemperature(value float64) error {
	return e.do(request{kind: reqSetTarget, target: value})
}

func (e *Engine) SetMode(mode model.HVACMode) error {
	return e.do(request{kind: reqSetMode, mode: mode})
}

func (e *Engine) SetValvePosition(position int) error {
	return e.do(request{kind: reqSetValve, valvePos: position})
}

func (e *Engine) SetThresholds(closeThreshold, openThreshold float64) error {
	return e.do(request{kind: reqSetThresholds, closeThreshold: closeThreshold, openThreshold: openThreshold})
}

// OnSensorUpdate queues a sensor change for the room. Events are processed
// strictly in arrival order.
func (e *Engine) OnSensorUpdate(kind model.SensorKind, reading sensors.Reading) {
	select {
	case e.events <- request{kind: reqSensor, sensorKind: kind, reading: reading}:
	case <-e.stop:
	}
}

// Attributes returns a consistent snapshot of the room, serialized through
// the event loop like every other access.
func (e *Engine) Attributes() model.Attributes {
	req := request{kind: reqAttributes, attrs: make(chan model.Attributes, 1)}
	select {
	case e.events <- req:
	case <-e.done:
		return model.Attributes{ID: e.cfg.ID, Name: e.cfg.Name}
	}
	select {
	case attrs := <-req.attrs:
		return attrs
	case <-e.done:
		return model.Attributes{ID: e.cfg.ID, Name: e.cfg.Name}
	}
}

func (e *Engine) do(req request) error {
	req.reply = make(chan error, 1)
	select {
	case e.events <- req:
	case <-e.done:
		return model.ErrRoomNotFound
	}
	select {
	case err := <-req.reply:
		return err
	case <-e.done:
		return model.ErrRoomNotFound
	}
}

func (e *Engine) setTarget(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: target %v is not a finite temperature", model.ErrInvalidRange, value)
	}

	snapped := e.cfg.SnapTarget(value)
	e.state.TargetTemp = snapped
	e.state.Actions++
	e.persist()

	log.Info().
		Str("room", e.cfg.ID).
		Float64("requested", value).
		Float64("target", snapped).
		Msg("Target temperature updated")

	if e.state.Mode == model.ModeHeat && !e.state.WindowOpen {
		e.actuatorCall("setpoint", func() error {
			return e.act.SetTemperature(e.cfg.TRV, snapped)
		})
	}
	return nil
}

func (e *Engine) setMode(mode model.HVACMode) error {
	if !model.ValidMode(mode) {
		return fmt.Errorf("%w: invalid mode %q", model.ErrInvalidRange, mode)
	}

	if e.state.WindowOpen {
		if mode == model.ModeHeat {
			log.Warn().Str("room", e.cfg.ID).Msg("Rejecting heat mode, window is open")
			return model.ErrHeatingBlocked
		}
		// Explicit off during an override sticks: restoration keeps off.
		e.state.SavedMode = model.ModeOff
	}

	e.state.Mode = mode
	e.state.Actions++
	e.persist()

	log.Info().Str("room", e.cfg.ID).Str("mode", string(mode)).Msg("HVAC mode updated")

	e.actuatorCall("mode", func() error {
		return e.act.SetMode(e.cfg.TRV, mode)
	})
	if mode == model.ModeHeat {
		e.actuatorCall("setpoint", func() error {
			return e.act.SetTemperature(e.cfg.TRV, e.state.TargetTemp)
		})
	}
	return nil
}

func (e *Engine) setValve(position int) error {
	if position < 0 || position > 100 {
		return fmt.Errorf("%w: valve position %d outside 0-100", model.ErrInvalidRange, position)
	}

	// Manual override: fixed position now, but the next return-temperature
	// evaluation may close the valve again.
	e.state.ValvePosition = position
	e.state.ValveControlActive = false
	e.state.ValveState = model.ValveOpen
	e.state.ValveAdjustments++
	e.state.Actions++

	log.Info().
		Str("room", e.cfg.ID).
		Int("position", position).
		Msg("Manual valve position override")

	e.actuatorCall("valve", func() error {
		return e.act.SetValvePosition(e.cfg.TRV, position)
	})
	return nil
}

func (e *Engine) setThresholds(closeThreshold, openThreshold float64) error {
	// NaN compares false both ways, so the ordering check alone would let a
	// NaN band through and quietly disable overheat protection.
	if math.IsNaN(closeThreshold) || math.IsInf(closeThreshold, 0) ||
		math.IsNaN(openThreshold) || math.IsInf(openThreshold, 0) {
		return fmt.Errorf("%w: thresholds must be finite, got close %v, open %v", model.ErrInvalidThresholds, closeThreshold, openThreshold)
	}
	if closeThreshold <= openThreshold {
		return fmt.Errorf("%w: close %.1f, open %.1f", model.ErrInvalidThresholds, closeThreshold, openThreshold)
	}

	e.cfg.CloseThreshold = closeThreshold
	e.cfg.OpenThreshold = openThreshold
	e.state.Actions++
	e.persist()

	log.Info().
		Str("room", e.cfg.ID).
		Float64("close", closeThreshold).
		Float64("open", openThreshold).
		Msg("Return-temperature thresholds updated")

	// Re-check the valve against the new band right away.
	if e.state.ReturnTempOK {
		e.controlValve(e.state.ReturnTemp)
	}
	return nil
}

func (e *Engine) handleSensor(kind model.SensorKind, reading sensors.Reading) {
	switch kind {
	case model.SensorWindow:
		e.handleWindow(reading)
	case model.SensorReturnTemp:
		e.handleReturnTemp(reading)
	case model.SensorRoomTemp:
		e.handleRoomTemp(reading)
	}
}

func (e *Engine) handleWindow(reading sensors.Reading) {
	switch evaluateWindow(e.state.WindowOpen, reading) {
	case windowOpened:
		e.state.WindowOpen = true
		if e.state.SavedMode == model.ModeNone {
			e.state.SavedMode = e.state.Mode
		}
		e.state.Mode = model.ModeOff
		e.state.WindowEvents++
		metrics.Count("room.window_events", 1, "room:"+e.cfg.ID)

		log.Info().Str("room", e.cfg.ID).Msg("Window opened, heating off")

		e.actuatorCall("mode", func() error {
			return e.act.SetMode(e.cfg.TRV, model.ModeOff)
		})

	case windowClosed:
		restored := e.state.SavedMode
		if restored == model.ModeNone {
			restored = e.state.Mode
		}
		e.state.WindowOpen = false
		e.state.SavedMode = model.ModeNone
		e.state.Mode = restored

		log.Info().
			Str("room", e.cfg.ID).
			Str("mode", string(restored)).
			Msg("Window closed, restoring mode")

		e.actuatorCall("mode", func() error {
			return e.act.SetMode(e.cfg.TRV, restored)
		})
		if restored == model.ModeHeat {
			e.actuatorCall("setpoint", func() error {
				return e.act.SetTemperature(e.cfg.TRV, e.state.TargetTemp)
			})
		}
	}
}

func (e *Engine) handleReturnTemp(reading sensors.Reading) {
	if !reading.Known || !reading.Numeric {
		e.state.ReturnTempOK = false
		return
	}

	e.state.ReturnTemp = reading.Value
	e.state.ReturnTempOK = true
	metrics.Gauge("room.return_temperature", reading.Value, "room:"+e.cfg.ID)

	e.controlValve(reading.Value)
}

func (e *Engine) handleRoomTemp(reading sensors.Reading) {
	if !reading.Known || !reading.Numeric {
		e.state.CurrentTempOK = false
		return
	}

	e.state.CurrentTemp = reading.Value
	e.state.CurrentTempOK = true
	metrics.Gauge("room.temperature", reading.Value, "room:"+e.cfg.ID)

	log.Debug().
		Str("room", e.cfg.ID).
		Float64("temp", reading.Value).
		Float64("target", e.state.TargetTemp).
		Msg("Room temperature update")

	// Keep the TRV regulating on the accurate external sensor.
	e.actuatorCall("external_temp", func() error {
		return e.act.SetExternalTemperature(e.cfg.TRV, reading.Value)
	})
}

func (e *Engine) controlValve(returnTemp float64) {
	action := evaluateValve(e.state.ValveState, returnTemp, e.cfg.CloseThreshold, e.cfg.OpenThreshold, e.cfg.MaxValvePosition)
	if !action.transition {
		return
	}

	e.state.ValveState = action.state
	e.state.ValvePosition = action.position
	e.state.ValveControlActive = action.state == model.ValveClosed
	e.state.ValveAdjustments++
	metrics.Count("room.valve_adjustments", 1, "room:"+e.cfg.ID)

	log.Info().
		Str("room", e.cfg.ID).
		Str("valve", string(action.state)).
		Int("position", action.position).
		Float64("return_temp", returnTemp).
		Float64("close", e.cfg.CloseThreshold).
		Float64("open", e.cfg.OpenThreshold).
		Msg("Valve transition")

	e.actuatorCall("valve", func() error {
		return e.act.SetValvePosition(e.cfg.TRV, action.position)
	})
}

// sync re-sends the current setpoint and re-evaluates the valve from the
// latest readings. Physical TRVs silently fall back to their internal
// sensor; re-sending is idempotent and self-healing.
func (e *Engine) sync() {
	e.state.LastSync = time.Now()
	e.state.Actions++

	if e.state.Mode == model.ModeHeat && !e.state.WindowOpen {
		e.actuatorCall("setpoint", func() error {
			return e.act.SetTemperature(e.cfg.TRV, e.state.TargetTemp)
		})
		if e.state.CurrentTempOK {
			e.actuatorCall("external_temp", func() error {
				return e.act.SetExternalTemperature(e.cfg.TRV, e.state.CurrentTemp)
			})
		}
	}

	// Change events are not guaranteed delivered; always re-read the return
	// sensor on sync.
	adjustments := e.state.ValveAdjustments
	if e.view != nil {
		if value, ok := e.view.Number(e.cfg.ReturnSensor); ok {
			e.state.ReturnTemp = value
			e.state.ReturnTempOK = true
			e.controlValve(value)
		}
	} else if e.state.ReturnTempOK {
		e.controlValve(e.state.ReturnTemp)
	}

	// State is updated before the physical command is confirmed, so a valve
	// command lost in transit would otherwise never be repeated. While
	// automatic control holds the valve, re-send its position unless this
	// tick already issued a transition.
	if e.state.ValveControlActive && e.state.ValveAdjustments == adjustments {
		position := e.state.ValvePosition
		e.actuatorCall("valve", func() error {
			return e.act.SetValvePosition(e.cfg.TRV, position)
		})
	}

	log.Debug().
		Str("room", e.cfg.ID).
		Str("mode", string(e.state.Mode)).
		Bool("window_open", e.state.WindowOpen).
		Msg("Sync tick complete")
}

// actuatorCall runs a command fire-and-forget with respect to room state:
// state is already updated, a failure is recorded and retried on the next
// sync tick.
func (e *Engine) actuatorCall(op string, fn func() error) {
	err := fn()
	if err == nil {
		e.actFailures = 0
		return
	}

	e.actFailures++
	metrics.Count("actuator.failures", 1, "room:"+e.cfg.ID, "op:"+op)
	log.Error().
		Err(err).
		Str("room", e.cfg.ID).
		Str("op", op).
		Int("consecutive_failures", e.actFailures).
		Msg("Actuator command failed, will retry on next sync")

	if e.actFailures == actuatorFailureNotifyAfter && e.notifier != nil {
		message := fmt.Sprintf("[%s] TRV %s unreachable after %d attempts", e.cfg.Name, e.cfg.TRV, e.actFailures)
		if nerr := e.notifier.Send("TRV unreachable", message); nerr != nil {
			log.Error().Err(nerr).Msg("Failed to send actuator failure notification")
		}
	}
}

func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	rt := model.Runtime{
		TargetTemp:     e.state.TargetTemp,
		Mode:           e.state.Mode,
		CloseThreshold: e.cfg.CloseThreshold,
		OpenThreshold:  e.cfg.OpenThreshold,
	}
	if err := e.store.SaveRuntime(e.cfg.ID, rt); err != nil {
		log.Error().Err(err).Str("room", e.cfg.ID).Msg("Failed to persist room runtime")
	}
}

func (e *Engine) snapshot() model.Attributes {
	attrs := model.Attributes{
		ID:                 e.cfg.ID,
		Name:               e.cfg.Name,
		TargetTemp:         e.state.TargetTemp,
		Mode:               e.state.Mode,
		Status:             e.status(),
		WindowOpen:         e.state.WindowOpen,
		ValvePosition:      e.state.ValvePosition,
		ValveControlActive: e.state.ValveControlActive,
		CloseThreshold:     e.cfg.CloseThreshold,
		OpenThreshold:      e.cfg.OpenThreshold,
		MaxValvePosition:   e.cfg.MaxValvePosition,
		Step:               e.cfg.Step,
		MinTemp:            e.cfg.MinTemp,
		MaxTemp:            e.cfg.MaxTemp,
		ValveAdjustments:   e.state.ValveAdjustments,
		Actions:            e.state.Actions,
		WindowEvents:       e.state.WindowEvents,
	}
	if e.state.CurrentTempOK {
		temp := e.state.CurrentTemp
		attrs.CurrentTemp = &temp
	}
	if e.state.ReturnTempOK {
		temp := e.state.ReturnTemp
		attrs.ReturnTemp = &temp
	}
	if !e.state.LastSync.IsZero() {
		attrs.LastSync = e.state.LastSync.UTC().Format(time.RFC3339)
	}
	return attrs
}

func (e *Engine) status() string {
	if e.state.WindowOpen {
		return "window_open"
	}
	if e.state.Mode == model.ModeOff {
		return "off"
	}
	if !e.state.CurrentTempOK {
		return "no_sensor"
	}
	if e.state.CurrentTemp >= e.state.TargetTemp {
		return "target_reached"
	}
	return "heating"
}
