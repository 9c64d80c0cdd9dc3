package model

import (
	"fmt"
	"math"
	"time"
)

type HVACMode string

const (
	ModeHeat HVACMode = "heat"
	ModeOff  HVACMode = "off"
	// ModeNone marks an empty saved-mode slot.
	ModeNone HVACMode = ""
)

func ValidMode(m HVACMode) bool {
	return m == ModeHeat || m == ModeOff
}

type ValveState string

const (
	ValveOpen   ValveState = "open"
	ValveClosed ValveState = "closed"
)

type SensorKind string

const (
	SensorRoomTemp   SensorKind = "room_temp"
	SensorReturnTemp SensorKind = "return_temp"
	SensorWindow     SensorKind = "window"
)

// RoomConfig describes one room. Immutable after registration except for the
// return-temperature thresholds, which are adjustable through the command surface.
type RoomConfig struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	TempSensor   string `json:"temp_sensor"`
	TRV          string `json:"trv"`
	ReturnSensor string `json:"return_sensor"`
	WindowSensor string `json:"window_sensor,omitempty"`

	CloseThreshold   float64 `json:"close_threshold"`
	OpenThreshold    float64 `json:"open_threshold"`
	MaxValvePosition int     `json:"max_valve_position"`
	Step             float64 `json:"step"`
	MinTemp          float64 `json:"min_temp"`
	MaxTemp          float64 `json:"max_temp"`
}

func (c *RoomConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: room id is required", ErrInvalidRange)
	}
	if c.TempSensor == "" || c.TRV == "" || c.ReturnSensor == "" {
		return fmt.Errorf("%w: temp_sensor, trv and return_sensor are required for room %s", ErrInvalidRange, c.ID)
	}
	// Written as a negated comparison so NaN thresholds fail too.
	if !(c.CloseThreshold > c.OpenThreshold) {
		return fmt.Errorf("%w: close %.1f must be above open %.1f for room %s", ErrInvalidThresholds, c.CloseThreshold, c.OpenThreshold, c.ID)
	}
	if c.MaxValvePosition < 0 || c.MaxValvePosition > 100 {
		return fmt.Errorf("%w: max valve position %d outside 0-100 for room %s", ErrInvalidRange, c.MaxValvePosition, c.ID)
	}
	if c.Step <= 0 {
		return fmt.Errorf("%w: step %.2f must be positive for room %s", ErrInvalidRange, c.Step, c.ID)
	}
	if c.MinTemp >= c.MaxTemp {
		return fmt.Errorf("%w: min temp %.1f must be below max temp %.1f for room %s", ErrInvalidRange, c.MinTemp, c.MaxTemp, c.ID)
	}
	return nil
}

// SnapTarget clamps a requested setpoint to [MinTemp, MaxTemp] and rounds it to
// the nearest multiple of Step counted from MinTemp.
func (c *RoomConfig) SnapTarget(value float64) float64 {
	steps := math.Round((value - c.MinTemp) / c.Step)
	snapped := c.MinTemp + steps*c.Step
	if snapped < c.MinTemp {
		return c.MinTemp
	}
	if snapped > c.MaxTemp {
		return c.MaxTemp
	}
	return snapped
}

// RoomState is owned exclusively by the room's engine goroutine. Everything
// outside the engine sees it only through Attributes snapshots.
type RoomState struct {
	CurrentTemp   float64
	CurrentTempOK bool
	ReturnTemp    float64
	ReturnTempOK  bool

	TargetTemp float64
	Mode       HVACMode

	ValvePosition      int
	ValveState         ValveState
	ValveControlActive bool

	WindowOpen bool
	SavedMode  HVACMode

	LastSync time.Time

	ValveAdjustments int
	Actions          int
	WindowEvents     int
}

// Runtime is the durable slice of RoomState restored across restarts.
type Runtime struct {
	TargetTemp     float64
	Mode           HVACMode
	CloseThreshold float64
	OpenThreshold  float64
}

// Attributes is the per-room snapshot consumed by the dashboard card.
type Attributes struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	CurrentTemp *float64 `json:"current_temp"`
	TargetTemp  float64  `json:"target_temp"`
	ReturnTemp  *float64 `json:"return_temp"`

	Mode               HVACMode `json:"mode"`
	Status             string   `json:"status"`
	WindowOpen         bool     `json:"window_open"`
	ValvePosition      int      `json:"valve_position"`
	ValveControlActive bool     `json:"valve_control_active"`

	CloseThreshold   float64 `json:"close_threshold"`
	OpenThreshold    float64 `json:"open_threshold"`
	MaxValvePosition int     `json:"max_valve_position"`
	Step             float64 `json:"step"`
	MinTemp          float64 `json:"min_temp"`
	MaxTemp          float64 `json:"max_temp"`

	LastSync         string `json:"last_sync,omitempty"`
	ValveAdjustments int    `json:"valve_adjustments"`
	Actions          int    `json:"actions"`
	WindowEvents     int    `json:"window_events"`
}
