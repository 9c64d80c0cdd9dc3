// Package actuator is the write-only boundary to physical TRVs.
package actuator

import (
	"github.com/thatsimonsguy/trv-controller/internal/model"
)

// Actuator issues commands to a TRV. Implementations apply an internal
// timeout per attempt; a room engine must never stall on a dead device.
// Calls return model.ErrActuatorUnreachable (wrapped) when no transport
// succeeded.
type Actuator interface {
	// SetTemperature sets the TRV's heating setpoint.
	SetTemperature(trv string, celsius float64) error

	// SetValvePosition drives the valve to a fixed opening in percent.
	SetValvePosition(trv string, percent int) error

	// SetMode switches the TRV between heat and off.
	SetMode(trv string, mode model.HVACMode) error

	// SetExternalTemperature feeds the external room sensor value to the
	// TRV so its internal regulation stops trusting its own sensor.
	SetExternalTemperature(trv string, celsius float64) error
}
