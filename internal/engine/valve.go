package engine

import (
	"github.com/thatsimonsguy/trv-controller/internal/model"
)

// valveAction is the outcome of one return-temperature evaluation.
type valveAction struct {
	transition bool
	state      model.ValveState
	position   int
}

// evaluateValve runs the return-temperature hysteresis. OPEN closes at or
// above the close threshold, CLOSED reopens at or below the open threshold,
// and readings inside the dead-band leave the valve alone. The decision is
// independent of window and HVAC mode: overheat protection always has final
// say, including over a manual valve override applied since the last reading.
func evaluateValve(
	current model.ValveState,
	returnTemp float64,
	closeThreshold float64,
	openThreshold float64,
	maxPosition int,
) valveAction {
	switch current {
	case model.ValveOpen:
		if returnTemp >= closeThreshold {
			return valveAction{transition: true, state: model.ValveClosed, position: 0}
		}
	case model.ValveClosed:
		if returnTemp <= openThreshold {
			return valveAction{transition: true, state: model.ValveOpen, position: maxPosition}
		}
	}
	return valveAction{state: current}
}
