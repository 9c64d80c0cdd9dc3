package engine

import (
	"github.com/thatsimonsguy/trv-controller/internal/sensors"
)

type windowAction int

const (
	windowNoop windowAction = iota
	windowOpened
	windowClosed
)

// evaluateWindow maps a window sensor reading onto an override transition.
// Unknown readings never change anything: a missing sensor fails safe toward
// allowing heat, but an active open override is only cleared by a genuine
// closed reading.
func evaluateWindow(overrideActive bool, reading sensors.Reading) windowAction {
	if !reading.Known {
		return windowNoop
	}

	open := reading.AsBool()
	if open && !overrideActive {
		return windowOpened
	}
	if !open && overrideActive {
		return windowClosed
	}
	return windowNoop
}
