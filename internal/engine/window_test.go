package engine

import (
	"testing"

	"github.com/thatsimonsguy/trv-controller/internal/sensors"
)

func TestEvaluateWindow(t *testing.T) {
	known := func(raw string) sensors.Reading {
		return sensors.Reading{Raw: raw, Known: true}
	}

	tests := []struct {
		name           string
		overrideActive bool
		reading        sensors.Reading
		want           windowAction
	}{
		{"open while inactive starts override", false, known("open"), windowOpened},
		{"open while active is a no-op", true, known("open"), windowNoop},
		{"closed while active clears override", true, known("closed"), windowClosed},
		{"closed while inactive is a no-op", false, known("closed"), windowNoop},
		{"on is treated as open", false, known("on"), windowOpened},
		{"unknown never starts an override", false, sensors.Reading{Raw: "unknown"}, windowNoop},
		{"unknown never clears an override", true, sensors.Reading{Raw: "unavailable"}, windowNoop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evaluateWindow(tt.overrideActive, tt.reading); got != tt.want {
				t.Errorf("evaluateWindow(%v, %q) = %v, want %v", tt.overrideActive, tt.reading.Raw, got, tt.want)
			}
		})
	}
}
