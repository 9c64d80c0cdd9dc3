// Package sensors holds the last known value of every external sensor. The
// view is a passive snapshot: engines read it on demand, the MQTT ingest
// writes it on every delivery. Unknown stays unknown, never zero.
package sensors

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

type Reading struct {
	Raw       string
	Value     float64
	Numeric   bool
	Known     bool
	UpdatedAt time.Time
}

// AsBool interprets a reading as a binary sensor state. Window and door
// contact sensors report "on"/"open"/"true" when open.
func (r Reading) AsBool() bool {
	switch strings.ToLower(strings.TrimSpace(r.Raw)) {
	case "on", "open", "true":
		return true
	}
	return false
}

type View struct {
	mu       sync.RWMutex
	readings map[string]Reading
}

func NewView() *View {
	return &View{readings: make(map[string]Reading)}
}

// Set parses and stores a raw sensor payload. "unknown"/"unavailable"/empty
// payloads mark the sensor unknown but are still recorded, so staleness is
// observable.
func (v *View) Set(id, raw string) Reading {
	reading := parse(raw, time.Now())

	v.mu.Lock()
	v.readings[id] = reading
	v.mu.Unlock()

	return reading
}

func (v *View) Get(id string) (Reading, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	reading, ok := v.readings[id]
	return reading, ok
}

// Number returns the sensor's numeric value, or false when the sensor is
// unknown or non-numeric.
func (v *View) Number(id string) (float64, bool) {
	reading, ok := v.Get(id)
	if !ok || !reading.Known || !reading.Numeric {
		return 0, false
	}
	return reading.Value, true
}

func parse(raw string, now time.Time) Reading {
	reading := Reading{Raw: raw, UpdatedAt: now}

	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "", "unknown", "unavailable", "none":
		return reading
	}

	reading.Known = true
	if value, err := strconv.ParseFloat(trimmed, 64); err == nil {
		reading.Value = value
		reading.Numeric = true
	}
	return reading
}
