package actuator

import (
	"sync"

	"github.com/thatsimonsguy/trv-controller/internal/model"
)

// Command records one actuator call for test assertions.
type Command struct {
	TRV   string
	Op    string // "temperature", "valve", "mode", "external_temp"
	Value float64
	Mode  model.HVACMode
}

// Fake records commands instead of publishing them.
type Fake struct {
	mu sync.Mutex

	Commands []Command

	// Err, if set, is returned by every call.
	Err error
}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) SetTemperature(trv string, celsius float64) error {
	return f.record(Command{TRV: trv, Op: "temperature", Value: celsius})
}

func (f *Fake) SetValvePosition(trv string, percent int) error {
	return f.record(Command{TRV: trv, Op: "valve", Value: float64(percent)})
}

func (f *Fake) SetMode(trv string, mode model.HVACMode) error {
	return f.record(Command{TRV: trv, Op: "mode", Mode: mode})
}

func (f *Fake) SetExternalTemperature(trv string, celsius float64) error {
	return f.record(Command{TRV: trv, Op: "external_temp", Value: celsius})
}

func (f *Fake) record(cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	f.Commands = append(f.Commands, cmd)
	return nil
}

// Recorded returns a copy of all recorded commands.
func (f *Fake) Recorded() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Command, len(f.Commands))
	copy(out, f.Commands)
	return out
}

// OpsFor returns the operation names recorded for one TRV, in order.
func (f *Fake) OpsFor(trv string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ops []string
	for _, cmd := range f.Commands {
		if cmd.TRV == trv {
			ops = append(ops, cmd.Op)
		}
	}
	return ops
}

// Reset clears recorded commands.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Commands = nil
	f.Err = nil
}
