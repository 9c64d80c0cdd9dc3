package engine

import (
	"testing"

	"github.com/thatsimonsguy/trv-controller/internal/model"
)

func TestEvaluateValve(t *testing.T) {
	tests := []struct {
		name           string
		current        model.ValveState
		returnTemp     float64
		wantTransition bool
		wantState      model.ValveState
		wantPosition   int
	}{
		{"open stays open below close threshold", model.ValveOpen, 31.9, false, model.ValveOpen, 0},
		{"open closes at close threshold", model.ValveOpen, 32.0, true, model.ValveClosed, 0},
		{"open closes above close threshold", model.ValveOpen, 35.0, true, model.ValveClosed, 0},
		{"open stays open in dead band", model.ValveOpen, 31.0, false, model.ValveOpen, 0},
		{"closed stays closed in dead band", model.ValveClosed, 31.0, false, model.ValveClosed, 0},
		{"closed reopens at open threshold", model.ValveClosed, 30.0, true, model.ValveOpen, 100},
		{"closed reopens below open threshold", model.ValveClosed, 25.0, true, model.ValveOpen, 100},
		{"closed stays closed above open threshold", model.ValveClosed, 30.1, false, model.ValveClosed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action := evaluateValve(tt.current, tt.returnTemp, 32.0, 30.0, 100)
			if action.transition != tt.wantTransition {
				t.Errorf("transition = %v, want %v", action.transition, tt.wantTransition)
			}
			if action.transition && action.state != tt.wantState {
				t.Errorf("state = %v, want %v", action.state, tt.wantState)
			}
			if action.transition && action.position != tt.wantPosition {
				t.Errorf("position = %d, want %d", action.position, tt.wantPosition)
			}
		})
	}
}

func TestEvaluateValveSequence(t *testing.T) {
	// A rising then falling return temperature walks the full hysteresis
	// cycle without chattering inside the dead band.
	readings := []float64{29.0, 31.0, 32.0, 31.0, 30.0}
	want := []model.ValveState{
		model.ValveOpen,
		model.ValveOpen,
		model.ValveClosed,
		model.ValveClosed,
		model.ValveOpen,
	}

	state := model.ValveOpen
	for i, temp := range readings {
		action := evaluateValve(state, temp, 32.0, 30.0, 100)
		if action.transition {
			state = action.state
		}
		if state != want[i] {
			t.Fatalf("after reading %.1f: state = %v, want %v", temp, state, want[i])
		}
	}
}

func TestEvaluateValveHonorsMaxPosition(t *testing.T) {
	action := evaluateValve(model.ValveClosed, 28.0, 32.0, 30.0, 80)
	if !action.transition || action.position != 80 {
		t.Fatalf("expected reopen to position 80, got %+v", action)
	}
}
