package pose

import (
	"errors"
	"math"
	"testing"
)

func TestCalibrate_WindowEdges(t *testing.T) {
	for _, sig := range Signals {
		w, _ := WindowFor(sig)
		if got := Calibrate(sig, w.ObservationMin); got != 0 {
			t.Errorf("%s: Calibrate(min) = %v, want 0", sig, got)
		}
		if got := Calibrate(sig, w.ObservationMax); math.Abs(got-1) > 1e-12 {
			t.Errorf("%s: Calibrate(max) = %v, want 1", sig, got)
		}
		if got := Calibrate(sig, w.ObservationMin-1); got != 0 {
			t.Errorf("%s: below window = %v, want 0", sig, got)
		}
		if got := Calibrate(sig, w.ObservationMax+1); got != 1 {
			t.Errorf("%s: above window = %v, want 1", sig, got)
		}
	}
}

func TestWindow_Apply(t *testing.T) {
	tests := []struct {
		name string
		w    Window
		raw  float64
		want float64
	}{
		{"linear midpoint", Window{0, 1, 1}, 0.5, 0.5},
		{"shifted window", Window{0.2, 0.6, 1}, 0.4, 0.5},
		{"exponent below one lifts lows", Window{0, 1, 0.5}, 0.25, 0.5},
		{"exponent above one lowers lows", Window{0, 1, 2}, 0.5, 0.25},
		{"degenerate span", Window{0.5, 0.5, 1}, 0.6, 1},
		{"invalid exponent treated as linear", Window{0, 1, 0}, 0.3, 0.3},
		{"nan raw", Window{0, 1, 1}, math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.w.Apply(tt.raw); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Apply(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCalibrate_UnknownSignalPassesThrough(t *testing.T) {
	if got := Calibrate("unknown", 0.3); got != 0.3 {
		t.Errorf("Calibrate(unknown, 0.3) = %v, want 0.3", got)
	}
	if got := Calibrate("unknown", 3); got != 1 {
		t.Errorf("Calibrate(unknown, 3) = %v, want 1", got)
	}
}

func TestSuggestWindow(t *testing.T) {
	samples := make([]float64, 0, 101)
	for i := 0; i <= 100; i++ {
		samples = append(samples, float64(i)/100)
	}
	samples = append(samples, math.NaN())

	w, err := SuggestWindow(samples, Window{Exponent: 0.8})
	if err != nil {
		t.Fatalf("SuggestWindow: %v", err)
	}
	if w.ObservationMin < 0.04 || w.ObservationMin > 0.06 {
		t.Errorf("ObservationMin = %v, want ~0.05", w.ObservationMin)
	}
	if w.ObservationMax < 0.94 || w.ObservationMax > 0.96 {
		t.Errorf("ObservationMax = %v, want ~0.95", w.ObservationMax)
	}
	if w.Exponent != 0.8 {
		t.Errorf("Exponent = %v, want 0.8", w.Exponent)
	}
}

func TestSuggestWindow_Errors(t *testing.T) {
	if _, err := SuggestWindow([]float64{0.1, 0.2}, Window{}); !errors.Is(err, ErrNotEnoughSamples) {
		t.Errorf("short recording error = %v, want ErrNotEnoughSamples", err)
	}

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 0.4
	}
	if _, err := SuggestWindow(flat, Window{}); err == nil {
		t.Error("expected error for constant samples")
	}
}
