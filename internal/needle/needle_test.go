package needle

import (
	"errors"
	"math"
	"testing"
	"time"
)

var testCal = Calibration{FullScaleFt: 8.0, Center: 128}

func TestDeltaToDAC_FixedPoints(t *testing.T) {
	tests := []struct {
		delta float64
		want  uint8
	}{
		{0, 128},
		{8, 255},
		{-8, 0},
		{4, 192},  // 128 + 0.5*127 rounded
		{-4, 64},  // 128 - 0.5*128
		{100, 255},
		{-100, 0},
	}

	for _, tt := range tests {
		if got := testCal.DeltaToDAC(tt.delta); got != tt.want {
			t.Errorf("DeltaToDAC(%g) = %d, want %d", tt.delta, got, tt.want)
		}
	}
}

func TestDeltaToDAC_ClampingMatchesFullScale(t *testing.T) {
	if testCal.DeltaToDAC(100) != testCal.DeltaToDAC(8) {
		t.Error("over-scale delta must clamp to the +8 value")
	}
	if testCal.DeltaToDAC(-100) != testCal.DeltaToDAC(-8) {
		t.Error("under-scale delta must clamp to the -8 value")
	}
}

func TestDeltaToDAC_MonotoneAndBounded(t *testing.T) {
	prev := testCal.DeltaToDAC(-8)
	for delta := -8.0; delta <= 8.0; delta += 0.01 {
		v := testCal.DeltaToDAC(delta)
		if v < prev {
			t.Fatalf("DeltaToDAC not monotone: f(%g)=%d < previous %d", delta, v, prev)
		}
		prev = v
	}
}

func TestDeltaToDAC_NaNRestsAtCenter(t *testing.T) {
	if got := testCal.DeltaToDAC(math.NaN()); got != 128 {
		t.Errorf("DeltaToDAC(NaN) = %d, want center 128", got)
	}
}

func TestDeltaToDAC_Infinities(t *testing.T) {
	if got := testCal.DeltaToDAC(math.Inf(1)); got != 255 {
		t.Errorf("DeltaToDAC(+Inf) = %d, want 255", got)
	}
	if got := testCal.DeltaToDAC(math.Inf(-1)); got != 0 {
		t.Errorf("DeltaToDAC(-Inf) = %d, want 0", got)
	}
}

// recordingDriver captures every written value for sequence assertions.
type recordingDriver struct {
	values []uint8
	err    error
}

func (d *recordingDriver) Write(value uint8) error {
	d.values = append(d.values, value)
	return d.err
}

func newTestSequencer(d Driver) *Sequencer {
	s := NewSequencer(d, testCal, 3, 12*time.Millisecond, 200*time.Millisecond)
	s.sleep = func(time.Duration) {} // no real delays in tests
	return s
}

func TestBootSweep_VisitOrder(t *testing.T) {
	d := &recordingDriver{}
	s := newTestSequencer(d)

	s.BootSweep()

	if len(d.values) < 3 {
		t.Fatalf("sweep wrote only %d values", len(d.values))
	}
	if d.values[0] != 0 {
		t.Errorf("sweep must start by snapping to 0, got %d", d.values[0])
	}
	if last := d.values[len(d.values)-1]; last != 128 {
		t.Errorf("sweep must end exactly at center, got %d", last)
	}

	// Phase check: monotonically increasing to 255, then monotonically
	// decreasing to center.
	peak := -1
	for i, v := range d.values {
		if v == 255 {
			peak = i
			break
		}
	}
	if peak < 0 {
		t.Fatal("sweep never reached 255")
	}
	for i := 1; i <= peak; i++ {
		if d.values[i] < d.values[i-1] {
			t.Fatalf("upward phase decreased at index %d: %d -> %d", i, d.values[i-1], d.values[i])
		}
	}
	for i := peak + 1; i < len(d.values); i++ {
		if d.values[i] > d.values[i-1] {
			t.Fatalf("downward phase increased at index %d: %d -> %d", i, d.values[i-1], d.values[i])
		}
		if d.values[i] < 128 {
			t.Fatalf("downward phase undershot center: %d", d.values[i])
		}
	}
}

func TestBootSweep_Repeatable(t *testing.T) {
	d := &recordingDriver{}
	s := newTestSequencer(d)

	s.BootSweep()
	first := len(d.values)
	s.BootSweep()

	if len(d.values) != 2*first {
		t.Errorf("second sweep wrote %d values, want %d", len(d.values)-first, first)
	}
}

func TestSetOutput_SwallowsDriverError(t *testing.T) {
	d := &recordingDriver{err: errors.New("peripheral gone")}
	s := newTestSequencer(d)

	// Must not panic and must still have attempted the write
	s.SetOutput(42)
	if len(d.values) != 1 || d.values[0] != 42 {
		t.Errorf("write not attempted: %v", d.values)
	}
}

func TestSetDelta(t *testing.T) {
	d := &recordingDriver{}
	s := newTestSequencer(d)

	if got := s.SetDelta(8); got != 255 {
		t.Errorf("SetDelta(8) returned %d, want 255", got)
	}
	if len(d.values) != 1 || d.values[0] != 255 {
		t.Errorf("driver saw %v, want [255]", d.values)
	}
}
