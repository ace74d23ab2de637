// Package needle drives the galvanometer: calibrated mapping from tide
// delta to an 8-bit DAC value, plus the boot sweep and steady-state output.
package needle

import (
	"math"
	"time"

	"github.com/arprequest/tide-gauge/internal/logger"
)

// Calibration holds the immutable mapping constants. The output range is
// asymmetric about Center: Center counts below it, 255-Center above.
type Calibration struct {
	FullScaleFt float64 // ± feet mapped to the output extremes
	Center      uint8   // DAC value representing zero delta
}

// DeltaToDAC maps a tide delta in feet from mean sea level to a DAC value.
// +FullScaleFt maps to 255, 0 to Center, -FullScaleFt to 0. Total over all
// inputs: deltas beyond full scale clamp, NaN rests at Center.
func (c Calibration) DeltaToDAC(delta float64) uint8 {
	if math.IsNaN(delta) {
		return c.Center
	}
	clamped := math.Max(-c.FullScaleFt, math.Min(c.FullScaleFt, delta))
	normalized := clamped / c.FullScaleFt // -1.0 to +1.0

	var v float64
	if normalized >= 0 {
		v = float64(c.Center) + normalized*float64(255-c.Center)
	} else {
		v = float64(c.Center) + normalized*float64(c.Center)
	}
	v = math.Round(v)
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// Driver is the single write operation the actuator peripheral accepts.
// There is no read-back.
type Driver interface {
	Write(value uint8) error
}

// LogDriver is used when no serial port is configured. Every write is
// logged at debug level so development setups still show needle motion.
type LogDriver struct{}

func (LogDriver) Write(value uint8) error {
	logger.Debug("Needle output: %d/255", value)
	return nil
}

// Sequencer owns the physical output: steady-state writes plus the boot
// sweep animation. It holds no cross-invocation state.
type Sequencer struct {
	driver    Driver
	cal       Calibration
	step      int
	stepDelay time.Duration
	hold      time.Duration
	sleep     func(time.Duration)
}

// NewSequencer creates a sequencer over the given driver.
func NewSequencer(driver Driver, cal Calibration, step int, stepDelay, hold time.Duration) *Sequencer {
	if step < 1 {
		step = 1
	}
	return &Sequencer{
		driver:    driver,
		cal:       cal,
		step:      step,
		stepDelay: stepDelay,
		hold:      hold,
		sleep:     time.Sleep,
	}
}

// Calibration returns the sequencer's mapping constants.
func (s *Sequencer) Calibration() Calibration {
	return s.cal
}

// SetOutput writes a raw DAC value immediately. A driver failure is fatal
// to the hardware, not to this layer; it is logged and swallowed.
func (s *Sequencer) SetOutput(value uint8) {
	if err := s.driver.Write(value); err != nil {
		logger.Error("Needle write failed: %v", err)
	}
}

// SetDelta maps a tide delta through the calibration and writes it.
func (s *Sequencer) SetDelta(delta float64) uint8 {
	v := s.cal.DeltaToDAC(delta)
	s.SetOutput(v)
	return v
}

// BootSweep runs the deterministic startup animation, blocking for its
// duration: snap to 0, sweep up to 255, hold, sweep down to center. It
// exercises the full mechanical range and leaves the needle at rest
// before live data arrives. Calling it again simply repeats it.
func (s *Sequencer) BootSweep() {
	center := int(s.cal.Center)

	// Snap to full negative
	s.SetOutput(0)
	s.sleep(s.hold)

	// Sweep full left to full right
	for i := 0; i <= 255; i += s.step {
		s.SetOutput(uint8(i))
		s.sleep(s.stepDelay)
	}
	s.SetOutput(255)
	s.sleep(s.hold)

	// Return to center
	for i := 255; i >= center; i -= s.step {
		s.SetOutput(uint8(i))
		s.sleep(s.stepDelay)
	}
	s.SetOutput(s.cal.Center)
}
