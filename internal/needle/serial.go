package needle

import (
	"fmt"
	"io"

	serial "github.com/tarm/goserial"
)

// SerialDAC drives the galvanometer through a serial-attached DAC board.
// Each output update is a single byte frame; the board latches it.
type SerialDAC struct {
	rwc io.ReadWriteCloser
}

// OpenSerialDAC opens the DAC's serial port.
func OpenSerialDAC(device string, baud int) (*SerialDAC, error) {
	sc := &serial.Config{Name: device, Baud: baud}
	rwc, err := serial.OpenPort(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}
	return &SerialDAC{rwc: rwc}, nil
}

// Write sends one 8-bit value to the DAC.
func (d *SerialDAC) Write(value uint8) error {
	if _, err := d.rwc.Write([]byte{value}); err != nil {
		return fmt.Errorf("serial write failed: %w", err)
	}
	return nil
}

// Close releases the serial port.
func (d *SerialDAC) Close() error {
	return d.rwc.Close()
}
