// Package regbus provides register-addressed access to a device on a two-wire bus.
//
// Drivers talk to a Transport.  Which implementation backs it (periph.io's I2C stack, the raw Linux
// i2c-dev interface, or an in-memory simulation) is a configuration decision made by the program
// that opens the bus, not something the driver probes for.
package regbus

import (
	"fmt"
	"io"
	"strings"

	"github.com/jrockway/latch-clock/control/hw"
	"periph.io/x/conn/v3/physic"
)

// Transport reads and writes runs of consecutive registers on one device.  Implementations report
// failures as *hw.TransportError and do not retry.
type Transport interface {
	// Read fills p from registers reg, reg+1, ...
	Read(reg uint8, p []byte) error
	// Write stores p into registers reg, reg+1, ...
	Write(reg uint8, p []byte) error
}

// TransportCloser is a Transport that owns an underlying bus handle.
type TransportCloser interface {
	Transport
	io.Closer
}

// Kinds of transport understood by Open.
const (
	KindPeriph = "periph" // periph.io i2creg bus
	KindDevfs  = "devfs"  // /dev/i2c-N through golang.org/x/exp/io/i2c
	KindSim    = "sim"    // in-memory register file
)

// DefaultFrequency is the standard-mode I2C clock, which every RTC chip supports.
const DefaultFrequency = 100 * physic.KiloHertz

// Config selects and parameterizes a transport.
type Config struct {
	Kind string
	// Bus identifies the bus: an i2creg name ("" for the first bus) for KindPeriph, a device node
	// like "/dev/i2c-1" for KindDevfs.
	Bus string
	// SCL and SDA are the pin names the bus is expected to use.  When set, KindPeriph checks them
	// against the opened bus so that a wiring/config mismatch fails at startup.  KindDevfs cannot
	// see the pins and ignores them.
	SCL, SDA string
	// Frequency is the bus clock.  Only KindPeriph can change it.
	Frequency physic.Frequency
	// Addr is the 7-bit device address.
	Addr uint16
}

// Open opens the transport described by cfg.
func Open(cfg Config) (TransportCloser, error) {
	switch strings.ToLower(cfg.Kind) {
	case KindPeriph, "":
		t, err := OpenPeriph(cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	case KindDevfs:
		t, err := OpenDevfs(cfg.Bus, cfg.Addr)
		if err != nil {
			return nil, err
		}
		return t, nil
	case KindSim:
		return NewSim(), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q (want %s, %s or %s): %w", cfg.Kind, KindPeriph, KindDevfs, KindSim, hw.ErrInvalidArgument)
	}
}
