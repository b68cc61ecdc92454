package regbus

import (
	"fmt"

	"github.com/jrockway/latch-clock/control/hw"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// I2C is a Transport over a periph.io I2C bus.
type I2C struct {
	dev    i2c.Dev
	closer i2c.BusCloser // nil if we don't own the bus
}

// NewI2C returns a Transport talking to the device at addr on b.  The caller keeps ownership of b.
func NewI2C(b i2c.Bus, addr uint16) *I2C {
	return &I2C{dev: i2c.Dev{Bus: b, Addr: addr}}
}

// OpenPeriph opens the i2creg bus named in cfg, sets its speed, and checks its pins.
func OpenPeriph(cfg Config) (*I2C, error) {
	b, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, hw.Transport(fmt.Sprintf("open i2c bus %q", cfg.Bus), err)
	}
	f := cfg.Frequency
	if f == 0 {
		f = DefaultFrequency
	}
	if err := b.SetSpeed(f); err != nil {
		b.Close()
		return nil, hw.Transport(fmt.Sprintf("set %s speed to %s", b, f), err)
	}
	if err := checkPins(b, cfg.SCL, cfg.SDA); err != nil {
		b.Close()
		return nil, err
	}
	t := NewI2C(b, cfg.Addr)
	t.closer = b
	return t, nil
}

func checkPins(b i2c.Bus, scl, sda string) error {
	if scl == "" && sda == "" {
		return nil
	}
	p, ok := b.(i2c.Pins)
	if !ok {
		return fmt.Errorf("bus %s does not report its pins; cannot check scl=%q sda=%q: %w", b, scl, sda, hw.ErrInvalidArgument)
	}
	if scl != "" {
		if got := p.SCL().Name(); got != scl {
			return fmt.Errorf("bus %s uses %s for SCL, not %s: %w", b, got, scl, hw.ErrInvalidArgument)
		}
	}
	if sda != "" {
		if got := p.SDA().Name(); got != sda {
			return fmt.Errorf("bus %s uses %s for SDA, not %s: %w", b, got, sda, hw.ErrInvalidArgument)
		}
	}
	return nil
}

// Read implements Transport.
func (t *I2C) Read(reg uint8, p []byte) error {
	if err := t.dev.Tx([]byte{reg}, p); err != nil {
		return hw.Transport(fmt.Sprintf("read %d bytes at register 0x%02x of 0x%02x", len(p), reg, t.dev.Addr), err)
	}
	return nil
}

// Write implements Transport.
func (t *I2C) Write(reg uint8, p []byte) error {
	w := make([]byte, 1, len(p)+1)
	w[0] = reg
	w = append(w, p...)
	if err := t.dev.Tx(w, nil); err != nil {
		return hw.Transport(fmt.Sprintf("write %d bytes at register 0x%02x of 0x%02x", len(p), reg, t.dev.Addr), err)
	}
	return nil
}

// Close closes the bus if OpenPeriph opened it.
func (t *I2C) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

func (t *I2C) String() string { return t.dev.String() }
