package regbus

import (
	"fmt"

	"github.com/jrockway/latch-clock/control/hw"
	"golang.org/x/exp/io/i2c"
)

// Devfs is a Transport over the Linux i2c-dev interface, for boards where periph.io has no driver
// for the I2C controller but the kernel does.
type Devfs struct {
	dev  *i2c.Device
	name string
	addr uint16
}

// OpenDevfs opens the device at addr on the bus node (like "/dev/i2c-1").
func OpenDevfs(node string, addr uint16) (*Devfs, error) {
	if node == "" {
		node = "/dev/i2c-1"
	}
	d, err := i2c.Open(&i2c.Devfs{Dev: node}, int(addr))
	if err != nil {
		return nil, hw.Transport(fmt.Sprintf("open %s address 0x%02x", node, addr), err)
	}
	return &Devfs{dev: d, name: node, addr: addr}, nil
}

// Read implements Transport.
func (t *Devfs) Read(reg uint8, p []byte) error {
	if err := t.dev.ReadReg(reg, p); err != nil {
		return hw.Transport(fmt.Sprintf("read %d bytes at register 0x%02x of %s:0x%02x", len(p), reg, t.name, t.addr), err)
	}
	return nil
}

// Write implements Transport.
func (t *Devfs) Write(reg uint8, p []byte) error {
	if err := t.dev.WriteReg(reg, p); err != nil {
		return hw.Transport(fmt.Sprintf("write %d bytes at register 0x%02x of %s:0x%02x", len(p), reg, t.name, t.addr), err)
	}
	return nil
}

// Close closes the device node.
func (t *Devfs) Close() error { return t.dev.Close() }

func (t *Devfs) String() string { return fmt.Sprintf("%s:0x%02x", t.name, t.addr) }
