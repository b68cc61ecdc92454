// Package digitbus drives a four digit numeric display through a shared 4-bit data bus and one
// latch line per digit.
//
// Each digit has its own BCD latch (something like a 4511 decoder/driver).  All four latches
// listen to the same four data lines; a short high pulse on a digit's latch line commits whatever
// the data lines hold at that moment into that digit.  Writing a digit is therefore "set the data
// lines, then pulse the latch", and the latch lines must stay low the rest of the time.
//
//	data bit0..bit3 ----+--------+--------+--------+
//	                    |        |        |        |
//	                 [digit0] [digit1] [digit2] [digit3]
//	                    |        |        |        |
//	latch           latch0   latch1   latch2   latch3
//
// Digit 0 is the ones digit and digit 3 is the thousands digit.
package digitbus

import (
	"fmt"
	"time"

	"github.com/jrockway/latch-clock/control/hw"
	"periph.io/x/conn/v3/gpio"
)

const (
	// Digits is the number of digits (and latch lines) on the display.
	Digits = 4
	// DataLines is the width of the data bus.
	DataLines = 4

	// DefaultLatchWidth is a pulse width that works with the 4511s on my board.  Slower line
	// drivers or longer wires need more.
	DefaultLatchWidth = 20 * time.Microsecond

	// BlankNibble is a value that 4511-style decoders show as an unlit digit.
	BlankNibble = 0xF

	maxNumber = 9999
)

// Opts configures a Bus.
type Opts struct {
	// LatchWidth is how long a latch line is held high.  Zero means DefaultLatchWidth.
	LatchWidth time.Duration
	// Settle is an extra delay between driving the data lines and pulsing a latch, for hardware
	// whose data lines are slow to reach their level.  Zero (the default) means no delay.
	Settle time.Duration
}

// Bus is the data bus plus the latch lines.
type Bus struct {
	data  [DataLines]gpio.PinOut
	latch [Digits]gpio.PinOut
	opts  Opts
	sleep func(time.Duration)

	last uint8 // the last nibble driven onto the data lines
}

// New returns a Bus using data[i] for bit i and latch[i] for digit i.  All latch lines are driven
// low before New returns.
func New(data, latch []gpio.PinOut, opts *Opts) (*Bus, error) {
	if len(data) != DataLines {
		return nil, fmt.Errorf("need %d data lines, got %d: %w", DataLines, len(data), hw.ErrInvalidArgument)
	}
	if len(latch) != Digits {
		return nil, fmt.Errorf("need %d latch lines, got %d: %w", Digits, len(latch), hw.ErrInvalidArgument)
	}
	b := &Bus{sleep: time.Sleep}
	if opts != nil {
		b.opts = *opts
	}
	if b.opts.LatchWidth <= 0 {
		b.opts.LatchWidth = DefaultLatchWidth
	}
	copy(b.data[:], data)
	copy(b.latch[:], latch)
	for i, p := range b.latch {
		if err := p.Out(gpio.Low); err != nil {
			return nil, hw.Transport(fmt.Sprintf("idle latch line %d (%s)", i, p), err)
		}
	}
	return b, nil
}

// WriteNibble drives the low 4 bits of v onto the data lines and returns the value actually
// applied.  Latch lines are not touched.
func (b *Bus) WriteNibble(v int) (uint8, error) {
	n := uint8(v) & 0xF
	for i, p := range b.data {
		if err := p.Out(gpio.Level((n>>uint(i))&1 == 1)); err != nil {
			return 0, hw.Transport(fmt.Sprintf("drive data line %d (%s)", i, p), err)
		}
	}
	b.last = n
	return n, nil
}

// Latch pulses the latch line of the given digit.
func (b *Bus) Latch(digit int) error {
	if digit < 0 || digit >= Digits {
		return fmt.Errorf("latch digit %d: %w", digit, hw.ErrInvalidArgument)
	}
	p := b.latch[digit]
	if err := p.Out(gpio.High); err != nil {
		return hw.Transport(fmt.Sprintf("raise latch line %d (%s)", digit, p), err)
	}
	b.sleep(b.opts.LatchWidth)
	if err := p.Out(gpio.Low); err != nil {
		return hw.Transport(fmt.Sprintf("lower latch line %d (%s)", digit, p), err)
	}
	return nil
}

// WriteDigit writes v to the data lines and latches it into digit.
func (b *Bus) WriteDigit(v int, digit int) (uint8, error) {
	// Check before touching the data lines, so a bad index leaves the bus alone.
	if digit < 0 || digit >= Digits {
		return 0, fmt.Errorf("write digit %d: %w", digit, hw.ErrInvalidArgument)
	}
	n, err := b.WriteNibble(v)
	if err != nil {
		return 0, fmt.Errorf("write digit %d: %w", digit, err)
	}
	if b.opts.Settle > 0 {
		b.sleep(b.opts.Settle)
	}
	if err := b.Latch(digit); err != nil {
		return 0, fmt.Errorf("write digit %d: %w", digit, err)
	}
	return n, nil
}

// WriteNumber shows v on the display, with leading zeros.  v is clamped to [0, 9999].
func (b *Bus) WriteNumber(v int) error {
	if v < 0 {
		v = 0
	}
	if v > maxNumber {
		v = maxNumber
	}
	for d := 0; d < Digits; d++ {
		if _, err := b.WriteDigit(v%10, d); err != nil {
			return fmt.Errorf("write number: %w", err)
		}
		v /= 10
	}
	return nil
}

// Blank turns every digit off.
func (b *Bus) Blank() error {
	for d := 0; d < Digits; d++ {
		if _, err := b.WriteDigit(BlankNibble, d); err != nil {
			return fmt.Errorf("blank display: %w", err)
		}
	}
	return nil
}

// LastValue returns the last nibble driven onto the data lines.
func (b *Bus) LastValue() uint8 { return b.last }
