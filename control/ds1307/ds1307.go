// Package ds1307 reads and sets the time on a DS1307 real-time clock (the "TinyRTC" module):
// https://datasheets.maximintegrated.com/en/ds/DS1307.pdf
//
// Only the hour, minute, and second registers are used; the date registers are left alone.
package ds1307

import (
	"fmt"

	"github.com/jrockway/latch-clock/control/regbus"
)

// Addr is the chip's fixed 7-bit bus address.
const Addr = 0x68

type Register uint8

const (
	RegisterSeconds Register = 0x00
	RegisterMinutes Register = 0x01
	RegisterHours   Register = 0x02
)

const (
	bitClockHalt = 0x80 // seconds register; the oscillator is stopped while set
	bit12Hour    = 0x40 // hours register; 12-hour mode when set
	bitPM        = 0x20 // hours register, 12-hour mode only
)

// Chip is a DS1307 on some register transport.
type Chip struct {
	t           regbus.Transport
	clearedHalt bool
}

// New returns a Chip, restarting the oscillator if the clock-halt bit is set.  (It is set when the
// chip first gets power, or after the backup battery has been replaced.)  New fails if the chip
// does not answer.
func New(t regbus.Transport) (*Chip, error) {
	c := &Chip{t: t}
	sec, err := c.readRegister(RegisterSeconds)
	if err != nil {
		return nil, fmt.Errorf("read seconds register: %w", err)
	}
	if sec&bitClockHalt != 0 {
		if err := c.writeRegister(RegisterSeconds, sec&^bitClockHalt); err != nil {
			return nil, fmt.Errorf("clear clock halt: %w", err)
		}
		c.clearedHalt = true
	}
	return c, nil
}

// ClearedHalt returns true if New found the oscillator stopped and started it.
func (c *Chip) ClearedHalt() bool { return c.clearedHalt }

func (c *Chip) readRegister(r Register) (byte, error) {
	var buf [1]byte
	if err := c.t.Read(uint8(r), buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (c *Chip) writeRegister(r Register, v byte) error {
	return c.t.Write(uint8(r), []byte{v})
}

func bcdToDec(b byte) int {
	return int(b>>4)*10 + int(b&0x0f)
}

func decToBCD(d int) byte {
	return byte(d/10)<<4 | byte(d%10)
}

// DecodeHours converts a raw hours register to an hour in [0, 23].  The chip may have been left in
// either 12- or 24-hour mode by whatever set it last, so both are understood.
func DecodeHours(raw byte) int {
	if raw&bit12Hour == 0 {
		return bcdToDec(raw & 0x3f)
	}
	h := bcdToDec(raw & 0x1f)
	if raw&bitPM != 0 {
		return h%12 + 12
	}
	return h % 12
}

// Time returns the current time of day.  All three registers are read in one transaction, so the
// fields are coherent.
func (c *Chip) Time() (hour, minute, second int, err error) {
	var buf [3]byte
	if err := c.t.Read(uint8(RegisterSeconds), buf[:]); err != nil {
		return 0, 0, 0, fmt.Errorf("read time registers: %w", err)
	}
	second = bcdToDec(buf[RegisterSeconds] & 0x7f)
	minute = bcdToDec(buf[RegisterMinutes] & 0x7f)
	hour = DecodeHours(buf[RegisterHours])
	return hour, minute, second, nil
}

// SetTime sets the time of day.  Out-of-range values wrap (hour 25 is 1).  The chip is always
// left in 24-hour mode with the oscillator running.
func (c *Chip) SetTime(hour, minute, second int) error {
	hour, minute, second = wrap(hour, 24), wrap(minute, 60), wrap(second, 60)
	if err := c.writeRegister(RegisterSeconds, decToBCD(second)&^bitClockHalt); err != nil {
		return fmt.Errorf("write seconds register: %w", err)
	}
	if err := c.writeRegister(RegisterMinutes, decToBCD(minute)&0x7f); err != nil {
		return fmt.Errorf("write minutes register: %w", err)
	}
	if err := c.writeRegister(RegisterHours, decToBCD(hour)&^bit12Hour); err != nil {
		return fmt.Errorf("write hours register: %w", err)
	}
	return nil
}

// wrap is x mod n, but never negative.
func wrap(x, n int) int {
	x %= n
	if x < 0 {
		x += n
	}
	return x
}
