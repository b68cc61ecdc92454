package main

import (
	"errors"
	"reflect"
	"testing"

	"periph.io/x/conn/v3/physic"
)

func TestHint(t *testing.T) {
	testData := []struct {
		addr uint16
		want string
	}{
		{0x68, "DS1307/DS3231 (TinyRTC)"},
		{0x50, "AT24Cxx EEPROM"},
		{0x57, "AT24Cxx EEPROM"},
		{0x3c, "SSD1306 OLED"},
		{0x3d, "SSD1306 OLED"},
		{0x20, "PCF8574 I/O expander"},
		{0x38, "PCF8574A I/O expander"},
		{0x3f, "PCF8574A I/O expander"},
		{0x77, "BME280"},
		{0x29, ""},
		{0x58, ""},
	}
	for _, test := range testData {
		if got, want := hint(test.addr), test.want; got != want {
			t.Errorf("hint for %#x:\n  got: %q\n want: %q", test.addr, got, want)
		}
	}
}

// fakeBus acknowledges only the addresses in present.
type fakeBus map[uint16]bool

func (b fakeBus) String() string { return "fake" }

func (b fakeBus) SetSpeed(f physic.Frequency) error { return nil }

func (b fakeBus) Tx(addr uint16, w, r []byte) error {
	if b[addr] {
		return nil
	}
	return errors.New("nack")
}

func TestScan(t *testing.T) {
	// 0x00 and 0x7f are reserved and must not be probed.
	b := fakeBus{0x00: true, 0x29: true, 0x68: true, 0x77: true, 0x7f: true}
	if got, want := scan(b), []uint16{0x29, 0x68, 0x77}; !reflect.DeepEqual(got, want) {
		t.Errorf("scan:\n  got: %#x\n want: %#x", got, want)
	}
	if got := scan(fakeBus{}); len(got) != 0 {
		t.Errorf("scan of an empty bus:\n  got: %#x\n want: none", got)
	}
}
