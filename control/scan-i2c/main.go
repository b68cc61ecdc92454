// Command scan-i2c lists the devices that answer on an I2C bus, with a guess at what each one is.
// Useful for checking the RTC wiring before running the clock.
package main

import (
	"flag"
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var (
	bus  = flag.String("i2c", "", "i2c bus to scan (i2creg name; empty for the first bus)")
	freq = 100 * physic.KiloHertz
)

// hint returns a guess at what device lives at addr, or "" if there is no guess.
func hint(addr uint16) string {
	switch {
	case addr == 0x68:
		return "DS1307/DS3231 (TinyRTC)"
	case addr >= 0x50 && addr <= 0x57:
		return "AT24Cxx EEPROM"
	case addr == 0x3c || addr == 0x3d:
		return "SSD1306 OLED"
	case addr >= 0x20 && addr <= 0x27:
		return "PCF8574 I/O expander"
	case addr >= 0x38 && addr <= 0x3f:
		return "PCF8574A I/O expander"
	case addr == 0x76 || addr == 0x77:
		return "BME280"
	}
	return ""
}

// scan returns the addresses in the non-reserved 7-bit range that acknowledge a one-byte read.
func scan(b i2c.Bus) []uint16 {
	var found []uint16
	var buf [1]byte
	for addr := uint16(0x08); addr <= 0x77; addr++ {
		if err := b.Tx(addr, nil, buf[:]); err == nil {
			found = append(found, addr)
		}
	}
	return found
}

func main() {
	if _, err := host.Init(); err != nil {
		log.Fatalf("init periph.io: %v", err)
	}
	flag.Var(&freq, "i2c-freq", "i2c bus frequency")
	flag.Parse()

	b, err := i2creg.Open(*bus)
	if err != nil {
		log.Fatalf("open i2c bus %q: %v", *bus, err)
	}
	defer b.Close()
	if err := b.SetSpeed(freq); err != nil {
		log.Fatalf("set bus speed to %s: %v", freq, err)
	}

	found := scan(b)
	if len(found) == 0 {
		fmt.Printf("%s: no devices found\n", b)
		return
	}
	fmt.Printf("%s: found %d device(s)\n", b, len(found))
	for _, addr := range found {
		if h := hint(addr); h != "" {
			fmt.Printf("  0x%02X  %s\n", addr, h)
		} else {
			fmt.Printf("  0x%02X\n", addr)
		}
	}
}
