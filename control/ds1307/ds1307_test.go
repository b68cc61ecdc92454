package ds1307

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jrockway/latch-clock/control/hw"
	"github.com/jrockway/latch-clock/control/regbus"
)

func TestNewClearsHalt(t *testing.T) {
	sim := regbus.NewSim()
	sim.Poke(0, 0x80|0x30, 0x15, 0x07) // halted at 07:15:30
	c, err := New(sim)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !c.ClearedHalt() {
		t.Errorf("halt bit was set but not reported as cleared")
	}
	if got, want := sim.Peek(0), byte(0x30); got != want {
		t.Errorf("seconds register after init:\n  got: %#x\n want: %#x", got, want)
	}
	h, m, s, err := c.Time()
	if err != nil {
		t.Fatalf("time: %v", err)
	}
	if h != 7 || m != 15 || s != 30 {
		t.Errorf("time after init:\n  got: %02d:%02d:%02d\n want: 07:15:30", h, m, s)
	}
}

func TestNewLeavesRunningClockAlone(t *testing.T) {
	sim := regbus.NewSim()
	sim.Poke(0, 0x59, 0x59, 0x23)
	c, err := New(sim)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.ClearedHalt() {
		t.Errorf("running clock reported as halted")
	}
	if _, writes := sim.Counts(); writes != 0 {
		t.Errorf("writes during init of a running clock:\n  got: %d\n want: 0", writes)
	}
}

func TestNewAbsentChip(t *testing.T) {
	sim := regbus.NewSim()
	nack := errors.New("no ack from 0x68")
	sim.FailReads(nack)
	if _, err := New(sim); !hw.IsTransport(err) || !errors.Is(err, nack) {
		t.Errorf("new with no chip:\n  got: %v\n want: transport error wrapping %v", err, nack)
	}
}

func TestDecodeHours24(t *testing.T) {
	for h := 0; h < 24; h++ {
		raw := byte(h/10)<<4 | byte(h%10)
		if got, want := DecodeHours(raw), h; got != want {
			t.Errorf("decode 24h %#x:\n  got: %v\n want: %v", raw, got, want)
		}
	}
}

func TestDecodeHours12(t *testing.T) {
	for h := 1; h <= 12; h++ {
		for _, pm := range []bool{false, true} {
			raw := byte(0x40) | byte(h/10)<<4 | byte(h%10)
			want := h % 12
			if pm {
				raw |= 0x20
				want += 12
			}
			if got := DecodeHours(raw); got != want {
				t.Errorf("decode 12h %d pm=%v (%#x):\n  got: %v\n want: %v", h, pm, raw, got, want)
			}
		}
	}

	testData := []struct {
		raw  byte
		want int
	}{
		{0x52, 0},  // 12 AM
		{0x72, 12}, // 12 PM
		{0x41, 1},  // 1 AM
		{0x71, 23}, // 11 PM
		{0x23, 23}, // 24h 23
	}
	for _, test := range testData {
		if got, want := DecodeHours(test.raw), test.want; got != want {
			t.Errorf("decode %#x:\n  got: %v\n want: %v", test.raw, got, want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	sim := regbus.NewSim()
	sim.Poke(2, 0x40|0x20|0x11) // start out in 12h mode, 11 PM
	c, err := New(sim)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for h := 0; h < 24; h++ {
		for m := 0; m < 60; m++ {
			for s := 0; s < 60; s++ {
				if err := c.SetTime(h, m, s); err != nil {
					t.Fatalf("set %02d:%02d:%02d: %v", h, m, s, err)
				}
				gh, gm, gs, err := c.Time()
				if err != nil {
					t.Fatalf("get after set %02d:%02d:%02d: %v", h, m, s, err)
				}
				if gh != h || gm != m || gs != s {
					t.Fatalf("round trip:\n  got: %02d:%02d:%02d\n want: %02d:%02d:%02d", gh, gm, gs, h, m, s)
				}
				if sim.Peek(0)&0x80 != 0 {
					t.Fatalf("set %02d:%02d:%02d left the clock halted", h, m, s)
				}
				if sim.Peek(2)&0x40 != 0 {
					t.Fatalf("set %02d:%02d:%02d left the chip in 12h mode", h, m, s)
				}
			}
		}
	}
}

func TestSetTimeWraps(t *testing.T) {
	testData := []struct {
		h, m, s    int
		wh, wm, ws int
	}{
		{24, 60, 60, 0, 0, 0},
		{25, 61, 125, 1, 1, 5},
		{-1, -1, -1, 23, 59, 59},
		{48, 120, 0, 0, 0, 0},
	}
	sim := regbus.NewSim()
	c, err := New(sim)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, test := range testData {
		t.Run(fmt.Sprintf("%d:%d:%d", test.h, test.m, test.s), func(t *testing.T) {
			if err := c.SetTime(test.h, test.m, test.s); err != nil {
				t.Fatalf("set: %v", err)
			}
			h, m, s, err := c.Time()
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if h != test.wh || m != test.wm || s != test.ws {
				t.Errorf("wrapped time:\n  got: %02d:%02d:%02d\n want: %02d:%02d:%02d", h, m, s, test.wh, test.wm, test.ws)
			}
		})
	}
}

func TestTransportErrors(t *testing.T) {
	sim := regbus.NewSim()
	c, err := New(sim)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sim.FailWrites(errors.New("bus timeout"))
	if err := c.SetTime(1, 2, 3); !hw.IsTransport(err) {
		t.Errorf("set with a failing bus:\n  got: %v\n want: transport error", err)
	}
	sim.FailReads(errors.New("bus timeout"))
	if _, _, _, err := c.Time(); !hw.IsTransport(err) {
		t.Errorf("get with a failing bus:\n  got: %v\n want: transport error", err)
	}
}
