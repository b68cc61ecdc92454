// Package button turns a polled pushbutton into click and auto-repeat events.
//
// A press shorter than the long-press threshold is a click, reported when the button is
// released.  Holding the button past the threshold instead produces a repeat event at the
// threshold and then every repeat interval until release; releasing after that produces nothing
// more.
//
// There is no separate debounce filter.  The button is sampled once per Process call, and calling
// Process every 20ms or so is slow enough that contact bounce is rarely seen as two presses.  A
// very bouncy switch can still double-click.
package button

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

const (
	DefaultLongPress = 600 * time.Millisecond
	DefaultRepeat    = 200 * time.Millisecond
)

// Opts configures a Button.
type Opts struct {
	LongPress time.Duration // hold time before auto-repeat starts; zero means DefaultLongPress
	Repeat    time.Duration // time between repeats; zero means DefaultRepeat
	// ActiveHigh is true if the button drives the line high when pressed.  The default is a button
	// to ground with a pull-up, which reads low when pressed.
	ActiveHigh bool
}

// Button is the debounce/auto-repeat state machine for one input line.  The zero value is not
// usable; call New.
type Button struct {
	pin          gpio.PinIn
	active       gpio.Level
	longMs       int64
	repeatMs     int64
	pressed      bool
	pressDownAt  int64
	nextRepeatAt int64
}

// New returns an idle Button reading pin.  The pin should already be configured as an input.
func New(pin gpio.PinIn, opts *Opts) *Button {
	o := Opts{}
	if opts != nil {
		o = *opts
	}
	if o.LongPress <= 0 {
		o.LongPress = DefaultLongPress
	}
	if o.Repeat <= 0 {
		o.Repeat = DefaultRepeat
	}
	return &Button{
		pin:      pin,
		active:   gpio.Level(o.ActiveHigh),
		longMs:   o.LongPress.Milliseconds(),
		repeatMs: o.Repeat.Milliseconds(),
	}
}

// Pull returns the pull resistor a button with these options needs: up for an active-low button,
// down for an active-high one.
func (o *Opts) Pull() gpio.Pull {
	if o != nil && o.ActiveHigh {
		return gpio.PullDown
	}
	return gpio.PullUp
}

// Pressed returns true if the button was down at the last Process call.
func (b *Button) Pressed() bool { return b.pressed }

// Process samples the button at time nowMs (milliseconds on a monotonic clock) and calls at most
// one of onClick or onRepeat.
func (b *Button) Process(nowMs int64, onClick, onRepeat func()) {
	down := b.pin.Read() == b.active
	switch {
	case down && !b.pressed:
		b.pressed = true
		b.pressDownAt = nowMs
		b.nextRepeatAt = nowMs + b.longMs
	case !down && b.pressed:
		b.pressed = false
		if nowMs-b.pressDownAt < b.longMs && onClick != nil {
			onClick()
		}
	case down && b.pressed:
		if nowMs >= b.nextRepeatAt {
			b.nextRepeatAt += b.repeatMs
			if onRepeat != nil {
				onRepeat()
			}
		}
	}
}
