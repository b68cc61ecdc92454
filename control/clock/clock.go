// Package clock runs the clock: it watches the buttons, writes button-driven changes to the RTC
// chip and the display, and keeps the display in step with the chip.
package clock

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

const (
	DefaultRefresh = 100 * time.Millisecond
	DefaultTick    = 20 * time.Millisecond
)

var (
	buttonEventsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clock_button_events_total",
		Help: "button events that changed the time, by button and kind (click or repeat)",
	}, []string{"button", "kind"})

	transportErrorsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clock_transport_errors_total",
		Help: "failed hardware operations, by operation",
	}, []string{"op"})

	adoptionsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clock_reconcile_adoptions_total",
		Help: "count of times the chip's time differed from the displayed time and was adopted",
	})

	overrunTicksCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clock_overrun_ticks_total",
		Help: "count of ticks that took longer than the tick interval",
	})

	tickDurationMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clock_tick_duration",
		Help:    "time spent servicing one tick, in nanoseconds",
		Buckets: prometheus.ExponentialBuckets(1000, 4, 12),
	})
)

// Display shows a number between 0 and 9999.
type Display interface {
	WriteNumber(v int) error
}

// Chip is the authoritative source of the time of day.
type Chip interface {
	Time() (hour, minute, second int, err error)
	SetTime(hour, minute, second int) error
}

// Button is polled once per tick and reports clicks and auto-repeats.
type Button interface {
	Process(nowMs int64, onClick, onRepeat func())
}

// Mirror receives every value successfully written to the display, for previews and secondary
// displays.
type Mirror interface {
	Show(v int) error
}

// Config holds the loop timing.
type Config struct {
	// Refresh is how often the chip is re-read to pick up changes made behind our back.
	Refresh time.Duration
	// Tick is the interval between loop iterations.
	Tick time.Duration
	// Now returns milliseconds on a monotonic clock.  If nil, milliseconds since New is used.
	Now func() int64
}

// Clock is the running clock.  All of its state is owned by the goroutine calling Run (or Start
// and Step).
type Clock struct {
	cfg          Config
	display      Display
	chip         Chip
	hourButton   Button
	minuteButton Button
	mirrors      []Mirror
	events       trace.EventLog

	hour, minute int   // what the display shows
	stale        bool  // a display write failed; the display may not match hour and minute
	refreshed    bool  // true once the chip has been read by Step
	lastRefresh  int64 // ms
	chipFailing  bool
}

// New returns a Clock.  Call Run, or Start and then Step, to make it go.
func New(cfg Config, display Display, chip Chip, hourButton, minuteButton Button) *Clock {
	if cfg.Refresh <= 0 {
		cfg.Refresh = DefaultRefresh
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Now == nil {
		start := time.Now()
		cfg.Now = func() int64 { return time.Since(start).Milliseconds() }
	}
	return &Clock{
		cfg:          cfg,
		display:      display,
		chip:         chip,
		hourButton:   hourButton,
		minuteButton: minuteButton,
		events:       trace.NewEventLog("service", "clock"),
	}
}

// AddMirror arranges for m to see everything that is shown on the display.
func (c *Clock) AddMirror(m Mirror) {
	c.mirrors = append(c.mirrors, m)
}

// Displayed returns the time the clock believes is on the display.
func (c *Clock) Displayed() (hour, minute int) {
	return c.hour, c.minute
}

// Start reads the time from the chip and shows it.  An unreadable chip is an error; there is no
// sensible time to show without it.
func (c *Clock) Start() error {
	h, m, s, err := c.chip.Time()
	if err != nil {
		transportErrorsCounter.WithLabelValues("chip_read").Inc()
		return fmt.Errorf("read initial time: %w", err)
	}
	h, m = h%24, m%60
	c.hour, c.minute = h, m
	c.events.Printf("initial time %02d:%02d:%02d", h, m, s)
	log.Printf("clock started at %02d:%02d:%02d", h, m, s)
	c.render()
	return nil
}

// Step runs one iteration of the loop at time now (ms): the hour button, then the minute button,
// then (if due) reconciliation with the chip.
func (c *Clock) Step(now int64) {
	c.hourButton.Process(now,
		func() { c.incHour("click") },
		func() { c.incHour("repeat") })
	c.minuteButton.Process(now,
		func() { c.incMinute("click") },
		func() { c.incMinute("repeat") })
	if !c.refreshed || now-c.lastRefresh >= c.cfg.Refresh.Milliseconds() {
		c.refreshed = true
		c.lastRefresh = now
		c.reconcile()
	}
}

// Run starts the clock and services it every tick until the context is cancelled.
func (c *Clock) Run(ctx context.Context) error {
	defer c.events.Finish()
	if err := c.Start(); err != nil {
		return fmt.Errorf("start clock: %w", err)
	}
	for {
		start := time.Now()
		c.Step(c.cfg.Now())
		took := time.Since(start)
		tickDurationMetric.Observe(float64(took.Nanoseconds()))
		if took > c.cfg.Tick {
			overrunTicksCounter.Inc()
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for next tick: %w", ctx.Err())
		case <-time.After(time.Until(start.Add(c.cfg.Tick))):
		}
	}
}

func (c *Clock) incHour(kind string) {
	buttonEventsCounter.WithLabelValues("hour", kind).Inc()
	c.set((c.hour+1)%24, c.minute)
}

// incMinute advances the minute.  59 goes to 0 without touching the hour; when setting a clock,
// carrying into the hour is just annoying.
func (c *Clock) incMinute(kind string) {
	buttonEventsCounter.WithLabelValues("minute", kind).Inc()
	c.set(c.hour, (c.minute+1)%60)
}

// set writes a new time to the chip (seconds zeroed) and then to the display.  If the chip write
// fails, the clock keeps its old time and the display is left alone.
func (c *Clock) set(hour, minute int) {
	if err := c.chip.SetTime(hour, minute, 0); err != nil {
		transportErrorsCounter.WithLabelValues("chip_write").Inc()
		c.events.Errorf("set time %02d:%02d: %v", hour, minute, err)
		log.Printf("set time %02d:%02d: %v", hour, minute, err)
		return
	}
	c.events.Printf("set time %02d:%02d", hour, minute)
	c.hour, c.minute = hour, minute
	c.render()
}

// reconcile re-reads the chip and adopts its time if it differs from what is displayed.
func (c *Clock) reconcile() {
	h, m, _, err := c.chip.Time()
	if err != nil {
		transportErrorsCounter.WithLabelValues("chip_read").Inc()
		c.events.Errorf("read time: %v", err)
		if !c.chipFailing {
			log.Printf("reading time from chip failing; keeping %02d:%02d on the display: %v", c.hour, c.minute, err)
			c.chipFailing = true
		}
		return
	}
	if c.chipFailing {
		log.Printf("reading time from chip recovered")
		c.chipFailing = false
	}
	// A chip can hold BCD that decodes past 23:59.
	h, m = h%24, m%60
	if h == c.hour && m == c.minute {
		if c.stale {
			c.render()
		}
		return
	}
	adoptionsCounter.Inc()
	c.events.Printf("chip says %02d:%02d, display says %02d:%02d; adopting chip time", h, m, c.hour, c.minute)
	c.hour, c.minute = h, m
	c.render()
}

func (c *Clock) render() {
	v := c.hour*100 + c.minute
	if err := c.display.WriteNumber(v); err != nil {
		transportErrorsCounter.WithLabelValues("display_write").Inc()
		c.events.Errorf("show %04d: %v", v, err)
		log.Printf("show %04d: %v", v, err)
		c.stale = true
		return
	}
	c.stale = false
	for _, m := range c.mirrors {
		if err := m.Show(v); err != nil {
			c.events.Errorf("mirror %04d: %v", v, err)
		}
	}
}
