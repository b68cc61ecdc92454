package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jrockway/latch-clock/control/button"
	"github.com/jrockway/latch-clock/control/clock"
	"github.com/jrockway/latch-clock/control/digitbus"
	"github.com/jrockway/latch-clock/control/ds1307"
	"github.com/jrockway/latch-clock/control/regbus"
	"github.com/jrockway/latch-clock/control/screen"
	"github.com/jrockway/periphflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "golang.org/x/net/trace" // registers /debug/requests and /debug/events
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	bind = flag.String("bind", ":8080", "address to bind for debug/metrics server")

	dataPins   = flag.String("data", "GPIO10,GPIO11,GPIO12,GPIO13", "comma-separated data lines, bit 0 first")
	latchPins  = flag.String("latch", "GPIO6,GPIO7,GPIO8,GPIO9", "comma-separated latch lines, ones digit first")
	latchWidth = flag.Duration("latch-width", digitbus.DefaultLatchWidth, "how long to hold a latch line high")
	settle     = flag.Duration("settle", 0, "delay between setting the data lines and latching")

	hourPin   = flag.String("hour-button", "GPIO26", "hour button input")
	minutePin = flag.String("minute-button", "GPIO27", "minute button input")
	activeLow = flag.Bool("active-low", true, "buttons pull the line low when pressed (and get a pull-up)")
	longPress = flag.Duration("long-press", button.DefaultLongPress, "hold time before a button starts repeating")
	repeat    = flag.Duration("repeat", button.DefaultRepeat, "time between repeats while a button is held")

	busKind = flag.String("bus-kind", regbus.KindPeriph, "rtc bus transport: periph, devfs, or sim")
	i2cBus  = flag.String("i2c", "", "i2c bus the rtc is on; an i2creg name for periph, a /dev/i2c-N node for devfs")
	scl     = flag.String("scl", "", "if set, the pin name the i2c bus must use for SCL")
	sda     = flag.String("sda", "", "if set, the pin name the i2c bus must use for SDA")
	rtcAddr = flag.Uint("rtc-addr", ds1307.Addr, "rtc i2c address")

	refresh = flag.Duration("refresh", clock.DefaultRefresh, "how often to re-read the rtc")
	tick    = flag.Duration("tick", clock.DefaultTick, "service loop interval")

	i2cFreq = regbus.DefaultFrequency
	spiDev  string
)

func outputs(names string) ([]gpio.PinOut, error) {
	var result []gpio.PinOut
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("no gpio pin named %q", name)
		}
		result = append(result, p)
	}
	return result, nil
}

func input(name string, opts *button.Opts) (*button.Button, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no gpio pin named %q", name)
	}
	if err := p.In(opts.Pull(), gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure %s as input: %w", p, err)
	}
	return button.New(p, opts), nil
}

func main() {
	if _, err := host.Init(); err != nil {
		log.Fatalf("init periph.io: %v", err)
	}
	flag.Var(&i2cFreq, "i2c-freq", "i2c bus frequency")
	periphflag.SPIDevVar(&spiDev, "spi", "", "spi bus of an optional max7219 display that mirrors the clock")
	flag.Parse()

	rtcBus, err := regbus.Open(regbus.Config{
		Kind:      *busKind,
		Bus:       *i2cBus,
		SCL:       *scl,
		SDA:       *sda,
		Frequency: i2cFreq,
		Addr:      uint16(*rtcAddr),
	})
	if err != nil {
		log.Fatalf("open rtc bus: %v", err)
	}
	rtc, err := ds1307.New(rtcBus)
	if err != nil {
		log.Fatalf("init rtc: %v", err)
	}
	if rtc.ClearedHalt() {
		log.Printf("rtc oscillator was stopped; started it (check the backup battery)")
	}
	if *busKind == regbus.KindSim {
		now := time.Now()
		if err := rtc.SetTime(now.Hour(), now.Minute(), now.Second()); err != nil {
			log.Fatalf("seed simulated rtc: %v", err)
		}
	}

	data, err := outputs(*dataPins)
	if err != nil {
		log.Fatalf("data lines: %v", err)
	}
	latch, err := outputs(*latchPins)
	if err != nil {
		log.Fatalf("latch lines: %v", err)
	}
	digits, err := digitbus.New(data, latch, &digitbus.Opts{LatchWidth: *latchWidth, Settle: *settle})
	if err != nil {
		log.Fatalf("init digit bus: %v", err)
	}

	buttonOpts := &button.Opts{LongPress: *longPress, Repeat: *repeat, ActiveHigh: !*activeLow}
	hourButton, err := input(*hourPin, buttonOpts)
	if err != nil {
		log.Fatalf("hour button: %v", err)
	}
	minuteButton, err := input(*minutePin, buttonOpts)
	if err != nil {
		log.Fatalf("minute button: %v", err)
	}

	var spiPort spi.PortCloser
	if spiDev != "" {
		spiPort, err = spireg.Open(spiDev)
		if err != nil {
			log.Fatalf("open spi port %q: %v", spiDev, err)
		}
	}
	mirror, err := screen.NewScreen(spiPort)
	if err != nil {
		log.Fatalf("init screen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	http.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/display.png", http.StatusFound)
	})
	http.Handle("/display.png", mirror)
	http.Handle("/metrics", promhttp.Handler())

	httpDoneCh := make(chan error)
	httpServer := http.Server{Addr: *bind}
	go func() {
		log.Printf("http server listening on %s", httpServer.Addr)
		err := httpServer.ListenAndServe()
		select {
		case httpDoneCh <- err:
		case <-ctx.Done():
		}
		close(httpDoneCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	cl := clock.New(clock.Config{Refresh: *refresh, Tick: *tick}, digits, rtc, hourButton, minuteButton)
	cl.AddMirror(mirror)
	loopDoneCh := make(chan error)
	go func() {
		err := cl.Run(ctx)
		select {
		case loopDoneCh <- err:
		case <-ctx.Done():
		}
		close(loopDoneCh)
	}()

	httpAlive := true
	select {
	case err := <-httpDoneCh:
		log.Printf("http server died: %v", err)
		httpAlive = false
	case err := <-loopDoneCh:
		log.Printf("clock loop died: %v", err)
	case <-sigCh:
		log.Printf("interrupt")
	}
	signal.Stop(sigCh)
	cancel()
	// Wait for the loop to let go of the digit bus before blanking it.
	<-loopDoneCh

	// Blank the digits when exiting, so that someone looking at the clock can tell the program
	// isn't running rather than guessing that the time is wrong.
	if err := digits.Blank(); err != nil {
		log.Printf("blank digits: %v", err)
	}
	if err := mirror.Blank(); err != nil {
		log.Printf("blank mirror: %v", err)
	}
	if err := rtcBus.Close(); err != nil {
		log.Printf("close rtc bus: %v", err)
	}
	if spiPort != nil {
		spiPort.Close()
	}
	if httpAlive {
		tctx, c := context.WithTimeout(context.Background(), time.Second)
		httpServer.Shutdown(tctx)
		c()
	}
	os.Exit(1)
}
