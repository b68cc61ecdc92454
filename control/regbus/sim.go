package regbus

import (
	"fmt"
	"sync"

	"github.com/jrockway/latch-clock/control/hw"
)

// SimSize is the size of the simulated register file: the DS1307's 8 clock/control registers plus
// its 56 bytes of battery-backed RAM.
const SimSize = 64

// Sim is an in-memory register file that behaves like a DS1307 on the bus: reads and writes
// auto-increment the register pointer, wrapping at the end of the address space.  Failures can be
// injected to exercise error handling.  It is safe for concurrent use.
type Sim struct {
	mu       sync.Mutex
	regs     [SimSize]byte
	readErr  error
	writeErr error
	reads    int
	writes   int
}

// NewSim returns a simulated device with every register zero.
func NewSim() *Sim { return new(Sim) }

// Read implements Transport.
func (s *Sim) Read(reg uint8, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return hw.Transport(fmt.Sprintf("read %d bytes at register 0x%02x of sim", len(p), reg), s.readErr)
	}
	s.reads++
	for i := range p {
		p[i] = s.regs[(int(reg)+i)%SimSize]
	}
	return nil
}

// Write implements Transport.
func (s *Sim) Write(reg uint8, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return hw.Transport(fmt.Sprintf("write %d bytes at register 0x%02x of sim", len(p), reg), s.writeErr)
	}
	s.writes++
	for i, b := range p {
		s.regs[(int(reg)+i)%SimSize] = b
	}
	return nil
}

// Close implements io.Closer.
func (s *Sim) Close() error { return nil }

// Poke sets registers directly, as if something else on the bus had written them.
func (s *Sim) Poke(reg uint8, p ...byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range p {
		s.regs[(int(reg)+i)%SimSize] = b
	}
}

// Peek returns the current value of a register.
func (s *Sim) Peek(reg uint8) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[int(reg)%SimSize]
}

// FailReads makes every subsequent Read fail with err; nil restores normal operation.
func (s *Sim) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// FailWrites makes every subsequent Write fail with err; nil restores normal operation.
func (s *Sim) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Counts returns the number of successful reads and writes so far.
func (s *Sim) Counts() (reads, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.writes
}

func (s *Sim) String() string { return "sim" }
