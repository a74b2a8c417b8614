package icecram

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

// recorder is the shared event log of one simulated board.
type recorder struct {
	events []string
	now    time.Duration
}

func (r *recorder) log(format string, a ...any) {
	r.events = append(r.events, fmt.Sprintf(format, a...))
}

// without returns the events that do not start with any of prefixes.
func (r *recorder) without(prefixes ...string) []string {
	var out []string
next:
	for _, e := range r.events {
		for _, p := range prefixes {
			if strings.HasPrefix(e, p) {
				continue next
			}
		}
		out = append(out, e)
	}
	return out
}

type fakeClock struct {
	rec *recorder
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.rec.now += d
	c.rec.log("sleep %v", d)
}

// tracePin records direction and level changes. A pin with a trace returns
// trace(n) on its n-th Read.
type tracePin struct {
	gpiotest.Pin
	rec *recorder

	out   bool
	trace func(n int) gpio.Level
	reads int

	duty gpio.Duty
	freq physic.Frequency
}

func newTracePin(rec *recorder, name string) *tracePin {
	return &tracePin{Pin: gpiotest.Pin{N: name}, rec: rec}
}

func (p *tracePin) Out(l gpio.Level) error {
	p.L = l
	p.out = true
	p.rec.log("%s=%s", p.N, l)
	return nil
}

func (p *tracePin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.P = pull
	p.out = false
	p.rec.log("%s in %s", p.N, pull)
	return nil
}

func (p *tracePin) Read() gpio.Level {
	p.reads++
	p.rec.log("%s?", p.N)
	if p.trace != nil {
		return p.trace(p.reads)
	}
	return p.L
}

func (p *tracePin) PWM(duty gpio.Duty, f physic.Frequency) error {
	p.duty, p.freq = duty, f
	p.rec.log("%s pwm %s", p.N, f)
	return nil
}

// highFrom returns a trace that reads high from the k-th read on. k <= 0
// never reads high.
func highFrom(k int) func(int) gpio.Level {
	return func(n int) gpio.Level {
		return k > 0 && n >= k
	}
}

var errInjected = errors.New("injected")

// fakeBus records every write and selection.
type fakeBus struct {
	rec      *recorder
	writes   [][]byte
	selected bool
	deselect int

	failWrite int // fail the n-th write, 1-based
	memory    []byte
}

func (b *fakeBus) Write(p []byte) error {
	if b.failWrite > 0 && len(b.writes)+1 == b.failWrite {
		return errInjected
	}
	b.writes = append(b.writes, bytes.Clone(p))
	if len(p) == 1 && p[0] == 0 {
		b.rec.log("write 00")
	} else {
		b.rec.log("write %d", len(p))
	}
	return nil
}

func (b *fakeBus) Select(cs gpio.PinOut) error {
	if b.selected {
		return errors.New("already selected")
	}
	b.selected = true
	b.rec.log("select")
	return nil
}

func (b *fakeBus) Deselect(cs gpio.PinOut) error {
	b.selected = false
	b.deselect++
	b.rec.log("deselect")
	return nil
}

// Tx answers flash commands from memory.
func (b *fakeBus) Tx(w, r []byte) error {
	if !b.selected {
		return errors.New("tx without select")
	}
	b.rec.log("tx %02X", w[0])
	switch w[0] {
	case flashCmdReadID:
		copy(r[1:], flashIDWinbondW25Q128[:])
	case flashCmdReadStatusRegister:
		r[1] = 0x02
	case flashCmdRead:
		addr := int(w[1])<<16 | int(w[2])<<8 | int(w[3])
		copy(r[4:], b.memory[addr:])
	}
	return nil
}

// dummies counts the single zero bytes written from index from on.
func (b *fakeBus) dummies(from int) int {
	n := 0
	for _, w := range b.writes[from:] {
		if len(w) == 1 && w[0] == 0 {
			n++
		}
	}
	return n
}

// board is a simulated FPGA wiring.
type board struct {
	rec   *recorder
	reset *tracePin
	done  *tracePin
	cs    *tracePin
	clk   *tracePin
	bus   *fakeBus
	clock *fakeClock
}

func newBoard() *board {
	rec := &recorder{}
	return &board{
		rec:   rec,
		reset: newTracePin(rec, "CRESET_B"),
		done:  newTracePin(rec, "CDONE"),
		cs:    newTracePin(rec, "SPI_SS"),
		clk:   newTracePin(rec, "CLK"),
		bus:   &fakeBus{rec: rec},
		clock: &fakeClock{rec: rec},
	}
}

func (b *board) config() Config {
	return Config{
		Reset: b.reset,
		Done:  b.done,
		CS:    b.cs,
		Clock: b.clk,
		Time:  b.clock,
	}
}
