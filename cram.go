package icecram

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
)

var (
	// ErrConfigIncomplete is returned by Program when CDONE stays low after
	// the whole dummy clock tail.
	ErrConfigIncomplete = errors.New("CDONE did not rise after bitstream")
	// ErrSessionState is returned when a session operation is called out of
	// order.
	ErrSessionState = errors.New("configuration session out of order")
)

// State is the position of a Loader in its configuration session.
type State int

const (
	Idle State = iota
	Resetting
	ClockWait
	Receiving
	DummyPoll
	Settle
	Done
	Failed
)

var stateNames = [...]string{
	Idle:      "idle",
	Resetting: "resetting",
	ClockWait: "clock-wait",
	Receiving: "receiving",
	DummyPoll: "dummy-poll",
	Settle:    "settle",
	Done:      "done",
	Failed:    "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

var zero = [1]byte{0x00}

// Loader writes a bitstream into CRAM through the SPI-slave configuration
// interface. A Loader runs one session at a time; a new session starts with
// another Open.
//
// [TN1248|8.1 sysCONFIG Pins]
type Loader struct {
	ctrl *Controller
	bus  Bus
	cs   gpio.PinIO

	t      Timing
	time   Clock
	strict bool

	mu    sync.Mutex
	state State
	held  *lease
	n     int64
}

// NewLoader returns a Loader that drives the FPGA through ctrl and sends the
// bitstream over bus, selecting the FPGA with c.CS.
func NewLoader(c Config, ctrl *Controller, bus Bus) (*Loader, error) {
	c = c.withDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.CS == nil || bus == nil || ctrl == nil {
		return nil, fmt.Errorf("%w: loader needs a controller, a bus and a CS pin", ErrInvalidConfig)
	}
	return &Loader{
		ctrl:   ctrl,
		bus:    bus,
		cs:     c.CS,
		t:      c.Timing,
		time:   c.Time,
		strict: c.StrictReset,
	}, nil
}

// State reports the session state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Open resets the FPGA into SPI-slave configuration mode and claims the bus.
// A CDONE timeout after reset release is logged and ignored unless the
// Config asked for StrictReset.
func (l *Loader) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case Idle, Done, Failed:
	default:
		return fmt.Errorf("%w: open while %s", ErrSessionState, l.state)
	}
	l.n = 0

	// Hold the FPGA in reset before doing anything with the SPI bus.
	l.state = Resetting
	if err := l.ctrl.Stop(); err != nil {
		return l.fail(err)
	}

	// SPI_SS low while CRESET_B is low selects SPI-slave mode.
	if err := l.cs.Out(gpio.Low); err != nil {
		return l.fail(fmt.Errorf("SPI_SS low: %w", err))
	}
	l.time.Sleep(l.t.ResetPulse)

	l.state = ClockWait
	ok, err := l.ctrl.Start()
	if err != nil {
		return l.fail(err)
	}
	if !ok {
		if l.strict {
			return l.fail(ErrResetTimeout)
		}
		glog.Warningf("%v, continuing with the bitstream", ErrResetTimeout)
	}

	// CRAM clear.
	l.time.Sleep(l.t.ClearWait)

	for i, n := 0, l.t.PreDummy; i < n; i++ {
		if err := l.bus.Write(zero[:]); err != nil {
			return l.fail(err)
		}
	}

	held, err := acquire(l.bus, l.cs)
	if err != nil {
		return l.fail(err)
	}
	l.held = held
	l.state = Receiving
	glog.V(1).Info("CRAM session open")
	return nil
}

// fail ends a session that could not reach Receiving or broke during it:
// the bus is released if it was claimed and SPI_SS goes back to its pull-up.
func (l *Loader) fail(err error) error {
	l.state = Failed
	if rerr := l.held.release(); rerr != nil {
		glog.Warningf("release bus: %v", rerr)
	}
	l.held = nil
	if ierr := l.cs.In(gpio.PullUp, gpio.NoEdge); ierr != nil {
		glog.Warningf("release SPI_SS: %v", ierr)
	}
	return err
}

// Write sends p verbatim. It can be called any number of times between Open
// and Close with any length; nothing is buffered between calls. A transport
// error ends the session.
func (l *Loader) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Receiving {
		return 0, fmt.Errorf("%w: write while %s", ErrSessionState, l.state)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := l.bus.Write(p); err != nil {
		return 0, l.fail(err)
	}
	l.n += int64(len(p))
	glog.V(2).Infof("CRAM +%d bytes (%d total)", len(p), l.n)
	return len(p), nil
}

// Close releases the bus, clocks the dummy tail and returns CDONE as sampled
// after the last dummy byte. It emits between 1+SettleDummy and
// DoneDummy+SettleDummy dummy bytes and never blocks on CDONE.
func (l *Loader) Close() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Receiving {
		return false, fmt.Errorf("%w: close while %s", ErrSessionState, l.state)
	}

	err := l.held.release()
	l.held = nil
	if err != nil {
		return false, l.fail(err)
	}

	// SPI_SS high at the end of the bitstream, then left to its pull-up.
	if err := l.cs.Out(gpio.High); err != nil {
		return false, l.fail(fmt.Errorf("SPI_SS high: %w", err))
	}
	l.time.Sleep(l.t.CSRelease)
	if err := l.cs.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return false, l.fail(fmt.Errorf("SPI_SS release: %w", err))
	}

	// CDONE should rise within 100 SCLKs or the bitstream was bad.
	l.state = DummyPoll
	dummies := 0
	for i, n := 0, l.t.DoneDummy; i < n; i++ {
		if err := l.bus.Write(zero[:]); err != nil {
			return false, l.fail(err)
		}
		dummies++
		if l.ctrl.Done() {
			break
		}
	}

	// At least 49 more SCLKs once CDONE is high.
	l.state = Settle
	for i, n := 0, l.t.SettleDummy; i < n; i++ {
		if err := l.bus.Write(zero[:]); err != nil {
			return false, l.fail(err)
		}
		dummies++
	}

	done := l.ctrl.Done()
	if done {
		l.state = Done
	} else {
		l.state = Failed
	}
	glog.V(1).Infof("CRAM session %s: %d bytes, %d dummy bytes", l.state, l.n, dummies)
	return done, nil
}

// Program runs a whole session with the bitstream read from r. There is no
// retry; a caller that wants one calls Program again.
func (l *Loader) Program(r io.Reader) error {
	if err := l.Open(); err != nil {
		return err
	}
	if _, err := io.Copy(l, r); err != nil {
		l.abort()
		return fmt.Errorf("bitstream: %w", err)
	}
	done, err := l.Close()
	if err != nil {
		return err
	}
	if !done {
		return ErrConfigIncomplete
	}
	return nil
}

// abort ends a session whose bitstream source failed.
func (l *Loader) abort() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Receiving {
		l.fail(nil)
	}
}
