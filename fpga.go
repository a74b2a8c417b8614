package icecram

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// ErrResetTimeout is returned when CDONE does not rise after reset release
// and the caller asked for it to be an error.
var ErrResetTimeout = errors.New("CDONE did not rise after reset release")

// Controller drives CRESET_B and the FPGA clock and samples CDONE.
type Controller struct {
	reset gpio.PinIO
	done  gpio.PinIO
	clk   gpio.PinOut
	ref   physic.Frequency

	t    Timing
	time Clock
}

// NewController returns a Controller for the pins bound in c.
func NewController(c Config) (*Controller, error) {
	c = c.withDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &Controller{
		reset: c.Reset,
		done:  c.Done,
		clk:   c.Clock,
		ref:   c.Reference,
		t:     c.Timing,
		time:  c.Time,
	}, nil
}

// Init leaves CRESET_B in high impedance so that another agent may drive it,
// makes CDONE an input and starts the clock output at freq. The clock runs
// until the process is re-initialized. With no clock pin bound, freq is
// ignored.
func (c *Controller) Init(freq physic.Frequency) error {
	if err := c.reset.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("CRESET_B input: %w", err)
	}
	if err := c.done.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("CDONE input: %w", err)
	}
	if c.clk == nil {
		return nil
	}

	actual, div, err := divideClock(c.ref, freq)
	if err != nil {
		return err
	}
	if err := c.clk.PWM(gpio.DutyHalf, actual); err != nil {
		return fmt.Errorf("clock output: %w", err)
	}
	glog.V(1).Infof("FPGA clock %s (%s / %d)", actual, c.ref, div)
	return nil
}

// divideClock divides ref by floor(ref/want), as the clock generator only
// takes integer dividers.
func divideClock(ref, want physic.Frequency) (physic.Frequency, int64, error) {
	if want <= 0 || want > ref {
		return 0, 0, fmt.Errorf("%w: clock %s not reachable from %s", ErrInvalidConfig, want, ref)
	}
	div := int64(ref / want)
	return ref / physic.Frequency(div), div, nil
}

// Stop drives CRESET_B low. The FPGA stays in reset until Start or Release.
func (c *Controller) Stop() error {
	if err := c.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("CRESET_B low: %w", err)
	}
	glog.V(2).Info("CRESET_B asserted")
	return nil
}

// Start drives CRESET_B high and polls CDONE every PollInterval, at most
// PollCount times. It returns true as soon as CDONE is high and false when
// the budget runs out, blocking for up to PollCount*PollInterval.
//
// [TN1248|3.1 Mode Selection]
func (c *Controller) Start() (bool, error) {
	if err := c.reset.Out(gpio.High); err != nil {
		return false, fmt.Errorf("CRESET_B high: %w", err)
	}

	// Waiting keeps the host off the bus while the FPGA may still be
	// reading its own flash. A corrupted flash makes this time out.
	for i := 0; ; i++ {
		if c.Done() {
			glog.V(1).Infof("CDONE high after %d polls", i+1)
			return true, nil
		}
		if i == c.t.PollCount {
			glog.V(1).Infof("CDONE still low after %v", c.t.PollInterval*time.Duration(c.t.PollCount))
			return false, nil
		}
		c.time.Sleep(c.t.PollInterval)
	}
}

// Release returns CRESET_B to high impedance, as left by Init.
func (c *Controller) Release() error {
	if err := c.reset.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("CRESET_B release: %w", err)
	}
	return nil
}

// Done samples CDONE.
func (c *Controller) Done() bool {
	return c.done.Read() == gpio.High
}
