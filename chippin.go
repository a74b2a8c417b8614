//go:build linux

package icecram

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/warthog618/gpiod"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// ChipPin is a line of a Linux gpiochip character device seen as a periph
// pin. Direction and bias changes are applied with a line reconfiguration.
type ChipPin struct {
	chip   *gpiod.Chip
	line   *gpiod.Line
	offset int

	mu   sync.Mutex
	out  bool
	pull gpio.Pull
}

var _ gpio.PinIO = &ChipPin{}

// OpenChipPin requests line offset (decimal) of chip, e.g. "gpiochip0", as
// an input.
func OpenChipPin(chip, offset string) (*ChipPin, error) {
	n, err := strconv.Atoi(offset)
	if err != nil {
		return nil, fmt.Errorf("line offset %q: %w", offset, err)
	}
	c, err := gpiod.NewChip(chip, gpiod.WithConsumer("icecram"))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", chip, err)
	}
	l, err := c.RequestLine(n, gpiod.AsInput)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request %s line %d: %w", chip, n, err)
	}
	return &ChipPin{chip: c, line: l, offset: n, pull: gpio.Float}, nil
}

func (p *ChipPin) String() string   { return fmt.Sprintf("%s:%d", p.chip.Name, p.offset) }
func (p *ChipPin) Name() string     { return p.String() }
func (p *ChipPin) Number() int      { return p.offset }
func (p *ChipPin) Function() string { return "" }
func (p *ChipPin) Halt() error      { return nil }

// Close releases the line and the chip.
func (p *ChipPin) Close() error {
	return errors.Join(p.line.Close(), p.chip.Close())
}

func (p *ChipPin) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return errors.New("edge detection not supported")
	}
	opts := []gpiod.LineConfigOption{gpiod.AsInput}
	switch pull {
	case gpio.PullUp:
		opts = append(opts, gpiod.WithPullUp)
	case gpio.PullDown:
		opts = append(opts, gpiod.WithPullDown)
	case gpio.Float:
		opts = append(opts, gpiod.WithBiasDisabled)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.line.Reconfigure(opts...); err != nil {
		return err
	}
	p.out = false
	p.pull = pull
	return nil
}

func (p *ChipPin) Read() gpio.Level {
	v, err := p.line.Value()
	return err == nil && v != 0
}

func (p *ChipPin) WaitForEdge(timeout time.Duration) bool { return false }

func (p *ChipPin) Pull() gpio.Pull {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pull
}

func (p *ChipPin) DefaultPull() gpio.Pull { return gpio.PullNoChange }

func (p *ChipPin) Out(l gpio.Level) error {
	v := 0
	if l {
		v = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out {
		return p.line.SetValue(v)
	}
	if err := p.line.Reconfigure(gpiod.AsOutput(v)); err != nil {
		return err
	}
	p.out = true
	return nil
}

func (p *ChipPin) PWM(gpio.Duty, physic.Frequency) error {
	return errors.New("PWM not supported on gpiochip lines")
}
