package icecram

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// BitBang is a write-only Bus that shifts bytes out MSB first on two GPIO
// lines in SPI mode 0. It stands in for a hardware SPI port when the
// configuration pins are not routed to one.
type BitBang struct {
	SCK  gpio.PinOut
	MOSI gpio.PinOut
	// Half is the time between clock edges, half the SCK period.
	Half time.Duration
	Time Clock

	mu sync.Mutex
}

// NewBitBang drives SCK and MOSI low and returns a BitBang clocking at half
// period half.
func NewBitBang(sck, mosi gpio.PinOut, half time.Duration, clk Clock) (*BitBang, error) {
	if clk == nil {
		clk = HostClock{}
	}
	if half <= 0 {
		// 1MHz
		half = 500 * time.Nanosecond
	}
	if err := sck.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("SCK: %w", err)
	}
	if err := mosi.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("MOSI: %w", err)
	}
	return &BitBang{SCK: sck, MOSI: mosi, Half: half, Time: clk}, nil
}

func (b *BitBang) Write(p []byte) error {
	for _, c := range p {
		if err := b.shift(c); err != nil {
			return err
		}
	}
	return nil
}

// shift sends one byte. SCK idles low; MOSI is set up before the rising edge.
func (b *BitBang) shift(c byte) error {
	for i := 7; i >= 0; i-- {
		if err := b.MOSI.Out(gpio.Level(c&(1<<i) != 0)); err != nil {
			return err
		}
		b.Time.Sleep(b.Half)
		if err := b.SCK.Out(gpio.High); err != nil {
			return err
		}
		b.Time.Sleep(b.Half)
		if err := b.SCK.Out(gpio.Low); err != nil {
			return err
		}
	}
	return nil
}

func (b *BitBang) Select(cs gpio.PinOut) error {
	b.mu.Lock()
	if err := cs.Out(gpio.Low); err != nil {
		b.mu.Unlock()
		return err
	}
	return nil
}

func (b *BitBang) Deselect(cs gpio.PinOut) error {
	defer b.mu.Unlock()
	return cs.Out(gpio.High)
}
