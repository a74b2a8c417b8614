package icecram

import (
	"fmt"
	"sync"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Bus is the SPI transport shared by the configuration loader and any other
// device on the same wires. Write blocks until every byte is clocked out.
// Select claims the bus for the device behind cs until the matching Deselect.
type Bus interface {
	Write(p []byte) error
	Select(cs gpio.PinOut) error
	Deselect(cs gpio.PinOut) error
}

// maxTx is the largest MPSSE transaction. [FTDI-AN_108]
const maxTx = 65536

// DuplexBus is a Bus that also reads back while writing.
type DuplexBus interface {
	Bus
	Tx(w, r []byte) error
}

// SPIBus is a Bus over a periph.io SPI connection with GPIO chip selects.
// Select holds the bus until Deselect; a second Select blocks.
type SPIBus struct {
	conn spi.Conn
	mu   sync.Mutex
}

func NewSPIBus(conn spi.Conn) *SPIBus {
	return &SPIBus{conn: conn}
}

func (b *SPIBus) Write(p []byte) error {
	for len(p) > 0 {
		chunk := p[:min(len(p), maxTx)]
		if err := b.conn.Tx(chunk, nil); err != nil {
			return fmt.Errorf("spi write: %w", err)
		}
		p = p[len(chunk):]
	}
	return nil
}

// Tx is a full-duplex transaction of at most maxTx bytes.
func (b *SPIBus) Tx(w, r []byte) error {
	return b.conn.Tx(w, r)
}

func (b *SPIBus) Select(cs gpio.PinOut) error {
	b.mu.Lock()
	if err := cs.Out(gpio.Low); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("select %s: %w", cs, err)
	}
	glog.V(2).Infof("bus selected by %s", cs)
	return nil
}

func (b *SPIBus) Deselect(cs gpio.PinOut) error {
	defer b.mu.Unlock()
	if err := cs.Out(gpio.High); err != nil {
		return fmt.Errorf("deselect %s: %w", cs, err)
	}
	glog.V(2).Infof("bus released by %s", cs)
	return nil
}

// lease is one claim on a Bus. release deselects exactly once, whichever
// exit path reaches it first.
type lease struct {
	once sync.Once
	bus  Bus
	cs   gpio.PinOut
	err  error
}

func acquire(b Bus, cs gpio.PinOut) (*lease, error) {
	if err := b.Select(cs); err != nil {
		return nil, err
	}
	return &lease{bus: b, cs: cs}, nil
}

func (l *lease) release() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		l.err = l.bus.Deselect(l.cs)
	})
	return l.err
}
