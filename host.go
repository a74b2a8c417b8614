package icecram

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// HostConfig names the lines of an FPGA wired to a Linux board's own SPI
// port and GPIOs, as found on Raspberry Pi hats.
type HostConfig struct {
	// SPI port name for spireg, e.g. "/dev/spidev0.0" or "SPI0.0". Ignored
	// when BitBang is set.
	SPI       string
	Frequency physic.Frequency

	// Pin names for gpioreg, e.g. "GPIO25". With Chip set they are line
	// offsets on that gpiochip instead.
	CS, Reset, Done, Clock string
	Chip                   string

	// BitBang shifts the bitstream out on the SCK and MOSI pins instead of
	// using an SPI port. The flash is not reachable then.
	BitBang   bool
	SCK, MOSI string
	Half      time.Duration

	Config Config
}

// Host is an FPGA attached directly to the host's pins.
type Host struct {
	Controller *Controller
	Loader     *Loader
	Flash      *Flash // nil with BitBang

	closers []func() error
}

// OpenHost binds the pins and SPI port named in hc.
func OpenHost(hc HostConfig) (*Host, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	h := &Host{}
	ok := false
	defer func() {
		if !ok {
			h.Close()
		}
	}()

	c := hc.Config
	var err error
	if c.CS, err = h.pin(hc, hc.CS); err != nil {
		return nil, err
	}
	if c.Reset, err = h.pin(hc, hc.Reset); err != nil {
		return nil, err
	}
	if c.Done, err = h.pin(hc, hc.Done); err != nil {
		return nil, err
	}
	if hc.Clock != "" {
		if c.Clock, err = h.pin(hc, hc.Clock); err != nil {
			return nil, err
		}
	}

	var bus Bus
	if hc.BitBang {
		bus, err = h.bitBang(hc, c.Time)
	} else {
		var sb *SPIBus
		sb, err = h.spiBus(hc)
		if sb != nil {
			bus = sb
			h.Flash = NewFlash(sb, c.CS, c.Time)
		}
	}
	if err != nil {
		return nil, err
	}

	if h.Controller, h.Loader, err = New(c, bus); err != nil {
		return nil, err
	}
	ok = true
	return h, nil
}

func (h *Host) pin(hc HostConfig, name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, errors.New("pin name missing")
	}
	if hc.Chip != "" {
		p, err := OpenChipPin(hc.Chip, name)
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, p.Close)
		return p, nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pin %q not found", name)
	}
	return p, nil
}

func (h *Host) spiBus(hc HostConfig) (*SPIBus, error) {
	port, err := spireg.Open(hc.SPI)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", hc.SPI, err)
	}
	h.closers = append(h.closers, port.Close)

	f := hc.Frequency
	if f == 0 {
		f = 10 * physic.MegaHertz
	}
	// spidev drives its own chip select; NoCS leaves SPI_SS to the loader.
	conn, err := port.Connect(f, spi.Mode0|spi.NoCS, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to connect SPI port %q: %w", hc.SPI, err)
	}
	return NewSPIBus(conn), nil
}

func (h *Host) bitBang(hc HostConfig, clk Clock) (*BitBang, error) {
	sck, err := h.pin(hc, hc.SCK)
	if err != nil {
		return nil, fmt.Errorf("SCK: %w", err)
	}
	mosi, err := h.pin(hc, hc.MOSI)
	if err != nil {
		return nil, fmt.Errorf("MOSI: %w", err)
	}
	return NewBitBang(sck, mosi, hc.Half, clk)
}

// Close releases the SPI port and any gpiochip lines.
func (h *Host) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		errs = append(errs, h.closers[i]())
	}
	h.closers = nil
	return errors.Join(errs...)
}
