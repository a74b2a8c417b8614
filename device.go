package icecram

import (
	"errors"
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// Device is an iCE40 board reached over an FT2232H (iCEstick, iCEBreaker).
type Device struct {
	FTDI       *ftdi.FT232H
	Controller *Controller
	Loader     *Loader
	Flash      *Flash

	cs    gpio.PinIO // ADBUS4 Chip Select
	reset gpio.PinIO // ADBUS7 Reset
	cdone gpio.PinIO // ADBUS6 Done

	clock physic.Frequency
	conn  spi.Conn
	bus   *SPIBus
}

var hostInitialized atomic.Bool

func initHost() error {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			hostInitialized.Store(false)
			return fmt.Errorf("host initialization failed: %w", err)
		}
	}
	return nil
}

// NewDevice finds the FT2232H and opens its MPSSE SPI port. c may override
// the timing and reset policy; its pins are taken from the board.
func NewDevice(c Config) (*Device, error) {
	if err := initHost(); err != nil {
		return nil, err
	}

	d := &Device{
		clock: 30 * physic.MegaHertz, // [AN_135 3.2.1 Divisors]
	}
	if err := d.findFT2232H(); err != nil {
		return nil, err
	}

	// [EB82|Appendix A. Sheet 2 of 5 (USB to SPI/RS232)] / [icebreaker-sch.pdf]
	// ADBUS0 | iCE_SCK
	// ADBUS1 | iCE_MOSI / FLASH_MOSI
	// ADBUS2 | iCE_MISO / FLASH_MISO
	// ADBUS4 | iCE_SS_B
	// ADBUS6 | iCE_CDONE
	// ADBUS7 | iCE_CRESET / iCE_RESET
	d.cs = d.FTDI.D4
	d.reset = d.FTDI.D7
	d.cdone = d.FTDI.D6

	if err := d.connectSPI(); err != nil {
		return nil, err
	}
	d.bus = NewSPIBus(d.conn)

	// The boards clock the FPGA from their own oscillator.
	c.Reset, c.Done, c.CS, c.Clock = d.reset, d.cdone, d.cs, nil
	var err error
	if d.Controller, d.Loader, err = New(c, d.bus); err != nil {
		return nil, err
	}
	d.Flash = NewFlash(d.bus, d.cs, c.Time)
	return d, nil
}

// New builds the Controller and Loader for c on bus.
func New(c Config, bus Bus) (*Controller, *Loader, error) {
	ctrl, err := NewController(c)
	if err != nil {
		return nil, nil, err
	}
	l, err := NewLoader(c, ctrl, bus)
	if err != nil {
		return nil, nil, err
	}
	return ctrl, l, nil
}

func (d *Device) findFT2232H() error {
	const (
		vendorID  = 0x0403 // FTDI
		productID = 0x6010 // FT2232H
	)

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || info.DevID != productID {
			continue
		}
		if ft, ok := dev.(*ftdi.FT232H); ok {
			d.FTDI = ft
			return nil
		}
	}

	return errors.New("FT2232H not found")
}

func (d *Device) connectSPI() (err error) {
	port, err := d.FTDI.SPI()
	if err != nil {
		return fmt.Errorf("failed to get SPI port: %w", err)
	}

	// [FTDI AN_114|1.2]> FTDI device can only support mode 0 and mode 2 due to the limitation of MPSSE engine
	// [TN1248|Figure 8.1] the configuration interface samples on the rising SCK edge
	d.conn, err = port.Connect(d.clock, spi.Mode0, 8)
	return err
}
