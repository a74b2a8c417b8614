package main

import (
	"flag"
	"time"

	"github.com/gentam/icecram"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3/ftdi"
)

// board is whichever FPGA wiring the flags select.
type board struct {
	ctrl   *icecram.Controller
	loader *icecram.Loader
	flash  *icecram.Flash
	ftdi   *ftdi.FT232H
	close  func() error
}

var hostFlags struct {
	spi       string
	freq      physic.Frequency
	cs        string
	creset    string
	cdone     string
	clk       string
	chip      string
	bitbang   bool
	sck, mosi string
	half      time.Duration
}

func registerBoardFlags(fs *flag.FlagSet) {
	hostFlags.freq = 10 * physic.MegaHertz
	fs.StringVar(&hostFlags.spi, "spi", "", "host SPI port (e.g. /dev/spidev0.0); default: FT2232H board")
	fs.Var(&hostFlags.freq, "spi-freq", "host SPI clock")
	fs.StringVar(&hostFlags.cs, "cs", "", "SPI_SS_B pin")
	fs.StringVar(&hostFlags.creset, "creset", "", "CRESET_B pin")
	fs.StringVar(&hostFlags.cdone, "cdone", "", "CDONE pin")
	fs.StringVar(&hostFlags.clk, "clk", "", "FPGA clock output pin (optional)")
	fs.StringVar(&hostFlags.chip, "gpiochip", "", "gpiochip device; pins are then line offsets")
	fs.BoolVar(&hostFlags.bitbang, "bitbang", false, "shift the bitstream out on -sck/-mosi GPIOs")
	fs.StringVar(&hostFlags.sck, "sck", "", "SCK pin for -bitbang")
	fs.StringVar(&hostFlags.mosi, "mosi", "", "MOSI pin for -bitbang")
	fs.DurationVar(&hostFlags.half, "half", 0, "bit-bang half clock period (default 500ns)")
}

func usesHost() bool {
	return hostFlags.spi != "" || hostFlags.bitbang
}

func openBoard(c icecram.Config) *board {
	if !usesHost() {
		d, err := icecram.NewDevice(c)
		if err != nil {
			fatalf("%v", err)
		}
		return register(&board{
			ctrl:   d.Controller,
			loader: d.Loader,
			flash:  d.Flash,
			ftdi:   d.FTDI,
			close:  func() error { return nil },
		})
	}

	if hostFlags.cs == "" || hostFlags.creset == "" || hostFlags.cdone == "" {
		fatalUsage("-cs, -creset and -cdone are required with -spi or -bitbang")
	}
	h, err := icecram.OpenHost(icecram.HostConfig{
		SPI:       hostFlags.spi,
		Frequency: hostFlags.freq,
		CS:        hostFlags.cs,
		Reset:     hostFlags.creset,
		Done:      hostFlags.cdone,
		Clock:     hostFlags.clk,
		Chip:      hostFlags.chip,
		BitBang:   hostFlags.bitbang,
		SCK:       hostFlags.sck,
		MOSI:      hostFlags.mosi,
		Half:      hostFlags.half,
		Config:    c,
	})
	if err != nil {
		fatalf("%v", err)
	}
	return register(&board{
		ctrl:   h.Controller,
		loader: h.Loader,
		flash:  h.Flash,
		close:  h.Close,
	})
}

// register closes b when the command exits.
func register(b *board) *board {
	atExit = append(atExit, b.close)
	return b
}
