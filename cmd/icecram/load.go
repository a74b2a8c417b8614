package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/gentam/icecram"
	"github.com/golang/glog"
	"periph.io/x/conn/v3/physic"
)

func loadCommand(args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	var (
		filename  string
		fromFlash int
		addr      int
		strict    bool
		retry     int
		freq      = 12 * physic.MegaHertz
	)
	fs.StringVar(&filename, "f", "", "bitstream file")
	fs.IntVar(&fromFlash, "flash", 0, "load this many bytes from flash instead of a file")
	fs.IntVar(&addr, "addr", 0, "flash address of the bitstream")
	fs.BoolVar(&strict, "strict", false, "abort when CDONE does not rise after reset")
	fs.IntVar(&retry, "retry", 0, "run up to this many more sessions when configuration fails")
	fs.Var(&freq, "freq", "FPGA clock output frequency (with -clk)")
	fs.Parse(args)

	if filename == "" && fromFlash == 0 {
		fatalUsage("input file or -flash is required")
	}

	var bitstream []byte
	var err error
	if filename != "" {
		if bitstream, err = os.ReadFile(filename); err != nil {
			fatalf("failed to read bitstream: %v", err)
		}
	}

	b := openBoard(icecram.Config{StrictReset: strict})

	if err := b.ctrl.Init(freq); err != nil {
		fatalf("init failed: %v", err)
	}

	if fromFlash > 0 {
		if bitstream, err = readFlashBitstream(b, addr, fromFlash); err != nil {
			fatalf("read bitstream from flash failed: %v", err)
		}
	}

	for attempt := 0; ; attempt++ {
		err = b.loader.Program(bytes.NewReader(bitstream))
		if err == nil {
			fmt.Printf("configured %d bytes, CDONE high\n", len(bitstream))
			return
		}
		if attempt == retry || !retryable(err) {
			break
		}
		glog.Warningf("attempt %d: %v", attempt+1, err)
	}
	fatalf("load failed: %v", err)
}

func retryable(err error) bool {
	return errors.Is(err, icecram.ErrConfigIncomplete) || errors.Is(err, icecram.ErrResetTimeout)
}

// readFlashBitstream reads the bitstream with the FPGA held in reset so that
// it does not drive the bus as an SPI master.
func readFlashBitstream(b *board, addr, n int) ([]byte, error) {
	if b.flash == nil {
		return nil, errors.New("flash not reachable with -bitbang")
	}
	if err := b.ctrl.Stop(); err != nil {
		return nil, err
	}
	if err := b.flash.PowerUp(); err != nil {
		return nil, err
	}
	defer b.flash.PowerDown()
	return b.flash.Read(addr, n)
}
