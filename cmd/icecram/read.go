package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/gentam/icecram"
)

func readCommand(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	var (
		nread      int
		addr       int
		idOnly     bool
		statusOnly bool
		outFile    string
	)
	fs.IntVar(&nread, "n", 256, "number of bytes to read")
	fs.IntVar(&addr, "addr", 0, "start address")
	fs.BoolVar(&idOnly, "id", false, "just print flash ID")
	fs.BoolVar(&statusOnly, "s", false, "just print flash status register")
	fs.StringVar(&outFile, "o", "", "output file (default: hexdump)")
	fs.Parse(args)

	b := openBoard(icecram.Config{})
	if b.flash == nil {
		fatalf("flash not reachable with -bitbang")
	}

	// Keep the FPGA off the bus while the flash is in use.
	if err := b.ctrl.Stop(); err != nil {
		fatalf("%v", err)
	}
	defer b.ctrl.Release()

	if err := b.flash.PowerUp(); err != nil {
		fatalf("flash power up failed: %v", err)
	}
	defer b.flash.PowerDown()

	if statusOnly {
		sr, err := b.flash.ReadStatusRegister()
		if err != nil {
			fatalf("read flash status register failed: %v", err)
		}
		fmt.Println(sr)
		return
	}

	flashID, name, err := b.flash.ReadID()
	if err != nil {
		fatalf("read flash ID failed: %v", err)
	}
	if idOnly {
		fmt.Printf("%X\t%s\n", flashID, name)
		return
	}
	if name == "" {
		fmt.Fprintf(os.Stderr, "unknown flash ID (%X)\n", flashID)
	}

	data, err := b.flash.Read(addr, nread)
	if err != nil {
		fatalf("read flash failed: %v", err)
	}
	if outFile == "" {
		fmt.Println(hex.Dump(data))
		return
	}
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		fmt.Fprintln(os.Stderr, "write file failed:", err)
	}
}
