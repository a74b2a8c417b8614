package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gentam/icecram"
)

func resetCommand(args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	var hold, release bool
	fs.BoolVar(&hold, "hold", false, "drive CRESET_B low and leave it")
	fs.BoolVar(&release, "release", false, "let CRESET_B float")
	fs.Parse(args)

	if hold && release {
		fatalUsage("-hold and -release are exclusive")
	}

	b := openBoard(icecram.Config{})

	switch {
	case hold:
		if err := b.ctrl.Stop(); err != nil {
			fatalf("%v", err)
		}
	case release:
		if err := b.ctrl.Release(); err != nil {
			fatalf("%v", err)
		}
	default:
		// Reboot from flash.
		if err := b.ctrl.Stop(); err != nil {
			fatalf("%v", err)
		}
		ok, err := b.ctrl.Start()
		if err != nil {
			fatalf("%v", err)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, icecram.ErrResetTimeout)
			exit(1)
		}
		fmt.Println("CDONE high")
	}
}

func statusCommand(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Parse(args)

	b := openBoard(icecram.Config{})

	if b.ctrl.Done() {
		fmt.Println("CDONE high")
		return
	}
	fmt.Println("CDONE low")
	exit(1)
}
