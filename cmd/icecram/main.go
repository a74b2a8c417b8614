package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
)

// atExit holds the closers of opened boards. Deferred calls do not run on
// os.Exit, so every exit path goes through exit.
var atExit []func() error

var osExit = os.Exit

func exit(code int) {
	for i := len(atExit) - 1; i >= 0; i-- {
		if err := atExit[i](); err != nil {
			fmt.Fprintln(os.Stderr, "close:", err)
		}
	}
	atExit = nil
	glog.Flush()
	osExit(code)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	exit(1)
}

func fatalUsage(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
	icecram [flags] <command> [arguments]

Commands:
	load	 load a bitstream into FPGA configuration RAM
	reset	 hold, release or cycle the FPGA reset
	status	 print CDONE
	read	 read flash memory
	info	 print FTDI device information

Flags:
`)
	flag.PrintDefaults()
	exit(2)
}

func main() {
	registerBoardFlags(flag.CommandLine)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}

	switch cmd := flag.Arg(0); cmd {
	case "load":
		loadCommand(flag.Args()[1:])
	case "reset":
		resetCommand(flag.Args()[1:])
	case "status":
		statusCommand(flag.Args()[1:])
	case "read":
		readCommand(flag.Args()[1:])
	case "info":
		infoCommand()
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", cmd)
		usage()
	}
	exit(0)
}
