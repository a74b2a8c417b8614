package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gentam/icecram"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3/ftdi"
)

// infoCommand identifies the FT2232H and shows how the configuration lines
// are wired and what they read now.
func infoCommand() {
	if usesHost() {
		fatalUsage("info needs the FT2232H board")
	}
	b := openBoard(icecram.Config{})
	ft := b.ftdi

	var i ftdi.Info
	ft.Info(&i)
	var ee ftdi.EEPROM
	serial := "?"
	if err := ft.EEPROM(&ee); err == nil {
		serial = ee.Serial
	}
	fmt.Printf("%s %04x:%04x serial %s\n", i.Type, i.VenID, i.DevID, serial)

	// [EB82|Appendix A. Sheet 2 of 5 (USB to SPI/RS232)]
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SIGNAL\tPIN\tFUNCTION")
	for _, l := range []struct {
		name string
		pin  gpio.PinIO
	}{
		{"iCE_SCK", ft.D0},
		{"iCE_MOSI", ft.D1},
		{"iCE_MISO", ft.D2},
		{"iCE_SS_B", ft.D4},
		{"iCE_CDONE", ft.D6},
		{"iCE_CRESET", ft.D7},
	} {
		fmt.Fprintf(w, "%s\t%s\t%s\n", l.name, l.pin, l.pin.Function())
	}
	w.Flush()

	if b.ctrl.Done() {
		fmt.Println("configured (CDONE high)")
	} else {
		fmt.Println("not configured (CDONE low)")
	}
}
