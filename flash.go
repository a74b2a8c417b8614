package icecram

import (
	"fmt"
	"io"
	"strings"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
)

// Flash is the SPI NOR flash the FPGA boots from. It shares the bus with the
// configuration interface and is a bitstream source for a Loader. The FPGA
// must be held in reset while it is used, otherwise both masters drive the
// bus.
type Flash struct {
	bus  DuplexBus
	cs   gpio.PinOut
	time Clock
	id   [3]byte // JEDEC ID of the flash chip
	pr   *flashParams
}

func NewFlash(bus DuplexBus, cs gpio.PinOut, clk Clock) *Flash {
	if clk == nil {
		clk = HostClock{}
	}
	return &Flash{bus: bus, cs: cs, time: clk}
}

// Flash commands:
//   - [N25Q32|Table 16: Command Set]
//   - [W25Q128|8.1.2 Instruction Set Table 1]
const (
	flashCmdPowerUp            = 0xAB // Release Power Down
	flashCmdPowerDown          = 0xB9
	flashCmdReadID             = 0x9F
	flashCmdRead               = 0x03
	flashCmdReadStatusRegister = 0x05
)

// tx runs one command with the flash selected.
func (f *Flash) tx(buf []byte) (err error) {
	if err = f.bus.Select(f.cs); err != nil {
		return err
	}
	defer func() {
		if csErr := f.bus.Deselect(f.cs); csErr != nil && err == nil {
			err = csErr
		}
	}()
	return f.bus.Tx(buf, buf)
}

func (f *Flash) PowerUp() error {
	if err := f.tx([]byte{flashCmdPowerUp}); err != nil {
		return err
	}
	f.time.Sleep(f.tRES1())
	return nil
}

func (f *Flash) PowerDown() error {
	if err := f.tx([]byte{flashCmdPowerDown}); err != nil {
		return err
	}
	f.time.Sleep(f.tDP())
	return nil
}

// ReadID returns the JEDEC ID of the flash chip and selects its timing.
// name is empty for unknown IDs. The extended device string is ignored.
func (f *Flash) ReadID() (id [3]byte, name string, err error) {
	buf := make([]byte, 4)
	buf[0] = flashCmdReadID
	if err = f.tx(buf); err != nil {
		return
	}

	f.id = [3]byte(buf[1:])
	f.pr = nil
	if params, ok := knownFlash[f.id]; ok {
		f.pr = &params
		name = params.name
	}
	glog.V(1).Infof("flash ID %X %q", f.id, name)
	return f.id, name, nil
}

const (
	flashCmdBytes = 4 // opRead + 24-bit address
	flashMaxData  = maxTx - flashCmdBytes
	flashMaxAddr  = 1<<24 - 1
)

// Read reads n bytes from addr, split into transactions that fit maxTx.
func (f *Flash) Read(addr, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(f.NewReader(addr, n), out); err != nil {
		return nil, err
	}
	return out, nil
}

// NewReader returns a reader over n bytes of flash starting at addr, one
// read command per maxTx chunk.
func (f *Flash) NewReader(addr, n int) io.Reader {
	return &flashReader{f: f, addr: addr, left: n}
}

type flashReader struct {
	f    *Flash
	addr int
	left int
	buf  []byte
}

func (r *flashReader) Read(p []byte) (int, error) {
	if r.left <= 0 {
		return 0, io.EOF
	}
	if r.addr < 0 || r.addr+r.left-1 > flashMaxAddr {
		return 0, fmt.Errorf("flash range 0x%X+%d out of 24-bit range", r.addr, r.left)
	}
	chunk := min(len(p), r.left, flashMaxData)
	if cap(r.buf) < flashCmdBytes+chunk {
		r.buf = make([]byte, flashCmdBytes+chunk)
	}
	buf := r.buf[:flashCmdBytes+chunk]
	clear(buf)
	buf[0] = flashCmdRead
	buf[1] = byte(r.addr >> 16)
	buf[2] = byte(r.addr >> 8)
	buf[3] = byte(r.addr)
	// buf[4:] dummy bytes

	if err := r.f.tx(buf); err != nil {
		return 0, err
	}
	n := copy(p, buf[flashCmdBytes:])
	r.addr += n
	r.left -= n
	return n, nil
}

// StatusRegister represents the status register of the flash chip.
//
//	Bits| [N25Q32|Table 9]                     | [W25Q128|7.1 Status Registers]
//	----+--------------------------------------+-------------------------------
//	7   | Status register write enable/disable | SRP: Status Register Protect
//	6   | Reserved                             | SEC: Sector protect
//	5   | Top/bottom                           | TB: Top/Bottom protect
//	4:2 | Block protect 2-0                    | BP2-0: Block Protect bit 2-0
//	1   | Write enable latch                   | WEL: Write Enable Latch
//	0   | Write in progress                    | BUSY: Erase/Write in progress
type StatusRegister byte

var statusBits = [8]string{"BUSY", "WEL", "BP0", "BP1", "BP2", "TB", "SEC", "SRP"}

func (sr StatusRegister) WriteEnabled() bool { return sr&(1<<1) != 0 }
func (sr StatusRegister) Busy() bool         { return sr&(1<<0) != 0 }

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	s := []string{}
	for i := 7; i >= 0; i-- {
		if sr&(1<<i) != 0 {
			s = append(s, statusBits[i])
		}
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}

func (f *Flash) ReadStatusRegister() (StatusRegister, error) {
	buf := []byte{flashCmdReadStatusRegister, 0}
	if err := f.tx(buf); err != nil {
		return 0, err
	}
	return StatusRegister(buf[1]), nil
}
