package icecram

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Timing holds the sysCONFIG protocol constants. The zero value of any field
// selects the datasheet value; Validate refuses values that are weaker than
// what the datasheet requires.
type Timing struct {
	// [TN1248|Table 8.1] CRESET_B low pulse before release (min 200ns)
	ResetPulse time.Duration
	// CRAM clear after CRESET_B release, [TN1248|Table 8.1] 1200us plus margin
	ClearWait time.Duration
	// CDONE poll period and count after reset release
	PollInterval time.Duration
	PollCount    int
	// SPI_SS high before the first bitstream byte, in bytes (8 SCLKs each)
	PreDummy int
	// CDONE should rise within 100 SCLKs of the last bitstream bit
	DoneDummy int
	// At least 49 SCLKs after CDONE goes high
	SettleDummy int
	// CS driven high before it is released to its pull-up
	CSRelease time.Duration
}

// DatasheetTiming returns the timing used when a Config leaves Timing empty.
func DatasheetTiming() Timing {
	return Timing{
		ResetPulse:   2 * time.Microsecond,
		ClearWait:    1300 * time.Microsecond,
		PollInterval: time.Millisecond,
		PollCount:    100,
		PreDummy:     1,
		DoneDummy:    13,
		SettleDummy:  7,
		CSRelease:    time.Microsecond,
	}
}

func (t Timing) withDefaults() Timing {
	d := DatasheetTiming()
	if t.ResetPulse == 0 {
		t.ResetPulse = d.ResetPulse
	}
	if t.ClearWait == 0 {
		t.ClearWait = d.ClearWait
	}
	if t.PollInterval == 0 {
		t.PollInterval = d.PollInterval
	}
	if t.PollCount == 0 {
		t.PollCount = d.PollCount
	}
	if t.PreDummy == 0 {
		t.PreDummy = d.PreDummy
	}
	if t.DoneDummy == 0 {
		t.DoneDummy = d.DoneDummy
	}
	if t.SettleDummy == 0 {
		t.SettleDummy = d.SettleDummy
	}
	if t.CSRelease == 0 {
		t.CSRelease = d.CSRelease
	}
	return t
}

// Validate reports whether t stays within the datasheet window: waits no
// shorter than required, a reset poll of at most 100ms and a close tail of
// 8 to 20 dummy bytes.
func (t Timing) Validate() error {
	switch {
	case t.ResetPulse < 200*time.Nanosecond:
		return fmt.Errorf("%w: reset pulse %v below 200ns", ErrInvalidConfig, t.ResetPulse)
	case t.ClearWait < 1300*time.Microsecond:
		return fmt.Errorf("%w: clear wait %v below 1300us", ErrInvalidConfig, t.ClearWait)
	case t.PollInterval <= 0 || t.PollCount <= 0:
		return fmt.Errorf("%w: CDONE poll %d x %v", ErrInvalidConfig, t.PollCount, t.PollInterval)
	case t.PollInterval > maxPollBudget || time.Duration(t.PollCount)*t.PollInterval > maxPollBudget:
		return fmt.Errorf("%w: CDONE poll %d x %v over %v", ErrInvalidConfig, t.PollCount, t.PollInterval, maxPollBudget)
	case t.PreDummy != 1:
		return fmt.Errorf("%w: %d pre-transfer dummy bytes, want 1", ErrInvalidConfig, t.PreDummy)
	case t.DoneDummy < 1 || t.DoneDummy > 13:
		return fmt.Errorf("%w: %d CDONE poll dummy bytes outside [1, 13]", ErrInvalidConfig, t.DoneDummy)
	case t.SettleDummy != 7: // 7 bytes = 56 SCLKs >= 49
		return fmt.Errorf("%w: %d settle dummy bytes, want 7", ErrInvalidConfig, t.SettleDummy)
	case t.CSRelease < time.Microsecond:
		return fmt.Errorf("%w: CS release %v below 1us", ErrInvalidConfig, t.CSRelease)
	}
	return nil
}

// maxPollBudget bounds how long Start may block.
const maxPollBudget = 100 * time.Millisecond

// Config binds the configuration lines of one FPGA. It does not change after
// construction.
type Config struct {
	Reset gpio.PinIO  // CRESET_B
	Done  gpio.PinIO  // CDONE, input only
	CS    gpio.PinIO  // SPI_SS_B
	Clock gpio.PinOut // optional clock output to the FPGA

	// Reference is the frequency the clock output is divided from.
	Reference physic.Frequency

	Timing Timing
	Time   Clock

	// StrictReset makes Open fail with ErrResetTimeout when CDONE does not
	// rise after reset release instead of carrying on with the session.
	StrictReset bool
}

const defaultReference = 48 * physic.MegaHertz

func (c Config) withDefaults() Config {
	if c.Reference == 0 {
		c.Reference = defaultReference
	}
	if c.Time == nil {
		c.Time = HostClock{}
	}
	c.Timing = c.Timing.withDefaults()
	return c
}

func (c Config) validate() error {
	if c.Reset == nil || c.Done == nil {
		return fmt.Errorf("%w: CRESET_B and CDONE pins are required", ErrInvalidConfig)
	}
	if c.Reference < 0 {
		return fmt.Errorf("%w: reference %s", ErrInvalidConfig, c.Reference)
	}
	return c.Timing.Validate()
}
