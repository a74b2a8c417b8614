package icecram

import (
	"errors"
	"testing"
	"time"
)

func TestDatasheetTimingValid(t *testing.T) {
	if err := DatasheetTiming().Validate(); err != nil {
		t.Fatal(err)
	}
	if got := (Timing{}).withDefaults(); got != DatasheetTiming() {
		t.Errorf("zero timing = %+v, want datasheet", got)
	}
}

func TestTimingValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Timing)
	}{
		{"reset pulse", func(t *Timing) { t.ResetPulse = 100 * time.Nanosecond }},
		{"clear wait", func(t *Timing) { t.ClearWait = time.Millisecond }},
		{"poll count", func(t *Timing) { t.PollCount = -1 }},
		{"settle", func(t *Timing) { t.SettleDummy = 6 }},
		{"pre dummy", func(t *Timing) { t.PreDummy = -1 }},
		{"clear wait at datasheet floor", func(t *Timing) { t.ClearWait = 1200 * time.Microsecond }},
		{"poll budget", func(t *Timing) { t.PollCount = 5000 }},
		{"poll interval", func(t *Timing) { t.PollInterval = 2 * time.Millisecond }},
		{"two pre dummies", func(t *Timing) { t.PreDummy = 2 }},
		{"done dummy budget", func(t *Timing) { t.DoneDummy = 40 }},
		{"settle tail", func(t *Timing) { t.SettleDummy = 8 }},
		{"cs release", func(t *Timing) { t.CSRelease = time.Nanosecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := DatasheetTiming()
			tt.edit(&tm)
			if err := tm.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestTimingLimitsAccepted(t *testing.T) {
	tm := DatasheetTiming()
	tm.ClearWait = 1300 * time.Microsecond
	tm.PollCount, tm.PollInterval = 50, 2*time.Millisecond
	tm.DoneDummy = 1
	if err := tm.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestControllerRejectsLongPoll(t *testing.T) {
	b := newBoard()
	cfg := b.config()
	cfg.Timing = Timing{PollCount: 5000}
	if _, err := NewController(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("NewController() = %v, want ErrInvalidConfig", err)
	}
	cfg.Timing = Timing{DoneDummy: 40}
	if _, _, err := New(cfg, b.bus); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("New() = %v, want ErrInvalidConfig", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	if c.Reference != defaultReference {
		t.Errorf("reference = %s", c.Reference)
	}
	if _, ok := c.Time.(HostClock); !ok {
		t.Errorf("time = %T, want HostClock", c.Time)
	}
	if err := c.validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("config without pins: %v", err)
	}
}
