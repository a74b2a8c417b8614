package icecram

import (
	"errors"
	"slices"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

func TestControllerInit(t *testing.T) {
	b := newBoard()
	c, err := NewController(b.config())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Init(12 * physic.MegaHertz); err != nil {
		t.Fatal(err)
	}

	want := []string{"CRESET_B in Float", "CDONE in Float", "CLK pwm 12MHz"}
	if !slices.Equal(b.rec.events, want) {
		t.Errorf("events = %q, want %q", b.rec.events, want)
	}
	if b.clk.duty != gpio.DutyHalf {
		t.Errorf("duty = %v, want %v", b.clk.duty, gpio.DutyHalf)
	}
}

func TestControllerInitWithoutClock(t *testing.T) {
	b := newBoard()
	cfg := b.config()
	cfg.Clock = nil
	c, err := NewController(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Init(0); err != nil {
		t.Fatal(err)
	}
	if b.clk.freq != 0 {
		t.Errorf("clock started at %s", b.clk.freq)
	}
}

func TestDivideClock(t *testing.T) {
	tests := []struct {
		want    physic.Frequency
		actual  physic.Frequency
		div     int64
		wantErr bool
	}{
		{want: 12 * physic.MegaHertz, actual: 12 * physic.MegaHertz, div: 4},
		{want: 48 * physic.MegaHertz, actual: 48 * physic.MegaHertz, div: 1},
		{want: 10 * physic.MegaHertz, actual: 12 * physic.MegaHertz, div: 4},
		{want: physic.MegaHertz, actual: physic.MegaHertz, div: 48},
		{want: 100 * physic.MegaHertz, wantErr: true},
		{want: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			actual, div, err := divideClock(48*physic.MegaHertz, tt.want)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("err = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if actual != tt.actual || div != tt.div {
				t.Errorf("got %s / %d, want %s / %d", actual, div, tt.actual, tt.div)
			}
		})
	}
}

func TestControllerStopRelease(t *testing.T) {
	b := newBoard()
	c, err := NewController(b.config())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	if !b.reset.out || b.reset.L != gpio.Low {
		t.Errorf("CRESET_B out=%v level=%v, want driven low", b.reset.out, b.reset.L)
	}
	if err := c.Release(); err != nil {
		t.Fatal(err)
	}
	if b.reset.out || b.reset.P != gpio.Float {
		t.Errorf("CRESET_B out=%v pull=%v, want floating input", b.reset.out, b.reset.P)
	}
}

func TestControllerStart(t *testing.T) {
	tests := []struct {
		name    string
		highAt  int // 1-based CDONE read that first reads high, 0 for never
		want    bool
		reads   int
		elapsed time.Duration
	}{
		{name: "immediate", highAt: 1, want: true, reads: 1, elapsed: 0},
		{name: "second poll", highAt: 2, want: true, reads: 2, elapsed: time.Millisecond},
		{name: "50th poll", highAt: 50, want: true, reads: 50, elapsed: 49 * time.Millisecond},
		{name: "100ms", highAt: 101, want: true, reads: 101, elapsed: 100 * time.Millisecond},
		{name: "never", highAt: 0, want: false, reads: 101, elapsed: 100 * time.Millisecond},
		{name: "too late", highAt: 102, want: false, reads: 101, elapsed: 100 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBoard()
			b.done.trace = highFrom(tt.highAt)
			c, err := NewController(b.config())
			if err != nil {
				t.Fatal(err)
			}

			got, err := c.Start()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Start() = %v, want %v", got, tt.want)
			}
			if b.done.reads != tt.reads {
				t.Errorf("CDONE reads = %d, want %d", b.done.reads, tt.reads)
			}
			if b.rec.now != tt.elapsed {
				t.Errorf("elapsed = %v, want %v", b.rec.now, tt.elapsed)
			}
			if b.rec.events[0] != "CRESET_B=High" {
				t.Errorf("first event = %q, want CRESET_B=High", b.rec.events[0])
			}
		})
	}
}

func TestStartWithinBudget(t *testing.T) {
	for n := 0; n <= 99; n++ {
		b := newBoard()
		// CDONE rises at the n-th millisecond.
		b.done.trace = func(int) gpio.Level { return b.rec.now >= time.Duration(n)*time.Millisecond }
		c, err := NewController(b.config())
		if err != nil {
			t.Fatal(err)
		}
		ok, err := c.Start()
		if err != nil {
			t.Fatal(err)
		}
		if !ok || b.done.reads > n+1 {
			t.Errorf("rise at %dms: Start() = %v after %d polls", n, ok, b.done.reads)
		}
	}
}

func TestNewControllerInvalid(t *testing.T) {
	b := newBoard()

	cfg := b.config()
	cfg.Done = nil
	if _, err := NewController(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing CDONE: err = %v", err)
	}

	cfg = b.config()
	cfg.Timing.ClearWait = time.Millisecond
	if _, err := NewController(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("short clear wait: err = %v", err)
	}
}
