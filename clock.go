package icecram

import (
	"time"

	"periph.io/x/host/v3/cpu"
)

// Clock blocks the caller for a duration. Every wait of the configuration
// protocol goes through it so that the bounded loops can be driven without
// real delays.
type Clock interface {
	Sleep(d time.Duration)
}

// HostClock spins for waits below a millisecond and sleeps otherwise. The
// scheduler cannot honour the sub-microsecond reset pulse with time.Sleep.
type HostClock struct{}

func (HostClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if d < time.Millisecond {
		cpu.Nanospin(d)
		return
	}
	time.Sleep(d)
}
