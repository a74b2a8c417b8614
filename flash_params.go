package icecram

import "time"

type flashParams struct {
	name string

	tRES1 time.Duration
	tDP   time.Duration
}

var (
	flashIDMicronN25Q32   = [3]byte{0x20, 0xBA, 0x16}
	flashIDWinbondW25Q128 = [3]byte{0xEF, 0x70, 0x18}
)

var knownFlash = map[[3]byte]flashParams{
	// [N25Q32|Table 38] has no release or power-down delay.
	flashIDMicronN25Q32: {
		name: "Micron N25Q 32Mb",
	},

	// [W25Q128|9.6 AC Electrical Characteristics]
	flashIDWinbondW25Q128: {
		name: "Winbond W25Q 128Mb",
		// tRES1: /CS High to Standby Mode without ID Read
		tRES1: 3 * time.Microsecond,
		// tDP: /CS High to Power-down Mode
		tDP: 3 * time.Microsecond,
	},
}

// paramOrMax returns the parameter of the identified chip, or the largest
// value over all known chips before ReadID.
func (f *Flash) paramOrMax(get func(*flashParams) time.Duration) time.Duration {
	if f.pr != nil {
		return get(f.pr)
	}
	var tmax time.Duration
	for _, param := range knownFlash {
		tmax = max(tmax, get(&param))
	}
	return tmax
}

func (f *Flash) tRES1() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tRES1 })
}
func (f *Flash) tDP() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tDP })
}
