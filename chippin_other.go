//go:build !linux

package icecram

import (
	"errors"

	"periph.io/x/conn/v3/gpio"
)

// ChipPin is only available on Linux.
type ChipPin struct {
	gpio.PinIO
}

func OpenChipPin(chip, offset string) (*ChipPin, error) {
	return nil, errors.New("gpiochip lines are only available on Linux")
}

func (p *ChipPin) Close() error { return nil }
