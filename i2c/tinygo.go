package i2c

import (
	"context"
	"fmt"

	"tinygo.org/x/drivers"

	"github.com/mklimuk/devreg"
)

var _ devreg.I2CBus = &TinyGoBus{}

// TinyGoBus wraps a bus implementing the tinygo drivers interface, which is
// what machine.I2C provides on microcontrollers.
type TinyGoBus struct {
	bus drivers.I2C
}

func NewTinyGoBus(bus drivers.I2C) *TinyGoBus {
	return &TinyGoBus{bus: bus}
}

func (b *TinyGoBus) ReadFromAddr(ctx context.Context, address uint16, buffer []byte) error {
	if err := b.bus.Tx(address, nil, buffer); err != nil {
		return fmt.Errorf("could not read from i2c address %#x: %w", address, err)
	}
	return nil
}

func (b *TinyGoBus) WriteToAddr(ctx context.Context, address uint16, buffer []byte) error {
	if err := b.bus.Tx(address, buffer, nil); err != nil {
		return fmt.Errorf("could not write to i2c address %#x: %w", address, err)
	}
	return nil
}

func (b *TinyGoBus) Release(ctx context.Context) error {
	return nil
}
