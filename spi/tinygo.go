package spi

import (
	"context"
	"fmt"

	"tinygo.org/x/drivers"

	"github.com/mklimuk/devreg"
)

var _ devreg.SPIBus = &TinyGoBus{}

// TinyGoBus wraps a tinygo SPI port. Chip select is driven by the caller
// supplied select function, tinygo ports do not manage it.
type TinyGoBus struct {
	bus drivers.SPI
	cs  func(active bool)
}

// NewTinyGoBus returns a bus calling cs(true) before and cs(false) after
// every transfer. cs may be nil when the chip select is hard wired.
func NewTinyGoBus(bus drivers.SPI, cs func(active bool)) *TinyGoBus {
	return &TinyGoBus{bus: bus, cs: cs}
}

func (b *TinyGoBus) chipSelect(active bool) {
	if b.cs != nil {
		b.cs(active)
	}
}

func (b *TinyGoBus) Write(ctx context.Context, buffer []byte) error {
	b.chipSelect(true)
	defer b.chipSelect(false)
	if err := b.bus.Tx(buffer, nil); err != nil {
		return fmt.Errorf("could not write to spi: %w", err)
	}
	return nil
}

func (b *TinyGoBus) WriteRead(ctx context.Context, w, r []byte) error {
	b.chipSelect(true)
	defer b.chipSelect(false)
	return duplex(b.bus, w, r)
}
