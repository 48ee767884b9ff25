// Package spi adapts SPI stacks to devreg.SPIBus.
package spi

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/devreg"
)

var _ devreg.SPIBus = &GenericBus{}

// GenericBus drives one chip select of an SPI port through periph.io.
type GenericBus struct {
	port spi.PortCloser
	conn spi.Conn
}

// NewGenericBus opens port dev (e.g. "SPI0.0") at the given clock, in the
// given mode with 8 bit words.
func NewGenericBus(dev string, freq physic.Frequency, mode spi.Mode) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("periph driver loaded", "driver", driver.String())
	}
	port, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open spi port: %w", err)
	}
	conn, err := port.Connect(freq, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("could not connect to spi port: %w", err)
	}
	return &GenericBus{port: port, conn: conn}, nil
}

func (b *GenericBus) Write(ctx context.Context, buffer []byte) error {
	if err := b.conn.Tx(buffer, nil); err != nil {
		return fmt.Errorf("could not write to spi: %w", err)
	}
	return nil
}

func (b *GenericBus) WriteRead(ctx context.Context, w, r []byte) error {
	return duplex(b.conn, w, r)
}

func (b *GenericBus) Close() error {
	return b.port.Close()
}

// fullDuplex is the transfer primitive of periph and tinygo: both buffers
// are clocked together.
type fullDuplex interface {
	Tx(w, r []byte) error
}

// duplex emulates write-then-read on a full duplex port: w is padded with
// zeros while r is clocked in and the bytes received during w are dropped.
func duplex(conn fullDuplex, w, r []byte) error {
	tx := make([]byte, len(w)+len(r))
	copy(tx, w)
	rx := make([]byte, len(tx))
	if err := conn.Tx(tx, rx); err != nil {
		return fmt.Errorf("could not transfer on spi: %w", err)
	}
	copy(r, rx[len(w):])
	return nil
}
