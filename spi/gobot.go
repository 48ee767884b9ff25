package spi

import (
	"context"
	"fmt"

	gobot "gobot.io/x/gobot/v2/drivers/spi"

	"github.com/mklimuk/devreg"
)

var _ devreg.SPIBus = &GobotBus{}

// GobotBus drives an SPI device through a gobot adaptor.
//
//	adaptor := nanopi.NewNeoAdaptor()
//	bus := spi.NewGobotBus(adaptor, "bma220", gobot.WithBusNumber(0))
//	if err := bus.Start(); err != nil { ... }
type GobotBus struct {
	*gobot.Driver
}

// NewGobotBus creates the gobot driver in mode 0. Options such as the bus and
// chip numbers are passed through to gobot.
func NewGobotBus(adaptor gobot.Connector, name string, opts ...func(gobot.Config)) *GobotBus {
	d := gobot.NewDriver(adaptor, name, opts...)
	d.SetMode(0)
	if d.GetSpeedOrDefault(0) == 0 {
		d.SetSpeed(1_000_000)
	}
	return &GobotBus{Driver: d}
}

// connection operations used by the bus
type spiOps interface {
	ReadCommandData(command []byte, data []byte) error
	WriteBytes(data []byte) error
}

func (b *GobotBus) ops() (spiOps, error) {
	ops, ok := b.Driver.Connection().(spiOps)
	if !ok {
		return nil, fmt.Errorf("spi connection does not support required operations")
	}
	return ops, nil
}

func (b *GobotBus) Write(ctx context.Context, buffer []byte) error {
	ops, err := b.ops()
	if err != nil {
		return err
	}
	if err := ops.WriteBytes(buffer); err != nil {
		return fmt.Errorf("could not write to spi: %w", err)
	}
	return nil
}

func (b *GobotBus) WriteRead(ctx context.Context, w, r []byte) error {
	ops, err := b.ops()
	if err != nil {
		return err
	}
	if err := ops.ReadCommandData(w, r); err != nil {
		return fmt.Errorf("could not read from spi: %w", err)
	}
	return nil
}

// Close halts the gobot driver.
func (b *GobotBus) Close() error {
	return b.Driver.Halt()
}
