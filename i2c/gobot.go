package i2c

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gobot "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/devreg"
)

var _ devreg.I2CBus = &GobotBus{}

// GobotBus drives an I2C bus through a gobot adaptor such as the NanoPi or
// Raspberry Pi platforms. One gobot connection is opened per device address.
type GobotBus struct {
	adaptor gobot.Connector
	bus     int
	mu      sync.Mutex
	conns   map[uint16]gobot.Connection
}

// NewGobotBus uses bus number bus of adaptor. The adaptor must be connected.
func NewGobotBus(adaptor gobot.Connector, bus int) *GobotBus {
	return &GobotBus{adaptor: adaptor, bus: bus, conns: make(map[uint16]gobot.Connection)}
}

func (b *GobotBus) connection(address uint16) (gobot.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if conn, ok := b.conns[address]; ok {
		return conn, nil
	}
	conn, err := b.adaptor.GetI2cConnection(int(address), b.bus)
	if err != nil {
		return nil, fmt.Errorf("could not open connection to %#x on bus %d: %w", address, b.bus, err)
	}
	b.conns[address] = conn
	return conn, nil
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address uint16, buffer []byte) error {
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	n, err := conn.Read(buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c address %#x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("could not read from i2c address %#x: got %d bytes, expected %d", address, n, len(buffer))
	}
	return nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address uint16, buffer []byte) error {
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	if err := conn.WriteBytes(buffer); err != nil {
		return fmt.Errorf("could not write to i2c address %#x: %w", address, err)
	}
	return nil
}

func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

// Close closes every connection opened so far.
func (b *GobotBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for address, conn := range b.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("could not close connection to %#x: %w", address, err))
		}
		delete(b.conns, address)
	}
	return errors.Join(errs...)
}
