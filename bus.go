package devreg

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

type BusWriter interface {
	Write(ctx context.Context, buffer []byte) error
}

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address uint16, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address uint16, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus is the blocking I2C transport. Register reads are issued as a write
// of the register address followed by a separate read.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// SPIBus is the blocking SPI transport. A transaction is framed by chip
// select: WriteRead clocks out w and then clocks len(r) bytes into r.
type SPIBus interface {
	BusWriter
	WriteRead(ctx context.Context, w, r []byte) error
}

// Done receives the outcome of a suspending transfer. It is called exactly
// once, possibly on another goroutine than the one that started the transfer.
type Done func(err error)

// AsyncI2CBus is the suspending counterpart of I2CBus: calls return
// immediately and report completion through done.
type AsyncI2CBus interface {
	ReadFromAddrAsync(ctx context.Context, address uint16, buffer []byte, done Done)
	WriteToAddrAsync(ctx context.Context, address uint16, buffer []byte, done Done)
}

// AsyncSPIBus is the suspending counterpart of SPIBus.
type AsyncSPIBus interface {
	WriteAsync(ctx context.Context, buffer []byte, done Done)
	WriteReadAsync(ctx context.Context, w, r []byte, done Done)
}
