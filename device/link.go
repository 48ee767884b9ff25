package device

import (
	"context"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/framing"
)

// link performs one framed transaction on the owned bus. Blocking links call
// done before transfer returns, suspending links call it later.
type link interface {
	transfer(ctx context.Context, tx framing.Transaction, done devreg.Done)
}

type i2cStep func(ctx context.Context, address uint16, buffer []byte, done devreg.Done)

// i2cLink writes the transaction bytes, then reads into the read buffer as a
// separate transfer.
type i2cLink struct {
	write i2cStep
	read  i2cStep
}

func (l i2cLink) transfer(ctx context.Context, tx framing.Transaction, done devreg.Done) {
	readPhase := func(err error) {
		if err != nil || len(tx.Read) == 0 {
			done(err)
			return
		}
		l.read(ctx, tx.Address, tx.Read, done)
	}
	if len(tx.Write) == 0 {
		readPhase(nil)
		return
	}
	l.write(ctx, tx.Address, tx.Write, readPhase)
}

func blockingI2C(bus devreg.I2CBus) i2cLink {
	return i2cLink{
		write: func(ctx context.Context, address uint16, buffer []byte, done devreg.Done) {
			done(bus.WriteToAddr(ctx, address, buffer))
		},
		read: func(ctx context.Context, address uint16, buffer []byte, done devreg.Done) {
			done(bus.ReadFromAddr(ctx, address, buffer))
		},
	}
}

func suspendingI2C(bus devreg.AsyncI2CBus) i2cLink {
	return i2cLink{write: bus.WriteToAddrAsync, read: bus.ReadFromAddrAsync}
}

// spiLink runs a transaction within one chip select: a plain write when
// nothing is read back, a write followed by a read otherwise.
type spiLink struct {
	write     func(ctx context.Context, w []byte, done devreg.Done)
	writeRead func(ctx context.Context, w, r []byte, done devreg.Done)
}

func (l spiLink) transfer(ctx context.Context, tx framing.Transaction, done devreg.Done) {
	if len(tx.Read) == 0 {
		l.write(ctx, tx.Write, done)
		return
	}
	l.writeRead(ctx, tx.Write, tx.Read, done)
}

func blockingSPI(bus devreg.SPIBus) spiLink {
	return spiLink{
		write: func(ctx context.Context, w []byte, done devreg.Done) {
			done(bus.Write(ctx, w))
		},
		writeRead: func(ctx context.Context, w, r []byte, done devreg.Done) {
			done(bus.WriteRead(ctx, w, r))
		},
	}
}

func suspendingSPI(bus devreg.AsyncSPIBus) spiLink {
	return spiLink{write: bus.WriteAsync, writeRead: bus.WriteReadAsync}
}
