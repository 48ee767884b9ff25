package device

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/async"
	"github.com/mklimuk/devreg/framing"
	"github.com/mklimuk/devreg/register"
)

// AsyncDevice is a suspending handle on one device. At most one transaction
// is in flight at a time: starting another one before the first completes
// fails with ErrInFlight.
type AsyncDevice struct {
	core     *core
	inFlight atomic.Bool
}

func NewAsyncI2C(bus devreg.AsyncI2CBus, address devreg.Address, codec framing.Codec, opts ...Option) *AsyncDevice {
	return &AsyncDevice{core: newCore(bus, suspendingI2C(bus), address, codec, opts)}
}

func NewAsyncSPI(bus devreg.AsyncSPIBus, codec framing.Codec, opts ...Option) *AsyncDevice {
	return &AsyncDevice{core: newCore(bus, suspendingSPI(bus), devreg.Address{}, codec, opts)}
}

func (d *AsyncDevice) Address() devreg.Address {
	return d.core.address
}

func (d *AsyncDevice) Close() error {
	return d.core.close()
}

// InFlight reports whether a transaction is pending.
func (d *AsyncDevice) InFlight() bool {
	return d.inFlight.Load()
}

func (d *AsyncDevice) acquire(name string) error {
	if !d.inFlight.CompareAndSwap(false, true) {
		return fmt.Errorf("register %s: %w", name, ErrInFlight)
	}
	return nil
}

// ReadAsync starts reading register reg. The future resolves with the
// decoded record once the transport completes. Abandoning the future does
// not cancel the transfer.
func ReadAsync[T any](ctx context.Context, d *AsyncDevice, reg register.Readable[T]) *async.Future[T] {
	desc := reg.Descriptor()
	if err := d.acquire(desc.Name()); err != nil {
		return async.Failed[T](err)
	}
	f := async.NewFuture[T]()
	read(ctx, d.core, desc, func(v T, err error) {
		d.inFlight.Store(false)
		f.Resolve(v, err)
	})
	return f
}

// WriteAsync starts writing v to register reg.
func WriteAsync[T any](ctx context.Context, d *AsyncDevice, reg register.Writable[T], v T) *async.Future[struct{}] {
	desc := reg.Descriptor()
	if err := d.acquire(desc.Name()); err != nil {
		return async.Failed[struct{}](err)
	}
	f := async.NewFuture[struct{}]()
	write(ctx, d.core, desc, v, func(err error) {
		d.inFlight.Store(false)
		f.Resolve(struct{}{}, err)
	})
	return f
}
