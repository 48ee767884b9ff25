package device

import (
	"context"
	"fmt"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/framing"
	"github.com/mklimuk/devreg/register"
)

// Device is a blocking handle on one device. It owns its bus handle and is
// not safe for concurrent use.
type Device struct {
	core *core
}

// NewI2C returns a device answering at address on bus. Register accesses are
// framed with codec, usually framing.I2C8.
func NewI2C(bus devreg.I2CBus, address devreg.Address, codec framing.Codec, opts ...Option) *Device {
	return &Device{core: newCore(bus, blockingI2C(bus), address, codec, opts)}
}

// NewSPI returns a device selected by its own chip select on bus.
func NewSPI(bus devreg.SPIBus, codec framing.Codec, opts ...Option) *Device {
	return &Device{core: newCore(bus, blockingSPI(bus), devreg.Address{}, codec, opts)}
}

func (d *Device) Address() devreg.Address {
	return d.core.address
}

// Close releases the bus handle.
func (d *Device) Close() error {
	return d.core.close()
}

// Read fetches and decodes register reg.
func Read[T any](ctx context.Context, d *Device, reg register.Readable[T]) (T, error) {
	var (
		value T
		err   error
	)
	read(ctx, d.core, reg.Descriptor(), func(v T, e error) {
		value, err = v, e
	})
	return value, err
}

// Write encodes v and stores it in register reg.
func Write[T any](ctx context.Context, d *Device, reg register.Writable[T], v T) error {
	var err error
	write(ctx, d.core, reg.Descriptor(), v, func(e error) {
		err = e
	})
	return err
}

// ReadWriter is a register that can be both read and written.
type ReadWriter[T any] interface {
	register.Readable[T]
	register.Writable[T]
}

// Modify reads register reg, applies fn and writes the result back. Nothing
// is written if the read fails.
func Modify[T any](ctx context.Context, d *Device, reg ReadWriter[T], fn func(*T)) error {
	v, err := Read[T](ctx, d, reg)
	if err != nil {
		return err
	}
	fn(&v)
	return Write[T](ctx, d, reg, v)
}

// ReadBytes reads n raw bytes from register address reg, bypassing any
// record codec.
func (d *Device) ReadBytes(ctx context.Context, reg uint32, n int) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	d.core.readRaw(ctx, fmt.Sprintf("%#02x", reg), reg, n, func(b []byte, e error) {
		data, err = b, e
	})
	return data, err
}

// WriteBytes writes raw bytes to register address reg.
func (d *Device) WriteBytes(ctx context.Context, reg uint32, data []byte) error {
	var err error
	d.core.writeRaw(ctx, fmt.Sprintf("%#02x", reg), reg, data, func(e error) {
		err = e
	})
	return err
}
