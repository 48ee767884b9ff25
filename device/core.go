// Package device reads and writes typed registers of one device on a bus.
//
// Device blocks for the duration of each transfer. AsyncDevice returns
// futures and suspends only while the transport works. Both run the same
// algorithm: check access, frame, transfer, parse, decode.
package device

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/framing"
	"github.com/mklimuk/devreg/register"
)

type Option func(*core)

// WithLogger sets the logger receiving debug traces of every transaction.
// slog.Default is used otherwise.
func WithLogger(log *slog.Logger) Option {
	return func(c *core) {
		c.log = log
	}
}

type core struct {
	address devreg.Address
	codec   framing.Codec
	link    link
	bus     any
	log     *slog.Logger
}

func newCore(bus any, l link, address devreg.Address, codec framing.Codec, opts []Option) *core {
	c := &core{address: address, codec: codec, link: l, bus: bus, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *core) close() error {
	if closer, ok := c.bus.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// readRaw transfers width bytes from register reg. name identifies the
// register in errors.
func (c *core) readRaw(ctx context.Context, name string, reg uint32, width int, done func([]byte, error)) {
	tx, err := c.codec.FrameRead(c.address.Value(), reg, width)
	if err != nil {
		done(nil, codecError(name, err))
		return
	}
	c.link.transfer(ctx, tx, func(err error) {
		if err != nil {
			c.log.Debug("register read failed", "device", c.address, "register", name, "error", err)
			done(nil, busError(name, err))
			return
		}
		raw, err := c.codec.ParseRead(tx.Read)
		if err != nil {
			done(nil, codecError(name, err))
			return
		}
		if len(raw) != width {
			done(nil, codecError(name, fmt.Errorf("%w: got %d bytes, expected %d", framing.ErrShortRead, len(raw), width)))
			return
		}
		c.trace(ctx, "register read", name, reg, raw)
		done(raw, nil)
	})
}

func (c *core) writeRaw(ctx context.Context, name string, reg uint32, data []byte, done func(error)) {
	tx, err := c.codec.FrameWrite(c.address.Value(), reg, data)
	if err != nil {
		done(codecError(name, err))
		return
	}
	c.link.transfer(ctx, tx, func(err error) {
		if err != nil {
			c.log.Debug("register write failed", "device", c.address, "register", name, "error", err)
			done(busError(name, err))
			return
		}
		c.trace(ctx, "register write", name, reg, data)
		done(nil)
	})
}

func (c *core) trace(ctx context.Context, msg, name string, reg uint32, data []byte) {
	if !c.log.Enabled(ctx, slog.LevelDebug) {
		return
	}
	c.log.DebugContext(ctx, msg, "device", c.address, "register", name, "reg", fmt.Sprintf("%#02x", reg), "data", hex.EncodeToString(data))
}

func read[T any](ctx context.Context, c *core, d *register.Descriptor[T], done func(T, error)) {
	var zero T
	if err := d.CheckRead(); err != nil {
		done(zero, err)
		return
	}
	c.readRaw(ctx, d.Name(), d.Address(), d.Width(), func(raw []byte, err error) {
		if err != nil {
			done(zero, err)
			return
		}
		v, err := d.Codec().Decode(raw)
		if err != nil {
			done(zero, codecError(d.Name(), err))
			return
		}
		done(v, nil)
	})
}

func write[T any](ctx context.Context, c *core, d *register.Descriptor[T], v T, done func(error)) {
	if err := d.CheckWrite(); err != nil {
		done(err)
		return
	}
	data, err := d.Codec().Encode(v)
	if err != nil {
		done(codecError(d.Name(), err))
		return
	}
	c.writeRaw(ctx, d.Name(), d.Address(), data, done)
}
