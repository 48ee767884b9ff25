package gpio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/bitfield"
	"github.com/mklimuk/devreg/device"
	"github.com/mklimuk/devreg/framing"
	"github.com/mklimuk/devreg/register"
)

const DefaultMCP23017Address = 0x21

type Port int

const (
	PortA Port = iota
	PortB
)

func (p Port) String() string {
	return string(rune('A' + p))
}

// Pins holds one bit per pin, GP7 in the top bit.
type Pins struct {
	Value uint8
}

// IOCON is the shared configuration register.
type IOCON struct {
	// Bank selects the separated register layout
	Bank bool
	// Mirror ties INTA and INTB together
	Mirror bool
	// SequentialDisabled stops the address pointer from incrementing
	SequentialDisabled bool
	SlewRateDisabled   bool
	HardwareAddress    bool
	OpenDrain          bool
	InterruptActiveHi  bool
	_                  uint8 `bits:"1"`
}

// PortRegisters are the registers of one port in one bank layout.
type PortRegisters struct {
	IODIR   register.ReadWrite[Pins]
	IPOL    register.ReadWrite[Pins]
	GPINTEN register.ReadWrite[Pins]
	DEFVAL  register.ReadWrite[Pins]
	INTCON  register.ReadWrite[Pins]
	IOCON   register.ReadWrite[IOCON]
	GPPU    register.ReadWrite[Pins]
	INTF    register.ReadOnly[Pins]
	INTCAP  register.ReadOnly[Pins]
	GPIO    register.ReadWrite[Pins]
	OLAT    register.ReadWrite[Pins]
}

// Banks holds the register tables indexed by IOCON.BANK and port. With
// BANK=0 the A and B registers alternate, with BANK=1 port B starts at 0x10.
var Banks = [2][2]PortRegisters{
	{portRegisters(0, PortA), portRegisters(0, PortB)},
	{portRegisters(1, PortA), portRegisters(1, PortB)},
}

func portRegisters(bank int, port Port) PortRegisters {
	addr := func(index uint32) uint32 {
		if bank == 0 {
			return index*2 + uint32(port)
		}
		return uint32(port)*0x10 + index
	}
	name := func(reg string) string {
		return reg + port.String()
	}
	f := bitfield.MSB0BigEndian
	return PortRegisters{
		IODIR:   register.DefineRW[Pins](name("IODIR"), addr(0), 1, f),
		IPOL:    register.DefineRW[Pins](name("IPOL"), addr(1), 1, f),
		GPINTEN: register.DefineRW[Pins](name("GPINTEN"), addr(2), 1, f),
		DEFVAL:  register.DefineRW[Pins](name("DEFVAL"), addr(3), 1, f),
		INTCON:  register.DefineRW[Pins](name("INTCON"), addr(4), 1, f),
		IOCON:   register.DefineRW[IOCON](name("IOCON"), addr(5), 1, f),
		GPPU:    register.DefineRW[Pins](name("GPPU"), addr(6), 1, f),
		INTF:    register.DefineRO[Pins](name("INTF"), addr(7), 1, f),
		INTCAP:  register.DefineRO[Pins](name("INTCAP"), addr(8), 1, f),
		GPIO:    register.DefineRW[Pins](name("GPIO"), addr(9), 1, f),
		OLAT:    register.DefineRW[Pins](name("OLAT"), addr(10), 1, f),
	}
}

/*
	Steps to read GPIO:

1. Set 0xFF to IODIR registry (all inputs)
2. Configure pull-up? GPPU
3. Read port register GPIO
*/
type MCP23017 struct {
	mx         sync.Mutex
	dev        *device.Device
	bus        devreg.I2CBus
	bank       int
	retryLimit int
	devOpts    []device.Option
}

type MCP23017Option func(*MCP23017)

// WithBank tells the driver which register layout the chip currently uses.
func WithBank(bank int) MCP23017Option {
	return func(m *MCP23017) {
		m.bank = bank & 1
	}
}

// WithRetryLimit sets how many times a busy bus is released and the access
// retried. The access is always attempted at least once.
func WithRetryLimit(limit int) MCP23017Option {
	return func(m *MCP23017) {
		m.retryLimit = max(limit, 1)
	}
}

func WithDeviceOptions(opts ...device.Option) MCP23017Option {
	return func(m *MCP23017) {
		m.devOpts = append(m.devOpts, opts...)
	}
}

func NewMCP23017(bus devreg.I2CBus, address uint16, opts ...MCP23017Option) *MCP23017 {
	m := &MCP23017{retryLimit: 1, bus: bus}
	for _, opt := range opts {
		opt(m)
	}
	m.dev = device.NewI2C(bus, devreg.DefaultAddress(address), framing.I2C8, m.devOpts...)
	return m
}

// Registers returns the register table of port in the current layout.
func (m *MCP23017) Registers(port Port) PortRegisters {
	m.mx.Lock()
	defer m.mx.Unlock()
	return Banks[m.bank][port]
}

// retry runs op and releases the bus each time it reports busy
func (m *MCP23017) retry(ctx context.Context, what string, op func() error) error {
	var err error
	for i := m.retryLimit; i > 0; i-- {
		err = op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, devreg.ErrBusBusy) {
			return fmt.Errorf("could not %s: %w", what, err)
		}
		// try to release the bus
		_ = m.bus.Release(ctx)
	}
	return fmt.Errorf("could not %s (retry limit reached): %w", what, err)
}

func (m *MCP23017) write(ctx context.Context, what string, reg register.ReadWrite[Pins], value uint8) error {
	return m.retry(ctx, what, func() error {
		return device.Write(ctx, m.dev, reg, Pins{Value: value})
	})
}

func (m *MCP23017) read(ctx context.Context, what string, reg register.Readable[Pins]) (uint8, error) {
	var res Pins
	err := m.retry(ctx, what, func() error {
		var err error
		res, err = device.Read(ctx, m.dev, reg)
		return err
	})
	return res.Value, err
}

// InitA sets IODIR registry to inout on I/O pool A
func (m *MCP23017) InitA(ctx context.Context, inout byte) error {
	return m.write(ctx, "initialize gpio A set", m.Registers(PortA).IODIR, inout)
}

// InitB sets IODIR registry to inout on I/O pool B
func (m *MCP23017) InitB(ctx context.Context, inout byte) error {
	return m.write(ctx, "initialize gpio B set", m.Registers(PortB).IODIR, inout)
}

// PullUpA sets up pull up resistors on set A
func (m *MCP23017) PullUpA(ctx context.Context, settings byte) error {
	return m.write(ctx, "set pull-up on gpio A set", m.Registers(PortA).GPPU, settings)
}

// PullUpB sets up pull up resistors on set B
func (m *MCP23017) PullUpB(ctx context.Context, settings byte) error {
	return m.write(ctx, "set pull-up on gpio B set", m.Registers(PortB).GPPU, settings)
}

// Write sets the output latches of port.
func (m *MCP23017) Write(ctx context.Context, port Port, value byte) error {
	return m.write(ctx, fmt.Sprintf("write gpio %v set", port), m.Registers(port).OLAT, value)
}

func (m *MCP23017) Read(ctx context.Context) ([]byte, error) {
	res := make([]byte, 2)
	var err error
	res[0], err = m.ReadA(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not read gpio set A: %w", err)
	}
	res[1], err = m.ReadB(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not read gpio set B: %w", err)
	}
	return res, nil
}

// ReadA reads gpio A set values
func (m *MCP23017) ReadA(ctx context.Context) (byte, error) {
	return m.read(ctx, "read gpio A set", m.Registers(PortA).GPIO)
}

// ReadB reads gpio B set values
func (m *MCP23017) ReadB(ctx context.Context) (byte, error) {
	return m.read(ctx, "read gpio B set", m.Registers(PortB).GPIO)
}

// InterruptFlags reads which pins of port caused an interrupt.
func (m *MCP23017) InterruptFlags(ctx context.Context, port Port) (byte, error) {
	return m.read(ctx, fmt.Sprintf("read interrupt flags of gpio %v set", port), m.Registers(port).INTF)
}

// ReadSettings reads the IOCON register through port. Both ports share it.
func (m *MCP23017) ReadSettings(ctx context.Context, port Port) (IOCON, error) {
	var res IOCON
	err := m.retry(ctx, fmt.Sprintf("read settings of gpio %v set", port), func() error {
		var err error
		res, err = device.Read(ctx, m.dev, m.Registers(port).IOCON)
		return err
	})
	return res, err
}

// WriteSettings writes IOCON through port. Changing Bank switches the
// register layout used by subsequent accesses.
func (m *MCP23017) WriteSettings(ctx context.Context, port Port, settings IOCON) error {
	err := m.retry(ctx, fmt.Sprintf("write settings on gpio %v set", port), func() error {
		return device.Write(ctx, m.dev, m.Registers(port).IOCON, settings)
	})
	if err != nil {
		return err
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	m.bank = 0
	if settings.Bank {
		m.bank = 1
	}
	return nil
}

// DecodeIOCON interprets a raw IOCON byte.
func DecodeIOCON(raw byte) (IOCON, error) {
	return Banks[0][PortA].IOCON.Descriptor().Codec().Decode([]byte{raw})
}

func (m *MCP23017) Close() error {
	return m.dev.Close()
}
