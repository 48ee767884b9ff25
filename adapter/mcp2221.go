// Package adapter holds bus adapters for USB bridges.
package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/bitfield"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const (
	reportSize = 64
	// maxTransfer is the I2C payload carried by one HID report.
	maxTransfer = 60

	cmdStatus      = 0x10
	cmdI2CWrite    = 0x90
	cmdI2CRead     = 0x91
	cmdI2CReadData = 0x40

	statusCancelTransfer = 0x10
	responseBusy         = 0x01
	responseReadError    = 0x41
	responseSizeInvalid  = 127
)

var ErrCommandFailed = errors.New("command failed")
var ErrDeviceNotFound = errors.New("MCP2221 device not found")

var _ devreg.I2CBus = &MCP2221{}

// hidDevice is the part of an open HID device used by the adapter.
type hidDevice interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

// MCP2221 drives an I2C bus through a Microchip MCP2221 USB bridge. The
// device is opened for every command so that several processes can share it.
type MCP2221 struct {
	mx           sync.Mutex
	open         func() (hidDevice, error)
	request      []byte
	response     []byte
	responseWait time.Duration
	log          *slog.Logger
}

type MCP2221Option func(*MCP2221)

// WithDeviceIndex selects one of several connected bridges.
func WithDeviceIndex(index int) MCP2221Option {
	return func(d *MCP2221) {
		d.open = func() (hidDevice, error) {
			return openHID(index)
		}
	}
}

func WithResponseWait(wait time.Duration) MCP2221Option {
	return func(d *MCP2221) {
		d.responseWait = wait
	}
}

func WithLogger(log *slog.Logger) MCP2221Option {
	return func(d *MCP2221) {
		d.log = log
	}
}

func NewMCP2221(opts ...MCP2221Option) *MCP2221 {
	d := &MCP2221{
		open: func() (hidDevice, error) {
			return openHID(-1)
		},
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: 50 * time.Millisecond,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Devices lists the connected bridges.
func Devices() []hid.DeviceInfo {
	return hid.Enumerate(VendorID, ProductID)
}

// openHID opens bridge index, or the only one connected for a negative index.
func openHID(index int) (hidDevice, error) {
	devs := Devices()
	if len(devs) == 0 {
		return nil, ErrDeviceNotFound
	}
	if index < 0 {
		if len(devs) > 1 {
			return nil, fmt.Errorf("ambiguous device identification: %d bridges connected", len(devs))
		}
		index = 0
	}
	if index >= len(devs) {
		return nil, fmt.Errorf("no device with id %d", index)
	}
	dev, err := devs[index].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return dev, nil
}

func checkAddress(address uint16, buffer []byte) error {
	if address > 0x7F {
		return fmt.Errorf("address %#x is not a 7-bit address", address)
	}
	if len(buffer) > maxTransfer {
		return fmt.Errorf("transfer of %d bytes exceeds %d", len(buffer), maxTransfer)
	}
	return nil
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address uint16, buffer []byte) error {
	if err := checkAddress(address, buffer); err != nil {
		return err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdI2CWrite
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = byte(address) << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("write to %#x failed: %w", address, err)
	}
	if d.response[1] == responseBusy {
		d.log.Debug("adapter busy", "address", address)
		return devreg.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address uint16, buffer []byte) error {
	if err := checkAddress(address, buffer); err != nil {
		return err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdI2CRead
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = byte(address)<<1 | 1
	if err := d.send(ctx); err != nil {
		return fmt.Errorf("bus read from %#x failed: %w", address, err)
	}
	if d.response[1] == responseBusy {
		return devreg.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdI2CReadData
	if err := d.send(ctx); err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == responseReadError {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine: %w", ErrCommandFailed)
	}
	if d.response[3] == responseSizeInvalid || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

// MCP2221Status is the I2C engine section of the status response.
type MCP2221Status struct {
	LastWriteRequestedSize uint16
	LastWriteSentSize      uint16
	I2CDataBufferCounter   uint8
	I2CSpeedDivider        uint8
	I2CTimeout             uint8
	CurrentAddress         uint16
}

// the engine fields are bytes 9 to 17 of the response, 16-bit values are
// little endian
var statusCodec = bitfield.MustCompile[MCP2221Status](bitfield.LSB0LittleEndian)

const statusOffset = 9

func (d *MCP2221) Status(ctx context.Context) (MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.status(ctx, false)
}

// ReleaseBus cancels the current I2C transfer and frees the bus.
func (d *MCP2221) ReleaseBus(ctx context.Context) (MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.status(ctx, true)
}

func (d *MCP2221) Release(ctx context.Context) error {
	_, err := d.ReleaseBus(ctx)
	return err
}

func (d *MCP2221) status(ctx context.Context, cancel bool) (MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatus
	if cancel {
		d.request[2] = statusCancelTransfer
	}
	if err := d.send(ctx); err != nil {
		return MCP2221Status{}, fmt.Errorf("status request failed: %w", err)
	}
	status, err := statusCodec.Decode(d.response[statusOffset : statusOffset+statusCodec.Size()])
	if err != nil {
		return MCP2221Status{}, fmt.Errorf("could not decode status: %w", err)
	}
	return status, nil
}

func (d *MCP2221) send(ctx context.Context) error {
	dev, err := d.open()
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			d.log.Debug("could not close adapter", "error", err)
		}
	}()
	verbose := d.log.Enabled(ctx, slog.LevelDebug)
	if verbose {
		d.log.DebugContext(ctx, "sending message to adapter", "request", hex.EncodeToString(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.responseWait):
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		d.log.DebugContext(ctx, "read message from adapter", "response", hex.EncodeToString(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}
