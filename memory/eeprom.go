// Package memory provides drivers for serial memories.
//
// The 25AA1024 is a 1 Mbit SPI EEPROM with 256 byte pages. Writes are split
// on page boundaries and the STATUS register is polled until each internal
// write cycle completes.
//
//	bus := spi.NewGobotBus(adaptor, "eeprom")
//	e := memory.New25AA1024(bus)
//	data, err := e.Read(ctx, 0x0000, 16)
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/bitfield"
)

// instruction set, datasheet table 3-1
const (
	cmdRead  = 0x03
	cmdWrite = 0x02
	cmdWREN  = 0x06
	cmdWRDI  = 0x04
	cmdRDSR  = 0x05
	cmdWRSR  = 0x01
	cmdPE    = 0x42
	cmdSE    = 0xD8
	cmdCE    = 0xC7

	PageSize = 256
	// Capacity is the size of the array in bytes.
	Capacity = 131072
)

var ErrOutOfRange = errors.New("address range exceeds memory capacity")
var ErrWriteTimeout = errors.New("timeout waiting for write completion")

// BlockProtect selects the write protected part of the array.
type BlockProtect uint8

const (
	ProtectNone BlockProtect = iota
	ProtectUpperQuarter
	ProtectUpperHalf
	ProtectAll
)

func (BlockProtect) Variants() []uint64 {
	return bitfield.VariantsOf(ProtectNone, ProtectUpperQuarter, ProtectUpperHalf, ProtectAll)
}

// Status is the STATUS register. WriteEnabled and WriteInProgress are read
// only.
type Status struct {
	WriteProtectEnable bool
	_                  uint8        `bits:"3"`
	Protect            BlockProtect `bits:"2"`
	WriteEnabled       bool
	WriteInProgress    bool
}

var statusCodec = bitfield.MustCompile[Status](bitfield.MSB0BigEndian)

type Option func(*EEPROM25AA1024)

// WithWriteTimeout bounds the wait for a single internal write cycle.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(e *EEPROM25AA1024) {
		e.writeTimeout = timeout
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(e *EEPROM25AA1024) {
		e.pollInterval = interval
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(e *EEPROM25AA1024) {
		e.log = log
	}
}

type EEPROM25AA1024 struct {
	bus          devreg.SPIBus
	writeTimeout time.Duration
	pollInterval time.Duration
	log          *slog.Logger
}

func New25AA1024(bus devreg.SPIBus, opts ...Option) *EEPROM25AA1024 {
	e := &EEPROM25AA1024{
		bus: bus,
		// page write takes 6ms max, erases take longer
		writeTimeout: 15 * time.Millisecond,
		pollInterval: 500 * time.Microsecond,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// header is the instruction followed by a 24 bit address. Only A16..A0 are
// used by the device.
func header(cmd byte, address uint32) []byte {
	return []byte{cmd, byte(address >> 16), byte(address >> 8), byte(address)}
}

func checkRange(address uint32, length int) error {
	if length < 0 || uint64(address)+uint64(length) > Capacity {
		return fmt.Errorf("%w: %d bytes at %#x", ErrOutOfRange, length, address)
	}
	return nil
}

// Read returns length bytes starting at address. The device wraps reads
// internally so a single transaction covers any range.
func (e *EEPROM25AA1024) Read(ctx context.Context, address uint32, length int) ([]byte, error) {
	if err := checkRange(address, length); err != nil {
		return nil, err
	}
	data := make([]byte, length)
	if length == 0 {
		return data, nil
	}
	if err := e.bus.WriteRead(ctx, header(cmdRead, address), data); err != nil {
		return nil, fmt.Errorf("25aa1024: read at %#x failed: %w", address, err)
	}
	return data, nil
}

// Write stores data at address, one page write per 256 byte page touched.
func (e *EEPROM25AA1024) Write(ctx context.Context, address uint32, data []byte) error {
	if err := checkRange(address, len(data)); err != nil {
		return err
	}
	for offset := 0; offset < len(data); {
		space := PageSize - int(address%PageSize)
		chunk := data[offset:]
		if len(chunk) > space {
			chunk = chunk[:space]
		}
		if err := e.pageWrite(ctx, address, chunk); err != nil {
			return err
		}
		offset += len(chunk)
		address += uint32(len(chunk))
	}
	return nil
}

func (e *EEPROM25AA1024) pageWrite(ctx context.Context, address uint32, data []byte) error {
	e.log.Debug("page write", "address", address, "len", len(data))
	return e.modify(ctx, append(header(cmdWrite, address), data...))
}

// Status reads the STATUS register.
func (e *EEPROM25AA1024) Status(ctx context.Context) (Status, error) {
	rx := make([]byte, 1)
	if err := e.bus.WriteRead(ctx, []byte{cmdRDSR}, rx); err != nil {
		return Status{}, fmt.Errorf("25aa1024: status read failed: %w", err)
	}
	return statusCodec.Decode(rx)
}

// SetProtection writes the block protection bits and WPEN.
func (e *EEPROM25AA1024) SetProtection(ctx context.Context, protect BlockProtect, wpen bool) error {
	data, err := statusCodec.Encode(Status{WriteProtectEnable: wpen, Protect: protect})
	if err != nil {
		return err
	}
	return e.modify(ctx, append([]byte{cmdWRSR}, data...))
}

// PageErase clears the page holding address.
func (e *EEPROM25AA1024) PageErase(ctx context.Context, address uint32) error {
	if err := checkRange(address, 1); err != nil {
		return err
	}
	return e.modify(ctx, header(cmdPE, address))
}

// SectorErase clears the 32 KiB sector holding address.
func (e *EEPROM25AA1024) SectorErase(ctx context.Context, address uint32) error {
	if err := checkRange(address, 1); err != nil {
		return err
	}
	return e.modify(ctx, header(cmdSE, address))
}

func (e *EEPROM25AA1024) ChipErase(ctx context.Context) error {
	return e.modify(ctx, []byte{cmdCE})
}

// WriteDisable clears the write enable latch.
func (e *EEPROM25AA1024) WriteDisable(ctx context.Context) error {
	if err := e.bus.Write(ctx, []byte{cmdWRDI}); err != nil {
		return fmt.Errorf("25aa1024: write disable failed: %w", err)
	}
	return nil
}

// modify sets the write enable latch, sends tx and waits for the write
// cycle to finish. The latch is reset by the device after every write.
func (e *EEPROM25AA1024) modify(ctx context.Context, tx []byte) error {
	if err := e.bus.Write(ctx, []byte{cmdWREN}); err != nil {
		return fmt.Errorf("25aa1024: write enable failed: %w", err)
	}
	if err := e.bus.Write(ctx, tx); err != nil {
		return fmt.Errorf("25aa1024: instruction %#02x failed: %w", tx[0], err)
	}
	return e.waitUntilReady(ctx)
}

func (e *EEPROM25AA1024) waitUntilReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.writeTimeout)
	defer cancel()
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	for {
		st, err := e.Status(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return ErrWriteTimeout
			}
			return err
		}
		if !st.WriteInProgress {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrWriteTimeout
			}
			return ctx.Err()
		}
	}
}
