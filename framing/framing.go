// Package framing turns a register access into the raw bytes exchanged with
// the device and extracts the register bytes from what comes back.
package framing

import (
	"errors"
	"fmt"
)

var (
	ErrRegisterAddress = errors.New("register address out of range")
	ErrCRC             = errors.New("crc mismatch")
	ErrShortRead       = errors.New("short read")
)

// Transaction is a single exchange on the bus. Write is sent first, then
// len(Read) bytes are read into Read. Address is ignored on SPI.
type Transaction struct {
	Address uint16
	Write   []byte
	Read    []byte
}

// Codec frames register reads and writes for one device family.
type Codec interface {
	// FrameRead builds the transaction reading n register bytes.
	FrameRead(device uint16, register uint32, n int) (Transaction, error)
	// ParseRead extracts the register bytes from the bytes read by a
	// transaction built with FrameRead.
	ParseRead(rx []byte) ([]byte, error)
	FrameWrite(device uint16, register uint32, data []byte) (Transaction, error)
}

// RegisterPrefix is the common I2C scheme: the register address is written
// big-endian in Width bytes, followed by the data on writes. Reads write the
// address and read the data in a separate transfer.
type RegisterPrefix struct {
	Width int
}

var (
	// I2C8 addresses up to 256 registers with one byte.
	I2C8 Codec = RegisterPrefix{Width: 1}
	// I2C16 uses 16-bit register addresses or commands, e.g. EEPROMs.
	I2C16 Codec = RegisterPrefix{Width: 2}
)

func (p RegisterPrefix) FrameRead(device uint16, register uint32, n int) (Transaction, error) {
	prefix, err := p.prefix(register, 0)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{Address: device, Write: prefix, Read: make([]byte, n)}, nil
}

func (p RegisterPrefix) ParseRead(rx []byte) ([]byte, error) {
	return rx, nil
}

func (p RegisterPrefix) FrameWrite(device uint16, register uint32, data []byte) (Transaction, error) {
	buf, err := p.prefix(register, len(data))
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{Address: device, Write: append(buf, data...)}, nil
}

func (p RegisterPrefix) prefix(register uint32, extra int) ([]byte, error) {
	if p.Width < 1 || p.Width > 4 {
		return nil, fmt.Errorf("%w: unsupported prefix width %d", ErrRegisterAddress, p.Width)
	}
	if p.Width < 4 && register>>(8*p.Width) != 0 {
		return nil, fmt.Errorf("%w: %#x does not fit %d byte(s)", ErrRegisterAddress, register, p.Width)
	}
	buf := make([]byte, p.Width, p.Width+extra)
	for i := range p.Width {
		buf[i] = byte(register >> (8 * (p.Width - 1 - i)))
	}
	return buf, nil
}

func (p RegisterPrefix) String() string {
	return fmt.Sprintf("i2c%d", p.Width*8)
}
