package framing

import "fmt"

// SPI frames register accesses as a command byte followed by data. The
// register address is shifted into place and masked, then the read or write
// flag is set. Some devices send don't-care bytes before the data on reads;
// Dummy of them are clocked in and dropped by ParseRead.
type SPI struct {
	// AddressBits is the width of the address inside the command byte.
	AddressBits int
	// Shift moves the address up, e.g. 1 for devices with a trailing
	// don't-care bit.
	Shift     int
	ReadFlag  byte
	WriteFlag byte
	Dummy     int
}

// SPIReadBit7 is the widespread layout with the read flag on bit 7 and a
// 7-bit register address (BMA220 family, most Bosch and ST parts).
var SPIReadBit7 = SPI{AddressBits: 7, ReadFlag: 0x80}

func (s SPI) FrameRead(_ uint16, register uint32, n int) (Transaction, error) {
	cmd, err := s.command(register, s.ReadFlag)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{Write: []byte{cmd}, Read: make([]byte, s.Dummy+n)}, nil
}

func (s SPI) ParseRead(rx []byte) ([]byte, error) {
	if len(rx) < s.Dummy {
		return nil, fmt.Errorf("%w: %d bytes, %d dummy expected", ErrShortRead, len(rx), s.Dummy)
	}
	return rx[s.Dummy:], nil
}

func (s SPI) FrameWrite(_ uint16, register uint32, data []byte) (Transaction, error) {
	cmd, err := s.command(register, s.WriteFlag)
	if err != nil {
		return Transaction{}, err
	}
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, cmd)
	return Transaction{Write: append(buf, data...)}, nil
}

func (s SPI) command(register uint32, flag byte) (byte, error) {
	bits := s.AddressBits
	if bits == 0 {
		bits = 7
	}
	if bits+s.Shift > 8 || register>>bits != 0 {
		return 0, fmt.Errorf("%w: %#x does not fit %d bits", ErrRegisterAddress, register, bits)
	}
	return byte(register)<<s.Shift | flag, nil
}
