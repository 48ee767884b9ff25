package framing

import (
	"errors"
	"fmt"

	"github.com/sigurn/crc8"
)

var crcTable *crc8.Table

func init() {
	crcTable = crc8.MakeTable(crc8.Params{
		Poly: 0x31,
		Init: 0xFF,
		Name: "CRC-8/NRSC-5",
	})
}

// Checksum computes the CRC-8 used by Sensirion and Aosong sensors.
func Checksum(data []byte) byte {
	return crc8.Checksum(data, crcTable)
}

// CRC8Words frames devices that follow every data word with a CRC-8
// (polynomial 0x31, init 0xFF). Word is the number of data bytes covered by
// each CRC, 2 when zero. The register or command address is written with
// Prefix, the default being a 16-bit command.
type CRC8Words struct {
	Prefix RegisterPrefix
	Word   int
}

var errPartialWord = errors.New("data must be whole words")

func (c CRC8Words) prefix() RegisterPrefix {
	if c.Prefix.Width == 0 {
		return RegisterPrefix{Width: 2}
	}
	return c.Prefix
}

func (c CRC8Words) word() int {
	if c.Word <= 0 {
		return 2
	}
	return c.Word
}

func (c CRC8Words) FrameRead(device uint16, register uint32, n int) (Transaction, error) {
	w := c.word()
	if n%w != 0 {
		return Transaction{}, fmt.Errorf("%w: %d bytes in %d byte words", errPartialWord, n, w)
	}
	return c.prefix().FrameRead(device, register, n/w*(w+1))
}

func (c CRC8Words) ParseRead(rx []byte) ([]byte, error) {
	w := c.word()
	if len(rx)%(w+1) != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of words", ErrShortRead, len(rx))
	}
	data := make([]byte, 0, len(rx)/(w+1)*w)
	for i := 0; i < len(rx); i += w + 1 {
		word := rx[i : i+w]
		if sum := Checksum(word); sum != rx[i+w] {
			return nil, fmt.Errorf("%w: word %d: got %#x, expected %#x", ErrCRC, i/(w+1), rx[i+w], sum)
		}
		data = append(data, word...)
	}
	return data, nil
}

func (c CRC8Words) FrameWrite(device uint16, register uint32, data []byte) (Transaction, error) {
	w := c.word()
	if len(data)%w != 0 {
		return Transaction{}, fmt.Errorf("%w: %d bytes in %d byte words", errPartialWord, len(data), w)
	}
	framed := make([]byte, 0, len(data)/w*(w+1))
	for i := 0; i < len(data); i += w {
		framed = append(framed, data[i:i+w]...)
		framed = append(framed, Checksum(data[i:i+w]))
	}
	return c.prefix().FrameWrite(device, register, framed)
}
