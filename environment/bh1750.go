package environment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/bitfield"
)

// BH1750 addresses selected by the ADDR pin.
const BH1750AddrHigh = 0b1011100
const BH1750AddrLow = 0b0100011

const (
	bh1750PowerDown = 0b00000000
	bh1750PowerOn   = 0b00000001
	bh1750Reset     = 0b00000111
)

// BH1750Mode is a one time measurement opcode. The sensor powers down after
// each measurement.
type BH1750Mode uint8

const (
	BH1750HighResolution  BH1750Mode = 0b00100000
	BH1750HighResolution2 BH1750Mode = 0b00100001
	BH1750LowResolution   BH1750Mode = 0b00100011
)

// conversion returns the maximum measurement time and the counts per lux.
func (m BH1750Mode) conversion() (time.Duration, float64) {
	switch m {
	case BH1750HighResolution:
		return 180 * time.Millisecond, 1.2
	case BH1750HighResolution2:
		return 180 * time.Millisecond, 2.4
	default:
		// typically 16ms, max 24ms
		return 25 * time.Millisecond, 1.2
	}
}

// BH1750Measurement is the big endian result word. The sensor has no
// register pointer: it is read directly after the measurement opcode.
type BH1750Measurement struct {
	Count uint16
}

var bh1750Codec = bitfield.MustCompile[BH1750Measurement](bitfield.MSB0BigEndian)

type BH1750Option func(*BH1750)

func WithBH1750Mode(mode BH1750Mode) BH1750Option {
	return func(s *BH1750) {
		s.mode = mode
	}
}

// BH1750 represents a Rohm BH1750 ambient light sensor.
type BH1750 struct {
	mx        sync.Mutex
	transport devreg.I2CBus
	addr      devreg.Address
	mode      BH1750Mode
}

func NewBH1750(transport devreg.I2CBus, addr uint16, opts ...BH1750Option) *BH1750 {
	s := &BH1750{
		transport: transport,
		addr:      devreg.DefaultAddress(addr),
		mode:      BH1750LowResolution,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetLux returns the illuminance rounded down to whole lux.
func (sensor *BH1750) GetLux(ctx context.Context) (int, error) {
	lux, err := sensor.Lux(ctx)
	return int(lux), err
}

func (sensor *BH1750) Lux(ctx context.Context) (float64, error) {
	sensor.mx.Lock()
	defer sensor.mx.Unlock()
	if err := sensor.command(ctx, byte(sensor.mode)); err != nil {
		return 0, fmt.Errorf("bh1750: could not write command: %w", err)
	}
	wait, countsPerLux := sensor.mode.conversion()
	if err := sleep(ctx, wait); err != nil {
		return 0, err
	}
	buf := make([]byte, bh1750Codec.Size())
	if err := sensor.transport.ReadFromAddr(ctx, sensor.addr.Value(), buf); err != nil {
		return 0, fmt.Errorf("bh1750: could not read data: %w", err)
	}
	m, err := bh1750Codec.Decode(buf)
	if err != nil {
		return 0, fmt.Errorf("bh1750: %w", err)
	}
	return float64(m.Count) / countsPerLux, nil
}

// Reset clears the data register. It only works while powered on.
func (sensor *BH1750) Reset(ctx context.Context) error {
	sensor.mx.Lock()
	defer sensor.mx.Unlock()
	if err := sensor.command(ctx, bh1750PowerOn); err != nil {
		return fmt.Errorf("bh1750: power on failed: %w", err)
	}
	if err := sensor.command(ctx, bh1750Reset); err != nil {
		return fmt.Errorf("bh1750: reset failed: %w", err)
	}
	return nil
}

func (sensor *BH1750) PowerDown(ctx context.Context) error {
	sensor.mx.Lock()
	defer sensor.mx.Unlock()
	if err := sensor.command(ctx, bh1750PowerDown); err != nil {
		return fmt.Errorf("bh1750: power down failed: %w", err)
	}
	return nil
}

func (sensor *BH1750) command(ctx context.Context, op byte) error {
	return sensor.transport.WriteToAddr(ctx, sensor.addr.Value(), []byte{op})
}
