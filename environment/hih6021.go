package environment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/bitfield"
)

const hih6021Address = 0x27

var divider = float32(1<<14 - 2)

var ErrStaleData = errors.New("stale data")
var ErrCommandMode = errors.New("device in command mode")

type HIH6021Status uint8

const (
	HIH6021Normal HIH6021Status = iota
	HIH6021Stale
	HIH6021Command
	HIH6021Diagnostic
)

func (HIH6021Status) Variants() []uint64 {
	return bitfield.VariantsOf(HIH6021Normal, HIH6021Stale, HIH6021Command, HIH6021Diagnostic)
}

// HIH6021Measurement is the four byte data fetch response.
type HIH6021Measurement struct {
	Status      HIH6021Status `bits:"2"`
	Humidity    uint16        `bits:"14"`
	Temperature uint16        `bits:"14"`
	_           uint8         `bits:"2"`
}

var hih6021Codec = bitfield.MustCompile[HIH6021Measurement](bitfield.MSB0BigEndian)

// HIH6021 represents Honywell HumidIcon Digital Humidity/Temperature sensor.
// The sensor has no register pointer: an empty write starts a measurement
// and a plain read fetches it.
type HIH6021 struct {
	transport devreg.I2CBus
	lastTemp  float32
	lastHum   float32
}

func NewHIH6021(trans devreg.I2CBus) *HIH6021 {
	return &HIH6021{transport: trans}
}

func (sensor *HIH6021) GetTemperature(ctx context.Context) (float32, error) {
	err := sensor.measure(ctx)
	return sensor.lastTemp, err
}

func (sensor *HIH6021) GetHumidity(ctx context.Context) (float32, error) {
	err := sensor.measure(ctx)
	return sensor.lastHum, err
}

func (sensor *HIH6021) GetTempAndHum(ctx context.Context) (float32, float32, error) {
	err := sensor.measure(ctx)
	return sensor.lastTemp, sensor.lastHum, err
}

func (sensor *HIH6021) measure(ctx context.Context) error {
	err := sensor.transport.WriteToAddr(ctx, hih6021Address, []byte{})
	if err != nil {
		return fmt.Errorf("could not write measurement request to device: %w", err)
	}
	// measurement cycle takes typically 36.65ms
	if err := sleep(ctx, 50*time.Millisecond); err != nil {
		return err
	}
	resp := make([]byte, hih6021Codec.Size())
	err = sensor.transport.ReadFromAddr(ctx, hih6021Address, resp)
	if err != nil {
		return fmt.Errorf("could not read measurement from device: %w", err)
	}
	m, err := hih6021Codec.Decode(resp)
	if err != nil {
		return fmt.Errorf("could not decode measurement: %w", err)
	}
	switch m.Status {
	case HIH6021Command:
		return ErrCommandMode
	case HIH6021Stale:
		// data has already been fetched since last measurement or fetched
		// before the first measurement completed
		return ErrStaleData
	}
	sensor.lastHum = convertHumidity(m.Humidity)
	sensor.lastTemp = convertTemperature(m.Temperature)
	return nil
}

func convertHumidity(raw uint16) float32 {
	hum := float32(raw) / divider * 100
	if hum > 100.00 {
		return 100.00
	}
	return hum
}

func convertTemperature(raw uint16) float32 {
	return float32(raw)/divider*165 - 40
}
