package environment

import (
	"context"
	"fmt"
	"time"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/bitfield"
	"github.com/mklimuk/devreg/device"
	"github.com/mklimuk/devreg/framing"
	"github.com/mklimuk/devreg/register"
)

// SHTC3 I2C address (7-bit)
const shtc3Address = 0x70

// Commands (Big Endian on the wire)
const (
	shtc3CmdWake  uint32 = 0x3517
	shtc3CmdSleep uint32 = 0xB098
	shtc3CmdReset uint32 = 0x805D
)

// SHTC3ID is the product code word. Bits 11 and 5:0 identify the SHTC3.
type SHTC3ID struct {
	_      uint8 `bits:"4"`
	Marker bool
	_      uint8 `bits:"5"`
	Code   uint8 `bits:"6"`
}

// SHTC3Measurement holds the raw temperature and humidity words. Each word is
// followed by a CRC on the wire.
type SHTC3Measurement struct {
	Temperature uint16
	Humidity    uint16
}

var (
	SHTC3IDRegister = register.DefineRO[SHTC3ID]("ID", 0xEFC8, 2, bitfield.MSB0BigEndian)
	// normal power, clock stretching enabled, temperature first
	SHTC3MeasureRegister = register.DefineRO[SHTC3Measurement]("MEASURE", 0x7CA2, 4, bitfield.MSB0BigEndian)
)

// SHTC3 represents Sensirion SHTC3 Temperature/Humidity sensor
// Typical usage:
//
//	s := NewSHTC3(bus)
//	t, h, err := s.GetTempAndHum(ctx)
type SHTC3 struct {
	dev      *device.Device
	lastTemp float32
	lastHum  float32
}

func NewSHTC3(bus devreg.I2CBus, opts ...device.Option) *SHTC3 {
	return &SHTC3{dev: device.NewI2C(bus, devreg.DefaultAddress(shtc3Address), framing.CRC8Words{}, opts...)}
}

// GetTemperature performs a single measurement and returns temperature in Celsius.
func (s *SHTC3) GetTemperature(ctx context.Context) (float32, error) {
	if err := s.measure(ctx); err != nil {
		return 0, err
	}
	return s.lastTemp, nil
}

// GetHumidity performs a single measurement and returns relative humidity in %RH.
func (s *SHTC3) GetHumidity(ctx context.Context) (float32, error) {
	if err := s.measure(ctx); err != nil {
		return 0, err
	}
	return s.lastHum, nil
}

// GetTempAndHum performs a single measurement and returns temperature and humidity.
func (s *SHTC3) GetTempAndHum(ctx context.Context) (float32, float32, error) {
	if err := s.measure(ctx); err != nil {
		return 0, 0, err
	}
	return s.lastTemp, s.lastHum, nil
}

// ID reads the product code. The sensor must be awake.
func (s *SHTC3) ID(ctx context.Context) (SHTC3ID, error) {
	if err := s.command(ctx, shtc3CmdWake); err != nil {
		return SHTC3ID{}, fmt.Errorf("shtc3: wake failed: %w", err)
	}
	id, err := device.Read(ctx, s.dev, SHTC3IDRegister)
	if err != nil {
		return id, fmt.Errorf("shtc3: could not read id: %w", err)
	}
	return id, nil
}

// Reset performs a soft reset.
func (s *SHTC3) Reset(ctx context.Context) error {
	if err := s.command(ctx, shtc3CmdReset); err != nil {
		return fmt.Errorf("shtc3: reset failed: %w", err)
	}
	return nil
}

func (s *SHTC3) measure(ctx context.Context) error {
	if err := s.command(ctx, shtc3CmdWake); err != nil {
		return fmt.Errorf("shtc3: wake failed: %w", err)
	}
	// wake up takes up to 240us
	if err := sleep(ctx, time.Millisecond); err != nil {
		return err
	}
	// the sensor stretches the clock until the conversion is done
	m, err := device.Read(ctx, s.dev, SHTC3MeasureRegister)
	if err != nil {
		return fmt.Errorf("shtc3: measurement failed: %w", err)
	}
	s.lastTemp, s.lastHum = convertSHTC3(m)

	if err := s.command(ctx, shtc3CmdSleep); err != nil {
		return fmt.Errorf("shtc3: sleep failed: %w", err)
	}
	return nil
}

func (s *SHTC3) command(ctx context.Context, cmd uint32) error {
	return s.dev.WriteBytes(ctx, cmd, nil)
}

func (s *SHTC3) Close() error {
	return s.dev.Close()
}

// T(C) = -45 + 175 * rawT / 65535
// RH(%) = 100 * rawRH / 65535
func convertSHTC3(m SHTC3Measurement) (float32, float32) {
	return -45.0 + (175.0 * float32(m.Temperature) / 65535.0), 100.0 * float32(m.Humidity) / 65535.0
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
