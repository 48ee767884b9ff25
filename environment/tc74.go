package environment

import (
	"context"
	"fmt"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/bitfield"
	"github.com/mklimuk/devreg/device"
	"github.com/mklimuk/devreg/framing"
	"github.com/mklimuk/devreg/register"
)

const tc74DefaultAddress = 0x4D

type TC74Temperature struct {
	Celsius int8
}

type TC74Config struct {
	Standby   bool
	DataReady bool
	_         uint8 `bits:"6"`
}

var (
	TC74TemperatureRegister = register.DefineRO[TC74Temperature]("TEMP", 0x00, 1, bitfield.MSB0BigEndian)
	TC74ConfigRegister      = register.DefineRW[TC74Config]("CONFIG", 0x01, 1, bitfield.MSB0BigEndian)
)

// TC74 represents a Microchip TC74 Digital Temperature Sensor
// See: https://ww1.microchip.com/downloads/en/DeviceDoc/21462D.pdf
//
// Usage: Instantiate with NewTC74, then call GetTemperature(ctx)
type TC74 struct {
	dev      *device.Device
	lastTemp float32
}

type tc74Config struct {
	address devreg.Address
	opts    []device.Option
}

type TC74ConfigOption func(*tc74Config)

// WithAddress selects one of the factory address options (0x48 to 0x4F).
func WithAddress(address uint16) TC74ConfigOption {
	return func(c *tc74Config) {
		c.address = devreg.DefaultAddress(address)
	}
}

func WithTC74DeviceOptions(opts ...device.Option) TC74ConfigOption {
	return func(c *tc74Config) {
		c.opts = append(c.opts, opts...)
	}
}

// NewTC74 creates a new TC74 sensor connector on the given bus. The default
// address is 0x4D.
func NewTC74(bus devreg.I2CBus, opts ...TC74ConfigOption) *TC74 {
	config := &tc74Config{address: devreg.DefaultAddress(tc74DefaultAddress)}
	for _, opt := range opts {
		opt(config)
	}
	return &TC74{dev: device.NewI2C(bus, config.address, framing.I2C8, config.opts...)}
}

func (sensor *TC74) Address() devreg.Address {
	return sensor.dev.Address()
}

// GetConfig reads the configuration register.
func (sensor *TC74) GetConfig(ctx context.Context) (TC74Config, error) {
	conf, err := device.Read(ctx, sensor.dev, TC74ConfigRegister)
	if err != nil {
		return conf, fmt.Errorf("tc74: could not read config register: %w", err)
	}
	return conf, nil
}

// GetTemperature reads the current temperature in Celsius. When the sensor
// has no conversion ready the previous reading is returned.
func (sensor *TC74) GetTemperature(ctx context.Context) (float32, error) {
	conf, err := sensor.GetConfig(ctx)
	if err != nil {
		return 0, err
	}
	if !conf.DataReady {
		return sensor.lastTemp, nil
	}
	temp, err := device.Read(ctx, sensor.dev, TC74TemperatureRegister)
	if err != nil {
		return 0, fmt.Errorf("tc74: could not read temp register: %w", err)
	}
	sensor.lastTemp = float32(temp.Celsius)
	return sensor.lastTemp, nil
}

// Standby stops conversions. Supply current drops to 5uA.
func (sensor *TC74) Standby(ctx context.Context) error {
	return sensor.setStandby(ctx, true)
}

func (sensor *TC74) Wake(ctx context.Context) error {
	return sensor.setStandby(ctx, false)
}

func (sensor *TC74) setStandby(ctx context.Context, standby bool) error {
	// DATA_RDY is read-only; writing zero there is ignored by the sensor
	if err := device.Write(ctx, sensor.dev, TC74ConfigRegister, TC74Config{Standby: standby}); err != nil {
		return fmt.Errorf("tc74: could not write config register: %w", err)
	}
	return nil
}

func (sensor *TC74) Close() error {
	return sensor.dev.Close()
}
