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

// VEML7700Address is the only address the sensor answers on.
const VEML7700Address = 0x10

type Gain uint8

const (
	GainX1   Gain = 0b00
	GainX2   Gain = 0b01
	GainX1_8 Gain = 0b10
	GainX1_4 Gain = 0b11
)

func (Gain) Variants() []uint64 { return bitfield.VariantsOf(GainX1, GainX2, GainX1_8, GainX1_4) }

func (g Gain) String() string {
	switch g {
	case GainX1:
		return "X_1"
	case GainX2:
		return "X_2"
	case GainX1_8:
		return "X_1_8"
	case GainX1_4:
		return "X_1_4"
	}
	return fmt.Sprintf("Gain(%d)", uint8(g))
}

type IntegrationTime uint8

const (
	IntegrationTime25ms  IntegrationTime = 0b1100
	IntegrationTime50ms  IntegrationTime = 0b1000
	IntegrationTime100ms IntegrationTime = 0b0000
	IntegrationTime200ms IntegrationTime = 0b0001
	IntegrationTime400ms IntegrationTime = 0b0010
	IntegrationTime800ms IntegrationTime = 0b0011
)

func (IntegrationTime) Variants() []uint64 {
	return bitfield.VariantsOf(IntegrationTime25ms, IntegrationTime50ms, IntegrationTime100ms,
		IntegrationTime200ms, IntegrationTime400ms, IntegrationTime800ms)
}

func (t IntegrationTime) String() string {
	switch t {
	case IntegrationTime25ms:
		return "T_25"
	case IntegrationTime50ms:
		return "T_50"
	case IntegrationTime100ms:
		return "T_100"
	case IntegrationTime200ms:
		return "T_200"
	case IntegrationTime400ms:
		return "T_400"
	case IntegrationTime800ms:
		return "T_800"
	}
	return fmt.Sprintf("IntegrationTime(%d)", uint8(t))
}

// Persistence is the number of consecutive out of window samples raising the
// interrupt.
type Persistence uint8

const (
	PersistenceOne Persistence = iota
	PersistenceTwo
	PersistenceFour
	PersistenceEight
)

func (Persistence) Variants() []uint64 {
	return bitfield.VariantsOf(PersistenceOne, PersistenceTwo, PersistenceFour, PersistenceEight)
}

func (p Persistence) String() string {
	switch p {
	case PersistenceOne:
		return "One"
	case PersistenceTwo:
		return "Two"
	case PersistenceFour:
		return "Four"
	case PersistenceEight:
		return "Eight"
	}
	return fmt.Sprintf("Persistence(%d)", uint8(p))
}

type PowerSavingMode uint8

const (
	PowerSavingMode1 PowerSavingMode = iota
	PowerSavingMode2
	PowerSavingMode3
	PowerSavingMode4
)

func (PowerSavingMode) Variants() []uint64 {
	return bitfield.VariantsOf(PowerSavingMode1, PowerSavingMode2, PowerSavingMode3, PowerSavingMode4)
}

// AddressOption is the slave address option reported in the device ID.
type AddressOption uint8

const (
	AddressOptionX10 AddressOption = 0xC4
	AddressOptionX48 AddressOption = 0xC8
)

func (AddressOption) Variants() []uint64 { return bitfield.VariantsOf(AddressOptionX10, AddressOptionX48) }

// VEML7700Config is the ALS_CONF register. Power-on value is gain 1/8.
type VEML7700Config struct {
	_               uint8           `bits:"3"`
	Gain            Gain            `bits:"2" default:"0b10"`
	_               uint8           `bits:"1"`
	IntegrationTime IntegrationTime `bits:"4"`
	Persistence     Persistence     `bits:"2"`
	_               uint8           `bits:"2"`
	InterruptEnable bool
	Shutdown        bool
}

type VEML7700Threshold struct {
	Value uint16
}

type VEML7700PowerSaving struct {
	_      uint16          `bits:"13"`
	Mode   PowerSavingMode `bits:"2"`
	Enable bool
}

type VEML7700Measurement struct {
	Count uint16
}

type VEML7700InterruptStatus struct {
	ExceededLow  bool
	ExceededHigh bool
	_            uint16 `bits:"14"`
}

type VEML7700DeviceID struct {
	AddressOption AddressOption `default:"0xC4"`
	ID            uint8         `default:"0x81"`
}

// the sensor transfers the low byte first
var veml7700Format = bitfield.MSB0LittleEndian

var (
	VEML7700ConfigRegister        = register.DefineRW[VEML7700Config]("ALS_CONF", 0x00, 2, veml7700Format)
	VEML7700ThresholdHighRegister = register.DefineRW[VEML7700Threshold]("ALS_WH", 0x01, 2, veml7700Format)
	VEML7700ThresholdLowRegister  = register.DefineRW[VEML7700Threshold]("ALS_WL", 0x02, 2, veml7700Format)
	VEML7700PowerSavingRegister   = register.DefineRW[VEML7700PowerSaving]("POWER_SAVING", 0x03, 2, veml7700Format)
	VEML7700ALSRegister           = register.DefineRO[VEML7700Measurement]("ALS", 0x04, 2, veml7700Format)
	VEML7700WhiteRegister         = register.DefineRO[VEML7700Measurement]("WHITE", 0x05, 2, veml7700Format)
	VEML7700InterruptRegister     = register.DefineRO[VEML7700InterruptStatus]("ALS_INT", 0x06, 2, veml7700Format)
	VEML7700DeviceIDRegister      = register.DefineRO[VEML7700DeviceID]("ID", 0x07, 2, veml7700Format)
)

// VEML7700 represents a Vishay VEML7700 ambient light sensor.
// See: https://www.vishay.com/docs/84286/veml7700.pdf
//
// Measurements are raw counts; the lux resolution depends on gain and
// integration time.
type VEML7700 struct {
	dev *device.Device
}

type VEML7700ConfigOption func(*veml7700Config)

type veml7700Config struct {
	address devreg.Address
	opts    []device.Option
}

// WithVEML7700Address places the sensor behind an address translator.
func WithVEML7700Address(address uint16) VEML7700ConfigOption {
	return func(c *veml7700Config) {
		c.address = devreg.CustomAddress(address)
	}
}

func WithVEML7700DeviceOptions(opts ...device.Option) VEML7700ConfigOption {
	return func(c *veml7700Config) {
		c.opts = append(c.opts, opts...)
	}
}

func NewVEML7700(bus devreg.I2CBus, opts ...VEML7700ConfigOption) *VEML7700 {
	config := &veml7700Config{address: devreg.DefaultAddress(VEML7700Address)}
	for _, opt := range opts {
		opt(config)
	}
	return &VEML7700{dev: device.NewI2C(bus, config.address, framing.I2C8, config.opts...)}
}

func (sensor *VEML7700) Address() devreg.Address {
	return sensor.dev.Address()
}

func (sensor *VEML7700) Config(ctx context.Context) (VEML7700Config, error) {
	conf, err := device.Read(ctx, sensor.dev, VEML7700ConfigRegister)
	if err != nil {
		return conf, fmt.Errorf("veml7700: could not read config: %w", err)
	}
	return conf, nil
}

func (sensor *VEML7700) Configure(ctx context.Context, conf VEML7700Config) error {
	if err := device.Write(ctx, sensor.dev, VEML7700ConfigRegister, conf); err != nil {
		return fmt.Errorf("veml7700: could not write config: %w", err)
	}
	return nil
}

// SetThresholds sets the interrupt window in raw ALS counts.
func (sensor *VEML7700) SetThresholds(ctx context.Context, low, high uint16) error {
	if low > high {
		return fmt.Errorf("veml7700: low threshold %d above high threshold %d", low, high)
	}
	if err := device.Write(ctx, sensor.dev, VEML7700ThresholdLowRegister, VEML7700Threshold{Value: low}); err != nil {
		return fmt.Errorf("veml7700: could not write low threshold: %w", err)
	}
	if err := device.Write(ctx, sensor.dev, VEML7700ThresholdHighRegister, VEML7700Threshold{Value: high}); err != nil {
		return fmt.Errorf("veml7700: could not write high threshold: %w", err)
	}
	return nil
}

func (sensor *VEML7700) Thresholds(ctx context.Context) (low, high uint16, err error) {
	l, err := device.Read(ctx, sensor.dev, VEML7700ThresholdLowRegister)
	if err != nil {
		return 0, 0, fmt.Errorf("veml7700: could not read low threshold: %w", err)
	}
	h, err := device.Read(ctx, sensor.dev, VEML7700ThresholdHighRegister)
	if err != nil {
		return 0, 0, fmt.Errorf("veml7700: could not read high threshold: %w", err)
	}
	return l.Value, h.Value, nil
}

func (sensor *VEML7700) SetPowerSaving(ctx context.Context, enable bool, mode PowerSavingMode) error {
	err := device.Write(ctx, sensor.dev, VEML7700PowerSavingRegister, VEML7700PowerSaving{Mode: mode, Enable: enable})
	if err != nil {
		return fmt.Errorf("veml7700: could not write power saving: %w", err)
	}
	return nil
}

// ALS returns the raw ambient light count.
func (sensor *VEML7700) ALS(ctx context.Context) (uint16, error) {
	m, err := device.Read(ctx, sensor.dev, VEML7700ALSRegister)
	if err != nil {
		return 0, fmt.Errorf("veml7700: could not read als: %w", err)
	}
	return m.Count, nil
}

// White returns the raw white channel count.
func (sensor *VEML7700) White(ctx context.Context) (uint16, error) {
	m, err := device.Read(ctx, sensor.dev, VEML7700WhiteRegister)
	if err != nil {
		return 0, fmt.Errorf("veml7700: could not read white: %w", err)
	}
	return m.Count, nil
}

// InterruptStatus reads and thereby clears the threshold flags.
func (sensor *VEML7700) InterruptStatus(ctx context.Context) (VEML7700InterruptStatus, error) {
	status, err := device.Read(ctx, sensor.dev, VEML7700InterruptRegister)
	if err != nil {
		return status, fmt.Errorf("veml7700: could not read interrupt status: %w", err)
	}
	return status, nil
}

func (sensor *VEML7700) DeviceID(ctx context.Context) (VEML7700DeviceID, error) {
	id, err := device.Read(ctx, sensor.dev, VEML7700DeviceIDRegister)
	if err != nil {
		return id, fmt.Errorf("veml7700: could not read device id: %w", err)
	}
	return id, nil
}

// Shutdown stops measurements keeping the rest of the configuration.
func (sensor *VEML7700) Shutdown(ctx context.Context) error {
	return sensor.setShutdown(ctx, true)
}

// Wake resumes measurements. The first result is available after one
// integration time.
func (sensor *VEML7700) Wake(ctx context.Context) error {
	return sensor.setShutdown(ctx, false)
}

func (sensor *VEML7700) setShutdown(ctx context.Context, shutdown bool) error {
	err := device.Modify(ctx, sensor.dev, VEML7700ConfigRegister, func(c *VEML7700Config) {
		c.Shutdown = shutdown
	})
	if err != nil {
		return fmt.Errorf("veml7700: could not update shutdown: %w", err)
	}
	return nil
}

// Resolution returns lux per count for the gain and integration time of
// conf, 0.0042 at gain 2 and 800ms.
func Resolution(conf VEML7700Config) (float64, error) {
	var gain float64
	switch conf.Gain {
	case GainX1:
		gain = 1
	case GainX2:
		gain = 2
	case GainX1_8:
		gain = 0.125
	case GainX1_4:
		gain = 0.25
	default:
		return 0, fmt.Errorf("veml7700: unknown gain %v", conf.Gain)
	}
	var ms float64
	switch conf.IntegrationTime {
	case IntegrationTime25ms:
		ms = 25
	case IntegrationTime50ms:
		ms = 50
	case IntegrationTime100ms:
		ms = 100
	case IntegrationTime200ms:
		ms = 200
	case IntegrationTime400ms:
		ms = 400
	case IntegrationTime800ms:
		ms = 800
	default:
		return 0, fmt.Errorf("veml7700: unknown integration time %v", conf.IntegrationTime)
	}
	return 0.0042 * (2 / gain) * (800 / ms), nil
}

// Lux reads the configuration and the ALS count and converts it. No
// non-linearity correction is applied.
func (sensor *VEML7700) Lux(ctx context.Context) (float64, error) {
	conf, err := sensor.Config(ctx)
	if err != nil {
		return 0, err
	}
	res, err := Resolution(conf)
	if err != nil {
		return 0, err
	}
	count, err := sensor.ALS(ctx)
	if err != nil {
		return 0, err
	}
	return float64(count) * res, nil
}

func (sensor *VEML7700) Close() error {
	return sensor.dev.Close()
}
