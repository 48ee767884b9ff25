// Package power holds drivers of power monitors.
package power

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/bitfield"
	"github.com/mklimuk/devreg/device"
	"github.com/mklimuk/devreg/framing"
	"github.com/mklimuk/devreg/register"
)

// DefaultINA226Address is the address with A0 and A1 tied to GND.
const DefaultINA226Address = 0x40

const (
	INA226ManufacturerID = 0x5449
	INA226DieID          = 0x226
)

// Resolution of the raw voltage readings.
const (
	ShuntVoltageLSB = 2.5e-6
	BusVoltageLSB   = 1.25e-3
)

var ErrUnknownDevice = errors.New("unknown device")

type Averaging uint8

const (
	Average1 Averaging = iota
	Average4
	Average16
	Average64
	Average128
	Average256
	Average512
	Average1024
)

func (Averaging) Variants() []uint64 {
	return bitfield.VariantsOf(Average1, Average4, Average16, Average64, Average128, Average256, Average512, Average1024)
}

type ConversionTime uint8

const (
	Conversion140us ConversionTime = iota
	Conversion204us
	Conversion332us
	Conversion588us
	Conversion1100us
	Conversion2116us
	Conversion4156us
	Conversion8244us
)

func (ConversionTime) Variants() []uint64 {
	return bitfield.VariantsOf(Conversion140us, Conversion204us, Conversion332us, Conversion588us,
		Conversion1100us, Conversion2116us, Conversion4156us, Conversion8244us)
}

type Mode uint8

const (
	ModePowerDown Mode = iota
	ModeShuntTriggered
	ModeBusTriggered
	ModeShuntBusTriggered
	ModePowerDown2
	ModeShuntContinuous
	ModeBusContinuous
	ModeShuntBusContinuous
)

func (Mode) Variants() []uint64 {
	return bitfield.VariantsOf(ModePowerDown, ModeShuntTriggered, ModeBusTriggered, ModeShuntBusTriggered,
		ModePowerDown2, ModeShuntContinuous, ModeBusContinuous, ModeShuntBusContinuous)
}

func (m Mode) String() string {
	switch m {
	case ModePowerDown, ModePowerDown2:
		return "power-down"
	case ModeShuntTriggered:
		return "shunt-triggered"
	case ModeBusTriggered:
		return "bus-triggered"
	case ModeShuntBusTriggered:
		return "shunt-bus-triggered"
	case ModeShuntContinuous:
		return "shunt-continuous"
	case ModeBusContinuous:
		return "bus-continuous"
	case ModeShuntBusContinuous:
		return "shunt-bus-continuous"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// INA226Config is the configuration register. Power-on value is 0x4127.
type INA226Config struct {
	Reset           bool
	_               uint8          `bits:"3"`
	Averaging       Averaging      `bits:"3"`
	BusConversion   ConversionTime `bits:"3" default:"4"`
	ShuntConversion ConversionTime `bits:"3" default:"4"`
	Mode            Mode           `bits:"3" default:"7"`
}

type INA226Signed struct {
	Value int16
}

type INA226Unsigned struct {
	Value uint16
}

type INA226Calibration struct {
	_     uint8  `bits:"1"`
	Value uint16 `bits:"15"`
}

// INA226MaskEnable selects the alert function and reports the alert flags.
type INA226MaskEnable struct {
	ShuntOverVoltage  bool
	ShuntUnderVoltage bool
	BusOverVoltage    bool
	BusUnderVoltage   bool
	PowerOverLimit    bool
	ConversionReady   bool
	_                 uint8 `bits:"5"`
	AlertFunction     bool
	ConversionFlag    bool
	MathOverflow      bool
	AlertPolarity     bool
	AlertLatch        bool
}

type INA226Manufacturer struct {
	ID uint16 `default:"0x5449"`
}

type INA226Die struct {
	Device   uint16 `bits:"12" default:"0x226"`
	Revision uint8  `bits:"4"`
}

var ina226Format = bitfield.MSB0BigEndian

var (
	INA226ConfigRegister         = register.DefineRW[INA226Config]("CONFIG", 0x00, 2, ina226Format)
	INA226ShuntVoltageRegister   = register.DefineRO[INA226Signed]("SHUNT_VOLTAGE", 0x01, 2, ina226Format)
	INA226BusVoltageRegister     = register.DefineRO[INA226Unsigned]("BUS_VOLTAGE", 0x02, 2, ina226Format)
	INA226PowerRegister          = register.DefineRO[INA226Unsigned]("POWER", 0x03, 2, ina226Format)
	INA226CurrentRegister        = register.DefineRO[INA226Signed]("CURRENT", 0x04, 2, ina226Format)
	INA226CalibrationRegister    = register.DefineRW[INA226Calibration]("CALIBRATION", 0x05, 2, ina226Format)
	INA226MaskEnableRegister     = register.DefineRW[INA226MaskEnable]("MASK_ENABLE", 0x06, 2, ina226Format)
	INA226AlertLimitRegister     = register.DefineRW[INA226Unsigned]("ALERT_LIMIT", 0x07, 2, ina226Format)
	INA226ManufacturerIDRegister = register.DefineRO[INA226Manufacturer]("MANUFACTURER_ID", 0xFE, 2, ina226Format)
	INA226DieIDRegister          = register.DefineRO[INA226Die]("DIE_ID", 0xFF, 2, ina226Format)
)

// INA226 represents a Texas Instruments INA226 current and power monitor.
// See: https://www.ti.com/lit/ds/symlink/ina226.pdf
type INA226 struct {
	dev *device.Device
}

type config struct {
	address devreg.Address
	opts    []device.Option
}

type INA226Option func(*config)

// WithAddress selects one of the 16 pin strapped addresses (0x40 to 0x4F).
func WithAddress(address uint16) INA226Option {
	return func(c *config) {
		c.address = devreg.DefaultAddress(address)
	}
}

func WithDeviceOptions(opts ...device.Option) INA226Option {
	return func(c *config) {
		c.opts = append(c.opts, opts...)
	}
}

func NewINA226(bus devreg.I2CBus, opts ...INA226Option) *INA226 {
	c := &config{address: devreg.DefaultAddress(DefaultINA226Address)}
	for _, opt := range opts {
		opt(c)
	}
	return &INA226{dev: device.NewI2C(bus, c.address, framing.I2C8, c.opts...)}
}

func (m *INA226) Address() devreg.Address {
	return m.dev.Address()
}

// Identify checks the manufacturer and die IDs.
func (m *INA226) Identify(ctx context.Context) error {
	man, err := device.Read(ctx, m.dev, INA226ManufacturerIDRegister)
	if err != nil {
		return fmt.Errorf("ina226: could not read manufacturer id: %w", err)
	}
	die, err := device.Read(ctx, m.dev, INA226DieIDRegister)
	if err != nil {
		return fmt.Errorf("ina226: could not read die id: %w", err)
	}
	if man.ID != INA226ManufacturerID || die.Device != INA226DieID {
		return fmt.Errorf("%w: manufacturer %#04x, die %#03x", ErrUnknownDevice, man.ID, die.Device)
	}
	return nil
}

func (m *INA226) Config(ctx context.Context) (INA226Config, error) {
	conf, err := device.Read(ctx, m.dev, INA226ConfigRegister)
	if err != nil {
		return conf, fmt.Errorf("ina226: could not read config: %w", err)
	}
	return conf, nil
}

func (m *INA226) Configure(ctx context.Context, conf INA226Config) error {
	if err := device.Write(ctx, m.dev, INA226ConfigRegister, conf); err != nil {
		return fmt.Errorf("ina226: could not write config: %w", err)
	}
	return nil
}

// Reset restores the power-on values of all registers.
func (m *INA226) Reset(ctx context.Context) error {
	conf := INA226ConfigRegister.Descriptor().Default()
	conf.Reset = true
	return m.Configure(ctx, conf)
}

// Calibrate programs the calibration register. Current and Power read zero
// until it is set.
func (m *INA226) Calibrate(ctx context.Context, value uint16) error {
	if err := device.Write(ctx, m.dev, INA226CalibrationRegister, INA226Calibration{Value: value}); err != nil {
		return fmt.Errorf("ina226: could not write calibration: %w", err)
	}
	return nil
}

// MaxCalibration is the largest calibration value, bit 15 is reserved.
const MaxCalibration = 0x7FFF

var ErrCalibrationRange = errors.New("calibration out of range")

// CalibrationFor computes the calibration value for a current LSB in amperes
// and a shunt resistance in ohms.
func CalibrationFor(currentLSB, shunt float64) (uint16, error) {
	if !(currentLSB > 0) || !(shunt > 0) {
		return 0, fmt.Errorf("%w: current lsb %g A and shunt %g ohm must be positive", ErrCalibrationRange, currentLSB, shunt)
	}
	// the datasheet truncates; the offset absorbs float error on exact results
	cal := math.Floor(0.00512/(currentLSB*shunt) + 1e-6)
	if cal < 1 || cal > MaxCalibration {
		return 0, fmt.Errorf("%w: %g does not fit 15 bits, adjust the current lsb", ErrCalibrationRange, cal)
	}
	return uint16(cal), nil
}

// ShuntVoltage returns the raw shunt voltage in ShuntVoltageLSB units.
func (m *INA226) ShuntVoltage(ctx context.Context) (int16, error) {
	v, err := device.Read(ctx, m.dev, INA226ShuntVoltageRegister)
	if err != nil {
		return 0, fmt.Errorf("ina226: could not read shunt voltage: %w", err)
	}
	return v.Value, nil
}

// BusVoltage returns the raw bus voltage in BusVoltageLSB units.
func (m *INA226) BusVoltage(ctx context.Context) (uint16, error) {
	v, err := device.Read(ctx, m.dev, INA226BusVoltageRegister)
	if err != nil {
		return 0, fmt.Errorf("ina226: could not read bus voltage: %w", err)
	}
	return v.Value, nil
}

// Current returns the raw current in units of the calibrated current LSB.
func (m *INA226) Current(ctx context.Context) (int16, error) {
	v, err := device.Read(ctx, m.dev, INA226CurrentRegister)
	if err != nil {
		return 0, fmt.Errorf("ina226: could not read current: %w", err)
	}
	return v.Value, nil
}

// Power returns the raw power in units of 25 current LSBs.
func (m *INA226) Power(ctx context.Context) (uint16, error) {
	v, err := device.Read(ctx, m.dev, INA226PowerRegister)
	if err != nil {
		return 0, fmt.Errorf("ina226: could not read power: %w", err)
	}
	return v.Value, nil
}

// SetAlert selects the alert function and its limit. The limit is compared
// with the raw value of the selected measurement.
func (m *INA226) SetAlert(ctx context.Context, mask INA226MaskEnable, limit uint16) error {
	if err := device.Write(ctx, m.dev, INA226AlertLimitRegister, INA226Unsigned{Value: limit}); err != nil {
		return fmt.Errorf("ina226: could not write alert limit: %w", err)
	}
	if err := device.Write(ctx, m.dev, INA226MaskEnableRegister, mask); err != nil {
		return fmt.Errorf("ina226: could not write mask/enable: %w", err)
	}
	return nil
}

// Alerts reads the mask/enable register. Reading clears a latched alert.
func (m *INA226) Alerts(ctx context.Context) (INA226MaskEnable, error) {
	mask, err := device.Read(ctx, m.dev, INA226MaskEnableRegister)
	if err != nil {
		return mask, fmt.Errorf("ina226: could not read mask/enable: %w", err)
	}
	return mask, nil
}

func (m *INA226) Close() error {
	return m.dev.Close()
}
