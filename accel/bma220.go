package accel

import (
	"context"
	"fmt"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/bitfield"
	"github.com/mklimuk/devreg/device"
	"github.com/mklimuk/devreg/framing"
	"github.com/mklimuk/devreg/register"
)

const addr = 0x0A

const bma220ChipID = 0xDD

type Range uint8

const (
	Range2G Range = iota
	Range4G
	Range8G
	Range16G
)

func (Range) Variants() []uint64 { return bitfield.VariantsOf(Range2G, Range4G, Range8G, Range16G) }

// Latch is how long an interrupt stays asserted.
type Latch uint8

const (
	LatchNone Latch = iota
	Latch250ms
	Latch500ms
	Latch1s
	Latch2s
	Latch4s
	Latch8s
	LatchPermanent
)

func (Latch) Variants() []uint64 {
	return bitfield.VariantsOf(LatchNone, Latch250ms, Latch500ms, Latch1s, Latch2s, Latch4s, Latch8s, LatchPermanent)
}

type ChipID struct {
	ID uint8 `default:"0xDD"`
}

type RangeConfig struct {
	_     uint8 `bits:"6"`
	Range Range `bits:"2"`
}

// LatchConfig is lat_int[2:0] with the reset_int strobe on top.
type LatchConfig struct {
	ResetInterrupt bool
	Latch          Latch `bits:"3"`
	_              uint8 `bits:"4"`
}

// SlopeSettings: slope_filt, slope_th[3:0] and slope_dur[1:0]. A duration of
// n requires n+1 consecutive samples above the threshold.
type SlopeSettings struct {
	_         uint8 `bits:"1"`
	Filtered  bool
	Threshold uint8 `bits:"4"`
	Duration  uint8 `bits:"2"`
}

type SlopeEnable struct {
	_ uint8 `bits:"2"`
	X bool
	Y bool
	Z bool
	_ uint8 `bits:"3"`
}

// Watchdog configures the I2C watchdog timeout, 1ms or 10ms.
type Watchdog struct {
	_       uint8 `bits:"5"`
	Enable  bool
	Timeout bool
	SPI3    bool
}

type InterruptStatus struct {
	_     uint8 `bits:"7"`
	Slope bool
}

var bma220Format = bitfield.MSB0BigEndian

var (
	ChipIDRegister          = register.DefineRO[ChipID]("CHIP_ID", 0x00, 1, bma220Format)
	SlopeSettingsRegister   = register.DefineRW[SlopeSettings]("SLOPE", 0x12, 1, bma220Format)
	InterruptStatusRegister = register.DefineRO[InterruptStatus]("INT_STATUS", 0x18, 1, bma220Format)
	SlopeEnableRegister     = register.DefineRW[SlopeEnable]("SLOPE_EN", 0x1A, 1, bma220Format)
	LatchRegister           = register.DefineRW[LatchConfig]("LATCH", 0x1C, 1, bma220Format)
	RangeRegister           = register.DefineRW[RangeConfig]("RANGE", 0x22, 1, bma220Format)
	WatchdogRegister        = register.DefineRW[Watchdog]("WATCHDOG", 0x2E, 1, bma220Format)
)

// BMA220 represents Bosh BMA220 accelerometer
type BMA220 struct {
	dev *device.Device
}

func NewBMA220(bus devreg.I2CBus, opts ...device.Option) *BMA220 {
	return &BMA220{dev: device.NewI2C(bus, devreg.DefaultAddress(addr), framing.I2C8, opts...)}
}

func (b *BMA220) ChipID(ctx context.Context) (uint8, error) {
	id, err := device.Read(ctx, b.dev, ChipIDRegister)
	if err != nil {
		return 0, fmt.Errorf("could not read chip id: %w", err)
	}
	return id.ID, nil
}

// InitMotionDetection sets the widest range, a permanent interrupt latch and
// slope detection on all axes with the default slope settings.
func (b *BMA220) InitMotionDetection(ctx context.Context) error {
	err := device.Write(ctx, b.dev, RangeRegister, RangeConfig{Range: Range16G})
	if err != nil {
		return fmt.Errorf("could not set detection sensitivity: %w", err)
	}
	err = device.Write(ctx, b.dev, LatchRegister, LatchConfig{Latch: LatchPermanent})
	if err != nil {
		return fmt.Errorf("could not set interrupt settings: %w", err)
	}
	err = device.Write(ctx, b.dev, SlopeEnableRegister, SlopeEnable{X: true, Y: true, Z: true})
	if err != nil {
		return fmt.Errorf("could not enable slope detection: %w", err)
	}
	err = device.Write(ctx, b.dev, SlopeSettingsRegister, SlopeSettings{Filtered: true, Threshold: 1, Duration: 1})
	if err != nil {
		return fmt.Errorf("could not set slope detection settings: %w", err)
	}
	err = device.Write(ctx, b.dev, WatchdogRegister, Watchdog{Enable: true, Timeout: true})
	if err != nil {
		return fmt.Errorf("could not set watchdog settings: %w", err)
	}
	return nil
}

// CheckMotionInterrupt returns 1 when slope detection has fired.
func (b *BMA220) CheckMotionInterrupt(ctx context.Context) (int, error) {
	status, err := device.Read(ctx, b.dev, InterruptStatusRegister)
	if err != nil {
		return 0, fmt.Errorf("could not read interrupt status: %w", err)
	}
	if status.Slope {
		return 1, nil
	}
	return 0, nil
}

func (b *BMA220) ResetMotionInterrupt(ctx context.Context) error {
	err := device.Write(ctx, b.dev, LatchRegister, LatchConfig{ResetInterrupt: true, Latch: LatchPermanent})
	if err != nil {
		return fmt.Errorf("could not set interrupt settings: %w", err)
	}
	return nil
}

func (b *BMA220) Close() error {
	return b.dev.Close()
}
