package power

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/devreg/devregtest"
)

func TestINA226_RegisterWidths(t *testing.T) {
	sizes := map[string][2]int{
		"CONFIG":          {INA226ConfigRegister.Descriptor().Width(), INA226ConfigRegister.Descriptor().Codec().Size()},
		"SHUNT_VOLTAGE":   {INA226ShuntVoltageRegister.Descriptor().Width(), INA226ShuntVoltageRegister.Descriptor().Codec().Size()},
		"BUS_VOLTAGE":     {INA226BusVoltageRegister.Descriptor().Width(), INA226BusVoltageRegister.Descriptor().Codec().Size()},
		"POWER":           {INA226PowerRegister.Descriptor().Width(), INA226PowerRegister.Descriptor().Codec().Size()},
		"CURRENT":         {INA226CurrentRegister.Descriptor().Width(), INA226CurrentRegister.Descriptor().Codec().Size()},
		"CALIBRATION":     {INA226CalibrationRegister.Descriptor().Width(), INA226CalibrationRegister.Descriptor().Codec().Size()},
		"MASK_ENABLE":     {INA226MaskEnableRegister.Descriptor().Width(), INA226MaskEnableRegister.Descriptor().Codec().Size()},
		"ALERT_LIMIT":     {INA226AlertLimitRegister.Descriptor().Width(), INA226AlertLimitRegister.Descriptor().Codec().Size()},
		"MANUFACTURER_ID": {INA226ManufacturerIDRegister.Descriptor().Width(), INA226ManufacturerIDRegister.Descriptor().Codec().Size()},
		"DIE_ID":          {INA226DieIDRegister.Descriptor().Width(), INA226DieIDRegister.Descriptor().Codec().Size()},
	}
	for name, size := range sizes {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, size[0], size[1])
		})
	}
}

func TestINA226_ConfigDefault(t *testing.T) {
	conf, err := INA226ConfigRegister.Descriptor().Codec().Decode([]byte{0x41, 0x27})
	require.NoError(t, err)
	assert.Equal(t, INA226ConfigRegister.Descriptor().Default(), conf)
	assert.Equal(t, INA226Config{BusConversion: Conversion1100us, ShuntConversion: Conversion1100us, Mode: ModeShuntBusContinuous}, conf)
}

func TestINA226_Identify(t *testing.T) {
	tests := []struct {
		name  string
		man   []byte
		die   []byte
		valid bool
	}{
		{"ina226", []byte{0x54, 0x49}, []byte{0x22, 0x60}, true},
		{"ina219 die", []byte{0x54, 0x49}, []byte{0x21, 0x90}, false},
		{"foreign", []byte{0x12, 0x34}, []byte{0x22, 0x60}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bus := devregtest.NewRegisters(DefaultINA226Address)
			bus.Set(0xFE, test.man...)
			bus.Set(0xFF, test.die...)
			err := NewINA226(bus).Identify(context.Background())
			if test.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrUnknownDevice)
		})
	}
}

func TestINA226_Configure(t *testing.T) {
	bus := devregtest.NewRegisters(0x45)
	m := NewINA226(bus, WithAddress(0x45))
	ctx := context.Background()

	err := m.Configure(ctx, INA226Config{
		Averaging:       Average16,
		BusConversion:   Conversion1100us,
		ShuntConversion: Conversion1100us,
		Mode:            ModeShuntBusContinuous,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x27}, bus.Get(0x00))

	require.NoError(t, m.Reset(ctx))
	assert.Equal(t, []byte{0x81, 0x27}, bus.Get(0x00))
}

func TestINA226_Measurements(t *testing.T) {
	bus := devregtest.NewRegisters(DefaultINA226Address)
	bus.Set(0x01, 0xFF, 0x38)
	bus.Set(0x02, 0x25, 0x80)
	bus.Set(0x03, 0x00, 0x64)
	bus.Set(0x04, 0xFF, 0x9C)
	m := NewINA226(bus)
	ctx := context.Background()

	shunt, err := m.ShuntVoltage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int16(-200), shunt)

	volts, err := m.BusVoltage(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x2580), volts)
	assert.InDelta(t, 12.0, float64(volts)*BusVoltageLSB, 1e-9)

	power, err := m.Power(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(100), power)

	current, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int16(-100), current)
}

func TestINA226_CalibrateAndAlert(t *testing.T) {
	bus := devregtest.NewRegisters(DefaultINA226Address)
	m := NewINA226(bus)
	ctx := context.Background()

	cal, err := CalibrationFor(0.001, 0.1)
	require.NoError(t, err)
	assert.Equal(t, uint16(51), cal)
	require.NoError(t, m.Calibrate(ctx, cal))

	require.NoError(t, m.SetAlert(ctx, INA226MaskEnable{BusOverVoltage: true, AlertLatch: true}, 0x2580))
	assert.Equal(t, []string{"05=0033", "07=2580", "06=2001"}, bus.Writes())

	bus.Set(0x06, 0x20, 0x11)
	alerts, err := m.Alerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, INA226MaskEnable{BusOverVoltage: true, AlertFunction: true, AlertLatch: true}, alerts)
}

func TestCalibrationFor(t *testing.T) {
	tests := []struct {
		name       string
		currentLSB float64
		shunt      float64
		expected   uint16
		fails      bool
	}{
		{name: "datasheet example", currentLSB: 0.0001, shunt: 0.1, expected: 512},
		{name: "largest value", currentLSB: 0.00512 / MaxCalibration, shunt: 1, expected: MaxCalibration},
		{name: "zero lsb", currentLSB: 0, shunt: 0.1, fails: true},
		{name: "negative shunt", currentLSB: 0.001, shunt: -0.1, fails: true},
		{name: "reserved bit", currentLSB: 0.000001, shunt: 0.01, fails: true},
		{name: "below one", currentLSB: 1, shunt: 1, fails: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cal, err := CalibrationFor(test.currentLSB, test.shunt)
			if test.fails {
				assert.ErrorIs(t, err, ErrCalibrationRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, cal)
		})
	}
}
