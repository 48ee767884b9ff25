package environment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/devreg/bitfield"
	"github.com/mklimuk/devreg/device"
	"github.com/mklimuk/devreg/devregtest"
)

func TestVEML7700_RegisterWidths(t *testing.T) {
	tests := []struct {
		name  string
		width int
		size  int
	}{
		{"ALS_CONF", VEML7700ConfigRegister.Descriptor().Width(), VEML7700ConfigRegister.Descriptor().Codec().Size()},
		{"ALS_WH", VEML7700ThresholdHighRegister.Descriptor().Width(), VEML7700ThresholdHighRegister.Descriptor().Codec().Size()},
		{"ALS_WL", VEML7700ThresholdLowRegister.Descriptor().Width(), VEML7700ThresholdLowRegister.Descriptor().Codec().Size()},
		{"POWER_SAVING", VEML7700PowerSavingRegister.Descriptor().Width(), VEML7700PowerSavingRegister.Descriptor().Codec().Size()},
		{"ALS", VEML7700ALSRegister.Descriptor().Width(), VEML7700ALSRegister.Descriptor().Codec().Size()},
		{"WHITE", VEML7700WhiteRegister.Descriptor().Width(), VEML7700WhiteRegister.Descriptor().Codec().Size()},
		{"ALS_INT", VEML7700InterruptRegister.Descriptor().Width(), VEML7700InterruptRegister.Descriptor().Codec().Size()},
		{"ID", VEML7700DeviceIDRegister.Descriptor().Width(), VEML7700DeviceIDRegister.Descriptor().Codec().Size()},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, 2, test.width)
			assert.Equal(t, test.width, test.size)
		})
	}
}

func TestVEML7700_ConfigEncoding(t *testing.T) {
	codec := VEML7700ConfigRegister.Descriptor().Codec()
	tests := []struct {
		name     string
		given    VEML7700Config
		expected []byte
	}{
		{"power on", VEML7700Config{Gain: GainX1_8}, []byte{0x00, 0x10}},
		{"gain x2", VEML7700Config{Gain: GainX2}, []byte{0x00, 0x08}},
		{"shutdown", VEML7700Config{Shutdown: true}, []byte{0x01, 0x00}},
		{"interrupt", VEML7700Config{InterruptEnable: true, Persistence: PersistenceFour}, []byte{0x22, 0x00}},
		{"25ms", VEML7700Config{IntegrationTime: IntegrationTime25ms}, []byte{0x00, 0x03}},
		{"800ms", VEML7700Config{IntegrationTime: IntegrationTime800ms}, []byte{0xC0, 0x00}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buf, err := codec.Encode(test.given)
			require.NoError(t, err)
			assert.Equal(t, test.expected, buf)
			back, err := codec.Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, test.given, back)
		})
	}
}

func TestVEML7700_Defaults(t *testing.T) {
	assert.Equal(t, VEML7700Config{Gain: GainX1_8}, VEML7700ConfigRegister.Descriptor().Default())
	assert.Equal(t, VEML7700DeviceID{AddressOption: AddressOptionX10, ID: 0x81}, VEML7700DeviceIDRegister.Descriptor().Default())
}

func TestVEML7700_UnknownIntegrationTime(t *testing.T) {
	// 0b0100 is not a valid integration time
	_, err := VEML7700ConfigRegister.Descriptor().Codec().Decode([]byte{0x00, 0x01})
	assert.ErrorIs(t, err, bitfield.ErrUnknownVariant)
}

func TestVEML7700_Configure(t *testing.T) {
	bus := devregtest.NewRegisters(VEML7700Address)
	sensor := NewVEML7700(bus)
	ctx := context.Background()

	err := sensor.Configure(ctx, VEML7700Config{Gain: GainX2, IntegrationTime: IntegrationTime200ms, InterruptEnable: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x42, 0x08}, bus.Get(0x00))

	conf, err := sensor.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, GainX2, conf.Gain)
	assert.Equal(t, IntegrationTime200ms, conf.IntegrationTime)
	assert.True(t, conf.InterruptEnable)
}

func TestVEML7700_ShutdownWake(t *testing.T) {
	bus := devregtest.NewRegisters(VEML7700Address)
	bus.Set(0x00, 0x00, 0x10)
	sensor := NewVEML7700(bus)
	ctx := context.Background()

	require.NoError(t, sensor.Shutdown(ctx))
	assert.Equal(t, []byte{0x01, 0x10}, bus.Get(0x00))
	require.NoError(t, sensor.Wake(ctx))
	assert.Equal(t, []byte{0x00, 0x10}, bus.Get(0x00))
	assert.Equal(t, []string{"00=0110", "00=0010"}, bus.Writes())
}

func TestVEML7700_Thresholds(t *testing.T) {
	bus := devregtest.NewRegisters(VEML7700Address)
	sensor := NewVEML7700(bus)
	ctx := context.Background()

	require.NoError(t, sensor.SetThresholds(ctx, 0x0102, 0xA0B0))
	assert.Equal(t, []string{"02=0201", "01=b0a0"}, bus.Writes())
	low, high, err := sensor.Thresholds(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), low)
	assert.Equal(t, uint16(0xA0B0), high)

	assert.Error(t, sensor.SetThresholds(ctx, 10, 5))
}

func TestVEML7700_Measurements(t *testing.T) {
	bus := devregtest.NewRegisters(VEML7700Address)
	bus.Set(0x04, 0x34, 0x12)
	bus.Set(0x05, 0xFF, 0x00)
	bus.Set(0x06, 0x00, 0x80)
	bus.Set(0x07, 0x81, 0xC4)
	sensor := NewVEML7700(bus)
	ctx := context.Background()

	als, err := sensor.ALS(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), als)

	white, err := sensor.White(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x00FF), white)

	status, err := sensor.InterruptStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, VEML7700InterruptStatus{ExceededLow: true}, status)

	id, err := sensor.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, VEML7700DeviceID{AddressOption: AddressOptionX10, ID: 0x81}, id)
}

func TestVEML7700_PowerSaving(t *testing.T) {
	bus := devregtest.NewRegisters(VEML7700Address)
	sensor := NewVEML7700(bus)

	require.NoError(t, sensor.SetPowerSaving(context.Background(), true, PowerSavingMode3))
	assert.Equal(t, []byte{0x05, 0x00}, bus.Get(0x03))
}

func TestVEML7700_CustomAddress(t *testing.T) {
	bus := devregtest.NewRegisters(0x30)
	bus.Set(0x04, 0x01, 0x00)
	sensor := NewVEML7700(bus, WithVEML7700Address(0x30))
	assert.True(t, sensor.Address().IsCustom())

	als, err := sensor.ALS(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(1), als)
}

func TestVEML7700_BusError(t *testing.T) {
	bus := new(devregtest.MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, uint16(VEML7700Address), []byte{0x04}).Return(errors.New("nack"))
	sensor := NewVEML7700(bus)

	_, err := sensor.ALS(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrBus)
	assert.Contains(t, err.Error(), "veml7700: could not read als")
	bus.AssertExpectations(t)
}

func TestVEML7700_Resolution(t *testing.T) {
	tests := []struct {
		gain     Gain
		it       IntegrationTime
		expected float64
	}{
		{GainX2, IntegrationTime800ms, 0.0042},
		{GainX1, IntegrationTime800ms, 0.0084},
		{GainX2, IntegrationTime100ms, 0.0336},
		{GainX1_8, IntegrationTime25ms, 2.1504},
	}
	for _, test := range tests {
		t.Run(test.gain.String()+"/"+test.it.String(), func(t *testing.T) {
			res, err := Resolution(VEML7700Config{Gain: test.gain, IntegrationTime: test.it})
			require.NoError(t, err)
			assert.InDelta(t, test.expected, res, 1e-9)
		})
	}
	_, err := Resolution(VEML7700Config{IntegrationTime: 0b0111})
	assert.Error(t, err)
}

func TestVEML7700_Lux(t *testing.T) {
	bus := devregtest.NewRegisters(VEML7700Address)
	// gain 2, 100ms
	bus.Set(0x00, 0x00, 0x08)
	bus.Set(0x04, 0xE8, 0x03)
	sensor := NewVEML7700(bus)

	lux, err := sensor.Lux(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 33.6, lux, 1e-6)
}
