package environment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/devreg/devregtest"
)

func TestBH1750_Lux(t *testing.T) {
	tests := []struct {
		name     string
		mode     BH1750Mode
		data     []byte
		expected float64
		lux      int
	}{
		{"low resolution", BH1750LowResolution, []byte{0x01, 0x2C}, 250, 250},
		{"high resolution", BH1750HighResolution, []byte{0x00, 0x0A}, 8.333333, 8},
		{"high resolution 2", BH1750HighResolution2, []byte{0x00, 0x0C}, 5, 5},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bus := new(devregtest.MockI2CBus)
			bus.On("WriteToAddr", mock.Anything, uint16(BH1750AddrLow), []byte{byte(test.mode)}).Return(nil).Twice()
			bus.On("ReadFromAddr", mock.Anything, uint16(BH1750AddrLow), mock.Anything).Return(test.data, nil).Twice()
			sensor := NewBH1750(bus, BH1750AddrLow, WithBH1750Mode(test.mode))

			lux, err := sensor.Lux(context.Background())
			require.NoError(t, err)
			assert.InDelta(t, test.expected, lux, 1e-5)

			whole, err := sensor.GetLux(context.Background())
			require.NoError(t, err)
			assert.Equal(t, test.lux, whole)
			bus.AssertExpectations(t)
		})
	}
}

func TestBH1750_WaitsForConversion(t *testing.T) {
	bus := new(devregtest.MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, uint16(BH1750AddrHigh), mock.Anything).Return(nil)
	bus.On("ReadFromAddr", mock.Anything, uint16(BH1750AddrHigh), mock.Anything).Return([]byte{0, 1}, nil)
	sensor := NewBH1750(bus, BH1750AddrHigh)

	start := time.Now()
	_, err := sensor.Lux(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 24*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = sensor.Lux(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBH1750_Commands(t *testing.T) {
	bus := new(devregtest.MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, uint16(BH1750AddrLow), []byte{0x01}).Return(nil).Once()
	bus.On("WriteToAddr", mock.Anything, uint16(BH1750AddrLow), []byte{0x07}).Return(nil).Once()
	bus.On("WriteToAddr", mock.Anything, uint16(BH1750AddrLow), []byte{0x00}).Return(nil).Once()
	sensor := NewBH1750(bus, BH1750AddrLow)
	ctx := context.Background()

	require.NoError(t, sensor.Reset(ctx))
	require.NoError(t, sensor.PowerDown(ctx))
	bus.AssertExpectations(t)
}

func TestBH1750_WriteError(t *testing.T) {
	bus := new(devregtest.MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, uint16(BH1750AddrLow), mock.Anything).Return(errors.New("nack"))
	sensor := NewBH1750(bus, BH1750AddrLow)

	_, err := sensor.GetLux(context.Background())
	assert.EqualError(t, err, "bh1750: could not write command: nack")
	bus.AssertNotCalled(t, "ReadFromAddr", mock.Anything, mock.Anything, mock.Anything)
}
