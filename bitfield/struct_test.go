package bitfield

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gain uint8

const (
	gainX1   gain = 0b00
	gainX2   gain = 0b01
	gainX1_8 gain = 0b10
	gainX1_4 gain = 0b11
)

func (gain) Variants() []uint64 { return VariantsOf(gainX1, gainX2, gainX1_8, gainX1_4) }

func (g gain) String() string {
	switch g {
	case gainX1:
		return "X_1"
	case gainX2:
		return "X_2"
	case gainX1_8:
		return "X_1_8"
	case gainX1_4:
		return "X_1_4"
	}
	return "unknown"
}

type integrationTime uint8

const (
	t25  integrationTime = 0b1100
	t50  integrationTime = 0b1000
	t100 integrationTime = 0b0000
	t200 integrationTime = 0b0001
	t400 integrationTime = 0b0010
	t800 integrationTime = 0b0011
)

func (integrationTime) Variants() []uint64 {
	return VariantsOf(t25, t50, t100, t200, t400, t800)
}

type thresholdCount uint8

const (
	countOne thresholdCount = iota
	countTwo
	countFour
	countEight
)

func (thresholdCount) Variants() []uint64 {
	return VariantsOf(countOne, countTwo, countFour, countEight)
}

type alsConfig struct {
	_               uint8           `bits:"3"`
	Gain            gain            `bits:"2" default:"0b10"`
	_               uint8           `bits:"1"`
	IntegrationTime integrationTime `bits:"4"`
	Persistence     thresholdCount  `bits:"2"`
	_               uint8           `bits:"2"`
	InterruptEnable bool
	Shutdown        bool
}

type powerConfig struct {
	Reset        bool
	_            uint8  `bits:"3"`
	Averaging    uint8  `bits:"3"`
	BusTime      uint8  `bits:"3"`
	ShuntTime    uint8  `bits:"3" default:"4"`
	OperatingMod uint8  `bits:"3" default:"7"`
	Shunt        int16  `bits:"16"`
	Calibration  uint16 `bits:"15"`
	_            uint8  `bits:"1"`
}

func TestStructCodec_ALSConfig(t *testing.T) {
	c, err := Compile[alsConfig](MSB0BigEndian)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Size())
	assert.Equal(t, "alsConfig", c.Layout().Name())

	tests := []struct {
		name     string
		given    alsConfig
		expected []byte
	}{
		{"default gain 1/8", alsConfig{Gain: gainX1_8, IntegrationTime: t100, Persistence: countOne}, []byte{0x10, 0x00}},
		{"gain 2", alsConfig{Gain: gainX2, IntegrationTime: t100, Persistence: countOne}, []byte{0x08, 0x00}},
		{"integration 25ms", alsConfig{Gain: gainX1, IntegrationTime: t25}, []byte{0x03, 0x00}},
		{"persistence eight", alsConfig{Persistence: countEight}, []byte{0x00, 0x30}},
		{"interrupt and shutdown", alsConfig{InterruptEnable: true, Shutdown: true}, []byte{0x00, 0x03}},
		{"everything set", alsConfig{Gain: gainX1_4, IntegrationTime: t800, Persistence: countFour, Shutdown: true}, []byte{0x18, 0xE1}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buf, err := c.Encode(test.given)
			require.NoError(t, err)
			assert.Equal(t, test.expected, buf)
			decoded, err := c.Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, test.given, decoded)
		})
	}
}

func TestStructCodec_Default(t *testing.T) {
	c := MustCompile[alsConfig](MSB0BigEndian)
	def := c.Default()
	assert.Equal(t, gainX1_8, def.Gain)
	buf, err := c.Encode(def)
	require.NoError(t, err)
	assert.Len(t, buf, c.Size())
	assert.Equal(t, []byte{0x10, 0x00}, buf)
}

func TestStructCodec_UnknownVariant(t *testing.T) {
	c := MustCompile[alsConfig](MSB0BigEndian)
	// integration time 0b0101 is not listed
	_, err := c.Decode([]byte{0x01, 0x40})
	require.ErrorIs(t, err, ErrUnknownVariant)
	var codecErr *CodecError
	require.ErrorAs(t, err, &codecErr)
	assert.Equal(t, "IntegrationTime", codecErr.Field)

	_, err = c.Encode(alsConfig{IntegrationTime: integrationTime(0b0111)})
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestStructCodec_SignedAndNarrowIntegers(t *testing.T) {
	c := MustCompile[powerConfig](MSB0BigEndian)
	assert.Equal(t, 6, c.Size())

	def := c.Default()
	assert.Equal(t, uint8(4), def.ShuntTime)
	assert.Equal(t, uint8(7), def.OperatingMod)

	given := powerConfig{Reset: true, Averaging: 3, BusTime: 4, ShuntTime: 4, OperatingMod: 7, Shunt: -2, Calibration: 0x1234}
	buf, err := c.Encode(given)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x87, 0x27, 0xFF, 0xFE, 0x24, 0x68}, buf)
	decoded, err := c.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, given, decoded)

	_, err = c.Encode(powerConfig{Averaging: 8})
	assert.ErrorIs(t, err, ErrWidthMismatch)
}

func TestCompile_DefinitionErrors(t *testing.T) {
	type partialByte struct {
		A uint8 `bits:"7"`
	}
	type untaggedReserved struct {
		_ uint8
		A uint8
	}
	type unsupported struct {
		A float32
	}
	type unexported struct {
		a uint8
	}
	type tooWide struct {
		A uint8 `bits:"9"`
		_ uint8 `bits:"7"`
	}
	type signedEnum struct {
		A badEnum
	}
	type badDefault struct {
		A uint8 `default:"nope"`
	}

	_, err := Compile[partialByte](MSB0BigEndian)
	assert.ErrorIs(t, err, ErrWidthMismatch)
	_, err = Compile[untaggedReserved](MSB0BigEndian)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	_, err = Compile[unsupported](MSB0BigEndian)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	_, err = Compile[unexported](MSB0BigEndian)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	_, err = Compile[tooWide](MSB0BigEndian)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	_, err = Compile[signedEnum](MSB0BigEndian)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	_, err = Compile[badDefault](MSB0BigEndian)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	_, err = Compile[int](MSB0BigEndian)
	assert.ErrorIs(t, err, ErrInvalidLayout)

	assert.Panics(t, func() { MustCompile[partialByte](MSB0BigEndian) })
}

type badEnum int8

func (badEnum) Variants() []uint64 { return []uint64{0} }

func TestStructCodec_EnumNames(t *testing.T) {
	c := MustCompile[alsConfig](MSB0BigEndian)
	f, ok := c.Layout().Field("Gain")
	require.True(t, ok)
	assert.Equal(t, KindEnum, f.Kind)
	v, ok := f.Variant(0b10)
	require.True(t, ok)
	assert.Equal(t, "X_1_8", v.Name)

	f, ok = c.Layout().Field("IntegrationTime")
	require.True(t, ok)
	v, ok = f.Variant(0b1100)
	require.True(t, ok)
	assert.Equal(t, "12", v.Name)
}
