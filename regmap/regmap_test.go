package regmap

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/devreg/bitfield"
	"github.com/mklimuk/devreg/device"
	"github.com/mklimuk/devreg/devregtest"
	"github.com/mklimuk/devreg/framing"
	"github.com/mklimuk/devreg/register"
)

func TestBuiltin(t *testing.T) {
	assert.ElementsMatch(t, []string{"tc74", "veml7700"}, BuiltinNames())
	for _, name := range BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			dev, err := Builtin(name)
			require.NoError(t, err)
			assert.Equal(t, name, dev.Name)
			assert.NotEmpty(t, dev.Registers)
		})
	}
	_, err := Builtin("nope")
	assert.Error(t, err)
}

func TestVEML7700Map(t *testing.T) {
	dev, err := Open("veml7700")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x10), dev.Address.Value())
	assert.Equal(t, framing.I2C8, dev.Framing)
	require.Len(t, dev.Registers, 8)

	conf, ok := dev.Register("ALS_CONF")
	require.True(t, ok)
	assert.Equal(t, register.RW, conf.Access())
	assert.Equal(t, bitfield.Values{
		"gain":             2,
		"integration_time": 0,
		"persistence":      0,
		"interrupt_enable": 0,
		"shutdown":         0,
	}, conf.Default())

	values, err := conf.Codec().Decode([]byte{0x00, 0x10})
	require.NoError(t, err)
	layout, ok := dev.Layout("ALS_CONF")
	require.True(t, ok)
	described := Describe(layout, values)
	require.Len(t, described, 5)
	assert.Equal(t, FieldValue{Name: "gain", Raw: 2, Value: "X_1_8"}, described[0])

	id, ok := dev.Register("ID")
	require.True(t, ok)
	values, err = id.Codec().Decode([]byte{0x81, 0xC4})
	require.NoError(t, err)
	assert.Equal(t, bitfield.Values{"address_option": 0xC4, "id": 0x81}, values)

	als, ok := dev.Register("ALS")
	require.True(t, ok)
	values, err = als.Codec().Decode([]byte{0x34, 0x12})
	require.NoError(t, err)
	assert.Equal(t, bitfield.Values{"value": 0x1234}, values)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown framing", "name: x\nframing: usb\n"},
		{"unknown key", "name: x\nspeed: 100\n"},
		{"width mismatch", "name: x\nregisters:\n  - {name: A, address: 0, width: 2, access: r, fields: [{name: a, bits: 8}]}\n"},
		{"duplicate register", "name: x\nregisters:\n  - {name: A, address: 0, width: 1, access: r}\n  - {name: A, address: 1, width: 1, access: r}\n"},
		{"unknown kind", "name: x\nregisters:\n  - {name: A, address: 0, width: 1, access: r, fields: [{name: a, bits: 8, kind: float}]}\n"},
		{"unknown access", "name: x\nregisters:\n  - {name: A, address: 0, width: 1, access: x}\n"},
		{"unknown order", "name: x\nregisters:\n  - {name: A, address: 0, width: 1, access: r, order: lsb1}\n"},
		{"enum without variants", "name: x\nregisters:\n  - {name: A, address: 0, width: 1, access: r, fields: [{name: a, bits: 8, kind: enum}]}\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.doc))
			assert.Error(t, err)
		})
	}
}

func TestParseAssignments(t *testing.T) {
	dev, err := Builtin("veml7700")
	require.NoError(t, err)
	conf, _ := dev.Register("ALS_CONF")
	layout, _ := dev.Layout("ALS_CONF")

	values, err := ParseAssignments(layout, conf.Default(), []string{"gain=x_2", "integration_time=T_25", "shutdown=true"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), values["gain"])
	assert.Equal(t, uint64(0b1100), values["integration_time"])
	assert.Equal(t, uint64(1), values["shutdown"])
	assert.Equal(t, uint64(0), values["persistence"])

	buf, err := conf.Codec().Encode(values)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x0B}, buf)

	_, err = ParseAssignments(layout, nil, []string{"gain"})
	assert.Error(t, err)
	_, err = ParseAssignments(layout, nil, []string{"bogus=1"})
	assert.Error(t, err)
	_, err = ParseAssignments(layout, nil, []string{"shutdown=maybe"})
	assert.Error(t, err)
}

func TestDescribe_SignedField(t *testing.T) {
	dev, err := Builtin("tc74")
	require.NoError(t, err)
	temp, _ := dev.Register("TEMP")
	layout, _ := dev.Layout("TEMP")
	values, err := temp.Codec().Decode([]byte{0xE7})
	require.NoError(t, err)
	assert.Equal(t, []FieldValue{{Name: "celsius", Raw: values["celsius"], Value: "-25"}}, Describe(layout, values))
}

func TestSnapshot(t *testing.T) {
	m, err := Builtin("tc74")
	require.NoError(t, err)
	bus := devregtest.NewRegisters(0x4D)
	bus.Set(0x00, 0x19)
	bus.Set(0x01, 0x40)
	dev := device.NewI2C(bus, m.Address, m.Framing)

	snap, err := m.Dump(context.Background(), dev)
	require.NoError(t, err)
	assert.Equal(t, "tc74", snap.Device)
	assert.Equal(t, uint16(0x4D), snap.Address)
	assert.WithinDuration(t, time.Now(), snap.Taken, time.Minute)
	assert.Equal(t, []RegisterDump{
		{Name: "TEMP", Address: 0x00, Data: []byte{0x19}},
		{Name: "CONFIG", Address: 0x01, Data: []byte{0x40}},
	}, snap.Registers)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, snap))
	decoded, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap.Device, decoded.Device)
	assert.True(t, snap.Taken.Equal(decoded.Taken))
	assert.Equal(t, snap.Registers, decoded.Registers)

	decoded.Registers = append(decoded.Registers, RegisterDump{Name: "GONE", Data: []byte{0x00}})
	regs := m.Decode(decoded)
	require.Len(t, regs, 3)
	require.NoError(t, regs[0].Err)
	assert.Equal(t, uint64(25), regs[0].Values["celsius"])
	require.NoError(t, regs[1].Err)
	assert.Equal(t, bitfield.Values{"standby": 0, "data_ready": 1}, regs[1].Values)
	assert.Error(t, regs[2].Err)
}

func TestReadSnapshot_Garbage(t *testing.T) {
	_, err := ReadSnapshot(bytes.NewReader([]byte{0xFF, 0x00}))
	assert.Error(t, err)
}
