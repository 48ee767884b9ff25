package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/devreg/adapter"
	"github.com/mklimuk/devreg/bitfield"
	"github.com/mklimuk/devreg/cmd/devreg/console"
	"github.com/mklimuk/devreg/device"
	"github.com/mklimuk/devreg/devregtest"
	"github.com/mklimuk/devreg/regmap"
)

// status commands pass bridge methods straight to mcp2221Status
var (
	_ = mcp2221Status
	_ func(*adapter.MCP2221, context.Context) (adapter.MCP2221Status, error) = (*adapter.MCP2221).Status
	_ func(*adapter.MCP2221, context.Context) (adapter.MCP2221Status, error) = (*adapter.MCP2221).ReleaseBus
)

func init() {
	color.NoColor = true
}

func TestSelectRegisters(t *testing.T) {
	m, err := regmap.Builtin("veml7700")
	require.NoError(t, err)

	all, err := selectRegisters(m, nil)
	require.NoError(t, err)
	assert.Len(t, all, len(m.Registers))

	some, err := selectRegisters(m, []string{"ALS", "ALS_CONF"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "ALS", some[0].Name())
	assert.Equal(t, "ALS_CONF", some[1].Name())

	_, err = selectRegisters(m, []string{"LUX"})
	assert.EqualError(t, err, `map veml7700 has no register "LUX"`)
}

func TestListRegisters(t *testing.T) {
	m, err := regmap.Builtin("tc74")
	require.NoError(t, err)

	var out bytes.Buffer
	listRegisters(&out, m)
	assert.Contains(t, out.String(), "NAME")
	assert.Regexp(t, `TEMP\s+0x00\s+1\s+r\s+celsius:8`, out.String())
	assert.Regexp(t, `CONFIG\s+0x01\s+1\s+rw\s+standby:1 data_ready:1`, out.String())
}

func TestPrintRegister(t *testing.T) {
	m, err := regmap.Builtin("veml7700")
	require.NoError(t, err)
	desc, layout, err := lookupRegister(m, "ALS_CONF")
	require.NoError(t, err)
	values := bitfield.Values{"gain": 1, "integration_time": 3, "persistence": 0, "interrupt_enable": 0, "shutdown": 1}

	var out bytes.Buffer
	printRegister(context.Background(), &out, desc, layout, values, []byte{0xC1, 0x08})
	assert.Regexp(t, `(?m)^ALS_CONF$`, out.String())
	assert.Regexp(t, `gain\s+X_2`, out.String())
	assert.Regexp(t, `integration_time\s+T_800`, out.String())
	assert.Regexp(t, `shutdown\s+true`, out.String())

	out.Reset()
	printRegister(console.SetVerbose(context.Background(), true), &out, desc, layout, values, []byte{0xC1, 0x08})
	assert.Contains(t, out.String(), "ALS_CONF c108")
}

func TestParseAddress(t *testing.T) {
	addr, err := parseAddress("0x4d")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x4D), addr)

	addr, err = parseAddress("16")
	require.NoError(t, err)
	assert.Equal(t, uint16(16), addr)

	_, err = parseAddress("zz")
	assert.Error(t, err)
}

func TestReadRegister(t *testing.T) {
	m, err := regmap.Builtin("veml7700")
	require.NoError(t, err)
	desc, _, err := lookupRegister(m, "ALS_CONF")
	require.NoError(t, err)

	tests := []struct {
		name     string
		stored   []byte
		expected bitfield.Values
		errKind  error
	}{
		{
			name:     "decoded",
			stored:   []byte{0xC1, 0x08},
			expected: bitfield.Values{"gain": 1, "integration_time": 3, "persistence": 0, "interrupt_enable": 0, "shutdown": 1},
		},
		{
			name:    "unknown integration time",
			stored:  []byte{0xC0, 0x01},
			errKind: device.ErrCodec,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bus := devregtest.NewRegisters(m.Address.Value())
			bus.Set(0x00, test.stored...)
			dev := device.NewI2C(bus, m.Address, m.Framing)

			values, raw, err := readRegister(context.Background(), dev, desc)
			if test.errKind != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.errKind)
				assert.ErrorIs(t, err, bitfield.ErrUnknownVariant)
				assert.Equal(t, console.ExitCodec, console.ExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, values)
			assert.Equal(t, test.stored, raw)
		})
	}
}
