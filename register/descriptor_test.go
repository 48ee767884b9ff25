package register

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/devreg/bitfield"
)

type threshold struct {
	Value uint16
}

type deviceID struct {
	Option uint8 `default:"0xC4"`
	ID     uint8 `default:"0x81"`
}

type nibble struct {
	Value uint8 `bits:"4"`
	_     uint8 `bits:"4"`
}

func TestDefine(t *testing.T) {
	ro := DefineRO[deviceID]("ID", 0x07, 2, bitfield.MSB0LittleEndian)
	d := ro.Descriptor()
	assert.Equal(t, "ID", d.Name())
	assert.Equal(t, uint32(0x07), d.Address())
	assert.Equal(t, 2, d.Width())
	assert.Equal(t, Read, d.Access())
	assert.Equal(t, 2, d.Codec().Size())
	assert.Equal(t, "ID@0x7[2]r", d.String())
	assert.Equal(t, deviceID{Option: 0xC4, ID: 0x81}, d.Default())

	wo := DefineWO[threshold]("TH", 0x01, 2, bitfield.MSB0BigEndian)
	assert.Equal(t, Write, wo.Descriptor().Access())

	rw := DefineRW[nibble]("N", 0x10, 1, bitfield.LSB0BigEndian)
	assert.Equal(t, RW, rw.Descriptor().Access())
}

func TestDefine_WidthMismatchPanics(t *testing.T) {
	assert.PanicsWithError(t, "register TH: TH: width mismatch: want 1, got 2", func() {
		DefineRW[threshold]("TH", 0x01, 1, bitfield.MSB0BigEndian)
	})
	assert.Panics(t, func() {
		DefineRO[struct{ A float64 }]("BAD", 0x00, 8, bitfield.MSB0BigEndian)
	})
}

func TestNew(t *testing.T) {
	layout := bitfield.MustLayout("STATUS", 1, bitfield.MSB0BigEndian,
		bitfield.Field{Name: "ready", Kind: bitfield.KindBool, Width: 1},
		bitfield.Field{Kind: bitfield.KindReserved, Width: 7},
	)
	d, err := New[bitfield.Values]("STATUS", 0x00, 1, Read, layout)
	require.NoError(t, err)
	assert.Equal(t, bitfield.Values{"ready": 0}, d.Default())

	_, err = New[bitfield.Values]("STATUS", 0x00, 2, Read, layout)
	assert.ErrorIs(t, err, bitfield.ErrWidthMismatch)

	_, err = New[bitfield.Values]("STATUS", 0x00, 1, 0, layout)
	assert.Error(t, err)
	_, err = New[bitfield.Values]("STATUS", 0x00, 1, 8, layout)
	assert.Error(t, err)
}

func TestDescriptor_CheckAccess(t *testing.T) {
	tests := []struct {
		access   Access
		readErr  error
		writeErr error
	}{
		{Read, nil, ErrNotWritable},
		{Write, ErrNotReadable, nil},
		{RW, nil, nil},
	}
	for _, test := range tests {
		t.Run(test.access.String(), func(t *testing.T) {
			d, err := New[nibble]("N", 0x00, 1, test.access, bitfield.MustCompile[nibble](bitfield.MSB0BigEndian))
			require.NoError(t, err)
			if test.readErr == nil {
				assert.NoError(t, d.CheckRead())
			} else {
				assert.ErrorIs(t, d.CheckRead(), test.readErr)
			}
			if test.writeErr == nil {
				assert.NoError(t, d.CheckWrite())
			} else {
				assert.ErrorIs(t, d.CheckWrite(), test.writeErr)
			}
		})
	}
}

func TestHandles_SatisfyAccessInterfaces(t *testing.T) {
	var (
		_ Readable[deviceID]  = ReadOnly[deviceID]{}
		_ Writable[threshold] = WriteOnly[threshold]{}
		_ Readable[nibble]    = ReadWrite[nibble]{}
		_ Writable[nibble]    = ReadWrite[nibble]{}
		_ Readable[nibble]    = (*Descriptor[nibble])(nil)
		_ Writable[nibble]    = (*Descriptor[nibble])(nil)
	)
}

func TestParseAccess(t *testing.T) {
	tests := []struct {
		given    string
		expected Access
	}{
		{"r", Read},
		{"ro", Read},
		{"w", Write},
		{"rw", RW},
		{"read-write", RW},
	}
	for _, test := range tests {
		t.Run(test.given, func(t *testing.T) {
			a, err := ParseAccess(test.given)
			require.NoError(t, err)
			assert.Equal(t, test.expected, a)
		})
	}
	_, err := ParseAccess("x")
	assert.Error(t, err)
}
