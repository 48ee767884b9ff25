package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/devreg"
)

type fakeHID struct {
	requests  [][]byte
	responses [][]byte
	closed    int
}

func (f *fakeHID) Write(b []byte) (int, error) {
	f.requests = append(f.requests, append([]byte(nil), b...))
	return len(b), nil
}

func (f *fakeHID) Read(b []byte) (int, error) {
	if len(f.responses) == 0 {
		return 0, errors.New("no response")
	}
	copy(b, f.responses[0])
	f.responses = f.responses[1:]
	return len(b), nil
}

func (f *fakeHID) Close() error {
	f.closed++
	return nil
}

func response(prefix ...byte) []byte {
	buf := make([]byte, reportSize)
	copy(buf, prefix)
	return buf
}

func newTestAdapter(fake *fakeHID) *MCP2221 {
	d := NewMCP2221(WithResponseWait(0))
	d.open = func() (hidDevice, error) { return fake, nil }
	return d
}

func TestMCP2221_WriteToAddr(t *testing.T) {
	fake := &fakeHID{responses: [][]byte{response(cmdI2CWrite, 0x00)}}
	d := newTestAdapter(fake)

	err := d.WriteToAddr(context.Background(), 0x10, []byte{0x00, 0x01, 0x00})
	require.NoError(t, err)
	require.Len(t, fake.requests, 1)
	assert.Equal(t, []byte{0x90, 0x03, 0x00, 0x20, 0x00, 0x01, 0x00}, fake.requests[0][:7])
	assert.Equal(t, 1, fake.closed)
}

func TestMCP2221_WriteBusy(t *testing.T) {
	fake := &fakeHID{responses: [][]byte{response(cmdI2CWrite, responseBusy)}}
	d := newTestAdapter(fake)
	err := d.WriteToAddr(context.Background(), 0x10, []byte{0x00})
	assert.ErrorIs(t, err, devreg.ErrBusBusy)
}

func TestMCP2221_ReadFromAddr(t *testing.T) {
	fake := &fakeHID{responses: [][]byte{
		response(cmdI2CRead, 0x00),
		response(cmdI2CReadData, 0x00, 0x00, 0x02, 0xCD, 0xAB),
	}}
	d := newTestAdapter(fake)

	buf := make([]byte, 2)
	err := d.ReadFromAddr(context.Background(), 0x10, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xCD, 0xAB}, buf)
	require.Len(t, fake.requests, 2)
	assert.Equal(t, []byte{0x91, 0x02, 0x00, 0x21}, fake.requests[0][:4])
	assert.Equal(t, byte(0x40), fake.requests[1][0])
}

func TestMCP2221_ReadErrors(t *testing.T) {
	tests := []struct {
		name     string
		response []byte
	}{
		{"engine error", response(cmdI2CReadData, responseReadError)},
		{"invalid size", response(cmdI2CReadData, 0x00, 0x00, responseSizeInvalid)},
		{"size mismatch", response(cmdI2CReadData, 0x00, 0x00, 0x01)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fake := &fakeHID{responses: [][]byte{response(cmdI2CRead, 0x00), test.response}}
			d := newTestAdapter(fake)
			err := d.ReadFromAddr(context.Background(), 0x10, make([]byte, 2))
			assert.Error(t, err)
		})
	}
}

func TestMCP2221_RejectsInvalidTransfers(t *testing.T) {
	fake := &fakeHID{}
	d := newTestAdapter(fake)
	assert.Error(t, d.WriteToAddr(context.Background(), 0x80, []byte{0x00}))
	assert.Error(t, d.ReadFromAddr(context.Background(), 0x10, make([]byte, 61)))
	assert.Empty(t, fake.requests)
}

func TestMCP2221_Status(t *testing.T) {
	res := response(cmdStatus, 0x00)
	copy(res[9:], []byte{0x03, 0x00, 0x02, 0x00, 0x05, 0x1D, 0x40, 0x20, 0x00})
	fake := &fakeHID{responses: [][]byte{res, res}}
	d := newTestAdapter(fake)

	status, err := d.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MCP2221Status{
		LastWriteRequestedSize: 3,
		LastWriteSentSize:      2,
		I2CDataBufferCounter:   5,
		I2CSpeedDivider:        0x1D,
		I2CTimeout:             0x40,
		CurrentAddress:         0x20,
	}, status)
	assert.Equal(t, byte(0x00), fake.requests[0][2])

	require.NoError(t, d.Release(context.Background()))
	assert.Equal(t, byte(statusCancelTransfer), fake.requests[1][2])
}
