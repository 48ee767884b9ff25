package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/devreg"
	"github.com/mklimuk/devreg/async"
	"github.com/mklimuk/devreg/devregtest"
	"github.com/mklimuk/devreg/framing"
	"github.com/mklimuk/devreg/register"
)

// pendingBus holds every transfer until the test completes it.
type pendingBus struct {
	mu      sync.Mutex
	pending []func()
	data    []byte
	err     error
}

func (b *pendingBus) hold(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, fn)
}

// complete finishes the oldest pending transfer.
func (b *pendingBus) complete() bool {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return false
	}
	fn := b.pending[0]
	b.pending = b.pending[1:]
	b.mu.Unlock()
	fn()
	return true
}

func (b *pendingBus) ReadFromAddrAsync(_ context.Context, _ uint16, buffer []byte, done devreg.Done) {
	b.hold(func() {
		copy(buffer, b.data)
		done(b.err)
	})
}

func (b *pendingBus) WriteToAddrAsync(_ context.Context, _ uint16, _ []byte, done devreg.Done) {
	b.hold(func() { done(b.err) })
}

func TestAsyncDevice_Read(t *testing.T) {
	bus := &pendingBus{data: []byte{0x34, 0x12}}
	dev := NewAsyncI2C(bus, devreg.DefaultAddress(0x10), framing.I2C8)

	f := ReadAsync(context.Background(), dev, statusReg)
	assert.False(t, f.Ready())
	assert.True(t, dev.InFlight())

	// address write, then data read
	require.True(t, bus.complete())
	assert.False(t, f.Ready())
	require.True(t, bus.complete())
	require.True(t, f.Ready())

	s, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), s.Value)
	assert.False(t, dev.InFlight())
}

func TestAsyncDevice_RejectsOverlappingTransactions(t *testing.T) {
	bus := &pendingBus{data: []byte{0x00, 0x00}}
	dev := NewAsyncI2C(bus, devreg.DefaultAddress(0x10), framing.I2C8)
	ctx := context.Background()

	first := WriteAsync(ctx, dev, controlReg, control{Level: 1})
	second := ReadAsync(ctx, dev, statusReg)
	require.True(t, second.Ready())
	_, err := second.Result()
	assert.ErrorIs(t, err, ErrInFlight)

	require.True(t, bus.complete())
	_, err = first.Result()
	require.NoError(t, err)

	third := ReadAsync(ctx, dev, statusReg)
	assert.False(t, third.Ready())
}

func TestAsyncDevice_BusError(t *testing.T) {
	busErr := errors.New("timeout")
	bus := &pendingBus{err: busErr}
	dev := NewAsyncI2C(bus, devreg.DefaultAddress(0x10), framing.I2C8)

	f := ReadAsync(context.Background(), dev, statusReg)
	require.True(t, bus.complete())
	require.True(t, f.Ready())
	_, err := f.Result()
	assert.ErrorIs(t, err, ErrBus)
	assert.ErrorIs(t, err, busErr)
	assert.False(t, bus.complete(), "no read after a failed address write")
	assert.False(t, dev.InFlight())
}

func TestAsyncDevice_AccessCheckReleasesHandle(t *testing.T) {
	bus := &pendingBus{}
	dev := NewAsyncI2C(bus, devreg.DefaultAddress(0x10), framing.I2C8)
	f := ReadAsync(context.Background(), dev, commandReg.Descriptor())
	_, err := f.Result()
	assert.ErrorIs(t, err, register.ErrNotReadable)
	assert.False(t, dev.InFlight())
	assert.False(t, bus.complete())
}

func TestAsyncDevice_AbandonedAwait(t *testing.T) {
	bus := &pendingBus{data: []byte{0x01, 0x00}}
	dev := NewAsyncI2C(bus, devreg.DefaultAddress(0x10), framing.I2C8)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	f := ReadAsync(ctx, dev, statusReg)
	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// the transaction is still pending until the transport finishes
	assert.True(t, dev.InFlight())

	for bus.complete() {
	}
	assert.False(t, dev.InFlight())
	s, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), s.Value)
}

func TestAsyncDevice_OnLoop(t *testing.T) {
	regs := devregtest.NewRegisters(0x10)
	regs.Set(0x02, 0xCD, 0xAB)
	loop := async.NewLoop()
	bus := async.I2C(loop, regs)
	dev := NewAsyncI2C(bus, devreg.DefaultAddress(0x10), framing.I2C8)
	defer dev.Close()
	ctx := context.Background()

	_, err := async.Block(ctx, loop, WriteAsync(ctx, dev, controlReg, control{Enable: true, Level: 9}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80, 0x09}, regs.Get(0x01))

	s, err := async.Block(ctx, loop, ReadAsync(ctx, dev, statusReg))
	require.NoError(t, err)
	assert.Equal(t, uint16(0xABCD), s.Value)
}

func TestAsyncDevice_SPIOnLoop(t *testing.T) {
	spi := new(devregtest.MockSPIBus)
	spi.On("WriteRead", mock.Anything, []byte{0x82}, mock.Anything).Return([]byte{0x02, 0x01}, nil).Once()
	loop := async.NewLoop()
	dev := NewAsyncSPI(async.SPI(loop, spi), framing.SPIReadBit7)
	defer dev.Close()

	s, err := async.Block(context.Background(), loop, ReadAsync(context.Background(), dev, statusReg))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), s.Value)
	spi.AssertExpectations(t)
}
