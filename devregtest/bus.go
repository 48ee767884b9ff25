// Package devregtest provides bus doubles for driver and device tests.
package devregtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/mklimuk/devreg"
)

// MockI2CBus is a mock implementation of devreg.I2CBus using testify/mock.
// ReadFromAddr expectations return the bytes to copy into the buffer and an
// error.
type MockI2CBus struct {
	mock.Mock
	concurrentOps int64
	maxConcurrent int64
}

var _ devreg.I2CBus = (*MockI2CBus)(nil)

func (m *MockI2CBus) enter() {
	concurrent := atomic.AddInt64(&m.concurrentOps, 1)
	for {
		seen := atomic.LoadInt64(&m.maxConcurrent)
		if concurrent <= seen || atomic.CompareAndSwapInt64(&m.maxConcurrent, seen, concurrent) {
			return
		}
	}
}

func (m *MockI2CBus) leave() {
	atomic.AddInt64(&m.concurrentOps, -1)
}

// MaxConcurrent reports the highest number of overlapping bus calls seen.
func (m *MockI2CBus) MaxConcurrent() int64 {
	return atomic.LoadInt64(&m.maxConcurrent)
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address uint16, buffer []byte) error {
	m.enter()
	defer m.leave()
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address uint16, buffer []byte) error {
	m.enter()
	defer m.leave()
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockSPIBus is a mock implementation of devreg.SPIBus. WriteRead
// expectations return the bytes to copy into r and an error.
type MockSPIBus struct {
	mock.Mock
}

var _ devreg.SPIBus = (*MockSPIBus)(nil)

func (m *MockSPIBus) Write(ctx context.Context, buffer []byte) error {
	args := m.Called(ctx, buffer)
	return args.Error(0)
}

func (m *MockSPIBus) WriteRead(ctx context.Context, w, r []byte) error {
	args := m.Called(ctx, w, r)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(r) {
		copy(r, data)
	}
	return args.Error(1)
}

// Registers simulates a device with an 8-bit register pointer: a write sets
// the pointer from its first byte and stores the rest, a read returns what is
// stored at the pointer.
type Registers struct {
	Address uint16
	mu      sync.Mutex
	pointer byte
	values  map[byte][]byte
	writes  []string
}

var _ devreg.I2CBus = (*Registers)(nil)

func NewRegisters(address uint16) *Registers {
	return &Registers{Address: address, values: make(map[byte][]byte)}
}

// Set preloads the bytes of register reg.
func (r *Registers) Set(reg byte, data ...byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[reg] = append([]byte(nil), data...)
}

// Get returns the bytes last written to reg.
func (r *Registers) Get(reg byte) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.values[reg]...)
}

// Writes lists the data writes as "reg=hex" in order.
func (r *Registers) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func (r *Registers) WriteToAddr(_ context.Context, address uint16, buffer []byte) error {
	if address != r.Address {
		return fmt.Errorf("no device at %#x", address)
	}
	if len(buffer) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pointer = buffer[0]
	if len(buffer) > 1 {
		r.values[r.pointer] = append([]byte(nil), buffer[1:]...)
		r.writes = append(r.writes, fmt.Sprintf("%02x=%x", r.pointer, buffer[1:]))
	}
	return nil
}

func (r *Registers) ReadFromAddr(_ context.Context, address uint16, buffer []byte) error {
	if address != r.Address {
		return fmt.Errorf("no device at %#x", address)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	data := r.values[r.pointer]
	for i := range buffer {
		buffer[i] = 0
	}
	copy(buffer, data)
	return nil
}

func (r *Registers) Release(context.Context) error {
	return nil
}
