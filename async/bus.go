package async

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/mklimuk/devreg"
)

var ErrClosed = errors.New("bus adapter closed")

// worker runs blocking transfers one at a time on its own goroutine and
// reports completions on the loop.
type worker struct {
	loop   *Loop
	jobs   *Loop
	closer any
	cancel context.CancelFunc
	mu     sync.RWMutex
	closed bool
}

func newWorker(loop *Loop, bus any) *worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{loop: loop, jobs: NewLoop(), closer: bus, cancel: cancel}
	go func() {
		_ = w.jobs.Run(ctx)
	}()
	return w
}

func (w *worker) submit(transfer func() error, done devreg.Done) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.loop.Post(func() { done(ErrClosed) })
		return
	}
	w.jobs.Post(func() {
		err := transfer()
		w.loop.Post(func() { done(err) })
	})
}

// Close stops the worker once the transfers already queued are done and
// closes the wrapped bus if it can be closed. Transfers submitted after Close
// complete with ErrClosed.
func (w *worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	res := make(chan error, 1)
	w.jobs.Post(func() {
		w.cancel()
		if c, ok := w.closer.(io.Closer); ok {
			res <- c.Close()
			return
		}
		res <- nil
	})
	return <-res
}

// I2CAdapter exposes a blocking I2C bus as a suspending one.
type I2CAdapter struct {
	*worker
	bus devreg.I2CBus
}

var _ devreg.AsyncI2CBus = (*I2CAdapter)(nil)

// I2C wraps bus. Completions run on loop.
func I2C(loop *Loop, bus devreg.I2CBus) *I2CAdapter {
	return &I2CAdapter{worker: newWorker(loop, bus), bus: bus}
}

func (a *I2CAdapter) ReadFromAddrAsync(ctx context.Context, address uint16, buffer []byte, done devreg.Done) {
	a.submit(func() error { return a.bus.ReadFromAddr(ctx, address, buffer) }, done)
}

func (a *I2CAdapter) WriteToAddrAsync(ctx context.Context, address uint16, buffer []byte, done devreg.Done) {
	a.submit(func() error { return a.bus.WriteToAddr(ctx, address, buffer) }, done)
}

// SPIAdapter exposes a blocking SPI bus as a suspending one.
type SPIAdapter struct {
	*worker
	bus devreg.SPIBus
}

var _ devreg.AsyncSPIBus = (*SPIAdapter)(nil)

func SPI(loop *Loop, bus devreg.SPIBus) *SPIAdapter {
	return &SPIAdapter{worker: newWorker(loop, bus), bus: bus}
}

func (a *SPIAdapter) WriteAsync(ctx context.Context, buffer []byte, done devreg.Done) {
	a.submit(func() error { return a.bus.Write(ctx, buffer) }, done)
}

func (a *SPIAdapter) WriteReadAsync(ctx context.Context, w, r []byte, done devreg.Done) {
	a.submit(func() error { return a.bus.WriteRead(ctx, w, r) }, done)
}
