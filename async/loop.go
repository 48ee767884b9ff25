package async

import (
	"context"
	"sync"
)

// Loop is a single-threaded cooperative scheduler. Callbacks posted from any
// goroutine run one at a time, in posting order, on the goroutine calling Run.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn. It never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes callbacks until ctx is done. Callbacks still queued at that
// point stay queued for the next Run.
func (l *Loop) Run(ctx context.Context) error {
	return l.RunUntil(ctx, nil)
}

// RunUntil executes callbacks until stop is closed or ctx is done.
func (l *Loop) RunUntil(ctx context.Context, stop <-chan struct{}) error {
	for {
		l.Drain()
		select {
		case <-stop:
			return nil
		default:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-l.wake:
		}
	}
}

// Drain runs everything queued so far, including callbacks posted by the
// callbacks it runs, and returns the number executed.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		queue := l.queue
		l.queue = nil
		l.mu.Unlock()
		if len(queue) == 0 {
			return n
		}
		for _, fn := range queue {
			fn()
			n++
		}
	}
}

// Block runs the loop on the calling goroutine until f resolves. It is the
// way for a program driving a Loop to wait for one of its own futures.
func Block[T any](ctx context.Context, l *Loop, f *Future[T]) (T, error) {
	if err := l.RunUntil(ctx, f.Done()); err != nil {
		var zero T
		return zero, err
	}
	return f.Result()
}
