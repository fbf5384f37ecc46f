package repository

import (
	"context"
	"sync"
)

// feed delivers values to a single consumer in push order. Pushes never
// block: values queue until the consumer drains them or ctx ends.
type feed[T any] struct {
	mu      sync.Mutex
	pending []T
	signal  chan struct{}
	out     chan T
	done    chan struct{}
}

// newFeed starts the delivery goroutine. onClose runs once after ctx is
// cancelled, before the output channel is closed.
func newFeed[T any](ctx context.Context, onClose func()) *feed[T] {
	f := &feed[T]{
		signal: make(chan struct{}, 1),
		out:    make(chan T),
		done:   make(chan struct{}),
	}
	go f.pump(ctx, onClose)
	return f
}

func (f *feed[T]) C() <-chan T { return f.out }

func (f *feed[T]) push(v T) {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return
	default:
	}
	f.pending = append(f.pending, v)
	f.mu.Unlock()

	select {
	case f.signal <- struct{}{}:
	default:
	}
}

func (f *feed[T]) pump(ctx context.Context, onClose func()) {
	defer func() {
		f.mu.Lock()
		close(f.done)
		f.pending = nil
		f.mu.Unlock()
		if onClose != nil {
			onClose()
		}
		close(f.out)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.signal:
		}

		for {
			f.mu.Lock()
			batch := f.pending
			f.pending = nil
			f.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, v := range batch {
				select {
				case f.out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
