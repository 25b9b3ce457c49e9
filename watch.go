package signalhub

import (
	"context"
	"sync"
	"sync/atomic"
)

// Watcher bridges a signal to a channel. The channel holds the latest value:
// a write while the receiver lags replaces the undelivered value rather than
// blocking the writer. Release drops the subscription; the channel is never
// closed, so receivers should select on their own context.
type Watcher[T any] struct {
	signal  Signal[T]
	sub     SubscriptionID
	ch      chan T
	stopped atomic.Bool
}

// Watch subscribes a latest-value channel to the signal.
func (s Signal[T]) Watch() (*Watcher[T], error) {
	w := &Watcher[T]{signal: s, ch: make(chan T, 1)}
	sub, err := s.Subscribe(func() {
		if w.stopped.Load() {
			return
		}
		v := s.Peek()
		for {
			select {
			case w.ch <- v:
				return
			default:
			}
			select {
			case <-w.ch:
			default:
			}
		}
	})
	if err != nil {
		return nil, err
	}
	w.sub = sub
	return w, nil
}

// Changes returns the channel the watcher delivers on.
func (w *Watcher[T]) Changes() <-chan T { return w.ch }

// Release unsubscribes. Calling it again is a no-op.
func (w *Watcher[T]) Release() {
	if w.stopped.CompareAndSwap(false, true) {
		w.signal.Unsubscribe(w.sub)
	}
}

// Owned ties Release to an owner's teardown and returns w for chaining.
func (w *Watcher[T]) Owned(o *Owner) *Watcher[T] {
	o.OnCleanup(w.Release)
	return w
}

// WaitForChange blocks until the next committed write to the signal and
// returns the value that write left behind, or ctx's error if it is done
// first.
func (s Signal[T]) WaitForChange(ctx context.Context) (T, error) {
	w, err := s.Watch()
	if err != nil {
		var zero T
		return zero, err
	}
	defer w.Release()
	select {
	case v := <-w.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// WaitUntil blocks until the signal's value satisfies pred, checking the
// current value before waiting. Intermediate values may be skipped when
// writes outpace the check.
func (s Signal[T]) WaitUntil(ctx context.Context, pred func(T) bool) (T, error) {
	w, err := s.Watch()
	if err != nil {
		var zero T
		return zero, err
	}
	defer w.Release()

	if v := s.Peek(); pred(v) {
		return v, nil
	}
	for {
		select {
		case v := <-w.ch:
			if pred(v) {
				return v, nil
			}
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// WatchSignal runs fn on its own goroutine with the current value and again
// after every change, until ctx is done or stop is called.
func WatchSignal[T any](ctx context.Context, s Signal[T], fn func(T)) (stop func(), err error) {
	w, err := s.Watch()
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	var once sync.Once
	stop = func() {
		once.Do(func() {
			w.Release()
			close(done)
		})
	}
	go func() {
		fn(s.Peek())
		for {
			select {
			case v := <-w.ch:
				fn(v)
			case <-ctx.Done():
				stop()
				return
			case <-done:
				return
			}
		}
	}()
	return stop, nil
}

// AsyncComputed runs fn once on its own goroutine and hands the result to
// awaiters. Unlike Computed it never re-evaluates; it is the one-shot bridge
// between the reactive graph and code that blocks.
type AsyncComputed[T any] struct {
	done chan struct{}
	val  T
}

func NewAsyncComputed[T any](fn func() T) *AsyncComputed[T] {
	ac := &AsyncComputed[T]{done: make(chan struct{})}
	go func() {
		ac.val = fn()
		close(ac.done)
	}()
	return ac
}

// Await blocks until the computation finishes or ctx is done.
func (ac *AsyncComputed[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-ac.done:
		return ac.val, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryGet returns the result if the computation already finished.
func (ac *AsyncComputed[T]) TryGet() (T, bool) {
	select {
	case <-ac.done:
		return ac.val, true
	default:
		var zero T
		return zero, false
	}
}
