package signalhub

import (
	"fmt"
	"sync/atomic"
)

// Signal is a copyable typed handle over one cell in a Runtime. Copies alias
// the same cell; the zero value is invalid.
type Signal[T any] struct {
	rt *Runtime
	id SignalID
}

// NewSignal creates a signal in the global runtime. It panics if the runtime
// is at its signal limit, which at this surface means cells are leaking.
func NewSignal[T any](initial T) Signal[T] {
	return NewSignalIn(Global(), initial)
}

// NewSignalIn creates a signal in an explicit runtime.
func NewSignalIn[T any](rt *Runtime, initial T) Signal[T] {
	id, err := CreateSignal(rt, initial)
	if err != nil {
		panic(fmt.Sprintf("signalhub: cannot create signal: %v", err))
	}
	return Signal[T]{rt: rt, id: id}
}

// Get records the read with the ambient tracker, then returns a copy of the
// current value.
func (s Signal[T]) Get() T {
	recordRead(s.id)
	return SignalValue[T](s.rt, s.id)
}

// GetTracked records the read with an explicit scope instead of the ambient
// tracker.
func (s Signal[T]) GetTracked(scope *TrackScope) T {
	scope.record(s.id)
	return SignalValue[T](s.rt, s.id)
}

// Peek reads the value without recording a dependency anywhere.
func (s Signal[T]) Peek() T {
	return SignalValue[T](s.rt, s.id)
}

// With runs f against the value under the cell's value lock.
func With[T, R any](s Signal[T], f func(T) R) R {
	return WithSignal(s.rt, s.id, f)
}

// Set stores v and notifies subscribers, unconditionally. Equality of old and
// new values is deliberately not checked; values need not be comparable.
func (s Signal[T]) Set(v T) {
	SetSignal(s.rt, s.id, v)
}

// Update atomically replaces the value with f(current).
func (s Signal[T]) Update(f func(T) T) {
	UpdateSignal(s.rt, s.id, f)
}

// UpdateMut atomically mutates a copy of the value in place and commits it.
func (s Signal[T]) UpdateMut(f func(*T)) {
	UpdateSignalMut(s.rt, s.id, f)
}

// Subscribe registers fn to run after every committed write.
func (s Signal[T]) Subscribe(fn func()) (SubscriptionID, error) {
	return s.rt.Subscribe(s.id, fn)
}

// MustSubscribe is Subscribe for callers that treat the subscriber limit as
// fatal.
func (s Signal[T]) MustSubscribe(fn func()) SubscriptionID {
	sub, err := s.rt.Subscribe(s.id, fn)
	if err != nil {
		panic(fmt.Sprintf("signalhub: %v", err))
	}
	return sub
}

// SubscribeScoped registers fn and returns a guard that unsubscribes on
// Release.
func (s Signal[T]) SubscribeScoped(fn func()) (*Subscription, error) {
	sub, err := s.rt.Subscribe(s.id, fn)
	if err != nil {
		return nil, err
	}
	return &Subscription{rt: s.rt, signal: s.id, id: sub}, nil
}

// Unsubscribe drops a callback registered with Subscribe.
func (s Signal[T]) Unsubscribe(sub SubscriptionID) {
	s.rt.Unsubscribe(s.id, sub)
}

// ID returns the cell id backing this handle.
func (s Signal[T]) ID() SignalID { return s.id }

// Runtime returns the runtime this handle belongs to.
func (s Signal[T]) Runtime() *Runtime { return s.rt }

// Remove drops the cell from the runtime. Every handle over it, this one
// included, becomes stale.
func (s Signal[T]) Remove() {
	s.rt.Remove(s.id)
}

// notify re-delivers to subscribers without a value change. Computed cells use
// it to forward dirtiness downstream.
func (s Signal[T]) notify() {
	s.rt.NotifySubscribers(s.id)
}

// Subscription is the scoped form of a subscriber registration. Release is
// idempotent and safe to call concurrently; the callback never fires after
// the first Release returns the cell's subscriber lock.
type Subscription struct {
	rt       *Runtime
	signal   SignalID
	id       SubscriptionID
	released atomic.Bool
}

// Release unsubscribes. Calling it again is a no-op.
func (s *Subscription) Release() {
	if s.released.CompareAndSwap(false, true) {
		s.rt.Unsubscribe(s.signal, s.id)
	}
}

// Owned ties Release to an owner's teardown and returns s for chaining.
func (s *Subscription) Owned(o *Owner) *Subscription {
	o.OnCleanup(s.Release)
	return s
}

// ID returns the underlying subscription id.
func (s *Subscription) ID() SubscriptionID { return s.id }
