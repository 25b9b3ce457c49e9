package signalhub

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

type storedSubscription struct {
	signal SignalID
	sub    SubscriptionID
}

// rewireSubscriptions diffs newDeps against oldDeps: subscriptions to removed
// ids are dropped, unchanged ones are reused, added ids get fresh
// subscriptions with onChange. If an add fails, the additions made so far are
// rolled back before panicking, so a failed computed construction leaves no
// trace.
func rewireSubscriptions(rt *Runtime, subs []storedSubscription, oldDeps, newDeps mapset.Set[SignalID], onChange func()) []storedSubscription {
	if oldDeps.Equal(newDeps) {
		return subs
	}
	removed := oldDeps.Difference(newDeps)
	added := newDeps.Difference(oldDeps)

	kept := make([]storedSubscription, 0, len(subs)+added.Cardinality())
	for _, s := range subs {
		if removed.Contains(s.signal) {
			rt.Unsubscribe(s.signal, s.sub)
		} else {
			kept = append(kept, s)
		}
	}
	fresh := make([]storedSubscription, 0, added.Cardinality())
	for _, id := range added.ToSlice() {
		sub, err := rt.Subscribe(id, onChange)
		if err != nil {
			for _, s := range fresh {
				rt.Unsubscribe(s.signal, s.sub)
			}
			panic(fmt.Sprintf("signalhub: subscribing to dependency %v failed: %v", id, err))
		}
		fresh = append(fresh, storedSubscription{signal: id, sub: sub})
	}
	return append(kept, fresh...)
}

type computedState[T any] struct {
	id ComputedID
	rt *Runtime

	// computeCh is a one-slot semaphore so the acquisition can time out; a
	// wait past Config.LockTimeout is treated as a cross-goroutine
	// dependency deadlock.
	computeCh chan struct{}
	compute   func() T

	cached Signal[T]

	depsMu sync.Mutex
	deps   mapset.Set[SignalID]

	subsMu sync.Mutex
	subs   []storedSubscription

	dirty    atomic.Bool
	disposed atomic.Bool
}

// Computed is a lazily re-evaluated derived value. Construction evaluates the
// closure once to discover dependencies; afterwards the closure only runs
// when Get observes the dirty flag.
type Computed[T any] struct {
	state *computedState[T]
}

// NewComputed builds a computed in the global runtime.
func NewComputed[T any](fn func() T) *Computed[T] {
	return NewComputedIn(Global(), fn)
}

// NewComputedIn builds a computed in an explicit runtime. The closure runs
// once, eagerly, on the calling goroutine. If subscribing to a discovered
// dependency fails the construction panics with nothing left behind.
func NewComputedIn[T any](rt *Runtime, fn func() T) *Computed[T] {
	st := &computedState[T]{
		id:        newComputedID(),
		rt:        rt,
		computeCh: make(chan struct{}, 1),
		compute:   fn,
	}

	enterComputed(st.id, rt.cfg.MaxComputedDepth)
	defer leaveComputed(st.id)

	var deps mapset.Set[SignalID]
	initial := func() T {
		beginCapture()
		defer func() { deps = endCapture() }()
		return fn()
	}()

	st.cached = NewSignalIn(rt, initial)
	st.deps = deps
	st.subs = rewireSubscriptions(rt, nil, mapset.NewSet[SignalID](), deps, st.markDirty)
	return &Computed[T]{state: st}
}

// markDirty is the subscriber callback installed on every dependency. It
// checks liveness first so a callback racing Dispose does nothing, then flags
// the value stale and forwards the notification through the cached signal so
// dependents go stale too.
func (st *computedState[T]) markDirty() {
	if st.disposed.Load() {
		return
	}
	st.dirty.Store(true)
	st.cached.notify()
}

// Get returns the current value, recomputing first if any dependency changed
// since the last read. Reading a computed from inside another computed's
// closure links the two; reading it from inside its own closure panics.
func (c *Computed[T]) Get() T {
	st := c.state
	enterComputed(st.id, st.rt.cfg.MaxComputedDepth)
	defer leaveComputed(st.id)
	if st.dirty.Swap(false) {
		st.recomputeGuarded()
	}
	return st.cached.Get()
}

// recomputeGuarded restores the dirty flag if the recompute does not finish,
// so a panicking closure is retried on the next Get instead of the stale
// value passing for current.
func (st *computedState[T]) recomputeGuarded() {
	done := false
	defer func() {
		if !done {
			st.dirty.Store(true)
		}
	}()
	st.recompute()
	done = true
}

func (st *computedState[T]) recompute() {
	st.acquireCompute()
	defer st.releaseCompute()

	var deps mapset.Set[SignalID]
	value := func() T {
		beginCapture()
		defer func() { deps = endCapture() }()
		return st.compute()
	}()

	// The commit does not notify. Everything downstream was already marked
	// stale when the dependency changed; notifying again here would re-run
	// subscribers once per lazy recompute on top of once per change.
	storeSignal(st.rt, st.cached.id, value)
	st.rewire(deps)
}

func (st *computedState[T]) rewire(newDeps mapset.Set[SignalID]) {
	st.depsMu.Lock()
	oldDeps := st.deps
	st.deps = newDeps
	st.depsMu.Unlock()

	st.subsMu.Lock()
	defer st.subsMu.Unlock()
	st.subs = rewireSubscriptions(st.rt, st.subs, oldDeps, newDeps, st.markDirty)
	if st.disposed.Load() {
		for _, s := range st.subs {
			st.rt.Unsubscribe(s.signal, s.sub)
		}
		st.subs = nil
	}
}

func (st *computedState[T]) acquireCompute() {
	select {
	case st.computeCh <- struct{}{}:
		return
	default:
	}
	timer := time.NewTimer(st.rt.cfg.LockTimeout)
	defer timer.Stop()
	select {
	case st.computeCh <- struct{}{}:
	case <-timer.C:
		panic(fmt.Sprintf(
			"signalhub: possible deadlock: %v waited %v for its compute lock; computed cells that depend on each other across goroutines cannot be detected by the cycle guard",
			st.id, st.rt.cfg.LockTimeout))
	}
}

func (st *computedState[T]) releaseCompute() {
	<-st.computeCh
}

// Subscribe registers fn on the cached value; it fires once per dependency
// change, at mark time. Reading the computed inside fn yields the fresh value.
func (c *Computed[T]) Subscribe(fn func()) (SubscriptionID, error) {
	return c.state.cached.Subscribe(fn)
}

// SubscribeScoped is Subscribe with a Release guard.
func (c *Computed[T]) SubscribeScoped(fn func()) (*Subscription, error) {
	return c.state.cached.SubscribeScoped(fn)
}

// Unsubscribe drops a callback registered with Subscribe.
func (c *Computed[T]) Unsubscribe(sub SubscriptionID) {
	c.state.cached.Unsubscribe(sub)
}

// Peek reads the cached value without recording a dependency and without
// recomputing.
func (c *Computed[T]) Peek() T {
	return c.state.cached.Peek()
}

// IsDirty reports whether the next Get will recompute.
func (c *Computed[T]) IsDirty() bool {
	return c.state.dirty.Load()
}

// ID returns the computed's id.
func (c *Computed[T]) ID() ComputedID { return c.state.id }

// CachedSignalID returns the id of the signal holding the cached value, which
// is what dependents actually subscribe to.
func (c *Computed[T]) CachedSignalID() SignalID { return c.state.cached.ID() }

// Dispose drops all dependency subscriptions and inert-marks the computed.
// Residual callbacks already in flight see the disposed flag and do nothing.
// Get keeps returning the last cached value. Idempotent.
func (c *Computed[T]) Dispose() {
	st := c.state
	if !st.disposed.CompareAndSwap(false, true) {
		return
	}
	st.dirty.Store(false)
	st.subsMu.Lock()
	subs := st.subs
	st.subs = nil
	st.subsMu.Unlock()
	for _, s := range subs {
		st.rt.Unsubscribe(s.signal, s.sub)
	}
}

// Owned ties Dispose to an owner's teardown and returns c for chaining.
func (c *Computed[T]) Owned(o *Owner) *Computed[T] {
	o.OnCleanup(c.Dispose)
	return c
}
