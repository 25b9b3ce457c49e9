package signalhub

import (
	"fmt"
	"reflect"
	"sync"
)

// cell is one type-erased entry in the runtime. The value and the subscriber
// map are guarded independently so a slow subscriber cannot block readers.
// Neither lock is ever held while user code runs.
type cell struct {
	typ reflect.Type

	valueMu sync.Mutex
	value   any

	subMu sync.Mutex
	subs  map[SubscriptionID]func()
}

func (c *cell) checkType(id SignalID, want reflect.Type) {
	if c.typ != want {
		panic(fmt.Sprintf("signalhub: type mismatch on %v: cell holds %v, caller asked for %v", id, c.typ, want))
	}
}

// Runtime owns the cells, the notification dispatcher, and the effect
// scheduler. Most callers use the process Global() runtime through the
// Signal/Computed/Effect surface and never touch a Runtime directly.
type Runtime struct {
	cfg Config

	mu    sync.RWMutex
	cells map[SignalID]*cell

	dispatcher *dispatcher
	scheduler  *EffectScheduler
}

func NewRuntime(cfg Config) *Runtime {
	cfg = cfg.withDefaults()
	return &Runtime{
		cfg:        cfg,
		cells:      map[SignalID]*cell{},
		dispatcher: newDispatcher(),
		scheduler:  newEffectScheduler(cfg.MaxPendingEffects),
	}
}

var globalRuntime = sync.OnceValue(func() *Runtime {
	return NewRuntime(DefaultConfig())
})

// Global returns the lazily built process-wide runtime.
func Global() *Runtime { return globalRuntime() }

// Config returns a copy of the limits this runtime was built with.
func (rt *Runtime) Config() Config { return rt.cfg }

// Scheduler exposes the runtime's effect scheduler.
func (rt *Runtime) Scheduler() *EffectScheduler { return rt.scheduler }

// lookup finds a cell under the map lock and releases the map lock before the
// caller takes any cell-level lock. Missing ids are unrecoverable: the handle
// is stale or the cell was removed.
func (rt *Runtime) lookup(id SignalID) *cell {
	rt.mu.RLock()
	c := rt.cells[id]
	rt.mu.RUnlock()
	if c == nil {
		panic(fmt.Sprintf("signalhub: %v not found in runtime", id))
	}
	return c
}

func (rt *Runtime) lookupSoft(id SignalID) *cell {
	rt.mu.RLock()
	c := rt.cells[id]
	rt.mu.RUnlock()
	return c
}

// CreateSignal allocates a cell for initial and returns its id. It fails with
// a TooManySignalsError once the runtime holds Config.MaxSignals cells.
func CreateSignal[T any](rt *Runtime, initial T) (SignalID, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.cells) >= rt.cfg.MaxSignals {
		return 0, &TooManySignalsError{Max: rt.cfg.MaxSignals}
	}
	id := newSignalID()
	rt.cells[id] = &cell{
		typ:   reflect.TypeOf((*T)(nil)).Elem(),
		value: initial,
		subs:  map[SubscriptionID]func(){},
	}
	return id, nil
}

// SignalValue returns a copy of the cell's current value. The registry layer
// never records dependencies; tracking happens in the Signal handle.
func SignalValue[T any](rt *Runtime, id SignalID) T {
	c := rt.lookup(id)
	c.checkType(id, reflect.TypeOf((*T)(nil)).Elem())
	c.valueMu.Lock()
	v := c.value.(T)
	c.valueMu.Unlock()
	return v
}

// WithSignal runs f against the current value under the value lock and
// returns f's result. f must not call back into the same cell.
func WithSignal[T, R any](rt *Runtime, id SignalID, f func(T) R) R {
	c := rt.lookup(id)
	c.checkType(id, reflect.TypeOf((*T)(nil)).Elem())
	c.valueMu.Lock()
	defer c.valueMu.Unlock()
	return f(c.value.(T))
}

// SetSignal stores v and notifies subscribers. The store happens-before the
// notification; the notification runs outside the value lock.
func SetSignal[T any](rt *Runtime, id SignalID, v T) {
	c := rt.lookup(id)
	c.checkType(id, reflect.TypeOf((*T)(nil)).Elem())
	c.valueMu.Lock()
	c.value = v
	c.valueMu.Unlock()
	rt.notifyCell(id, c)
}

// UpdateSignal applies f to the current value and stores the result, as one
// atomic read-modify-write. If f panics the stored value is untouched, no
// notification fires, and the panic propagates.
func UpdateSignal[T any](rt *Runtime, id SignalID, f func(T) T) {
	c := rt.lookup(id)
	c.checkType(id, reflect.TypeOf((*T)(nil)).Elem())
	committed := false
	func() {
		c.valueMu.Lock()
		defer c.valueMu.Unlock()
		next := f(c.value.(T))
		c.value = next
		committed = true
	}()
	if committed {
		rt.notifyCell(id, c)
	}
}

// UpdateSignalMut is UpdateSignal for closures that mutate in place. f runs
// against a copy; the copy is committed only if f returns normally. Note the
// copy is shallow, so f must not mutate shared referents it wants rolled back.
func UpdateSignalMut[T any](rt *Runtime, id SignalID, f func(*T)) {
	c := rt.lookup(id)
	c.checkType(id, reflect.TypeOf((*T)(nil)).Elem())
	committed := false
	func() {
		c.valueMu.Lock()
		defer c.valueMu.Unlock()
		tmp := c.value.(T)
		f(&tmp)
		c.value = tmp
		committed = true
	}()
	if committed {
		rt.notifyCell(id, c)
	}
}

// storeSignal writes v without notifying subscribers. Computed cells use it
// to commit a recompute; staleness was already forwarded to their dependents
// when the dependency changed.
func storeSignal[T any](rt *Runtime, id SignalID, v T) {
	c := rt.lookup(id)
	c.checkType(id, reflect.TypeOf((*T)(nil)).Elem())
	c.valueMu.Lock()
	c.value = v
	c.valueMu.Unlock()
}

// Subscribe registers fn to run after every committed write to id. It fails
// with a TooManySubscribersError once the cell carries
// Config.MaxSubscribersPerSignal callbacks.
func (rt *Runtime) Subscribe(id SignalID, fn func()) (SubscriptionID, error) {
	c := rt.lookup(id)
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if len(c.subs) >= rt.cfg.MaxSubscribersPerSignal {
		return 0, &TooManySubscribersError{Signal: id, Max: rt.cfg.MaxSubscribersPerSignal}
	}
	sub := newSubscriptionID()
	c.subs[sub] = fn
	return sub, nil
}

// Unsubscribe drops a callback. Unknown ids are ignored so teardown paths can
// race with Remove.
func (rt *Runtime) Unsubscribe(id SignalID, sub SubscriptionID) {
	c := rt.lookupSoft(id)
	if c == nil {
		return
	}
	c.subMu.Lock()
	delete(c.subs, sub)
	c.subMu.Unlock()
}

// Remove drops the cell. Handles pointing at it become stale and panic on use.
func (rt *Runtime) Remove(id SignalID) {
	rt.mu.Lock()
	delete(rt.cells, id)
	rt.mu.Unlock()
}

// NotifySubscribers runs id's subscribers without a value change. Missing ids
// are ignored.
func (rt *Runtime) NotifySubscribers(id SignalID) {
	c := rt.lookupSoft(id)
	if c == nil {
		return
	}
	rt.notifyCell(id, c)
}

func (rt *Runtime) SubscriberCount(id SignalID) int {
	c := rt.lookupSoft(id)
	if c == nil {
		return 0
	}
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return len(c.subs)
}

// Len reports the number of live cells.
func (rt *Runtime) Len() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.cells)
}

// notifyCell hands the cell's callbacks to the dispatcher. The callback list
// is snapshotted at delivery time, not enqueue time, so a batch observes
// subscriptions added or dropped while it was open.
func (rt *Runtime) notifyCell(id SignalID, c *cell) {
	rt.dispatcher.enqueue(id, func() {
		c.subMu.Lock()
		cbs := make([]func(), 0, len(c.subs))
		for _, fn := range c.subs {
			cbs = append(cbs, fn)
		}
		c.subMu.Unlock()
		for _, fn := range cbs {
			fn()
		}
	})
	if !rt.dispatcher.batching() {
		rt.scheduler.Flush()
	}
}
