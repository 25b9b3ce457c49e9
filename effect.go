package signalhub

import (
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
)

type effectState struct {
	id EffectID
	rt *Runtime
	fn func()

	mu   sync.Mutex
	deps mapset.Set[SignalID]
	subs []storedSubscription

	stopped atomic.Bool
}

// Effect runs fn immediately and again whenever any signal or computed it
// read changes. Re-runs go through the runtime's scheduler, so N dependency
// changes inside one batch trigger one re-run. The returned stop function is
// idempotent.
func Effect(fn func()) (stop func()) {
	return EffectIn(Global(), fn)
}

// EffectIn is Effect on an explicit runtime.
func EffectIn(rt *Runtime, fn func()) (stop func()) {
	e := &effectState{
		rt:   rt,
		fn:   fn,
		deps: mapset.NewSet[SignalID](),
	}
	e.id = rt.scheduler.Register(e.run)
	e.run()
	return e.stop
}

func (e *effectState) run() {
	if e.stopped.Load() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var deps mapset.Set[SignalID]
	func() {
		beginCapture()
		defer func() { deps = endCapture() }()
		e.fn()
	}()

	oldDeps := e.deps
	e.deps = deps
	e.subs = rewireSubscriptions(e.rt, e.subs, oldDeps, deps, e.onChange)
	if e.stopped.Load() {
		for _, s := range e.subs {
			e.rt.Unsubscribe(s.signal, s.sub)
		}
		e.subs = nil
	}
}

func (e *effectState) onChange() {
	if e.stopped.Load() {
		return
	}
	e.rt.scheduler.Schedule(e.id)
}

func (e *effectState) stop() {
	if !e.stopped.CompareAndSwap(false, true) {
		return
	}
	e.rt.scheduler.Unregister(e.id)
	e.mu.Lock()
	subs := e.subs
	e.subs = nil
	e.mu.Unlock()
	for _, s := range subs {
		e.rt.Unsubscribe(s.signal, s.sub)
	}
}
