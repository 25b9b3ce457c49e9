package signalhub_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	hub "github.com/delaneyj/signalhub"
)

// should deliver one notification per signal for writes inside a batch
func TestBatchDeduplicatesNotifications(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	s := hub.NewSignalIn(rt, 0)

	calls := 0
	s.MustSubscribe(func() { calls++ })

	rt.Batch(func() {
		s.Set(1)
		s.Set(2)
		s.Set(3)
		assert.Equal(t, 0, calls)
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, s.Get())
}

// should drain distinct signals in first-write order at the outermost end
func TestBatchDrainOrder(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	a := hub.NewSignalIn(rt, 0)
	b := hub.NewSignalIn(rt, 0)

	order := []string{}
	a.MustSubscribe(func() { order = append(order, "a") })
	b.MustSubscribe(func() { order = append(order, "b") })

	rt.StartBatch()
	b.Set(1)
	a.Set(1)
	b.Set(2)
	rt.EndBatch()

	assert.Equal(t, []string{"b", "a"}, order)
}

// should only deliver when the outermost batch closes
func TestBatchNesting(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	s := hub.NewSignalIn(rt, 0)

	calls := 0
	s.MustSubscribe(func() { calls++ })

	rt.StartBatch()
	rt.StartBatch()
	s.Set(1)
	rt.EndBatch()
	assert.Equal(t, 0, calls)
	rt.EndBatch()
	assert.Equal(t, 1, calls)
}

// should still deliver committed writes when the batch body panics
func TestBatchPanicStillDelivers(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	s := hub.NewSignalIn(rt, 0)

	calls := 0
	s.MustSubscribe(func() { calls++ })

	assert.Panics(t, func() {
		rt.Batch(func() {
			s.Set(1)
			panic("boom")
		})
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, s.Get())
}

// should panic on EndBatch without a matching StartBatch
func TestEndBatchWithoutStart(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	assert.Panics(t, rt.EndBatch)
}

// should flush effects after closing the outermost batch even when another
// batch opened during the drain
func TestEndBatchFlushesDespiteNewBatch(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	s := hub.NewSignalIn(rt, 0)

	runs := 0
	hub.EffectIn(rt, func() {
		runs++
		s.Get()
	})
	assert.Equal(t, 1, runs)

	var once sync.Once
	s.MustSubscribe(func() { once.Do(rt.StartBatch) })

	rt.StartBatch()
	s.Set(1)
	rt.EndBatch()
	assert.Equal(t, 2, runs)

	// close the batch the subscriber left open
	rt.EndBatch()
}

// should mark dependents dirty only once the batch closes
func TestBatchWithComputed(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	w := hub.NewSignalIn(rt, 2)
	h := hub.NewSignalIn(rt, 3)

	recomputes := 0
	area := hub.NewComputedIn(rt, func() int {
		recomputes++
		return w.Get() * h.Get()
	})

	rt.Batch(func() {
		w.Set(4)
		h.Set(5)
		assert.False(t, area.IsDirty())
	})
	assert.True(t, area.IsDirty())
	assert.Equal(t, 20, area.Get())
	assert.Equal(t, 2, recomputes)
}
