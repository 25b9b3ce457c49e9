package signalhub_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	hub "github.com/delaneyj/signalhub"
)

// should run once eagerly and again on every dependency change
func TestEffectRunsOnChange(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	s := hub.NewSignalIn(rt, 1)

	runs := 0
	seen := 0
	stop := hub.EffectIn(rt, func() {
		runs++
		seen = s.Get()
	})
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, seen)

	s.Set(7)
	assert.Equal(t, 2, runs)
	assert.Equal(t, 7, seen)

	stop()
	stop()
	s.Set(9)
	assert.Equal(t, 2, runs)
}

// should re-run with the fresh value when watching a computed
func TestEffectOverComputed(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	s := hub.NewSignalIn(rt, 2)
	c := hub.NewComputedIn(rt, func() int { return s.Get() * 10 })

	runs := 0
	seen := 0
	hub.EffectIn(rt, func() {
		runs++
		seen = c.Get()
	})
	assert.Equal(t, 1, runs)
	assert.Equal(t, 20, seen)

	s.Set(3)
	assert.Equal(t, 2, runs)
	assert.Equal(t, 30, seen)
}

// should re-run once for many changes inside a batch
func TestEffectBatchedRunsOnce(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	a := hub.NewSignalIn(rt, 0)
	b := hub.NewSignalIn(rt, 0)

	runs := 0
	sum := 0
	hub.EffectIn(rt, func() {
		runs++
		sum = a.Get() + b.Get()
	})
	assert.Equal(t, 1, runs)

	rt.Batch(func() {
		a.Set(1)
		b.Set(2)
	})
	assert.Equal(t, 2, runs)
	assert.Equal(t, 3, sum)
}

// should follow the closure's current branch like a computed does
func TestEffectDynamicDependencies(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	useA := hub.NewSignalIn(rt, true)
	a := hub.NewSignalIn(rt, 1)
	b := hub.NewSignalIn(rt, 2)

	runs := 0
	hub.EffectIn(rt, func() {
		runs++
		if useA.Get() {
			a.Get()
		} else {
			b.Get()
		}
	})
	assert.Equal(t, 1, runs)

	b.Set(5)
	assert.Equal(t, 1, runs)

	useA.Set(false)
	assert.Equal(t, 2, runs)

	a.Set(5)
	assert.Equal(t, 2, runs)

	b.Set(6)
	assert.Equal(t, 3, runs)
}

// should not record reads made through Untrack
func TestEffectUntrack(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	a := hub.NewSignalIn(rt, 1)
	b := hub.NewSignalIn(rt, 2)

	runs := 0
	hub.EffectIn(rt, func() {
		runs++
		a.Get()
		hub.Untrack(func() { b.Get() })
	})

	b.Set(10)
	assert.Equal(t, 1, runs)

	a.Set(10)
	assert.Equal(t, 2, runs)
}
