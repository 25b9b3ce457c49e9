package signalhub_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hub "github.com/delaneyj/signalhub"
)

// should read back what was written
func TestSignalReadAfterWrite(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	s := hub.NewSignalIn(rt, 10)
	assert.Equal(t, 10, s.Get())

	s.Set(42)
	assert.Equal(t, 42, s.Get())

	s.Update(func(v int) int { return v + 1 })
	assert.Equal(t, 43, s.Get())
}

// should alias the same cell through handle copies
func TestSignalHandleCopiesAlias(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	a := hub.NewSignalIn(rt, "x")
	b := a
	b.Set("y")
	assert.Equal(t, "y", a.Get())
	assert.Equal(t, a.ID(), b.ID())
}

// should notify subscribers on every write
func TestSignalSubscribeNotifies(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	s := hub.NewSignalIn(rt, 0)

	calls := 0
	sub := s.MustSubscribe(func() { calls++ })

	s.Set(1)
	assert.Equal(t, 1, calls)
	s.Set(1)
	assert.Equal(t, 2, calls)

	s.Unsubscribe(sub)
	s.Set(2)
	assert.Equal(t, 2, calls)
}

// should stop callbacks after a scoped subscription is released
func TestSignalSubscribeScopedRelease(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	s := hub.NewSignalIn(rt, 0)

	calls := 0
	guard, err := s.SubscribeScoped(func() { calls++ })
	require.NoError(t, err)

	s.Set(1)
	assert.Equal(t, 1, calls)

	guard.Release()
	guard.Release()
	s.Set(2)
	assert.Equal(t, 1, calls)
}

// should run With under the value lock and return its result
func TestSignalWith(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	s := hub.NewSignalIn(rt, []int{1, 2, 3})
	n := hub.With(s, func(v []int) int { return len(v) })
	assert.Equal(t, 3, n)
}

// should commit in-place mutations through UpdateMut
func TestSignalUpdateMut(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	s := hub.NewSignalIn(rt, []string{"a"})
	s.UpdateMut(func(v *[]string) { *v = append(*v, "b") })
	assert.Equal(t, []string{"a", "b"}, s.Get())
}

// should leave the value untouched and skip notification when an update panics
func TestSignalUpdatePanicRollsBack(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	s := hub.NewSignalIn(rt, 7)

	calls := 0
	s.MustSubscribe(func() { calls++ })

	assert.Panics(t, func() {
		s.Update(func(v int) int { panic("boom") })
	})
	assert.Equal(t, 7, s.Get())
	assert.Equal(t, 0, calls)

	assert.Panics(t, func() {
		s.UpdateMut(func(v *int) { *v = 99; panic("boom") })
	})
	assert.Equal(t, 7, s.Get())
	assert.Equal(t, 0, calls)
}

// should panic when a handle with the wrong type touches a cell
func TestSignalTypeMismatchPanics(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	s := hub.NewSignalIn(rt, 1)
	assert.Panics(t, func() {
		hub.SignalValue[string](rt, s.ID())
	})
}

// should panic on any use of a removed cell
func TestSignalRemovedAccessPanics(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	s := hub.NewSignalIn(rt, 1)
	require.Equal(t, 1, rt.Len())

	s.Remove()
	assert.Equal(t, 0, rt.Len())
	assert.Panics(t, func() { s.Get() })
	assert.Panics(t, func() { s.Set(2) })
}

// should record reads through an explicit track scope
func TestSignalGetTracked(t *testing.T) {
	rt := hub.NewRuntime(hub.DefaultConfig())
	a := hub.NewSignalIn(rt, 1)
	b := hub.NewSignalIn(rt, 2)

	scope := hub.NewTrackScope()
	assert.Equal(t, 1, a.GetTracked(scope))
	assert.Equal(t, 2, b.Peek())

	captured := scope.Captured()
	assert.True(t, captured.Contains(a.ID()))
	assert.False(t, captured.Contains(b.ID()))
}

// should surface a typed error at the signal ceiling and panic at the handle layer
func TestSignalLimit(t *testing.T) {
	rt := hub.NewRuntime(hub.Config{MaxSignals: 2})
	hub.NewSignalIn(rt, 1)
	hub.NewSignalIn(rt, 2)

	_, err := hub.CreateSignal(rt, 3)
	var tooMany *hub.TooManySignalsError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 2, tooMany.Max)

	assert.Panics(t, func() { hub.NewSignalIn(rt, 3) })
}

// should surface a typed error at the per-cell subscriber ceiling
func TestSubscriberLimit(t *testing.T) {
	rt := hub.NewRuntime(hub.Config{MaxSubscribersPerSignal: 1})
	s := hub.NewSignalIn(rt, 1)

	_, err := s.Subscribe(func() {})
	require.NoError(t, err)

	_, err = s.Subscribe(func() {})
	var tooMany *hub.TooManySubscribersError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, s.ID(), tooMany.Signal)
	assert.Equal(t, 1, tooMany.Max)
	assert.Equal(t, 1, rt.SubscriberCount(s.ID()))
}
