package signalhub

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Dependency capture is ambient and per goroutine. Each goroutine that is
// currently evaluating a computed or effect gets a trackingContext holding a
// stack of capture frames plus the set of computed ids on its evaluation
// stack. The frame stack means a nested recompute saves and restores its
// parent's capture instead of clobbering it.

type captureFrame struct {
	tracking bool
	captured mapset.Set[SignalID]
}

type trackingContext struct {
	frames []*captureFrame
	cycle  mapset.Set[ComputedID]
}

var trackingContexts sync.Map // goroutine id -> *trackingContext

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:"
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		panic("signalhub: cannot parse goroutine id from stack header")
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("signalhub: cannot parse goroutine id: %v", err))
	}
	return id
}

func currentTrackingContext() (*trackingContext, uint64) {
	gid := goroutineID()
	if v, ok := trackingContexts.Load(gid); ok {
		return v.(*trackingContext), gid
	}
	return nil, gid
}

func obtainTrackingContext() (*trackingContext, uint64) {
	tc, gid := currentTrackingContext()
	if tc == nil {
		tc = &trackingContext{}
		trackingContexts.Store(gid, tc)
	}
	return tc, gid
}

// releaseIfIdle drops the goroutine's context once nothing is tracked so the
// map does not grow with every goroutine that ever evaluated a computed.
func releaseIfIdle(tc *trackingContext, gid uint64) {
	if len(tc.frames) == 0 && (tc.cycle == nil || tc.cycle.Cardinality() == 0) {
		trackingContexts.Delete(gid)
	}
}

func beginCapture() {
	tc, _ := obtainTrackingContext()
	tc.frames = append(tc.frames, &captureFrame{
		tracking: true,
		captured: mapset.NewSet[SignalID](),
	})
}

func endCapture() mapset.Set[SignalID] {
	tc, gid := currentTrackingContext()
	if tc == nil || len(tc.frames) == 0 {
		panic("signalhub: endCapture without matching beginCapture")
	}
	frame := tc.frames[len(tc.frames)-1]
	tc.frames = tc.frames[:len(tc.frames)-1]
	releaseIfIdle(tc, gid)
	return frame.captured
}

func recordRead(id SignalID) {
	tc, _ := currentTrackingContext()
	if tc == nil || len(tc.frames) == 0 {
		return
	}
	frame := tc.frames[len(tc.frames)-1]
	if frame.tracking {
		frame.captured.Add(id)
	}
}

// enterComputed pushes id onto the goroutine's evaluation stack. A repeat of
// an id already on the stack is a same-goroutine cycle; exceeding maxDepth is
// runaway nesting. Both are programming defects and panic.
func enterComputed(id ComputedID, maxDepth int) {
	tc, _ := obtainTrackingContext()
	if tc.cycle == nil {
		tc.cycle = mapset.NewSet[ComputedID]()
	}
	if tc.cycle.Contains(id) {
		panic(fmt.Sprintf("signalhub: circular dependency: %v read itself during its own evaluation", id))
	}
	tc.cycle.Add(id)
	if tc.cycle.Cardinality() > maxDepth {
		tc.cycle.Remove(id)
		panic(fmt.Sprintf("signalhub: computed nesting exceeds the depth limit of %d at %v", maxDepth, id))
	}
}

func leaveComputed(id ComputedID) {
	tc, gid := currentTrackingContext()
	if tc == nil || tc.cycle == nil {
		return
	}
	tc.cycle.Remove(id)
	releaseIfIdle(tc, gid)
}

// Untrack runs fn with dependency capture suppressed. Reads inside fn are not
// recorded by any enclosing computed or effect evaluation.
func Untrack(fn func()) {
	tc, gid := obtainTrackingContext()
	tc.frames = append(tc.frames, &captureFrame{tracking: false})
	defer func() {
		tc.frames = tc.frames[:len(tc.frames)-1]
		releaseIfIdle(tc, gid)
	}()
	fn()
}

// TrackScope is the explicit alternative to ambient capture: pass one to
// Signal.GetTracked and it accumulates every id read through it.
type TrackScope struct {
	mu       sync.Mutex
	captured mapset.Set[SignalID]
}

func NewTrackScope() *TrackScope {
	return &TrackScope{captured: mapset.NewSet[SignalID]()}
}

func (s *TrackScope) record(id SignalID) {
	s.mu.Lock()
	s.captured.Add(id)
	s.mu.Unlock()
}

// Captured returns a snapshot of the ids read through this scope so far.
func (s *TrackScope) Captured() mapset.Set[SignalID] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captured.Clone()
}
