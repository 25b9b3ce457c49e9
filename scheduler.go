package signalhub

import (
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
)

// EffectScheduler collects effect re-runs triggered by dependency changes and
// drains them in FIFO order, one run per effect per drain however many of its
// dependencies changed.
type EffectScheduler struct {
	mu         sync.Mutex
	effects    map[EffectID]func()
	queue      []EffectID
	queued     mapset.Set[EffectID]
	flushing   atomic.Bool
	maxPending int
}

func newEffectScheduler(maxPending int) *EffectScheduler {
	return &EffectScheduler{
		effects:    map[EffectID]func(){},
		queued:     mapset.NewSet[EffectID](),
		maxPending: maxPending,
	}
}

// Register stores fn and returns the id used to schedule it.
func (s *EffectScheduler) Register(fn func()) EffectID {
	id := newEffectID()
	s.mu.Lock()
	s.effects[id] = fn
	s.mu.Unlock()
	return id
}

// Unregister drops the effect. A queued entry for it is skipped at flush.
func (s *EffectScheduler) Unregister(id EffectID) {
	s.mu.Lock()
	delete(s.effects, id)
	s.mu.Unlock()
}

// Schedule queues a run of id. Scheduling an id already in the queue is a
// no-op. If the queue reaches maxPending it drains immediately rather than
// growing without bound.
func (s *EffectScheduler) Schedule(id EffectID) {
	s.mu.Lock()
	if _, ok := s.effects[id]; !ok {
		s.mu.Unlock()
		return
	}
	if s.queued.Contains(id) {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, id)
	s.queued.Add(id)
	overflow := len(s.queue) >= s.maxPending
	s.mu.Unlock()
	if overflow {
		s.Flush()
	}
}

// Pending reports how many effects are queued.
func (s *EffectScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Flush drains the queue. Reentrant calls from inside a running effect are
// no-ops; their work is picked up by the draining caller, which loops until
// the queue stays empty.
func (s *EffectScheduler) Flush() {
	for {
		if !s.flushing.CompareAndSwap(false, true) {
			return
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			batch := make([]func(), 0, len(s.queue))
			for _, id := range s.queue {
				if fn := s.effects[id]; fn != nil {
					batch = append(batch, fn)
				}
			}
			s.queue = s.queue[:0]
			s.queued.Clear()
			s.mu.Unlock()
			for _, fn := range batch {
				fn()
			}
		}
		s.flushing.Store(false)
		s.mu.Lock()
		empty := len(s.queue) == 0
		s.mu.Unlock()
		if empty {
			return
		}
	}
}
