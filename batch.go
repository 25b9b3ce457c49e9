package signalhub

import "sync"

// dispatcher decides when subscriber callbacks run. Outside a batch a unit
// runs inline on the mutating goroutine. Inside a batch units are held back,
// deduplicated per SignalID (a later enqueue replaces the pending work but
// keeps the earliest position), and drained by the outermost EndBatch.
type dispatcher struct {
	mu      sync.Mutex
	depth   int
	order   []SignalID
	pending map[SignalID]func()
}

func newDispatcher() *dispatcher {
	return &dispatcher{pending: map[SignalID]func(){}}
}

func (d *dispatcher) enqueue(key SignalID, work func()) {
	d.mu.Lock()
	if d.depth > 0 {
		if _, ok := d.pending[key]; !ok {
			d.order = append(d.order, key)
		}
		d.pending[key] = work
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	work()
}

func (d *dispatcher) batching() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.depth > 0
}

func (d *dispatcher) start() {
	d.mu.Lock()
	d.depth++
	d.mu.Unlock()
}

// end reports whether it closed the outermost batch, so the caller can decide
// to flush without re-reading the depth, which another goroutine may have
// raised again by then.
func (d *dispatcher) end() bool {
	d.mu.Lock()
	if d.depth == 0 {
		d.mu.Unlock()
		panic("signalhub: EndBatch without matching StartBatch")
	}
	d.depth--
	if d.depth > 0 {
		d.mu.Unlock()
		return false
	}
	works := make([]func(), 0, len(d.order))
	for _, key := range d.order {
		works = append(works, d.pending[key])
	}
	d.order = d.order[:0]
	clear(d.pending)
	d.mu.Unlock()
	for _, work := range works {
		work()
	}
	return true
}

// StartBatch opens a batch on this runtime. Batches nest; only the outermost
// EndBatch delivers.
func (rt *Runtime) StartBatch() { rt.dispatcher.start() }

// EndBatch closes the innermost batch. Closing the outermost one drains the
// held-back notifications in first-enqueue order and then flushes scheduled
// effects.
func (rt *Runtime) EndBatch() {
	if rt.dispatcher.end() {
		rt.scheduler.Flush()
	}
}

// Batch runs fn inside a batch. Notifications still fire if fn panics, which
// keeps dependents consistent with writes committed before the panic.
func (rt *Runtime) Batch(fn func()) {
	rt.StartBatch()
	defer rt.EndBatch()
	fn()
}

// Batch runs fn inside a batch on the global runtime.
func Batch(fn func()) { Global().Batch(fn) }

// StartBatch opens a batch on the global runtime.
func StartBatch() { Global().StartBatch() }

// EndBatch closes a batch on the global runtime.
func EndBatch() { Global().EndBatch() }
