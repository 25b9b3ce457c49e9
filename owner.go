package signalhub

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Owner is a teardown scope. Cleanups registered on it run exactly once, in
// reverse registration order, when the owner or any ancestor is disposed.
type Owner struct {
	mu       sync.Mutex
	parent   *Owner
	children []*Owner
	cleanups []func()
	values   map[ContextKey]any
	disposed bool
}

func NewOwner() *Owner {
	return &Owner{}
}

// Child creates a nested owner that is disposed with its parent. A child
// created on an already disposed parent is born disposed.
func (o *Owner) Child() *Owner {
	child := &Owner{parent: o}
	o.mu.Lock()
	if o.disposed {
		child.disposed = true
		o.mu.Unlock()
		return child
	}
	o.children = append(o.children, child)
	o.mu.Unlock()
	return child
}

// OnCleanup registers fn to run at disposal. Registering on an already
// disposed owner runs fn inline.
func (o *Owner) OnCleanup(fn func()) {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		fn()
		return
	}
	o.cleanups = append(o.cleanups, fn)
	o.mu.Unlock()
}

// Dispose tears the scope down: children first, then this owner's cleanups in
// LIFO order. Concurrent and repeated calls are safe; the cleanups run on
// exactly one caller, serially.
func (o *Owner) Dispose() {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return
	}
	o.disposed = true
	children := o.children
	cleanups := o.cleanups
	o.children = nil
	o.cleanups = nil
	o.mu.Unlock()

	for _, child := range children {
		child.Dispose()
	}
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// Disposed reports whether the owner has been torn down.
func (o *Owner) Disposed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.disposed
}

// ContextKey names a context slot on an owner tree.
type ContextKey uint64

// NewContextKey derives a stable key from a name.
func NewContextKey(name string) ContextKey {
	return ContextKey(xxhash.Sum64String(name))
}

// SetValue stores v under key on this owner.
func (o *Owner) SetValue(key ContextKey, v any) {
	o.mu.Lock()
	if o.values == nil {
		o.values = map[ContextKey]any{}
	}
	o.values[key] = v
	o.mu.Unlock()
}

// Value looks key up on this owner, then up the parent chain.
func (o *Owner) Value(key ContextKey) (any, bool) {
	for cur := o; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		v, ok := cur.values[key]
		cur.mu.Unlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}
