package signalhub

import (
	"fmt"
	"math"
	"sync/atomic"
)

// SignalID uniquely identifies a value cell in a Runtime. IDs are drawn from a
// process-wide monotonic counter and are never reused, so a stale handle fails
// loudly instead of silently aliasing a newer cell.
type SignalID uint64

// SubscriptionID identifies a single registered callback on a cell. It is only
// used for removal.
type SubscriptionID uint64

// ComputedID identifies a computed cell, used by the per-goroutine cycle guard.
type ComputedID uint64

// EffectID identifies an effect registered with an EffectScheduler.
type EffectID uint64

var (
	signalIDCounter       atomic.Uint64
	subscriptionIDCounter atomic.Uint64
	computedIDCounter     atomic.Uint64
	effectIDCounter       atomic.Uint64
)

func nextCounter(c *atomic.Uint64, what string) uint64 {
	id := c.Add(1)
	if id >= math.MaxUint64-1 {
		panic("signalhub: " + what + " counter overflow")
	}
	return id
}

func newSignalID() SignalID {
	return SignalID(nextCounter(&signalIDCounter, "SignalID"))
}

func newSubscriptionID() SubscriptionID {
	return SubscriptionID(nextCounter(&subscriptionIDCounter, "SubscriptionID"))
}

func newComputedID() ComputedID {
	return ComputedID(nextCounter(&computedIDCounter, "ComputedID"))
}

func newEffectID() EffectID {
	return EffectID(nextCounter(&effectIDCounter, "EffectID"))
}

func (id SignalID) String() string       { return fmt.Sprintf("Signal(%d)", uint64(id)) }
func (id SubscriptionID) String() string { return fmt.Sprintf("Subscription(%d)", uint64(id)) }
func (id ComputedID) String() string     { return fmt.Sprintf("Computed(%d)", uint64(id)) }
func (id EffectID) String() string       { return fmt.Sprintf("Effect(%d)", uint64(id)) }
