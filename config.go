package signalhub

import "time"

const (
	DefaultMaxSignals              = 100_000
	DefaultMaxSubscribersPerSignal = 1_000
	DefaultMaxComputedDepth        = 100
	DefaultLockTimeout             = 5 * time.Second
	DefaultMaxPendingEffects       = 10_000
)

// Config carries the limits a Runtime is constructed with. The limits exist to
// catch leaks and runaway graphs; they are immutable once the Runtime is built.
type Config struct {
	// MaxSignals caps the number of live cells in the runtime.
	MaxSignals int

	// MaxSubscribersPerSignal caps the subscriber map of a single cell.
	MaxSubscribersPerSignal int

	// MaxComputedDepth caps how deeply computed cells may nest during a
	// single evaluation on one goroutine.
	MaxComputedDepth int

	// LockTimeout bounds how long a recompute waits for the compute lock
	// before treating the wait as a cross-goroutine dependency deadlock.
	LockTimeout time.Duration

	// MaxPendingEffects caps the effect scheduler queue before it drains
	// early.
	MaxPendingEffects int
}

func DefaultConfig() Config {
	return Config{
		MaxSignals:              DefaultMaxSignals,
		MaxSubscribersPerSignal: DefaultMaxSubscribersPerSignal,
		MaxComputedDepth:        DefaultMaxComputedDepth,
		LockTimeout:             DefaultLockTimeout,
		MaxPendingEffects:       DefaultMaxPendingEffects,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxSignals <= 0 {
		c.MaxSignals = d.MaxSignals
	}
	if c.MaxSubscribersPerSignal <= 0 {
		c.MaxSubscribersPerSignal = d.MaxSubscribersPerSignal
	}
	if c.MaxComputedDepth <= 0 {
		c.MaxComputedDepth = d.MaxComputedDepth
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = d.LockTimeout
	}
	if c.MaxPendingEffects <= 0 {
		c.MaxPendingEffects = d.MaxPendingEffects
	}
	return c
}
