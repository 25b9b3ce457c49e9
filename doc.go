// Package signalhub is a thread-safe reactive dataflow engine: typed signal
// handles over a central runtime, lazily recomputed derived values with
// automatic dependency discovery, effects, batches, and owner scopes.
//
// Values live in a Runtime as type-erased cells; Signal, Computed and Effect
// are thin handles over it. Reads inside a computed or effect closure are
// captured ambiently per goroutine, so dependency graphs need no declaration
// and may change shape between runs. Same-goroutine cycles panic
// deterministically; cross-goroutine evaluation cycles are caught by a
// bounded wait on the compute lock.
package signalhub
