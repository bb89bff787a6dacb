// Package bus carries delivery lifecycle events (queued, routed,
// processed, escalated, failure investigations) from the engine to external
// collaborators. Publishing is fire-and-forget with explicit message
// passing instead of global listener registration, so ordering and
// backpressure behavior are visible at the call site.
//
// MemoryBus serves single-process hosts and tests; RedisBus fans events out
// across processes via pub/sub.
package bus
