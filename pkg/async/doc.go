// Package async provides Future-based helpers for the delivery fan-out:
// launch one computation per channel, then SettleAll to join every outcome
// without failing fast. Per-channel timeouts are enforced by the context
// passed to Go, so a settled join is always bounded.
package async
