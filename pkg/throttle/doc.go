// Package throttle caps notifications per recipient per time window using
// a sliding-window limiter. A denied check is reported to the caller, who
// marks the notification ThrottledDropped instead of queueing it.
//
// Two stores are provided: an in-process MemoryStore for single-node
// deployments and tests, and a Redis-backed RedisStore so multiple engine
// instances share one window per recipient. Both keep check-and-record
// atomic under a single writer.
//
//	store := throttle.NewMemoryStore()
//	limiter, _ := throttle.NewSlidingWindow(store, 10, time.Minute)
//	res, _ := limiter.Allow(ctx, recipientID)
//	if !res.Allowed {
//		// drop as throttled
//	}
package throttle
