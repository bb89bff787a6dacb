// Package delivery owns the bounded notification queue and the dispatch
// scheduler. Producers call Enqueue, which validates, persists, throttles
// and routes the notification before queuing it; a single scheduler drains
// the queue on a fixed tick and fans each notification out concurrently to
// one adapter per routed channel, waiting for every channel to settle
// before aggregating the delivery status.
//
// Channel adapters format messages for their medium: SMS truncates to one
// 160-character segment with a severity prefix, chat posts structured
// fields, webhooks forward the raw notification. Each adapter talks to an
// injected transport collaborator, so the package carries no provider
// credentials of its own.
package delivery
