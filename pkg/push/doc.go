// Package push is the in-process realtime transport: a hub fanning
// notifications out to per-recipient subscriber connections with
// non-blocking, drop-on-slow-consumer delivery.
//
// The hub also answers the presence question the priority resolver asks:
// Reachable reports whether a recipient currently has a live connection, so
// the realtime channel can be ordered first (or omitted) accordingly.
//
// Transport glue (WebSocket/SSE handlers) lives in the host application;
// it calls Subscribe per connection and drains the returned channel.
package push
