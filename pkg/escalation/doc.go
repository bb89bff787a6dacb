// Package escalation widens delivery after failure or silence. The
// controller consumes the delivery coordinator's outcome stream and runs a
// periodic sweep over unacknowledged notifications; when the routing
// engine's escalation rules match, it raises the escalation level
// (bounded), executes the rule actions in order and re-enters delivery
// with a forced email attempt whose payload carries escalated=true.
// Channels that already succeeded are never re-sent.
package escalation
