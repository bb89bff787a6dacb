// Package routing turns a notification into its final ordered channel
// list and decides when failed or unacknowledged notifications escalate.
//
// The engine starts from the strategy resolver's channel candidates,
// unions in the actions of every matching routing rule (evaluated in
// ascending priority order), filters through the recipient's preferences
// and quiet hours, sorts by channel weight and caches the decision for
// five minutes. Rule conditions support dot-path field access and the
// full operator set: exists, equals, not_equals, greater_than,
// greater_than_equal, less_than, less_than_equal, includes, not_includes,
// regex and in_time_range.
//
// Escalation rules are evaluated separately against the same document
// namespace, producing an ordered action list and a target level bounded
// by the configured maximum.
//
// The whole configuration (routing rules, escalation rules, channel
// weights, options) imports and exports as a single document in JSON or
// YAML; a malformed rule aborts the import and the previous configuration
// stays active.
package routing
