// Package notification defines the domain model shared by the delivery
// engine: the Notification itself, its closed category/priority enums, the
// delivery status state machine, append-only delivery attempts, recipient
// preferences with quiet hours, and the flattened field document rule
// conditions evaluate against.
//
// Category and priority are closed sets. Anything outside them is a
// *ValidationError at creation time, never a silent default.
//
// The delivery status moves through a fixed transition table:
//
//	Pending -> Sent -> {Delivered, PartiallyDelivered, Failed}
//	{PartiallyDelivered, Failed} -> Escalated -> Sent -> ...
//	Pending -> Expired | ThrottledDropped
//
// Delivered, Expired and ThrottledDropped are terminal. SetStatus rejects
// anything the table does not allow, so every notification reaches exactly
// one terminal status.
package notification
