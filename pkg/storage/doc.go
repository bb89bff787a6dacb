// Package storage persists notifications and their delivery attempts.
//
// The Store interface is what the delivery coordinator and escalation sweep
// depend on; MemoryStore serves development and tests, PostgresStore is the
// durable implementation hosts inject in production.
package storage
