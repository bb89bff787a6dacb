// Package logger builds configured slog loggers and provides attribute
// helpers for the identifiers that recur across the delivery engine
// (notification, recipient, channel, escalation level).
package logger
