// Package logger provides structured logging for the dev server with
// configurable log levels. It wraps log/slog: text output for local
// environments, JSON for prod.
package logger
