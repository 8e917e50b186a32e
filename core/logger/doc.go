// Package logger provides structured logging built on Go's standard slog
// package, adapted from the teacher's core/logger. It offers
// environment-flavored constructors and a set of nil-safe attribute helpers
// used across the channel layers and consumer runtime.
//
// Example:
//
//	log := logger.New(logger.WithDevelopment("fast-channels"))
//	log.Info("layer started", logger.Channel("chat!abc123"))
package logger
