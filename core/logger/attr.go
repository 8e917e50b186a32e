package logger

import (
	"log/slog"
	"time"
)

// Attribute helpers use the empty-Attr pattern for nil safety: calls like
// log.Info("msg", logger.Error(err)) never need an explicit nil check,
// following the principle of making zero values useful (matches the
// teacher's core/logger/attr.go).

// Error creates an attribute for a single error under the key "error".
// Returns an empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Duration creates an attribute for a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed calculates and logs the duration since start under "elapsed".
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// Channel creates an attribute for a channel name.
func Channel(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("channel", name)
}

// Group_ creates an attribute for a group name. Named with a trailing
// underscore to avoid colliding with slog.Group.
func Group_(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("group", name)
}

// Layer creates an attribute for a channel layer alias.
func Layer(alias string) slog.Attr {
	if alias == "" {
		return slog.Attr{}
	}
	return slog.String("layer", alias)
}

// MessageType creates an attribute for a dispatch type (e.g. "chat.message").
func MessageType(t string) slog.Attr {
	if t == "" {
		return slog.Attr{}
	}
	return slog.String("message_type", t)
}

// Shard creates an attribute for a Redis shard index.
func Shard(index int) slog.Attr {
	return slog.Int("shard", index)
}

// Count creates a generic count attribute under a custom key.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}
