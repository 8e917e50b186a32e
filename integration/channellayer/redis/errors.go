package redis

import "errors"

// Domain-specific errors for the Redis channel-layer backends, checked
// with errors.Is(), following the same pattern as the teacher's
// integration/database/redis/errors.go.
var (
	// ErrNoHosts is returned when a Config names no hosts to shard across.
	ErrNoHosts = errors.New("channellayer/redis: at least one host is required")
)
