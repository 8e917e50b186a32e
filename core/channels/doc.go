// Package channels implements the channel-layer abstraction described by
// the fast-channels messaging substrate: channel-name validation, a
// process-wide layer registry, the shared BaseChannelLayer contract, and an
// in-memory reference layer used by tests and single-process deployments.
//
// Production backends (Redis-backed queue and pub/sub layers) live under
// integration/channellayer/redis and implement the same Layer interface
// defined here.
package channels
