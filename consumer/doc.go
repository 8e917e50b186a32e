// Package consumer implements the event-dispatch runtime described by
// spec.md §4.8: a generic Consumer that turns a stream of ASGI-shaped
// events into ordered, routed handler invocations, plus WebSocket and JSON
// specializations built on top of it.
//
// A Consumer is constructed once per connection, registers handlers for the
// dispatch types it understands via On, and is then invoked as an
// Application: Run(ctx, scope, receive, send). Group membership declared at
// construction is joined before the first event is dispatched and left,
// best-effort, on every exit path.
package consumer
