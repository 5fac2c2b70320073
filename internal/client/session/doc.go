// Package session owns the lifecycle policy around the gateway session: it
// adopts or renews a stored session at startup, runs the background expiry
// and proactive refresh sweeps while a session exists, and forces a local
// logout when a session can no longer be kept.
//
// All operations and sweep ticks are serialized. Logout is the exception: it
// never waits for an in-flight operation, whose late result the gateway then
// discards.
package session
