// Package app drives the festival engine: a single poll loop evaluates
// time-based transitions, ingests new mentions and persists state once per
// tick.
//
// Persistence is a known weak spot: the snapshot is written after all
// processing for a tick, so a crash between an external post and the next
// save can replay that post's effect on restart. Exactly-once delivery would
// need an idempotency-key handshake the platform does not offer.
package app
