// Package journal is the gateway's flight recorder: an append-only,
// CBOR-encoded event log of round dispatches, link transitions, and
// position acquisition outcomes.
//
// The journal is write-only diagnostics. It is never consulted for
// delivery retries; a dropped round stays dropped.
package journal
