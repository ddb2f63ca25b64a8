// Package dispatch moves finished reports from the message builder onto
// whichever wide-area link is connected.
//
// The dispatcher owns the single packet channel every producer delivers
// into; one consumer goroutine serializes Submit and Reset on the builder,
// so no producer ever touches round state concurrently. Publishing is
// fire-and-forget: a failed or impossible publish is journaled and the
// round is reset regardless.
package dispatch
