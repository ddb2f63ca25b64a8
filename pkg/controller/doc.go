// Package controller serializes every mode and link transition of the
// gateway. It is the only component allowed to switch the active wide-area
// link, change the shared sampling period, toggle producers, and select
// the aggregation shape.
//
// All transitions run on one worker goroutine fed by an ops channel;
// command handlers block on a reply channel, so a caller observes its
// transition's result synchronously while the work itself is decoupled.
// A transition holds the controller's lock flag for its whole duration:
// configuration commands arriving mid-transition are rejected with a
// state error rather than queued.
package controller
