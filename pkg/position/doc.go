// Package position implements the asynchronous GNSS acquisition state
// machine. Unlike the bus sensors, a position "read" is a multi-phase
// protocol: a request is issued to the driver, the result arrives through a
// callback or a one-shot timeout fires, and the request always passes
// through a single finalize step that emits a plain sensor packet and
// releases the driver resource before the next request may start.
//
// State machine:
//
//	Idle -> Pending -> Obtained -> Completed -> Pending -> ...
//	                \________________^   (timeout: Pending -> Completed)
//
// At most one request is ever outstanding: Begin forces a finalize of any
// stale request before issuing a new one.
package position
