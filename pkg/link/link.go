package link

import (
	"context"
	"errors"
)

// Link errors.
var (
	// ErrNotConnected indicates a publish was attempted without a session.
	ErrNotConnected = errors.New("link not connected")

	// ErrAlreadyOpen indicates Open was called on a non-closed link.
	ErrAlreadyOpen = errors.New("link already open")
)

// Kind identifies one of the two interchangeable wide-area links.
type Kind uint8

const (
	// KindShortRange is the local-network link.
	KindShortRange Kind = iota

	// KindCellular is the cellular link.
	KindCellular
)

// String returns the link kind name.
func (k Kind) String() string {
	switch k {
	case KindShortRange:
		return "SHORT_RANGE"
	case KindCellular:
		return "CELLULAR"
	default:
		return "UNKNOWN"
	}
}

// Status is the link session state.
type Status uint8

const (
	// StatusClosed means no session exists.
	StatusClosed Status = iota

	// StatusOpen means a session is being established.
	StatusOpen

	// StatusConnected means the session is up and publishable.
	StatusConnected
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "CLOSED"
	case StatusOpen:
		return "OPEN"
	case StatusConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Client is one wide-area link session. Open and Close start and finish
// asynchronously; the mode controller polls Status and LastResult until the
// transition settles, bounded by the client's own connect policy.
//
// Publish is fire-and-forget: the call's own result is the only delivery
// signal and failures are never retried by the core.
type Client interface {
	// Kind identifies which link this client serves.
	Kind() Kind

	// Status returns the current session state.
	Status() Status

	// LastResult returns the outcome of the last asynchronous operation:
	// nil while in progress or successful, the failure otherwise.
	LastResult() error

	// Open starts establishing a session.
	Open(ctx context.Context) error

	// Publish sends one encoded report. alias is the topic alias assigned
	// to the topic in the device's cloud registration.
	Publish(topic string, alias uint16, payload []byte, qos byte, retain bool) error

	// Close tears the session and its network layer down.
	Close(ctx context.Context) error

	// MaxMessageSize returns the largest payload the link accepts.
	MaxMessageSize() int
}
