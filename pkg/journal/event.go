package journal

import "time"

// Category classifies a journal event.
type Category uint8

const (
	// CategoryRound covers aggregation round dispatches and aborts.
	CategoryRound Category = 0

	// CategoryLink covers link session transitions.
	CategoryLink Category = 1

	// CategoryPosition covers position acquisition outcomes.
	CategoryPosition Category = 2

	// CategoryError covers failures at any layer.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryRound:
		return "ROUND"
	case CategoryLink:
		return "LINK"
	case CategoryPosition:
		return "POSITION"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Outcome values recorded in events.
const (
	OutcomePublished = "PUBLISHED"
	OutcomeDropped   = "DROPPED"
	OutcomeAborted   = "ABORTED"
	OutcomeConnected = "CONNECTED"
	OutcomeClosed    = "CLOSED"
	OutcomeFix       = "FIX"
	OutcomeTimeout   = "TIMEOUT"
)

// Event is one journal record. CBOR encoding uses integer keys for
// compactness on flash storage.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"2,keyasint"`

	// Outcome is the event result (see the Outcome constants).
	Outcome string `cbor:"3,keyasint,omitempty"`

	// Link names the wide-area link involved, if any.
	Link string `cbor:"4,keyasint,omitempty"`

	// Topic is the publish destination of a round event.
	Topic string `cbor:"5,keyasint,omitempty"`

	// Size is the encoded payload size of a round event, in bytes.
	Size int `cbor:"6,keyasint,omitempty"`

	// Detail carries free-form context, typically an error string.
	Detail string `cbor:"7,keyasint,omitempty"`
}

// Logger records journal events. Implementations must be safe for
// concurrent use; recording must never block the aggregation path for
// long or fail loudly.
type Logger interface {
	Record(event Event)
}

// NoopLogger discards all events. Usable as a zero value.
type NoopLogger struct{}

// Record discards the event.
func (NoopLogger) Record(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
