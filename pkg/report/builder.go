package report

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fieldlink-iot/fieldlink-go/pkg/codec"
	"github.com/fieldlink-iot/fieldlink-go/pkg/sensor"
)

// Builder errors.
var (
	// ErrInvalidCategory indicates a packet with an out-of-range category.
	ErrInvalidCategory = errors.New("packet category out of range")

	// ErrEncodeOverflow indicates the encoded document exceeds the link's
	// maximum message size. The round must be aborted via Reset.
	ErrEncodeOverflow = errors.New("encoded report exceeds maximum message size")

	// ErrNoDocument indicates Document was called before a Complete outcome.
	ErrNoDocument = errors.New("no finished document available")
)

// DefaultMaxMessageSize bounds the encoded document when the link does not
// declare its own limit.
const DefaultMaxMessageSize = 2048

// Outcome is the per-Submit result.
type Outcome uint8

const (
	// Pending indicates the round is still waiting on other categories.
	Pending Outcome = iota

	// Complete indicates a finished, encoded document is ready to dispatch.
	Complete
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Pending:
		return "PENDING"
	case Complete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Topic names one publish destination: the MQTT topic string and its
// numeric alias.
type Topic struct {
	Name  string
	Alias uint16
}

// Topics holds the fixed publish destinations: one per category for
// per-sensor mode and the all-sensors destination for aggregated mode.
type Topics struct {
	All         Topic
	PerCategory [sensor.CategoryCount]Topic
}

// Builder accumulates packets into publishable documents. Submit and Reset
// are serialized behind the builder's mutex; producers may call from any
// goroutine.
type Builder struct {
	mu sync.Mutex

	deviceID string
	topics   Topics

	// aggregate selects pooled rounds; false builds one message per packet.
	aggregate bool

	// maxEncoded caps the Base64 output size.
	maxEncoded int

	// Round state. buf is empty exactly when no round is in progress.
	mask sensor.CategoryMask
	buf  []byte

	// Finished document, valid from a Complete outcome until Reset.
	encoded []byte
	topic   Topic
	done    bool
}

// NewBuilder creates a builder for the given device identity and topic map.
// maxEncoded bounds the encoded document size; zero selects
// DefaultMaxMessageSize.
func NewBuilder(deviceID string, topics Topics, maxEncoded int) *Builder {
	if maxEncoded <= 0 {
		maxEncoded = DefaultMaxMessageSize
	}
	return &Builder{
		deviceID:   deviceID,
		topics:     topics,
		aggregate:  true,
		maxEncoded: maxEncoded,
	}
}

// SetAggregate selects pooled rounds (true) or per-sensor messages (false).
// The mode controller only changes this while no round is in progress.
func (b *Builder) SetAggregate(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aggregate = enabled
}

// Aggregate reports whether pooled rounds are selected.
func (b *Builder) Aggregate() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aggregate
}

// SetMaxEncoded adjusts the encoded size cap to the active link's limit.
func (b *Builder) SetMaxEncoded(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > 0 {
		b.maxEncoded = n
	}
}

// Received returns the categories that have reported in the current round.
func (b *Builder) Received() sensor.CategoryMask {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mask
}

// Submit folds one packet into the current round. In aggregated mode it
// returns Pending until every category has reported, then encodes the full
// envelope and returns Complete. In per-sensor mode every call returns
// Complete with a self-contained document.
//
// ErrEncodeOverflow aborts the round: the caller must Reset.
func (b *Builder) Submit(p sensor.Packet) (Outcome, error) {
	if !p.Category.Valid() {
		return Pending, fmt.Errorf("%w: %d", ErrInvalidCategory, p.Category)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.aggregate {
		return b.submitSingle(p)
	}

	// A producer on a faster cadence can lap the round while a slower one
	// is still due. The first submission stands; later ones are dropped so
	// the envelope never carries the same category twice.
	if b.mask.Has(p.Category) {
		return Pending, nil
	}

	if b.mask.Empty() {
		b.buf = append(b.buf[:0], `{"Dev":"`...)
		b.buf = append(b.buf, b.deviceID...)
		b.buf = append(b.buf, `","Sensors":[`...)
	} else {
		b.buf = append(b.buf, ',')
	}

	b.buf = appendSensorObject(b.buf, p)
	b.mask = b.mask.Set(p.Category)

	if !b.mask.Full() {
		return Pending, nil
	}

	b.buf = append(b.buf, `]}`...)
	if err := b.encode(); err != nil {
		return Pending, err
	}
	b.topic = b.topics.All
	b.done = true
	return Complete, nil
}

// submitSingle builds a per-sensor document. Caller holds the lock.
func (b *Builder) submitSingle(p sensor.Packet) (Outcome, error) {
	b.buf = appendSensorObject(b.buf[:0], p)
	if err := b.encode(); err != nil {
		return Pending, err
	}
	b.topic = b.topics.PerCategory[p.Category]
	b.done = true
	return Complete, nil
}

// encode Base64-encodes buf against the size cap. Caller holds the lock.
func (b *Builder) encode() error {
	if codec.EncodedLen(len(b.buf)) > b.maxEncoded {
		return fmt.Errorf("%w: %d bytes raw, cap %d", ErrEncodeOverflow, len(b.buf), b.maxEncoded)
	}
	dst := make([]byte, codec.EncodedLen(len(b.buf)))
	n, err := codec.Encode(dst, b.buf)
	if err != nil {
		return err
	}
	b.encoded = dst[:n]
	return nil
}

// Document returns the finished topic and encoded payload. Only valid after
// a Complete outcome and before the following Reset.
func (b *Builder) Document() (Topic, []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.done {
		return Topic{}, nil, ErrNoDocument
	}
	return b.topic, b.encoded, nil
}

// Reset clears all round state. It must run after every dispatch and after
// every abort so a half-built round never leaks into the next.
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mask = 0
	b.buf = b.buf[:0]
	b.encoded = nil
	b.topic = Topic{}
	b.done = false
}

// appendSensorObject renders one packet as a report object.
func appendSensorObject(dst []byte, p sensor.Packet) []byte {
	dst = append(dst, `{"ID":"`...)
	dst = append(dst, p.Category.String()...)

	if !p.OK() {
		dst = append(dst, `","err":"`...)
		dst = append(dst, p.Err.Code()...)
		return append(dst, `"}`...)
	}

	dst = append(dst, `","samples":[`...)
	for i, m := range p.Measurements {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, `{"nm":"`...)
		dst = append(dst, m.Name...)
		dst = append(dst, `","vl":`...)
		dst = m.AppendValue(dst)
		dst = append(dst, '}')
	}
	return append(dst, `]}`...)
}
