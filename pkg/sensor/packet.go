package sensor

// DataError classifies a failed producer read. It travels inside the packet
// as data; a device-level failure never aborts an aggregation round.
type DataError uint8

const (
	// DataOK indicates a successful read.
	DataOK DataError = iota

	// DataNotInitialized indicates the producer's device was never brought up.
	DataNotInitialized

	// DataReadFailed indicates the read itself failed.
	DataReadFailed

	// DataTimeout indicates the read did not complete in time.
	DataTimeout
)

// Code returns the short error code used in the "err" report field.
func (e DataError) Code() string {
	switch e {
	case DataOK:
		return "OK"
	case DataNotInitialized:
		return "NOT_INIT"
	case DataReadFailed:
		return "READ_FAIL"
	case DataTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// String returns the error code name.
func (e DataError) String() string { return e.Code() }

// Packet carries one producer's result for one sampling tick. Packets are
// built fresh each tick, handed to the dispatcher, and discarded.
type Packet struct {
	// Category identifies the producer.
	Category Category

	// DisplayName is the human-readable producer name, for logs only.
	DisplayName string

	// Err is DataOK on success; any other value makes this an error packet
	// and Measurements must be empty.
	Err DataError

	// Measurements holds the tick's samples in producer order.
	Measurements []Measurement
}

// OK reports whether the packet carries measurements rather than an error.
func (p Packet) OK() bool {
	return p.Err == DataOK
}

// ErrorPacket builds an error packet for the given category.
func ErrorPacket(c Category, name string, e DataError) Packet {
	return Packet{Category: c, DisplayName: name, Err: e}
}
