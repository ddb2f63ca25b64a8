package sensor

import (
	"context"
	"errors"
)

// Producer read errors. Implementations wrap or return these so the runner
// can map a failure onto the packet's DataError code.
var (
	// ErrNotInitialized indicates the underlying device was never set up.
	ErrNotInitialized = errors.New("sensor not initialized")

	// ErrReadTimeout indicates the read did not complete in time.
	ErrReadTimeout = errors.New("sensor read timed out")
)

// Producer is one onboard sensor as seen by the aggregation core. Bus-level
// access is the implementation's concern; the core only calls Sample once
// per cadence tick.
type Producer interface {
	// DisplayName returns the human-readable sensor name.
	DisplayName() string

	// Sample reads the sensor once and returns the tick's measurements.
	Sample(ctx context.Context) ([]Measurement, error)
}

// ClassifyError maps a Sample error onto the packet error code.
func ClassifyError(err error) DataError {
	switch {
	case err == nil:
		return DataOK
	case errors.Is(err, ErrNotInitialized):
		return DataNotInitialized
	case errors.Is(err, ErrReadTimeout):
		return DataTimeout
	default:
		return DataReadFailed
	}
}
