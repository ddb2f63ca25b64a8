package position

import (
	"time"

	"github.com/fieldlink-iot/fieldlink-go/pkg/sensor"
)

// Fix is one resolved GNSS position result.
type Fix struct {
	// Latitude in decimal degrees, north positive.
	Latitude float64

	// Longitude in decimal degrees, east positive.
	Longitude float64

	// Altitude above mean sea level in meters.
	Altitude float64

	// Speed over ground in m/s.
	Speed float64

	// Satellites used for the fix.
	Satellites int

	// Time the fix was resolved.
	Time time.Time
}

// Measurements renders the fix in report form: coordinates as position
// floats, altitude and speed as generic floats, satellite count as integer.
func (f *Fix) Measurements() []sensor.Measurement {
	return []sensor.Measurement{
		sensor.Position7("lat", f.Latitude),
		sensor.Position7("lng", f.Longitude),
		sensor.Float3("alt", f.Altitude),
		sensor.Float3("spd", f.Speed),
		sensor.Integer("sat", int64(f.Satellites)),
	}
}

// Requester is the GNSS driver seen by the acquisition state machine.
// Request starts one asynchronous fix attempt; the callback is invoked at
// most once, from any goroutine. Release ends the attempt's session and
// must be called exactly once per successful Request before the next
// Request is issued.
type Requester interface {
	Request(cb func(fix *Fix, err error)) error
	Release()
}
