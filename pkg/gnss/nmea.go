package gnss

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Parse errors.
var (
	// ErrMalformed indicates a sentence without the required framing or
	// field count.
	ErrMalformed = errors.New("malformed nmea sentence")

	// ErrBadChecksum indicates the sentence checksum does not match.
	ErrBadChecksum = errors.New("nmea checksum mismatch")

	// ErrUnsupported indicates a sentence type the parser does not handle.
	ErrUnsupported = errors.New("unsupported nmea sentence")
)

// knotToMetersPerSecond converts speed over ground.
const knotToMetersPerSecond = 0.514444

// RMC is the recommended minimum sentence: position, speed and time.
type RMC struct {
	Time      time.Time
	Valid     bool
	Latitude  float64
	Longitude float64

	// Speed over ground in m/s.
	Speed float64
}

// GGA is the fix data sentence: altitude and satellite count.
type GGA struct {
	// Quality is the fix quality indicator; 0 means no fix.
	Quality    int
	Satellites int

	// Altitude above mean sea level in meters.
	Altitude float64
}

// Sentence is a parsed NMEA sentence, either *RMC or *GGA.
type Sentence interface {
	sentence()
}

func (*RMC) sentence() {}
func (*GGA) sentence() {}

// Parse validates one NMEA line and decodes it. Unknown sentence types
// return ErrUnsupported so the reader can skip them cheaply.
func Parse(line string) (Sentence, error) {
	fields, err := frame(line)
	if err != nil {
		return nil, err
	}

	// The talker prefix varies by constellation (GP, GN, GL); only the
	// sentence type matters.
	typ := fields[0]
	if len(typ) < 5 {
		return nil, ErrMalformed
	}
	switch typ[2:] {
	case "RMC":
		return parseRMC(fields)
	case "GGA":
		return parseGGA(fields)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, typ)
	}
}

// frame strips the $...*hh framing, verifies the checksum, and splits the
// payload into comma fields.
func frame(line string) ([]string, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 9 || line[0] != '$' {
		return nil, ErrMalformed
	}

	star := strings.LastIndexByte(line, '*')
	if star < 0 || star+3 != len(line) {
		return nil, ErrMalformed
	}
	payload := line[1:star]

	want, err := strconv.ParseUint(line[star+1:], 16, 8)
	if err != nil {
		return nil, ErrMalformed
	}
	var sum byte
	for i := 0; i < len(payload); i++ {
		sum ^= payload[i]
	}
	if sum != byte(want) {
		return nil, ErrBadChecksum
	}

	return strings.Split(payload, ","), nil
}

func parseRMC(fields []string) (*RMC, error) {
	if len(fields) < 10 {
		return nil, ErrMalformed
	}

	r := &RMC{Valid: fields[2] == "A"}
	if !r.Valid {
		return r, nil
	}

	var err error
	if r.Latitude, err = parseCoordinate(fields[3], fields[4]); err != nil {
		return nil, err
	}
	if r.Longitude, err = parseCoordinate(fields[5], fields[6]); err != nil {
		return nil, err
	}
	if fields[7] != "" {
		knots, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: speed %q", ErrMalformed, fields[7])
		}
		r.Speed = knots * knotToMetersPerSecond
	}
	if r.Time, err = parseDateTime(fields[9], fields[1]); err != nil {
		return nil, err
	}
	return r, nil
}

func parseGGA(fields []string) (*GGA, error) {
	if len(fields) < 10 {
		return nil, ErrMalformed
	}

	g := &GGA{}
	var err error
	if g.Quality, err = strconv.Atoi(fields[6]); err != nil {
		return nil, fmt.Errorf("%w: quality %q", ErrMalformed, fields[6])
	}
	if g.Quality == 0 {
		return g, nil
	}

	if g.Satellites, err = strconv.Atoi(fields[7]); err != nil {
		return nil, fmt.Errorf("%w: satellites %q", ErrMalformed, fields[7])
	}
	if fields[9] != "" {
		if g.Altitude, err = strconv.ParseFloat(fields[9], 64); err != nil {
			return nil, fmt.Errorf("%w: altitude %q", ErrMalformed, fields[9])
		}
	}
	return g, nil
}

// parseCoordinate converts a ddmm.mmmm (or dddmm.mmmm) value and its
// hemisphere into signed decimal degrees.
func parseCoordinate(value, hemisphere string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: coordinate %q", ErrMalformed, value)
	}

	degrees := math.Floor(v / 100)
	minutes := v - degrees*100
	dec := degrees + minutes/60

	switch hemisphere {
	case "N", "E":
		return dec, nil
	case "S", "W":
		return -dec, nil
	default:
		return 0, fmt.Errorf("%w: hemisphere %q", ErrMalformed, hemisphere)
	}
}

// parseDateTime combines the RMC ddmmyy date and hhmmss.ss time fields.
func parseDateTime(date, clock string) (time.Time, error) {
	if len(date) != 6 || len(clock) < 6 {
		return time.Time{}, fmt.Errorf("%w: timestamp %q %q", ErrMalformed, date, clock)
	}

	day, err1 := strconv.Atoi(date[0:2])
	month, err2 := strconv.Atoi(date[2:4])
	year, err3 := strconv.Atoi(date[4:6])
	hour, err4 := strconv.Atoi(clock[0:2])
	minute, err5 := strconv.Atoi(clock[2:4])
	second, err6 := strconv.ParseFloat(clock[4:], 64)
	for _, err := range []error{err1, err2, err3, err4, err5, err6} {
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timestamp %q %q", ErrMalformed, date, clock)
		}
	}

	sec, frac := math.Modf(second)
	return time.Date(2000+year, time.Month(month), day,
		hour, minute, int(sec), int(frac*float64(time.Second)), time.UTC), nil
}
