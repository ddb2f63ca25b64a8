package sensor

import "strconv"

// ValueKind selects the numeric representation and report formatting of a
// measurement value.
type ValueKind uint8

const (
	// KindFloat renders with 3 decimal places.
	KindFloat ValueKind = iota

	// KindPositionFloat renders with 7 decimal places (GNSS coordinates).
	KindPositionFloat

	// KindInteger renders as a plain integer.
	KindInteger
)

// String returns the value kind name.
func (k ValueKind) String() string {
	switch k {
	case KindFloat:
		return "FLOAT"
	case KindPositionFloat:
		return "POSITION_FLOAT"
	case KindInteger:
		return "INTEGER"
	default:
		return "UNKNOWN"
	}
}

// Measurement is one named sample value inside a packet.
type Measurement struct {
	// Name is the short sample code (the "nm" field).
	Name string

	// Kind selects which value field is meaningful and how it renders.
	Kind ValueKind

	// Float holds the value for KindFloat and KindPositionFloat.
	Float float64

	// Int holds the value for KindInteger.
	Int int64
}

// Float3 returns a 3-decimal float measurement.
func Float3(name string, v float64) Measurement {
	return Measurement{Name: name, Kind: KindFloat, Float: v}
}

// Position7 returns a 7-decimal position float measurement.
func Position7(name string, v float64) Measurement {
	return Measurement{Name: name, Kind: KindPositionFloat, Float: v}
}

// Integer returns a plain integer measurement.
func Integer(name string, v int64) Measurement {
	return Measurement{Name: name, Kind: KindInteger, Int: v}
}

// AppendValue appends the report rendering of the value to dst.
func (m Measurement) AppendValue(dst []byte) []byte {
	switch m.Kind {
	case KindPositionFloat:
		return strconv.AppendFloat(dst, m.Float, 'f', 7, 64)
	case KindInteger:
		return strconv.AppendInt(dst, m.Int, 10)
	default:
		return strconv.AppendFloat(dst, m.Float, 'f', 3, 64)
	}
}
