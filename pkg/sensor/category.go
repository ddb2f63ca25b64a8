package sensor

// Category identifies one onboard producer. The enum is closed: every mask
// and per-category table in the system is sized by CategoryCount.
type Category uint8

const (
	// CategoryEnvironmental is the combined temperature/humidity/pressure sensor.
	CategoryEnvironmental Category = iota

	// CategoryBattery is the battery and system vitals monitor.
	CategoryBattery

	// CategoryAccelerometerA is the primary accelerometer.
	CategoryAccelerometerA

	// CategoryMagnetometer is the 3-axis magnetometer.
	CategoryMagnetometer

	// CategoryLight is the ambient light sensor.
	CategoryLight

	// CategoryGyroscope is the 3-axis gyroscope.
	CategoryGyroscope

	// CategoryPosition is the GNSS position producer. Unlike the bus
	// sensors its read is an asynchronous request/callback protocol.
	CategoryPosition

	// CategoryCount bounds all category-indexed masks and tables.
	CategoryCount
)

// Valid reports whether c names a real producer.
func (c Category) Valid() bool {
	return c < CategoryCount
}

// String returns the report identifier used in the "ID" field.
func (c Category) String() string {
	switch c {
	case CategoryEnvironmental:
		return "ENV"
	case CategoryBattery:
		return "BAT"
	case CategoryAccelerometerA:
		return "ACC"
	case CategoryMagnetometer:
		return "MAG"
	case CategoryLight:
		return "LHT"
	case CategoryGyroscope:
		return "GYR"
	case CategoryPosition:
		return "GNSS"
	default:
		return "UNKNOWN"
	}
}

// CategoryMask is a bitset over Category, used to track which producers have
// reported in the current aggregation round.
type CategoryMask uint16

// FullCategoryMask has every category bit set.
const FullCategoryMask = CategoryMask(1<<CategoryCount) - 1

// Set returns m with the bit for c set.
func (m CategoryMask) Set(c Category) CategoryMask {
	return m | 1<<c
}

// Has reports whether the bit for c is set.
func (m CategoryMask) Has(c Category) bool {
	return m&(1<<c) != 0
}

// Empty reports whether no bit is set.
func (m CategoryMask) Empty() bool {
	return m == 0
}

// Full reports whether every category bit is set.
func (m CategoryMask) Full() bool {
	return m == FullCategoryMask
}
