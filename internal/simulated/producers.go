package simulated

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/fieldlink-iot/fieldlink-go/pkg/sensor"
)

// channel is one synthetic output of a waveform producer.
type channel struct {
	name      string
	base      float64
	amplitude float64

	// period is the channel's cycle length in samples.
	period float64
}

// Waveform is a synthetic sensor producing sinusoid channels with a
// little seeded noise. Two producers built from the same seed emit the
// same sequence.
type Waveform struct {
	name     string
	channels []channel

	mu   sync.Mutex
	rng  *rand.Rand
	step int
}

var _ sensor.Producer = (*Waveform)(nil)

func newWaveform(name string, seed int64, channels []channel) *Waveform {
	return &Waveform{
		name:     name,
		channels: channels,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// DisplayName returns the sensor name.
func (w *Waveform) DisplayName() string {
	return w.name
}

// Sample advances the waveform one step and returns all channels.
func (w *Waveform) Sample(ctx context.Context) ([]sensor.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]sensor.Measurement, 0, len(w.channels))
	for _, c := range w.channels {
		noise := (w.rng.Float64() - 0.5) * c.amplitude * 0.05
		v := c.base + c.amplitude*math.Sin(2*math.Pi*float64(w.step)/c.period) + noise
		out = append(out, sensor.Float3(c.name, v))
	}
	w.step++
	return out, nil
}

// NewEnvironmental simulates the temperature/humidity/pressure sensor.
func NewEnvironmental(seed int64) *Waveform {
	return newWaveform("ENV", seed, []channel{
		{name: "tmp", base: 21.5, amplitude: 4.0, period: 240},
		{name: "hum", base: 45.0, amplitude: 10.0, period: 300},
		{name: "prs", base: 1013.25, amplitude: 3.0, period: 600},
	})
}

// NewAccelerometer simulates the primary accelerometer, at rest with
// gravity on the z axis.
func NewAccelerometer(seed int64) *Waveform {
	return newWaveform("ACC", seed, []channel{
		{name: "ax", base: 0, amplitude: 0.12, period: 17},
		{name: "ay", base: 0, amplitude: 0.12, period: 23},
		{name: "az", base: 9.81, amplitude: 0.08, period: 31},
	})
}

// NewMagnetometer simulates the 3-axis magnetometer in microtesla.
func NewMagnetometer(seed int64) *Waveform {
	return newWaveform("MAG", seed, []channel{
		{name: "mx", base: 20.0, amplitude: 2.5, period: 120},
		{name: "my", base: -4.0, amplitude: 2.5, period: 140},
		{name: "mz", base: 43.0, amplitude: 1.5, period: 160},
	})
}

// NewLight simulates the ambient light sensor over a slow daylight cycle.
func NewLight(seed int64) *Waveform {
	return newWaveform("LHT", seed, []channel{
		{name: "lux", base: 480.0, amplitude: 450.0, period: 1440},
	})
}

// NewGyroscope simulates the 3-axis gyroscope in rad/s.
func NewGyroscope(seed int64) *Waveform {
	return newWaveform("GYR", seed, []channel{
		{name: "gx", base: 0, amplitude: 0.02, period: 13},
		{name: "gy", base: 0, amplitude: 0.02, period: 19},
		{name: "gz", base: 0, amplitude: 0.02, period: 29},
	})
}
