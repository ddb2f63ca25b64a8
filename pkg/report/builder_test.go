package report

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldlink-iot/fieldlink-go/pkg/codec"
	"github.com/fieldlink-iot/fieldlink-go/pkg/sensor"
)

func testTopics() Topics {
	var topics Topics
	topics.All = Topic{Name: "fieldlink/dev-1/all", Alias: 1}
	for c := sensor.Category(0); c < sensor.CategoryCount; c++ {
		topics.PerCategory[c] = Topic{
			Name:  fmt.Sprintf("fieldlink/dev-1/%s", strings.ToLower(c.String())),
			Alias: uint16(c) + 2,
		}
	}
	return topics
}

// submitAll feeds one OK packet per category and returns the final outcome.
func submitAll(t *testing.T, b *Builder) Outcome {
	t.Helper()
	var last Outcome
	for c := sensor.Category(0); c < sensor.CategoryCount; c++ {
		out, err := b.Submit(sensor.Packet{
			Category:     c,
			Measurements: []sensor.Measurement{sensor.Float3("val", float64(c))},
		})
		require.NoError(t, err)
		last = out
	}
	return last
}

func TestSubmitAggregated(t *testing.T) {
	t.Run("CompleteOnlyOnLastCategory", func(t *testing.T) {
		b := NewBuilder("dev-1", testTopics(), 0)

		for c := sensor.Category(0); c < sensor.CategoryCount; c++ {
			out, err := b.Submit(sensor.Packet{
				Category:     c,
				Measurements: []sensor.Measurement{sensor.Integer("v", 1)},
			})
			require.NoError(t, err)

			assert.True(t, b.Received().Has(c), "mask missing %v after submit", c)
			if c == sensor.CategoryCount-1 {
				assert.Equal(t, Complete, out, "last submit must complete the round")
			} else {
				assert.Equal(t, Pending, out, "round complete after only %d categories", c+1)
			}
		}
	})

	t.Run("EnvelopeFormat", func(t *testing.T) {
		b := NewBuilder("dev-1", testTopics(), 0)
		require.Equal(t, Complete, submitAll(t, b))

		topic, payload, err := b.Document()
		require.NoError(t, err)
		assert.Equal(t, "fieldlink/dev-1/all", topic.Name)

		raw, err := codec.DecodeString(string(payload))
		require.NoError(t, err)

		doc := string(raw)
		assert.True(t, strings.HasPrefix(doc, `{"Dev":"dev-1","Sensors":[`), "envelope header: %s", doc)
		assert.True(t, strings.HasSuffix(doc, `]}`), "envelope footer: %s", doc)
		assert.Contains(t, doc, `{"ID":"ENV","samples":[{"nm":"val","vl":0.000}]}`)
		assert.Contains(t, doc, `{"ID":"GNSS","samples":[{"nm":"val","vl":6.000}]}`)
	})

	t.Run("DuplicateCategoryDropped", func(t *testing.T) {
		b := NewBuilder("dev-1", testTopics(), 0)

		// A fast producer laps the round before the slow ones report.
		for i := 0; i < 3; i++ {
			out, err := b.Submit(sensor.Packet{
				Category:     sensor.CategoryEnvironmental,
				Measurements: []sensor.Measurement{sensor.Float3("tmp", float64(20 + i))},
			})
			require.NoError(t, err)
			assert.Equal(t, Pending, out)
		}

		for c := sensor.Category(0); c < sensor.CategoryCount; c++ {
			if c == sensor.CategoryEnvironmental {
				continue
			}
			_, err := b.Submit(sensor.Packet{
				Category:     c,
				Measurements: []sensor.Measurement{sensor.Integer("v", 1)},
			})
			require.NoError(t, err)
		}

		_, payload, err := b.Document()
		require.NoError(t, err)
		raw, err := codec.DecodeString(string(payload))
		require.NoError(t, err)

		assert.Equal(t, 1, strings.Count(string(raw), `"ID":"ENV"`), "duplicate object in envelope: %s", raw)
		assert.Contains(t, string(raw), `{"nm":"tmp","vl":20.000}`, "first submission must stand")
	})

	t.Run("ErrorPacketRendersErrObject", func(t *testing.T) {
		b := NewBuilder("dev-1", testTopics(), 0)

		_, err := b.Submit(sensor.ErrorPacket(sensor.CategoryLight, "Light", sensor.DataReadFailed))
		require.NoError(t, err)
		for c := sensor.Category(0); c < sensor.CategoryCount; c++ {
			if c == sensor.CategoryLight {
				continue
			}
			_, err := b.Submit(sensor.Packet{
				Category:     c,
				Measurements: []sensor.Measurement{sensor.Integer("v", 1)},
			})
			require.NoError(t, err)
		}

		_, payload, err := b.Document()
		require.NoError(t, err)
		raw, err := codec.DecodeString(string(payload))
		require.NoError(t, err)
		assert.Contains(t, string(raw), `{"ID":"LHT","err":"READ_FAIL"}`)
	})

	t.Run("SubmitOrderPreserved", func(t *testing.T) {
		b := NewBuilder("dev-1", testTopics(), 0)

		// Reverse category order; output must follow arrival order.
		for c := sensor.CategoryCount; c > 0; c-- {
			_, err := b.Submit(sensor.Packet{
				Category:     c - 1,
				Measurements: []sensor.Measurement{sensor.Integer("v", 1)},
			})
			require.NoError(t, err)
		}

		_, payload, err := b.Document()
		require.NoError(t, err)
		raw, err := codec.DecodeString(string(payload))
		require.NoError(t, err)

		gnss := strings.Index(string(raw), `"ID":"GNSS"`)
		env := strings.Index(string(raw), `"ID":"ENV"`)
		assert.Less(t, gnss, env, "arrival order not preserved")
	})
}

func TestSubmitPerSensor(t *testing.T) {
	b := NewBuilder("dev-1", testTopics(), 0)
	b.SetAggregate(false)

	out, err := b.Submit(sensor.Packet{
		Category:     sensor.CategoryBattery,
		Measurements: []sensor.Measurement{sensor.Float3("soc", 87.5)},
	})
	require.NoError(t, err)
	assert.Equal(t, Complete, out, "per-sensor submit must always complete")
	assert.True(t, b.Received().Empty(), "per-sensor mode must not track a mask")

	topic, payload, err := b.Document()
	require.NoError(t, err)
	assert.Equal(t, "fieldlink/dev-1/bat", topic.Name)

	raw, err := codec.DecodeString(string(payload))
	require.NoError(t, err)
	assert.Equal(t, `{"ID":"BAT","samples":[{"nm":"soc","vl":87.500}]}`, string(raw))
}

func TestReset(t *testing.T) {
	t.Run("ClearsRoundState", func(t *testing.T) {
		b := NewBuilder("dev-1", testTopics(), 0)
		require.Equal(t, Complete, submitAll(t, b))

		b.Reset()
		assert.True(t, b.Received().Empty())
		_, _, err := b.Document()
		assert.ErrorIs(t, err, ErrNoDocument)
	})

	t.Run("NextRoundIndependentOfPreResetState", func(t *testing.T) {
		fresh := NewBuilder("dev-1", testTopics(), 0)
		require.Equal(t, Complete, submitAll(t, fresh))
		_, want, err := fresh.Document()
		require.NoError(t, err)

		dirty := NewBuilder("dev-1", testTopics(), 0)
		_, err = dirty.Submit(sensor.ErrorPacket(sensor.CategoryGyroscope, "Gyro", sensor.DataTimeout))
		require.NoError(t, err)
		dirty.Reset()
		require.Equal(t, Complete, submitAll(t, dirty))
		_, got, err := dirty.Document()
		require.NoError(t, err)

		assert.Equal(t, string(want), string(got))
	})
}

func TestEncodeOverflow(t *testing.T) {
	b := NewBuilder("dev-1", testTopics(), 0)
	b.SetAggregate(false)
	b.SetMaxEncoded(16)

	big := make([]sensor.Measurement, 8)
	for i := range big {
		big[i] = sensor.Float3(fmt.Sprintf("m%d", i), float64(i))
	}
	_, err := b.Submit(sensor.Packet{Category: sensor.CategoryEnvironmental, Measurements: big})
	require.ErrorIs(t, err, ErrEncodeOverflow)

	// Abort path: reset and a small round must still work.
	b.Reset()
	b.SetMaxEncoded(0)
	b.SetMaxEncoded(DefaultMaxMessageSize)
	out, err := b.Submit(sensor.Packet{
		Category:     sensor.CategoryEnvironmental,
		Measurements: []sensor.Measurement{sensor.Float3("tmp", 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
}

func TestSubmitInvalidCategory(t *testing.T) {
	b := NewBuilder("dev-1", testTopics(), 0)
	_, err := b.Submit(sensor.Packet{Category: sensor.CategoryCount})
	assert.ErrorIs(t, err, ErrInvalidCategory)
	assert.True(t, b.Received().Empty(), "rejected packet must not touch the round")
}
