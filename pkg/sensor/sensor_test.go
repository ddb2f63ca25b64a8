package sensor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestCategoryMask(t *testing.T) {
	t.Run("SetAndHas", func(t *testing.T) {
		var m CategoryMask
		if !m.Empty() {
			t.Fatal("zero mask not empty")
		}

		m = m.Set(CategoryLight)
		if !m.Has(CategoryLight) {
			t.Error("mask missing set category")
		}
		if m.Has(CategoryBattery) {
			t.Error("mask has category that was never set")
		}
	})

	t.Run("FullRequiresAll", func(t *testing.T) {
		var m CategoryMask
		for c := Category(0); c < CategoryCount; c++ {
			if m.Full() {
				t.Fatalf("mask full after %d of %d categories", c, CategoryCount)
			}
			m = m.Set(c)
		}
		if !m.Full() {
			t.Error("mask not full with every category set")
		}
	})
}

func TestMeasurementFormatting(t *testing.T) {
	tests := []struct {
		m    Measurement
		want string
	}{
		{Float3("tmp", 23.4567), "23.457"},
		{Float3("hum", 50), "50.000"},
		{Position7("lat", 63.4212963), "63.4212963"},
		{Position7("lng", -10.5), "-10.5000000"},
		{Integer("sat", 7), "7"},
	}

	for _, tt := range tests {
		if got := string(tt.m.AppendValue(nil)); got != tt.want {
			t.Errorf("%s (%s): got %q, want %q", tt.m.Name, tt.m.Kind, got, tt.want)
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want DataError
	}{
		{nil, DataOK},
		{ErrNotInitialized, DataNotInitialized},
		{fmt.Errorf("i2c: %w", ErrReadTimeout), DataTimeout},
		{errors.New("bus stuck"), DataReadFailed},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

// fakeProducer counts samples and can fail on demand.
type fakeProducer struct {
	samples atomic.Int32
	fail    error
}

func (p *fakeProducer) DisplayName() string { return "Fake" }

func (p *fakeProducer) Sample(context.Context) ([]Measurement, error) {
	p.samples.Add(1)
	if p.fail != nil {
		return nil, p.fail
	}
	return []Measurement{Float3("val", 1.0)}, nil
}

func TestRunner(t *testing.T) {
	t.Run("SuspendedByDefault", func(t *testing.T) {
		p := &fakeProducer{}
		out := make(chan Packet, 8)
		r := NewRunner(CategoryLight, p, out, nil)
		if err := r.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		defer r.Stop()
		_ = r.SetPeriod(5 * time.Millisecond)

		time.Sleep(30 * time.Millisecond)
		if n := p.samples.Load(); n != 0 {
			t.Errorf("suspended runner sampled %d times", n)
		}
	})

	t.Run("DeliversWhenPublishing", func(t *testing.T) {
		p := &fakeProducer{}
		out := make(chan Packet, 8)
		r := NewRunner(CategoryLight, p, out, nil)
		if err := r.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		defer r.Stop()

		_ = r.SetPeriod(5 * time.Millisecond)
		r.SetPublish(true)
		r.Resume()

		select {
		case pkt := <-out:
			if pkt.Category != CategoryLight {
				t.Errorf("packet category = %v", pkt.Category)
			}
			if !pkt.OK() || len(pkt.Measurements) != 1 {
				t.Errorf("unexpected packet: %+v", pkt)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no packet delivered")
		}
	})

	t.Run("PublishGateDiscards", func(t *testing.T) {
		p := &fakeProducer{}
		out := make(chan Packet, 8)
		r := NewRunner(CategoryLight, p, out, nil)
		if err := r.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		defer r.Stop()

		_ = r.SetPeriod(5 * time.Millisecond)
		r.Resume()

		time.Sleep(50 * time.Millisecond)
		if p.samples.Load() == 0 {
			t.Error("resumed runner never sampled")
		}
		select {
		case pkt := <-out:
			t.Errorf("packet delivered with publish gate closed: %+v", pkt)
		default:
		}
	})

	t.Run("ErrorBecomesPacketData", func(t *testing.T) {
		p := &fakeProducer{fail: ErrNotInitialized}
		out := make(chan Packet, 8)
		r := NewRunner(CategoryGyroscope, p, out, nil)
		if err := r.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		defer r.Stop()

		_ = r.SetPeriod(5 * time.Millisecond)
		r.SetPublish(true)
		r.Resume()

		select {
		case pkt := <-out:
			if pkt.Err != DataNotInitialized {
				t.Errorf("packet err = %v, want NOT_INIT", pkt.Err)
			}
			if len(pkt.Measurements) != 0 {
				t.Error("error packet carries measurements")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no packet delivered")
		}
	})

	t.Run("DoubleStartRejected", func(t *testing.T) {
		r := NewRunner(CategoryLight, &fakeProducer{}, make(chan Packet, 1), nil)
		if err := r.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		defer r.Stop()
		if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
			t.Errorf("second Start: err = %v, want ErrAlreadyRunning", err)
		}
	})

	t.Run("InvalidPeriodRejected", func(t *testing.T) {
		r := NewRunner(CategoryLight, &fakeProducer{}, make(chan Packet, 1), nil)
		if err := r.SetPeriod(0); !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("SetPeriod(0): err = %v, want ErrInvalidPeriod", err)
		}
	})
}
