package link

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("Sequence", func(t *testing.T) {
		b := NewBackoff()

		// Base sequence (before jitter): 2s, 4s, 8s, ... capped at 5m.
		expected := []time.Duration{
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			32 * time.Second,
			64 * time.Second,
			128 * time.Second,
			256 * time.Second,
			5 * time.Minute,
			5 * time.Minute,
		}

		for i, exp := range expected {
			base := b.Current()
			got := b.Next()
			if base != exp {
				t.Errorf("attempt %d: base = %v, want %v", i, base, exp)
			}
			maxWithJitter := exp + time.Duration(JitterFactor*float64(exp))
			if got < exp || got > maxWithJitter {
				t.Errorf("attempt %d: delay %v outside [%v, %v]", i, got, exp, maxWithJitter)
			}
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()
		for i := 0; i < 5; i++ {
			b.Next()
		}
		b.Reset()
		if got := b.Current(); got != InitialBackoff {
			t.Errorf("Current after Reset = %v, want %v", got, InitialBackoff)
		}
		if got := b.Attempts(); got != 0 {
			t.Errorf("Attempts after Reset = %d, want 0", got)
		}
	})
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusClosed, "CLOSED"},
		{StatusOpen, "OPEN"},
		{StatusConnected, "CONNECTED"},
		{Status(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindShortRange.String() != "SHORT_RANGE" || KindCellular.String() != "CELLULAR" {
		t.Error("unexpected kind names")
	}
}
