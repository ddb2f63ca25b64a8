package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.cbor")

	l, err := NewFileLogger(path, 0)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now().Truncate(time.Second)
	l.Record(Event{
		Timestamp: now,
		Category:  CategoryRound,
		Outcome:   OutcomePublished,
		Link:      "SHORT_RANGE",
		Topic:     "fieldlink/dev-1/all",
		Size:      412,
	})
	l.Record(Event{
		Timestamp: now.Add(time.Second),
		Category:  CategoryPosition,
		Outcome:   OutcomeTimeout,
	})
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	events, err := ReadFile(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("read %d events, want 2", len(events))
	}
	if events[0].Category != CategoryRound || events[0].Outcome != OutcomePublished {
		t.Errorf("first event mismatch: %+v", events[0])
	}
	if events[0].Size != 412 || events[0].Topic != "fieldlink/dev-1/all" {
		t.Errorf("round fields lost: %+v", events[0])
	}
	if !events[0].Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", events[0].Timestamp, now)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.cbor")

	for i := 0; i < 2; i++ {
		l, err := NewFileLogger(path, 0)
		if err != nil {
			t.Fatal(err)
		}
		l.Record(Event{Timestamp: time.Now(), Category: CategoryLink, Outcome: OutcomeConnected})
		l.Close()
	}

	events, err := ReadFile(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("read %d events across reopen, want 2", len(events))
	}
}

func TestFileLoggerRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.cbor")

	// A tiny cap forces rotation after the first record.
	l, err := NewFileLogger(path, 8)
	if err != nil {
		t.Fatal(err)
	}
	l.Record(Event{Timestamp: time.Now(), Category: CategoryRound, Outcome: OutcomePublished})
	l.Record(Event{Timestamp: time.Now(), Category: CategoryRound, Outcome: OutcomeDropped})
	l.Close()

	current, err := ReadFile(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	rotated, err := ReadFile(path+".1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(current)+len(rotated) != 2 {
		t.Errorf("events split %d/%d across rotation, want 2 total", len(current), len(rotated))
	}
	if len(rotated) == 0 {
		t.Error("rotation never produced a .1 generation")
	}
}

func TestReadFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.cbor")

	l, err := NewFileLogger(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	l.Record(Event{Timestamp: time.Now(), Category: CategoryRound, Link: "CELLULAR"})
	l.Record(Event{Timestamp: time.Now(), Category: CategoryLink, Link: "CELLULAR"})
	l.Record(Event{Timestamp: time.Now(), Category: CategoryLink, Link: "SHORT_RANGE"})
	l.Close()

	cat := CategoryLink
	events, err := ReadFile(path, &Filter{Category: &cat, Link: "CELLULAR"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("filter matched %d events, want 1", len(events))
	}
}

func TestNoopLogger(t *testing.T) {
	var l NoopLogger
	l.Record(Event{Category: CategoryError}) // must not panic
}
