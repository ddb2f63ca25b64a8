package journal

import (
	"errors"
	"io"
	"os"
	"time"
)

// Filter selects journal events on read. Zero fields match everything.
type Filter struct {
	// Category filters by event category.
	Category *Category

	// Link filters by link name.
	Link string

	// TimeStart keeps events at or after this time.
	TimeStart *time.Time

	// TimeEnd keeps events before this time.
	TimeEnd *time.Time
}

// matches reports whether the event passes all filter criteria.
func (f *Filter) matches(event Event) bool {
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.Link != "" && event.Link != f.Link {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	return true
}

// ReadFile decodes every event in the journal at path that passes the
// filter. A nil filter reads everything. Trailing garbage from an
// interrupted write terminates the read without error.
func ReadFile(path string, filter *Filter) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f, filter)
}

// Read decodes events from r until EOF, applying the filter.
func Read(r io.Reader, filter *Filter) ([]Event, error) {
	dec := NewDecoder(r)

	var events []Event
	for {
		var event Event
		if err := dec.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return events, nil
			}
			// A partial record at the tail is expected after power loss.
			return events, nil
		}
		if filter == nil || filter.matches(event) {
			events = append(events, event)
		}
	}
}
