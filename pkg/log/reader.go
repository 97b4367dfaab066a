package log

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events. A zero field matches everything.
type Filter struct {
	ConnectionID string // prefix match, so a shortened id works
	Label        string
	Scenario     string
	Direction    *Direction
	Category     *Category
	TimeStart    *time.Time // inclusive
	TimeEnd      *time.Time // exclusive
}

// Matches reports whether event passes every set criterion.
func (f *Filter) Matches(event Event) bool {
	switch {
	case !strings.HasPrefix(event.ConnectionID, f.ConnectionID):
	case f.Label != "" && event.Label != f.Label:
	case f.Scenario != "" && event.Scenario != f.Scenario:
	case f.Direction != nil && event.Direction != *f.Direction:
	case f.Category != nil && event.Category != *f.Category:
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
	default:
		return true
	}
	return false
}

// Reader iterates the events of a capture file.
type Reader struct {
	file   *os.File
	dec    *cbor.Decoder
	filter Filter
	n      int
}

// NewReader opens path and returns every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path and returns only events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, dec: newStreamDecoder(f), filter: filter}, nil
}

// Next returns the next matching event. It returns io.EOF at a clean end of
// file; a truncated final record is reported with its position.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		err := r.dec.Decode(&event)
		if errors.Is(err, io.EOF) {
			return Event{}, io.EOF
		}
		if err != nil {
			return Event{}, fmt.Errorf("capture record %d: %w", r.n+1, err)
		}
		r.n++
		if r.filter.Matches(event) {
			return event, nil
		}
	}
}

// All iterates the remaining matching events. Iteration stops after the
// first error, which is yielded with a zero Event.
func (r *Reader) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			event, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(event, err) || err != nil {
				return
			}
		}
	}
}

// ReadAll collects the remaining matching events.
func (r *Reader) ReadAll() ([]Event, error) {
	var events []Event
	for event, err := range r.All() {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}
