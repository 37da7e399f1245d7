package calendar

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DefaultTimezone is the calendar's home timezone.
const DefaultTimezone = "Asia/Jerusalem"

// ErrNotFound is returned when an event ID does not exist.
var ErrNotFound = fmt.Errorf("event not found")

// Store keeps calendar events in a single JSON file.
type Store struct {
	path string
	loc  *time.Location
	mu   sync.Mutex
}

// NewStore creates a Store over path. The calendar's timezone falls back to
// UTC when tzdata is unavailable.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create calendar dir: %w", err)
	}
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		loc = time.UTC
	}
	return &Store{path: path, loc: loc}, nil
}

// Location returns the calendar's timezone.
func (s *Store) Location() *time.Location { return s.loc }

// List returns events overlapping [from, to), sorted by start time.
// Zero bounds are open.
func (s *Store) List(from, to time.Time) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.read()
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, e := range events {
		if !from.IsZero() && !e.End.After(from) {
			continue
		}
		if !to.IsZero() && !e.Start.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Lessons returns only the lesson events overlapping [from, to).
func (s *Store) Lessons(from, to time.Time) ([]Event, error) {
	events, err := s.List(from, to)
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, e := range events {
		if e.IsLesson() {
			out = append(out, e)
		}
	}
	return out, nil
}

// Create adds an event and returns it with its assigned ID.
func (s *Store) Create(ev Event) (Event, error) {
	if ev.Start.IsZero() || ev.End.IsZero() {
		return Event{}, fmt.Errorf("event needs a start and an end")
	}
	if !ev.End.After(ev.Start) {
		return Event{}, fmt.Errorf("event end %s is not after start %s", ev.End, ev.Start)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.read()
	if err != nil {
		return Event{}, err
	}
	ev.ID = newEventID()
	events = append(events, ev)
	if err := s.write(events); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Update applies the non-zero fields of patch to the event with the given ID
// and returns the updated event.
func (s *Store) Update(id string, patch Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.read()
	if err != nil {
		return Event{}, err
	}
	for i := range events {
		if events[i].ID != id {
			continue
		}
		if patch.Summary != "" {
			events[i].Summary = patch.Summary
		}
		if !patch.Start.IsZero() {
			events[i].Start = patch.Start
		}
		if !patch.End.IsZero() {
			events[i].End = patch.End
		}
		if patch.ColorID != "" {
			events[i].ColorID = patch.ColorID
		}
		if !events[i].End.After(events[i].Start) {
			return Event{}, fmt.Errorf("event end %s is not after start %s", events[i].End, events[i].Start)
		}
		if err := s.write(events); err != nil {
			return Event{}, err
		}
		return events[i], nil
	}
	return Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Delete removes the event with the given ID.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.read()
	if err != nil {
		return err
	}
	for i := range events {
		if events[i].ID == id {
			return s.write(append(events[:i], events[i+1:]...))
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *Store) read() ([]Event, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read calendar: %w", err)
	}
	var file struct {
		Events []Event `json:"events"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse calendar %s: %w", s.path, err)
	}
	sort.Slice(file.Events, func(i, j int) bool { return file.Events[i].Start.Before(file.Events[j].Start) })
	return file.Events, nil
}

func (s *Store) write(events []Event) error {
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	data, err := json.MarshalIndent(map[string]any{"events": events}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func newEventID() string {
	var b [8]byte
	rand.Read(b[:]) //nolint:errcheck
	return hex.EncodeToString(b[:])
}
