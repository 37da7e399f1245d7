package calendar

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "events.json"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func at(t *testing.T, s *Store, day string, hour int) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", day, s.Location())
	if err != nil {
		t.Fatal(err)
	}
	return d.Add(time.Duration(hour) * time.Hour)
}

func TestStore_CreateListRoundTrip(t *testing.T) {
	s := newTestStore(t)

	ev, err := s.Create(Event{
		Summary: "שיעור נועם",
		Start:   at(t, s, "2026-08-03", 16),
		End:     at(t, s, "2026-08-03", 17),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ev.ID == "" {
		t.Fatal("expected an assigned ID")
	}

	// A fresh store over the same file sees the event.
	s2, _ := NewStore(s.path)
	events, err := s2.List(time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Summary != "שיעור נועם" {
		t.Fatalf("events = %+v", events)
	}
	if !events[0].Start.Equal(ev.Start) {
		t.Errorf("start drifted: %s != %s", events[0].Start, ev.Start)
	}
}

func TestStore_ListWindow(t *testing.T) {
	s := newTestStore(t)
	for _, day := range []string{"2026-08-01", "2026-08-10", "2026-08-20"} {
		if _, err := s.Create(Event{Summary: day, Start: at(t, s, day, 10), End: at(t, s, day, 11)}); err != nil {
			t.Fatal(err)
		}
	}

	from := at(t, s, "2026-08-05", 0)
	to := at(t, s, "2026-08-15", 0)
	events, err := s.List(from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Summary != "2026-08-10" {
		t.Errorf("window returned %+v", events)
	}
}

func TestStore_UpdatePatchesOnlyGivenFields(t *testing.T) {
	s := newTestStore(t)
	ev, err := s.Create(Event{Summary: "lesson", Start: at(t, s, "2026-08-03", 16), End: at(t, s, "2026-08-03", 17)})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Update(ev.ID, Event{ColorID: ColorFlamingo})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Summary != "lesson" || got.ColorID != ColorFlamingo {
		t.Errorf("updated = %+v", got)
	}
	if !got.Start.Equal(ev.Start) {
		t.Error("start changed by an unrelated patch")
	}

	if _, err := s.Update("missing", Event{Summary: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ev, _ := s.Create(Event{Summary: "x", Start: at(t, s, "2026-08-03", 16), End: at(t, s, "2026-08-03", 17)})

	if err := s.Delete(ev.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ev.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should be ErrNotFound, got %v", err)
	}
	events, _ := s.List(time.Time{}, time.Time{})
	if len(events) != 0 {
		t.Errorf("events remain: %+v", events)
	}
}

func TestEvent_IsLesson(t *testing.T) {
	cases := []struct {
		color string
		want  bool
	}{
		{ColorDefault, true},
		{ColorLavender, true},
		{ColorFlamingo, true},
		{"2", false},
		{"7", false},
		{"11", false},
	}
	for _, tc := range cases {
		if got := (Event{ColorID: tc.color}).IsLesson(); got != tc.want {
			t.Errorf("color %q: IsLesson = %v", tc.color, got)
		}
	}
}

func TestPricing_PriceFor(t *testing.T) {
	p := DefaultPricing()

	cases := []struct {
		summary string
		color   string
		want    float64
	}{
		{"שיעור עם דנה", ColorDefault, 150},
		{"Noam piano", ColorDefault, 130},
		{"שיעור נועם", ColorLavender, 130},
		{"Shoham", ColorDefault, 200},
		{"שיעור שוהם", ColorDefault, 200},
		{"Noam piano", ColorFlamingo, 200}, // Flamingo overrides the name rate
	}
	for _, tc := range cases {
		if got := p.PriceFor(Event{Summary: tc.summary, ColorID: tc.color}); got != tc.want {
			t.Errorf("%q/%q: price = %v, want %v", tc.summary, tc.color, got, tc.want)
		}
	}
}

func TestCalculateEarnings(t *testing.T) {
	s := newTestStore(t)
	mk := func(summary, day string, hour int, color string) {
		t.Helper()
		if _, err := s.Create(Event{
			Summary: summary,
			Start:   at(t, s, day, hour),
			End:     at(t, s, day, hour+1),
			ColorID: color,
		}); err != nil {
			t.Fatal(err)
		}
	}

	mk("שיעור דנה", "2026-08-03", 16, ColorDefault)   // 150
	mk("Noam", "2026-08-04", 16, ColorLavender)       // 130
	mk("Shoham", "2026-08-05", 18, ColorFlamingo)     // 200
	mk("רופא שיניים", "2026-08-06", 9, "7")           // personal, excluded
	mk("שיעור דנה", "2026-09-01", 16, ColorDefault)   // next month

	earnings, err := s.CalculateEarnings("2026-08", DefaultPricing())
	if err != nil {
		t.Fatalf("CalculateEarnings failed: %v", err)
	}
	if earnings.Count != 3 {
		t.Fatalf("count = %d, lessons = %+v", earnings.Count, earnings.Lessons)
	}
	if earnings.Total != 480 {
		t.Errorf("total = %v, want 480", earnings.Total)
	}
	if earnings.Lessons[0].Date != "2026-08-03" || earnings.Lessons[0].Time != "16:00" {
		t.Errorf("first line = %+v", earnings.Lessons[0])
	}

	if _, err := s.CalculateEarnings("August", DefaultPricing()); err == nil {
		t.Error("expected error for malformed month")
	}
}
