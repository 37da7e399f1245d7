package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "lessons.csv"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestStore_CreatesEmptyLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lessons.csv")
	if _, err := NewStore(path); err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ledger file not created: %v", err)
	}
	if !strings.HasPrefix(string(data), "student_name,date,time,price,paid,payment_date") {
		t.Errorf("missing header row: %q", data)
	}
}

func TestStore_AppendDeduplicates(t *testing.T) {
	s := newTestStore(t)

	alice := Lesson{Student: "Alice", Date: "2026-08-03", Time: "16:00", Price: 150, Paid: false}
	n, err := s.Append(alice)
	if err != nil || n != 1 {
		t.Fatalf("first append: n=%d err=%v", n, err)
	}

	// Same slot again, different spelling and price: the stored row wins.
	dup := Lesson{Student: "alice cohen", Date: "2026-08-03", Time: "16:00", Price: 200, Paid: true}
	bob := Lesson{Student: "Bob", Date: "2026-08-04", Time: "17:00", Price: 150, Paid: true}
	n, err = s.Append(dup, bob)
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only Bob added, got %d rows", n)
	}

	all, err := s.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(all))
	}
	if all[0].Student != "Alice" || all[0].Price != 150 || all[0].Paid {
		t.Errorf("existing row was overwritten: %+v", all[0])
	}
}

func TestStore_UpdatePayment(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Append(
		Lesson{Student: "נועם", Date: "2026-08-03", Time: "16:00", Price: 130},
		Lesson{Student: "נועם", Date: "2026-08-10", Time: "16:00", Price: 130},
		Lesson{Student: "Shoham", Date: "2026-08-10", Time: "18:00", Price: 200},
	); err != nil {
		t.Fatal(err)
	}

	// Date narrows the update to one lesson.
	n, err := s.UpdatePayment("נועם", "2026-08-03", true, "2026-08-05")
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}

	unpaid, err := s.Unpaid()
	if err != nil {
		t.Fatal(err)
	}
	if len(unpaid) != 2 {
		t.Fatalf("expected 2 unpaid, got %d", len(unpaid))
	}

	// No date: settle everything the student owes.
	n, err = s.UpdatePayment("נועם", "", true, "2026-08-20")
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}

	all, _ := s.All()
	for _, l := range all {
		if l.Student == "נועם" && !l.Paid {
			t.Errorf("lesson still unpaid: %+v", l)
		}
		if l.Student == "Shoham" && l.Paid {
			t.Errorf("unrelated student was updated: %+v", l)
		}
	}
}

func TestStore_UpdatePayment_LooseNameMatch(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Append(Lesson{Student: "Alice Cohen", Date: "2026-08-03", Time: "16:00", Price: 150}); err != nil {
		t.Fatal(err)
	}
	n, err := s.UpdatePayment("alice", "", true, "2026-08-04")
	if err != nil || n != 1 {
		t.Fatalf("first-name match should settle the row: n=%d err=%v", n, err)
	}
}

func TestStore_ByMonth(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Append(
		Lesson{Student: "a", Date: "2026-07-30", Time: "10:00", Price: 150},
		Lesson{Student: "b", Date: "2026-08-01", Time: "10:00", Price: 150},
		Lesson{Student: "c", Date: "2026-08-15", Time: "10:00", Price: 150},
	); err != nil {
		t.Fatal(err)
	}
	aug, err := s.ByMonth("2026-08")
	if err != nil {
		t.Fatal(err)
	}
	if len(aug) != 2 {
		t.Errorf("expected 2 August rows, got %d", len(aug))
	}
}

func TestStore_RejectsForeignCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lessons.csv")
	if err := os.WriteFile(path, []byte("name,amount\nx,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := &Store{path: path}
	if _, err := s.All(); err == nil {
		t.Fatal("expected header mismatch error")
	}
}

func TestReconcile_NeverOverwrites(t *testing.T) {
	existing := []Lesson{
		{Student: "Alice", Date: "2026-08-03", Time: "16:00", Price: 150, Paid: true, PaymentDate: "2026-08-04"},
	}
	incoming := []Lesson{
		{Student: "Alice C", Date: "2026-08-03", Time: "16:00", Price: 999, Paid: false},
		{Student: "Bob", Date: "2026-08-04", Time: "17:00", Price: 150, Paid: true},
	}

	missing := Reconcile(existing, incoming)
	if len(missing) != 1 {
		t.Fatalf("expected exactly the new slot, got %d", len(missing))
	}
	if missing[0].Student != "Bob" {
		t.Errorf("wrong lesson selected: %+v", missing[0])
	}
	if existing[0].Price != 150 || !existing[0].Paid {
		t.Errorf("existing slice mutated: %+v", existing[0])
	}
}

func TestReconcile_DedupesWithinIncoming(t *testing.T) {
	incoming := []Lesson{
		{Student: "Bob", Date: "2026-08-04", Time: "17:00", Price: 150},
		{Student: "Bob", Date: "2026-08-04", Time: "17:00", Price: 150},
	}
	if missing := Reconcile(nil, incoming); len(missing) != 1 {
		t.Errorf("expected 1, got %d", len(missing))
	}
}

func TestFilterBefore(t *testing.T) {
	cutoff := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	lessons := []Lesson{
		{Date: "2026-08-09", Time: "10:00"},
		{Date: "2026-08-10", Time: "10:00"},
		{Date: "2026-08-11", Time: "10:00"},
		{Date: "", Time: "10:00"},
	}
	out := FilterBefore(lessons, cutoff)
	if len(out) != 1 || out[0].Date != "2026-08-09" {
		t.Errorf("FilterBefore = %+v", out)
	}
}
