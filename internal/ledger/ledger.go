// Package ledger stores the lesson payment ledger as a CSV file. The file is
// the source of truth for what was taught and what was paid; writers must
// never silently overwrite rows that already exist.
package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header is the CSV column order. Files are rejected if the first row does
// not match, so a stray file is never misread as a ledger.
var Header = []string{"student_name", "date", "time", "price", "paid", "payment_date"}

// Lesson is one ledger row.
type Lesson struct {
	Student     string
	Date        string // YYYY-MM-DD
	Time        string // HH:MM
	Price       float64
	Paid        bool
	PaymentDate string // YYYY-MM-DD, empty while unpaid
}

// Key identifies a lesson slot. Two rows with the same date and time are the
// same lesson regardless of spelling differences in the student name.
func (l Lesson) Key() string { return l.Date + " " + l.Time }

func (l Lesson) record() []string {
	paid := "no"
	if l.Paid {
		paid = "yes"
	}
	return []string{
		l.Student,
		l.Date,
		l.Time,
		strconv.FormatFloat(l.Price, 'f', -1, 64),
		paid,
		l.PaymentDate,
	}
}

func lessonFromRecord(rec []string) (Lesson, error) {
	if len(rec) < len(Header) {
		return Lesson{}, fmt.Errorf("short row: %d columns", len(rec))
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
	if err != nil {
		return Lesson{}, fmt.Errorf("bad price %q: %w", rec[3], err)
	}
	return Lesson{
		Student:     strings.TrimSpace(rec[0]),
		Date:        strings.TrimSpace(rec[1]),
		Time:        strings.TrimSpace(rec[2]),
		Price:       price,
		Paid:        strings.EqualFold(strings.TrimSpace(rec[4]), "yes"),
		PaymentDate: strings.TrimSpace(rec[5]),
	}, nil
}

// Reconcile returns the lessons from incoming that are not already present
// in existing, keyed by date and time. Existing rows are never modified:
// a slot already in the ledger wins even when the incoming copy disagrees
// on name or price.
func Reconcile(existing, incoming []Lesson) []Lesson {
	seen := make(map[string]struct{}, len(existing))
	for _, l := range existing {
		seen[l.Key()] = struct{}{}
	}

	var missing []Lesson
	for _, l := range incoming {
		if _, dup := seen[l.Key()]; dup {
			continue
		}
		seen[l.Key()] = struct{}{}
		missing = append(missing, l)
	}
	return missing
}

// FilterBefore keeps only lessons dated strictly before cutoff. Lessons with
// unparseable dates are dropped.
func FilterBefore(lessons []Lesson, cutoff time.Time) []Lesson {
	day := cutoff.Format("2006-01-02")
	var out []Lesson
	for _, l := range lessons {
		if l.Date != "" && l.Date < day {
			out = append(out, l)
		}
	}
	return out
}
