package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store reads and writes one ledger CSV file. All mutating operations take
// the store lock, reread the file, and write it back whole, so concurrent
// tool calls in a turn cannot interleave partial writes.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store over path, creating an empty ledger file with the
// header row if none exists.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	s := &Store{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// All returns every lesson row, sorted by date then time.
func (s *Store) All() ([]Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// ByMonth returns the lessons of one month. month is "YYYY-MM".
func (s *Store) ByMonth(month string) ([]Lesson, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	var out []Lesson
	for _, l := range all {
		if strings.HasPrefix(l.Date, month) {
			out = append(out, l)
		}
	}
	return out, nil
}

// Append adds the lessons that are not already present and reports how many
// rows were written. Existing rows are left untouched.
func (s *Store) Append(lessons ...Lesson) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read()
	if err != nil {
		return 0, err
	}
	missing := Reconcile(existing, lessons)
	if len(missing) == 0 {
		return 0, nil
	}
	if err := s.write(append(existing, missing...)); err != nil {
		return 0, err
	}
	return len(missing), nil
}

// UpdatePayment marks a student's lessons paid or unpaid. date narrows the
// update to one day when non-empty; otherwise every unsettled lesson of the
// student flips. It returns the number of rows changed. Only the paid flag
// and payment date are touched.
func (s *Store) UpdatePayment(student, date string, paid bool, paymentDate string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lessons, err := s.read()
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range lessons {
		if !studentMatches(lessons[i].Student, student) {
			continue
		}
		if date != "" && lessons[i].Date != date {
			continue
		}
		if lessons[i].Paid == paid {
			continue
		}
		lessons[i].Paid = paid
		if paid {
			lessons[i].PaymentDate = paymentDate
		} else {
			lessons[i].PaymentDate = ""
		}
		changed++
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, s.write(lessons)
}

// Unpaid returns the lessons still awaiting payment.
func (s *Store) Unpaid() ([]Lesson, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	var out []Lesson
	for _, l := range all {
		if !l.Paid {
			out = append(out, l)
		}
	}
	return out, nil
}

// studentMatches compares names loosely: case-insensitive, and a bare first
// name matches a stored full name.
func studentMatches(stored, query string) bool {
	stored = strings.ToLower(strings.TrimSpace(stored))
	query = strings.ToLower(strings.TrimSpace(query))
	if stored == query {
		return true
	}
	return query != "" && strings.Contains(stored, query)
}

func (s *Store) read() ([]Lesson, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if !isHeader(rows[0]) {
		return nil, fmt.Errorf("ledger %s: unexpected header %v", s.path, rows[0])
	}

	lessons := make([]Lesson, 0, len(rows)-1)
	for _, row := range rows[1:] {
		l, err := lessonFromRecord(row)
		if err != nil {
			return nil, fmt.Errorf("ledger %s: %w", s.path, err)
		}
		lessons = append(lessons, l)
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Key() < lessons[j].Key() })
	return lessons, nil
}

func (s *Store) write(lessons []Lesson) error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		f.Close()
		return fmt.Errorf("write ledger header: %w", err)
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Key() < lessons[j].Key() })
	for _, l := range lessons {
		if err := w.Write(l.record()); err != nil {
			f.Close()
			return fmt.Errorf("write ledger row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func isHeader(row []string) bool {
	if len(row) != len(Header) {
		return false
	}
	for i, col := range Header {
		if strings.TrimSpace(row[i]) != col {
			return false
		}
	}
	return true
}
