package calendar

import (
	"fmt"
	"time"
)

// EarningsLine is one lesson's contribution to a monthly total.
type EarningsLine struct {
	Date    string  `json:"date"`
	Time    string  `json:"time"`
	Summary string  `json:"summary"`
	Price   float64 `json:"price"`
}

// Earnings is the earnings breakdown of one month.
type Earnings struct {
	Month   string         `json:"month"`
	Lessons []EarningsLine `json:"lessons"`
	Count   int            `json:"count"`
	Total   float64        `json:"total"`
}

// MonthBounds returns the half-open interval of a "YYYY-MM" month in the
// store's timezone.
func (s *Store) MonthBounds(month string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01", month, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad month %q: %w", month, err)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// CalculateEarnings sums the price of every lesson in a month. Non-lesson
// events never contribute, whatever their summary says.
func (s *Store) CalculateEarnings(month string, pricing Pricing) (Earnings, error) {
	from, to, err := s.MonthBounds(month)
	if err != nil {
		return Earnings{}, err
	}
	lessons, err := s.Lessons(from, to)
	if err != nil {
		return Earnings{}, err
	}

	out := Earnings{Month: month}
	for _, e := range lessons {
		price := pricing.PriceFor(e)
		local := e.Start.In(s.loc)
		out.Lessons = append(out.Lessons, EarningsLine{
			Date:    local.Format("2006-01-02"),
			Time:    local.Format("15:04"),
			Summary: e.Summary,
			Price:   price,
		})
		out.Total += price
	}
	out.Count = len(out.Lessons)
	return out, nil
}
