// Package calendar stores teaching-calendar events in a JSON file and knows
// which events are lessons and what each lesson costs.
package calendar

import (
	"strings"
	"time"
)

// Color IDs follow the Google Calendar palette. A lesson is an event in the
// default color, Lavender, or Flamingo; every other color marks a personal
// event that must stay out of earnings.
const (
	ColorDefault  = ""
	ColorLavender = "1"
	ColorFlamingo = "4"
)

// Event is one calendar entry.
type Event struct {
	ID      string    `json:"id"`
	Summary string    `json:"summary"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	ColorID string    `json:"color_id,omitempty"`
}

// IsLesson reports whether the event counts as a lesson.
func (e Event) IsLesson() bool {
	switch e.ColorID {
	case ColorDefault, ColorLavender, ColorFlamingo:
		return true
	}
	return false
}

// Pricing resolves a lesson's price from its color and student name.
type Pricing struct {
	Default float64
	// ByName maps a lowercase substring of the event summary to a price.
	ByName map[string]float64
	// Flamingo-colored lessons override any name rule.
	FlamingoPrice float64
}

// DefaultPricing returns the standing rate card.
func DefaultPricing() Pricing {
	return Pricing{
		Default: 150,
		ByName: map[string]float64{
			"noam":   130,
			"נועם":   130,
			"shoham": 200,
			"שוהם":   200,
		},
		FlamingoPrice: 200,
	}
}

// PriceFor returns the price of one lesson event.
func (p Pricing) PriceFor(e Event) float64 {
	if e.ColorID == ColorFlamingo && p.FlamingoPrice > 0 {
		return p.FlamingoPrice
	}
	summary := strings.ToLower(e.Summary)
	for name, price := range p.ByName {
		if strings.Contains(summary, name) {
			return price
		}
	}
	return p.Default
}
