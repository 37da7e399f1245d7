package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lessonmate/lessonmate/internal/calendar"
	"github.com/lessonmate/lessonmate/internal/ledger"
)

// DefaultSyncLookbackDays is how far back a ledger sync scans the calendar.
const DefaultSyncLookbackDays = 31

// SyncLedgerTool reconciles the teaching calendar into the payment ledger:
// past lesson events that have no ledger row are appended, marked paid.
// Rows already in the ledger are never touched, so a manual correction
// survives every later sync.
type SyncLedgerTool struct {
	cal          *calendar.Store
	led          *ledger.Store
	pricing      calendar.Pricing
	lookbackDays int
	now          func() time.Time
}

func NewSyncLedgerTool(cal *calendar.Store, led *ledger.Store, pricing calendar.Pricing, lookbackDays int) *SyncLedgerTool {
	if lookbackDays <= 0 {
		lookbackDays = DefaultSyncLookbackDays
	}
	return &SyncLedgerTool{
		cal:          cal,
		led:          led,
		pricing:      pricing,
		lookbackDays: lookbackDays,
		now:          time.Now,
	}
}

func (t *SyncLedgerTool) Name() string { return "sync_ledger" }
func (t *SyncLedgerTool) Description() string {
	return "Sync past lessons from the calendar into the payment ledger. " +
		"Adds missing rows only; existing ledger rows are never changed."
}

func (t *SyncLedgerTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"lookback_days": {
				"type": "integer",
				"description": "How many days back to scan. Defaults to the standing sync window."
			}
		}
	}`)
}

func (t *SyncLedgerTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	lookback := t.lookbackDays
	if v, ok := args["lookback_days"].(float64); ok && v > 0 {
		lookback = int(v)
	}

	added, scanned, err := t.Sync(ctx, lookback)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Scanned %d past lessons, added %d new ledger rows.", scanned, added), nil
}

// Sync performs the reconciliation and reports (rows added, lessons scanned).
func (t *SyncLedgerTool) Sync(_ context.Context, lookbackDays int) (int, int, error) {
	now := t.now()
	from := now.AddDate(0, 0, -lookbackDays)

	events, err := t.cal.Lessons(from, now)
	if err != nil {
		return 0, 0, fmt.Errorf("read calendar: %w", err)
	}

	loc := t.cal.Location()
	incoming := make([]ledger.Lesson, 0, len(events))
	for _, ev := range events {
		if !ev.End.Before(now) {
			// Still running or upcoming today: not settled yet.
			continue
		}
		local := ev.Start.In(loc)
		day := local.Format("2006-01-02")
		incoming = append(incoming, ledger.Lesson{
			Student:     StudentFromSummary(ev.Summary),
			Date:        day,
			Time:        local.Format("15:04"),
			Price:       t.pricing.PriceFor(ev),
			Paid:        true, // lessons are normally settled on the spot
			PaymentDate: day,
		})
	}

	added, err := t.led.Append(incoming...)
	if err != nil {
		return 0, len(incoming), fmt.Errorf("append ledger: %w", err)
	}
	slog.Info("ledger sync", "scanned", len(incoming), "added", added)
	return added, len(incoming), nil
}

// StudentFromSummary extracts the student name from an event summary by
// stripping the usual lesson prefixes, e.g. "שיעור עם נועם" → "נועם".
func StudentFromSummary(summary string) string {
	name := strings.TrimSpace(summary)
	for _, prefix := range []string{"שיעור", "lesson", "Lesson"} {
		name = strings.TrimSpace(strings.TrimPrefix(name, prefix))
	}
	for _, connector := range []string{"עם", "with", "With"} {
		if rest, ok := strings.CutPrefix(name, connector+" "); ok {
			name = strings.TrimSpace(rest)
		}
	}
	if name == "" {
		return summary
	}
	return name
}
