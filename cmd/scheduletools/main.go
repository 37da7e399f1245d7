// Command scheduletools is the stdio tool provider for the schedule agent.
// It exposes the calendar store over the newline-framed JSON-RPC tool
// protocol.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lessonmate/lessonmate/internal/calendar"
	"github.com/lessonmate/lessonmate/internal/config"
	"github.com/lessonmate/lessonmate/internal/mcpserver"
)

const timeLayout = "2006-01-02 15:04"

func main() {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	cal, err := calendar.NewStore(cfg.CalendarPath())
	if err != nil {
		slog.Error("open calendar", "err", err)
		os.Exit(1)
	}

	srv := mcpserver.New("scheduletools", "0.1.0")
	registerCalendarTools(srv, cal)

	if err := srv.ServeStdio(context.Background()); err != nil && err != context.Canceled {
		slog.Error("serve", "err", err)
		os.Exit(1)
	}
}

func registerCalendarTools(srv *mcpserver.Server, cal *calendar.Store) {
	timeProp := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc + " as \"YYYY-MM-DD HH:MM\""}
	}

	srv.Register("list_events",
		"List calendar events in a time window. Omitting the bounds lists everything.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"from":         timeProp("Window start"),
				"to":           timeProp("Window end"),
				"lessons_only": map[string]any{"type": "boolean", "description": "Only default, Lavender, or Flamingo events"},
			},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			from, err := parseTimeArg(cal, args, "from")
			if err != nil {
				return "", err
			}
			to, err := parseTimeArg(cal, args, "to")
			if err != nil {
				return "", err
			}
			lessonsOnly, _ := args["lessons_only"].(bool)

			var events []calendar.Event
			if lessonsOnly {
				events, err = cal.Lessons(from, to)
			} else {
				events, err = cal.List(from, to)
			}
			if err != nil {
				return "", err
			}
			return formatEvents(events, cal.Location()), nil
		})

	srv.Register("list_lessons",
		"List only lesson events (default, Lavender, or Flamingo colored) in a time window.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"from": timeProp("Window start"),
				"to":   timeProp("Window end"),
			},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			from, err := parseTimeArg(cal, args, "from")
			if err != nil {
				return "", err
			}
			to, err := parseTimeArg(cal, args, "to")
			if err != nil {
				return "", err
			}
			events, err := cal.Lessons(from, to)
			if err != nil {
				return "", err
			}
			return formatEvents(events, cal.Location()), nil
		})

	srv.Register("create_event",
		"Create a calendar event. Color \"\" means a default-priced lesson, \"1\" (Lavender) a discounted one, \"4\" (Flamingo) a premium one; other colors are personal events.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary":  map[string]any{"type": "string"},
				"start":    timeProp("Event start"),
				"end":      timeProp("Event end"),
				"color_id": map[string]any{"type": "string"},
			},
			"required": []any{"summary", "start", "end"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			start, err := parseTimeArg(cal, args, "start")
			if err != nil {
				return "", err
			}
			end, err := parseTimeArg(cal, args, "end")
			if err != nil {
				return "", err
			}
			colorID, _ := args["color_id"].(string)
			ev, err := cal.Create(calendar.Event{
				Summary: stringArg(args, "summary"),
				Start:   start,
				End:     end,
				ColorID: colorID,
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Created event %s: %s", ev.ID, describeEvent(ev, cal.Location())), nil
		})

	srv.Register("update_event",
		"Update an event by ID. Only the given fields change.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":       map[string]any{"type": "string"},
				"summary":  map[string]any{"type": "string"},
				"start":    timeProp("New start"),
				"end":      timeProp("New end"),
				"color_id": map[string]any{"type": "string"},
			},
			"required": []any{"id"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			start, err := parseTimeArg(cal, args, "start")
			if err != nil {
				return "", err
			}
			end, err := parseTimeArg(cal, args, "end")
			if err != nil {
				return "", err
			}
			colorID, _ := args["color_id"].(string)
			ev, err := cal.Update(stringArg(args, "id"), calendar.Event{
				Summary: stringArg(args, "summary"),
				Start:   start,
				End:     end,
				ColorID: colorID,
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Updated event %s: %s", ev.ID, describeEvent(ev, cal.Location())), nil
		})

	srv.Register("delete_event",
		"Delete an event by ID.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{"type": "string"},
			},
			"required": []any{"id"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			if err := cal.Delete(stringArg(args, "id")); err != nil {
				return "", err
			}
			return "Event deleted.", nil
		})

	srv.Register("calculate_earnings",
		"Sum expected lesson earnings for one month (YYYY-MM) from the calendar and the pricing rules.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"month": map[string]any{"type": "string", "description": "Month in YYYY-MM format"},
			},
			"required": []any{"month"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			earnings, err := cal.CalculateEarnings(stringArg(args, "month"), calendar.DefaultPricing())
			if err != nil {
				return "", err
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Earnings for %s: %.0f from %d lessons\n", earnings.Month, earnings.Total, earnings.Count)
			for _, l := range earnings.Lessons {
				fmt.Fprintf(&b, "- %s %s | %s | %.0f\n", l.Date, l.Time, l.Summary, l.Price)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		})
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// parseTimeArg reads an optional time argument in the store's location.
// A missing or empty value yields the zero time (an open bound).
func parseTimeArg(cal *calendar.Store, args map[string]any, key string) (time.Time, error) {
	s := stringArg(args, key)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(timeLayout, s, cal.Location()); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: want \"YYYY-MM-DD HH:MM\", got %q", key, s)
	}
	return t, nil
}

func describeEvent(ev calendar.Event, loc *time.Location) string {
	color := ev.ColorID
	if color == "" {
		color = "default"
	}
	return fmt.Sprintf("%s: %s to %s (color %s)",
		ev.Summary,
		ev.Start.In(loc).Format(timeLayout),
		ev.End.In(loc).Format("15:04"),
		color)
}

func formatEvents(events []calendar.Event, loc *time.Location) string {
	if len(events) == 0 {
		return "No events found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d events:\n", len(events))
	for _, ev := range events {
		fmt.Fprintf(&b, "- [%s] %s\n", ev.ID, describeEvent(ev, loc))
	}
	return strings.TrimRight(b.String(), "\n")
}
