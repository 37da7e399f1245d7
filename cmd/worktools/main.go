// Command worktools is the stdio tool provider for the work agent. It exposes
// the payment ledger over the newline-framed JSON-RPC tool protocol.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lessonmate/lessonmate/internal/config"
	"github.com/lessonmate/lessonmate/internal/ledger"
	"github.com/lessonmate/lessonmate/internal/mcpserver"
)

func main() {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	led, err := ledger.NewStore(cfg.LedgerPath())
	if err != nil {
		slog.Error("open ledger", "err", err)
		os.Exit(1)
	}

	srv := mcpserver.New("worktools", "0.1.0")
	registerLedgerTools(srv, led)

	if err := srv.ServeStdio(context.Background()); err != nil && err != context.Canceled {
		slog.Error("serve", "err", err)
		os.Exit(1)
	}
}

func registerLedgerTools(srv *mcpserver.Server, led *ledger.Store) {
	srv.Register("read_lessons",
		"Read ledger rows for one month (YYYY-MM). Returns student, date, time, price, and payment state.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"month": map[string]any{"type": "string", "description": "Month in YYYY-MM format"},
			},
			"required": []any{"month"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			month, _ := args["month"].(string)
			lessons, err := led.ByMonth(month)
			if err != nil {
				return "", err
			}
			return formatLessons(lessons), nil
		})

	srv.Register("get_all_lessons",
		"Read every row in the payment ledger.",
		nil,
		func(ctx context.Context, args map[string]any) (string, error) {
			lessons, err := led.All()
			if err != nil {
				return "", err
			}
			return formatLessons(lessons), nil
		})

	srv.Register("list_records",
		"List ledger rows for one student across all months.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"student": map[string]any{"type": "string"},
			},
			"required": []any{"student"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			student := stringArg(args, "student")
			all, err := led.All()
			if err != nil {
				return "", err
			}
			var matched []ledger.Lesson
			for _, l := range all {
				if strings.Contains(strings.ToLower(l.Student), strings.ToLower(student)) {
					matched = append(matched, l)
				}
			}
			return formatLessons(matched), nil
		})

	srv.Register("get_unpaid_lessons",
		"List ledger rows that are not yet marked as paid.",
		nil,
		func(ctx context.Context, args map[string]any) (string, error) {
			lessons, err := led.Unpaid()
			if err != nil {
				return "", err
			}
			return formatLessons(lessons), nil
		})

	srv.Register("add_lesson",
		"Record a lesson in the ledger. Existing rows for the same date and time are never overwritten.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"student":      map[string]any{"type": "string"},
				"date":         map[string]any{"type": "string", "description": "YYYY-MM-DD"},
				"time":         map[string]any{"type": "string", "description": "HH:MM"},
				"price":        map[string]any{"type": "number"},
				"paid":         map[string]any{"type": "boolean"},
				"payment_date": map[string]any{"type": "string", "description": "YYYY-MM-DD, empty if unpaid"},
			},
			"required": []any{"student", "date", "time", "price"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			price, _ := args["price"].(float64)
			paid, _ := args["paid"].(bool)
			paymentDate, _ := args["payment_date"].(string)
			lesson := ledger.Lesson{
				Student:     stringArg(args, "student"),
				Date:        stringArg(args, "date"),
				Time:        stringArg(args, "time"),
				Price:       price,
				Paid:        paid,
				PaymentDate: paymentDate,
			}
			added, err := led.Append(lesson)
			if err != nil {
				return "", err
			}
			if added == 0 {
				return fmt.Sprintf("A lesson on %s at %s is already in the ledger; nothing changed.", lesson.Date, lesson.Time), nil
			}
			return fmt.Sprintf("Recorded lesson for %s on %s at %s (price %.0f).", lesson.Student, lesson.Date, lesson.Time, lesson.Price), nil
		})

	srv.Register("update_payment",
		"Mark a student's lessons as paid or unpaid. An optional date narrows the match to one day.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"student":      map[string]any{"type": "string"},
				"date":         map[string]any{"type": "string", "description": "YYYY-MM-DD, optional"},
				"paid":         map[string]any{"type": "boolean"},
				"payment_date": map[string]any{"type": "string", "description": "YYYY-MM-DD, defaults to today when marking paid"},
			},
			"required": []any{"student", "paid"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			paid, _ := args["paid"].(bool)
			paymentDate := stringArg(args, "payment_date")
			if paid && paymentDate == "" {
				paymentDate = time.Now().Format("2006-01-02")
			}
			changed, err := led.UpdatePayment(
				stringArg(args, "student"),
				stringArg(args, "date"),
				paid,
				paymentDate,
			)
			if err != nil {
				return "", err
			}
			if changed == 0 {
				return "No matching ledger rows found.", nil
			}
			return fmt.Sprintf("Updated %d ledger rows.", changed), nil
		})
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func formatLessons(lessons []ledger.Lesson) string {
	if len(lessons) == 0 {
		return "No lessons found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d lessons:\n", len(lessons))
	for _, l := range lessons {
		state := "unpaid"
		if l.Paid {
			state = "paid " + l.PaymentDate
		}
		fmt.Fprintf(&b, "- %s %s | %s | %.0f | %s\n", l.Date, l.Time, l.Student, l.Price, state)
	}
	return strings.TrimRight(b.String(), "\n")
}
