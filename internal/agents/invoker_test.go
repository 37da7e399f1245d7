package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lessonmate/lessonmate/internal/schema"
)

// stubAgent answers with a fixed string, optionally delegating onward first.
type stubAgent struct {
	name    schema.Category
	answer  string
	invoker schema.CrossAgentInvoker
	target  schema.Category
}

func (a *stubAgent) Name() schema.Category { return a.name }

func (a *stubAgent) Solve(ctx context.Context, mission string) (string, error) {
	if a.invoker != nil {
		nested, err := a.invoker.Invoke(ctx, a.target, mission)
		if err != nil {
			return "", err
		}
		return a.answer + " + " + nested, nil
	}
	return a.answer, nil
}

func TestInvoker_AllowedTarget(t *testing.T) {
	reg := NewRegistry()
	reg.Add(&stubAgent{name: schema.CategorySchedule, answer: "two lessons last week"})
	inv := NewInvoker(reg, schema.CategorySchedule)

	answer, err := inv.Invoke(context.Background(), schema.CategorySchedule, "which lessons happened?")
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if answer != "two lessons last week" {
		t.Errorf("answer = %q", answer)
	}
}

func TestInvoker_DisallowedTarget(t *testing.T) {
	reg := NewRegistry()
	reg.Add(&stubAgent{name: schema.CategoryStock, answer: "101.25"})
	inv := NewInvoker(reg, schema.CategorySchedule)

	_, err := inv.Invoke(context.Background(), schema.CategoryStock, "price of AAPL")
	if err == nil || !strings.Contains(err.Error(), "not allowed") {
		t.Fatalf("expected allowlist rejection, got %v", err)
	}
}

func TestInvoker_MissingAgent(t *testing.T) {
	inv := NewInvoker(NewRegistry(), schema.CategorySchedule)
	if _, err := inv.Invoke(context.Background(), schema.CategorySchedule, "m"); err == nil {
		t.Fatal("expected error for unregistered agent")
	}
}

func TestInvoker_DepthLimit(t *testing.T) {
	reg := NewRegistry()
	inv := NewInvoker(reg, schema.CategorySchedule, schema.CategoryWork)

	// schedule delegates back to work: the second hop must be refused.
	reg.Add(&stubAgent{name: schema.CategoryWork, answer: "ledger says"})
	reg.Add(&stubAgent{
		name:    schema.CategorySchedule,
		answer:  "calendar says",
		invoker: inv,
		target:  schema.CategoryWork,
	})

	_, err := inv.Invoke(context.Background(), schema.CategorySchedule, "m")
	if !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("expected ErrDepthExceeded, got %v", err)
	}
}

func TestInvoker_DepthResetsBetweenTurns(t *testing.T) {
	reg := NewRegistry()
	reg.Add(&stubAgent{name: schema.CategorySchedule, answer: "ok"})
	inv := NewInvoker(reg, schema.CategorySchedule)

	for i := 0; i < 3; i++ {
		if _, err := inv.Invoke(context.Background(), schema.CategorySchedule, "m"); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}
}
