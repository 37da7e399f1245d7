package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_RunsJob(t *testing.T) {
	s := New(time.UTC)

	var fired atomic.Int32
	if err := s.AddJob("tick", "@every 50ms", func(ctx context.Context) error {
		fired.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := s.Start(ctx); err != context.DeadlineExceeded {
		t.Errorf("Start returned %v", err)
	}

	if fired.Load() == 0 {
		t.Error("job never fired")
	}
}

func TestScheduler_BadSpec(t *testing.T) {
	s := New(nil)
	if err := s.AddJob("broken", "not a cron spec", func(ctx context.Context) error { return nil }); err == nil {
		t.Error("expected error for invalid spec")
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	s := New(time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx) //nolint:errcheck
	time.Sleep(20 * time.Millisecond)

	if err := s.Start(ctx); err == nil {
		t.Error("second Start must fail")
	}
	cancel()
}
