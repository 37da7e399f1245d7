// Package scheduler runs recurring background jobs, currently the nightly
// calendar-to-ledger sync.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"
)

// JobFunc is a scheduled unit of work.
type JobFunc func(ctx context.Context) error

// Scheduler wraps a cron runner. Jobs are registered before Start and run in
// the scheduler's location.
type Scheduler struct {
	c *robfigcron.Cron

	mu      sync.Mutex
	running bool
}

// New creates a Scheduler whose cron expressions are evaluated in loc.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{c: robfigcron.New(robfigcron.WithLocation(loc))}
}

// AddJob registers fn to run on the given cron spec (standard five-field
// syntax, or descriptors like "@daily").
func (s *Scheduler) AddJob(name, spec string, fn JobFunc) error {
	_, err := s.c.AddFunc(spec, func() {
		started := time.Now()
		slog.Info("job started", "job", name)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.Error("job failed", "job", name, "err", err)
			return
		}
		slog.Info("job finished", "job", name, "took", time.Since(started).Round(time.Millisecond))
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

// Start runs the scheduler until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	s.c.Start()
	<-ctx.Done()
	stopCtx := s.c.Stop()
	// Let in-flight jobs drain briefly.
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
	}
	return ctx.Err()
}
