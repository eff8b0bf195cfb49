package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is run on every scheduled tick.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a standard five-field cron schedule.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	job      Job

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
}

func NewScheduler(spec string, job Job) (*Scheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return &Scheduler{spec: spec, schedule: sched, job: job}, nil
}

// Next returns the first run strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Start begins running the job. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	c := cron.New()
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if err := s.job(ctx); err != nil {
			slog.ErrorContext(ctx, "Scheduled job failed", "schedule", s.spec, "error", err)
		}
	}))
	c.Start()
	s.cron = c
	s.running = true

	slog.InfoContext(ctx, "Scheduler started",
		"schedule", s.spec,
		"next_run", s.Next(time.Now()).Format(time.RFC3339))
	return nil
}

// Stop prevents further runs and waits for a running job to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c := s.cron
	s.running = false
	s.cron = nil
	s.mu.Unlock()

	select {
	case <-c.Stop().Done():
		slog.InfoContext(ctx, "Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
