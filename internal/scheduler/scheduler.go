// Package scheduler runs the service's periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tradeflow-ai/tradeflow/internal/logging"
	"github.com/tradeflow-ai/tradeflow/internal/metrics"
)

// JobFunc is a scheduled unit of work.
type JobFunc func(ctx context.Context) error

// Scheduler runs named jobs on cron schedules (standard five-field syntax
// and descriptors such as @hourly, evaluated in UTC).
type Scheduler struct {
	cron    *cron.Cron
	logger  *logging.Logger
	timeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

// New creates a scheduler. Each run is bounded by timeout.
func New(logger *logging.Logger, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cron.DiscardLogger))),
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers job under name with the given schedule.
func (s *Scheduler) Add(name, schedule string, job JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	id, err := s.cron.AddFunc(schedule, func() { s.Run(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", name, err)
	}
	s.entries[name] = id
	return nil
}

// Run executes job once, recording its outcome.
func (s *Scheduler) Run(name string, job JobFunc) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := job(ctx)
	duration := time.Since(start)
	metrics.RecordJobRun(name, duration, err == nil)

	entry := s.logger.WithFields(map[string]interface{}{
		"job":         name,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("scheduled job failed")
		return
	}
	entry.Debug("scheduled job completed")
}

// Next returns the next activation time of job name. The time is zero
// until the scheduler has started.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithField("jobs", len(s.entries)).Info("scheduler started")
}

// Stop halts scheduling and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
