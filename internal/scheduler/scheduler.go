// Package scheduler runs the daily billing jobs at fixed UTC times, standing
// in for the cron triggers a hosted platform would provide.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/thorvaldsen/leasehold/internal/telemetry"
)

// TimeOfDay is a wall-clock UTC firing time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// JobFunc is one scheduled billing job. now is the tick that fired it.
type JobFunc func(ctx context.Context, now time.Time) error

type job struct {
	name string
	at   TimeOfDay
	run  JobFunc

	mu      sync.Mutex
	running bool
	lastDay string // last UTC day the job fired, "2006-01-02"
}

// tryStart claims the job for day if it is not running and has not fired yet
// that day. A slow run spilling past the next tick must not overlap itself.
func (j *job) tryStart(day string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running || j.lastDay == day {
		return false
	}
	j.running = true
	j.lastDay = day
	return true
}

func (j *job) finish() {
	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// Scheduler fires registered jobs once per UTC day at their configured time.
type Scheduler struct {
	jobs     []*job
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// New creates a new Scheduler instance.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger:   logger,
		interval: 30 * time.Second,
		now:      time.Now,
	}
}

// Register adds a job firing daily at the given UTC time.
func (s *Scheduler) Register(name string, at TimeOfDay, run JobFunc) {
	s.jobs = append(s.jobs, &job{name: name, at: at, run: run})
}

// Start ticks until the context is cancelled. In-flight jobs run to
// completion on their own contexts derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler starting",
		"jobs", len(s.jobs), "tick_interval", s.interval)
	for _, j := range s.jobs {
		s.logger.Info("scheduler job registered", "job", j.name, "at_utc", j.at.String())
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down, waiting for in-flight jobs")
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx, &wg, s.now().UTC())
		}
	}
}

// tick fires every job whose wall-clock time has been reached today and that
// has not already run today.
func (s *Scheduler) tick(ctx context.Context, wg *sync.WaitGroup, now time.Time) {
	day := now.Format("2006-01-02")
	for _, j := range s.jobs {
		due := now.Hour() > j.at.Hour ||
			(now.Hour() == j.at.Hour && now.Minute() >= j.at.Minute)
		if !due {
			continue
		}
		if !j.tryStart(day) {
			continue
		}
		wg.Add(1)
		go func(j *job) {
			defer wg.Done()
			defer j.finish()
			s.runJob(ctx, j, now)
		}(j)
	}
}

// RunJob fires one registered job immediately, regardless of schedule. Used
// by the scheduler binary's run-once mode for backfills and manual sweeps.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	for _, j := range s.jobs {
		if j.name != name {
			continue
		}
		now := s.now().UTC()
		if !j.tryStart(now.Format("2006-01-02 15:04:05.000000000")) {
			return fmt.Errorf("job %s is already running", name)
		}
		defer j.finish()
		s.runJob(ctx, j, now)
		return nil
	}
	return fmt.Errorf("unknown job %s", name)
}

func (s *Scheduler) runJob(ctx context.Context, j *job, now time.Time) {
	start := time.Now()
	s.logger.Info("job starting", "job", j.name)

	err := j.run(ctx, now)
	duration := time.Since(start)

	if telemetry.Business != nil {
		telemetry.Business.JobRuns.WithLabelValues(j.name).Inc()
		telemetry.Business.JobDuration.WithLabelValues(j.name).Observe(duration.Seconds())
	}

	if err != nil {
		s.logger.Error("job failed",
			"job", j.name, "duration", duration, "error", err)
		if telemetry.Business != nil {
			telemetry.Business.JobFailures.WithLabelValues(j.name).Inc()
		}
		telemetry.CaptureError(err, map[string]interface{}{"job": j.name})
		return
	}
	s.logger.Info("job finished", "job", j.name, "duration", duration)
}
