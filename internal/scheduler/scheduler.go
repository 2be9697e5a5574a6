// Package scheduler runs Omni's recurring background jobs: the outbox drain,
// the reminder sweep, automation time triggers, connector pulls, and the
// dashboard broadcast loop.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/omnihq/omni/internal/logging"
)

// Kind says how a job's next run is derived.
type Kind string

const (
	KindInterval Kind = "interval" // every Every duration
	KindDaily    Kind = "daily"    // once a day at At ("15:04")
	KindOnce     Kind = "once"     // a single run at When
)

// Schedule defines when a job runs.
type Schedule struct {
	Kind  Kind          `json:"kind"`
	Every time.Duration `json:"every,omitempty"`
	At    string        `json:"at,omitempty"`
	When  time.Time     `json:"when,omitempty"`
}

// Handler is the function executed for a job.
type Handler func(ctx context.Context) error

// Job is one registered background job. Run statistics are updated in place
// under the scheduler lock.
type Job struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Schedule   Schedule      `json:"schedule"`
	Handler    Handler       `json:"-"`
	Enabled    bool          `json:"enabled"`
	LastRun    *time.Time    `json:"last_run,omitempty"`
	NextRun    *time.Time    `json:"next_run,omitempty"`
	RunCount   int64         `json:"run_count"`
	ErrorCount int64         `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Timeout    time.Duration `json:"timeout"`
}

// Scheduler owns a set of jobs, each driven by its own goroutine loop.
type Scheduler struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	log     *logging.Logger
}

// New creates a stopped scheduler.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:    make(map[string]*Job),
		cancels: make(map[string]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
		log:     logging.Named("scheduler"),
	}
}

// Register adds a job. Registered jobs are enabled and, when the scheduler is
// already running, start immediately.
func (s *Scheduler) Register(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if job.Handler == nil {
		return fmt.Errorf("job handler is required")
	}
	if job.Timeout == 0 {
		job.Timeout = 2 * time.Minute
	}

	job.Enabled = true
	next := s.nextRun(job.Schedule)
	job.NextRun = &next
	s.jobs[job.ID] = job

	if s.started {
		s.launchLocked(job)
	}
	return nil
}

// Remove unregisters a job, stopping its loop if running.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	delete(s.jobs, id)
}

// Enable turns a disabled job back on.
func (s *Scheduler) Enable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.Enabled {
		return nil
	}
	job.Enabled = true
	if s.started {
		s.launchLocked(job)
	}
	return nil
}

// Disable stops a job's loop without unregistering it.
func (s *Scheduler) Disable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	job.Enabled = false
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	return nil
}

// Start launches a loop for every enabled job.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true
	for _, job := range s.jobs {
		if job.Enabled {
			s.launchLocked(job)
		}
	}
	s.log.Debug("started with %d jobs", len(s.jobs))
	return nil
}

// Stop cancels every loop and waits for in-flight handlers to return.
// The scheduler may be started again afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = make(map[string]context.CancelFunc)
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()
}

func (s *Scheduler) launchLocked(job *Job) {
	jobCtx, cancel := context.WithCancel(s.ctx)
	s.cancels[job.ID] = cancel

	s.wg.Add(1)
	go s.loop(jobCtx, job)
}

// loop waits out each gap and executes the job, until cancelled.
func (s *Scheduler) loop(ctx context.Context, job *Job) {
	defer s.wg.Done()

	for {
		s.mu.RLock()
		var wait time.Duration
		if job.NextRun != nil {
			wait = time.Until(*job.NextRun)
		}
		s.mu.RUnlock()
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			s.execute(ctx, job)
		}

		if job.Schedule.Kind == KindOnce {
			return
		}
	}
}

// execute runs the handler once with the job timeout and records the outcome.
func (s *Scheduler) execute(ctx context.Context, job *Job) {
	execCtx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	now := time.Now()
	s.mu.Lock()
	job.LastRun = &now
	job.RunCount++
	s.mu.Unlock()

	err := job.Handler(execCtx)

	s.mu.Lock()
	if err != nil {
		job.ErrorCount++
		job.LastError = err.Error()
	} else {
		job.LastError = ""
	}
	next := s.nextRun(job.Schedule)
	job.NextRun = &next
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("job %s failed: %v", job.ID, err)
	}
}

// nextRun derives the next execution time for a schedule.
func (s *Scheduler) nextRun(schedule Schedule) time.Time {
	now := time.Now()

	switch schedule.Kind {
	case KindInterval:
		return now.Add(schedule.Every)

	case KindDaily:
		at, err := time.Parse("15:04", schedule.At)
		if err != nil {
			at, _ = time.Parse("15:04", "08:00")
		}
		next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		return next

	case KindOnce:
		if schedule.When.After(now) {
			return schedule.When
		}
		return now

	default:
		return now.Add(time.Hour)
	}
}

// RunNow triggers a job immediately, outside its schedule.
func (s *Scheduler) RunNow(id string) error {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	go s.execute(s.ctx, job)
	return nil
}

// Job returns a registered job by id.
func (s *Scheduler) Job(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Jobs returns all registered jobs.
func (s *Scheduler) Jobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	return out
}

// Stats summarizes the scheduler for the health endpoint.
type Stats struct {
	Started     bool  `json:"started"`
	TotalJobs   int   `json:"total_jobs"`
	EnabledJobs int   `json:"enabled_jobs"`
	TotalRuns   int64 `json:"total_runs"`
	TotalErrors int64 `json:"total_errors"`
}

// GetStats returns aggregate run counters across all jobs.
func (s *Scheduler) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Started:   s.started,
		TotalJobs: len(s.jobs),
	}
	for _, job := range s.jobs {
		if job.Enabled {
			stats.EnabledJobs++
		}
		stats.TotalRuns += job.RunCount
		stats.TotalErrors += job.ErrorCount
	}
	return stats
}

// IntervalJob builds a job that runs every interval.
func IntervalJob(id, name string, every time.Duration, handler Handler) *Job {
	return &Job{
		ID:       id,
		Name:     name,
		Schedule: Schedule{Kind: KindInterval, Every: every},
		Handler:  handler,
	}
}

// DailyJob builds a job that runs once a day at the given "15:04" time.
func DailyJob(id, name, at string, handler Handler) *Job {
	return &Job{
		ID:       id,
		Name:     name,
		Schedule: Schedule{Kind: KindDaily, At: at},
		Handler:  handler,
	}
}

// OnceJob builds a job that runs a single time at the given moment.
func OnceJob(id, name string, when time.Time, handler Handler) *Job {
	return &Job{
		ID:       id,
		Name:     name,
		Schedule: Schedule{Kind: KindOnce, When: when},
		Handler:  handler,
	}
}
