// Package jobs runs background maintenance on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"

	"negotiate/api/internal/logger"
)

type Job interface {
	Name() string
	Schedule() string
	Run(ctx context.Context) error
}

// Runner schedules jobs and never lets the same job overlap with itself.
type Runner struct {
	cron    *cron.Cron
	jobs    []Job
	running mapset.Set[string]
	mu      sync.Mutex
	timeout time.Duration
	log     *logger.Logger
}

func NewRunner(log *logger.Logger, jobs ...Job) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		cron:    cron.New(),
		jobs:    jobs,
		running: mapset.NewThreadUnsafeSet[string](),
		timeout: 10 * time.Minute,
		log:     log.With("service", "jobs"),
	}
}

// Start registers every job and starts the scheduler.
func (r *Runner) Start() error {
	for _, job := range r.jobs {
		job := job
		if err := r.cron.AddFunc(job.Schedule(), func() { r.RunOnce(job) }); err != nil {
			return fmt.Errorf("schedule job %s: %w", job.Name(), err)
		}
		r.log.Info("job scheduled", "job", job.Name(), "schedule", job.Schedule())
	}
	r.cron.Start()
	return nil
}

// RunOnce executes job unless a previous run is still in progress. It
// reports whether the job ran.
func (r *Runner) RunOnce(job Job) bool {
	r.mu.Lock()
	if r.running.Contains(job.Name()) {
		r.mu.Unlock()
		r.log.Warn("job still running, skipping", "job", job.Name())
		return false
	}
	r.running.Add(job.Name())
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running.Remove(job.Name())
		r.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	started := time.Now()
	if err := job.Run(ctx); err != nil {
		r.log.Error("job failed", "job", job.Name(), "error", err, "duration_ms", time.Since(started).Milliseconds())
		return true
	}
	r.log.Debug("job finished", "job", job.Name(), "duration_ms", time.Since(started).Milliseconds())
	return true
}

func (r *Runner) Stop() {
	r.log.Info("stopping jobs")
	r.cron.Stop()
}
