package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/robfig/cron/v3"
)

// SchedulerService is the service key the scheduler registers under.
const SchedulerService = "cron.scheduler"

// ErrJobRunning is returned by RunNow when the job is already executing.
var ErrJobRunning = errors.New("cron: job already running")

// ErrUnknownJob is returned by RunNow for a name that was never registered.
var ErrUnknownJob = errors.New("cron: unknown job")

// parser accepts standard 5-field expressions.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler manages periodic job execution using cron expressions.
// Each job is guarded by its own mutex; a tick that finds the job still
// running is skipped (TryLock).
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   map[string]Job
	order  []string
	locks  map[string]*sync.Mutex
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]Job),
		locks:  make(map[string]*sync.Mutex),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterJob adds a job to the scheduler. Must be called before Start().
// The schedule is parsed immediately so a bad expression fails at startup
// configuration rather than at Start.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	if _, err := parser.Parse(j.Schedule()); err != nil {
		return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
	}

	s.jobs[name] = j
	s.order = append(s.order, name)
	s.locks[name] = &sync.Mutex{}
	return nil
}

// Jobs returns the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

// Start begins executing registered jobs on their schedules.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cron = cron.New(cron.WithParser(parser))

	for _, name := range s.order {
		job := s.jobs[name]
		if _, err := s.cron.AddFunc(job.Schedule(), func() { s.run(job, false) }); err != nil {
			return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.order))
	return nil
}

// RunNow executes the named job immediately in the calling goroutine.
// It fails with ErrJobRunning instead of waiting when a tick is in flight.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(job, true)
}

func (s *Scheduler) run(job Job, manual bool) error {
	lock := s.locks[job.Name()]
	if !lock.TryLock() {
		s.logger.Warn("cron: job still running, skipping tick", "job", job.Name())
		return ErrJobRunning
	}
	defer lock.Unlock()

	s.logger.Debug("cron: job started", "job", job.Name(), "manual", manual)
	if err := job.Run(s.ctx); err != nil {
		s.logger.Error("cron: job failed", "job", job.Name(), "error", err)
		return err
	}
	s.logger.Debug("cron: job completed", "job", job.Name())
	return nil
}

// Stop cancels the job context and waits for in-flight jobs.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
