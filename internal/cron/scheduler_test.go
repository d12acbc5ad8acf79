package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
)

// simpleJob is a minimal Job for scheduler tests.
type simpleJob struct {
	name     string
	schedule string
	runFunc  func(ctx context.Context) error
	mu       sync.Mutex
	calls    int
}

func (j *simpleJob) Name() string     { return j.name }
func (j *simpleJob) Schedule() string { return j.schedule }
func (j *simpleJob) Run(ctx context.Context) error {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	if j.runFunc != nil {
		return j.runFunc(ctx)
	}
	return nil
}

func TestScheduler_RegisterJob_DuplicateName(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())

	err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"})
	if err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}

	err = s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"})
	if err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestScheduler_RegisterJob_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	if err := s.RegisterJob(&simpleJob{name: "bad", schedule: "invalid"}); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if len(s.Jobs()) != 0 {
		t.Errorf("Jobs() = %v, want none after rejected registration", s.Jobs())
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{name: "noop", schedule: "* * * * *"})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_NilLogger(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil) // should not panic
	if s.logger == nil {
		t.Fatal("logger should default to slog.Default()")
	}
}

func TestScheduler_RunNow(t *testing.T) {
	t.Parallel()

	job := &simpleJob{name: "cleanup", schedule: "0 0 1 1 *"}
	s := NewScheduler(slog.Default())
	if err := s.RegisterJob(job); err != nil {
		t.Fatalf("RegisterJob: %v", err)
	}

	if err := s.RunNow("cleanup"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	job.mu.Lock()
	calls := job.calls
	job.mu.Unlock()
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	if err := s.RunNow("missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("RunNow(missing) error = %v, want ErrUnknownJob", err)
	}
}

func TestScheduler_NoParallelExecution(t *testing.T) {
	t.Parallel()

	var concurrent atomic.Int32
	var maxConcurrent atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{
		name:     "slow",
		schedule: "0 0 1 1 *",
		runFunc: func(_ context.Context) error {
			c := concurrent.Add(1)
			for {
				old := maxConcurrent.Load()
				if c <= old || maxConcurrent.CompareAndSwap(old, c) {
					break
				}
			}
			close(started)
			<-release
			concurrent.Add(-1)
			return nil
		},
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.RunNow("slow")
	}()
	<-started

	if err := s.RunNow("slow"); !errors.Is(err, ErrJobRunning) {
		t.Errorf("second RunNow error = %v, want ErrJobRunning", err)
	}
	close(release)
	wg.Wait()

	if maxConcurrent.Load() > 1 {
		t.Errorf("max concurrent = %d, want <= 1", maxConcurrent.Load())
	}
}

func TestScheduler_JobError(t *testing.T) {
	t.Parallel()

	// Verify that job errors don't crash the scheduler.
	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{
		name:     "failing",
		schedule: "* * * * *",
		runFunc: func(_ context.Context) error {
			return errors.New("job failed")
		},
	})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// The scheduler should still be running after a job error.
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	// Stop without Start should not panic.
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}
