// Package supervisor hosts the periodic jobs that drive the system: ingest,
// manage, discover, metrics, status probing. Each job runs on its own ticker
// behind a reentrancy flag so a slow run cannot overlap its next tick, and
// a panic in one run never takes the process down.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultGrace bounds how long Run waits for in-flight jobs on shutdown.
const DefaultGrace = 30 * time.Second

// Job is one periodic unit of work.
type Job struct {
	Name  string
	Every time.Duration
	Fn    func(ctx context.Context) error
}

// JobStatus is a point-in-time view of one job for the status API.
type JobStatus struct {
	Name         string    `json:"name"`
	Every        string    `json:"every"`
	Running      bool      `json:"running"`
	Runs         int64     `json:"runs"`
	Errors       int64     `json:"errors"`
	Skipped      int64     `json:"skipped"`
	LastRun      time.Time `json:"last_run"`
	LastDuration string    `json:"last_duration"`
	LastError    string    `json:"last_error,omitempty"`
}

type job struct {
	Job
	running atomic.Bool

	mu           sync.Mutex
	runs         int64
	errs         int64
	skipped      int64
	lastRun      time.Time
	lastDuration time.Duration
	lastError    string
}

// Supervisor owns the job table. Add jobs before calling Run.
type Supervisor struct {
	jobs   []*job
	grace  time.Duration
	logger *log.Logger

	// OnStop runs after all tickers stop, before Run returns. Used for
	// ordered teardown (trading engine shutdown, store close).
	onStop []func()
}

// Options contains configuration for creating a Supervisor.
type Options struct {
	// Grace bounds the shutdown wait for in-flight jobs. Defaults to 30s.
	Grace  time.Duration
	Logger *log.Logger
}

// New creates a Supervisor.
func New(opts Options) *Supervisor {
	grace := opts.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Supervisor{grace: grace, logger: logger}
}

// Add registers a job. Jobs with a non-positive period are rejected.
func (s *Supervisor) Add(j Job) error {
	if j.Name == "" || j.Fn == nil {
		return fmt.Errorf("job needs a name and a function")
	}
	if j.Every <= 0 {
		return fmt.Errorf("job %s: period must be positive", j.Name)
	}
	s.jobs = append(s.jobs, &job{Job: j})
	return nil
}

// OnStop registers a teardown hook, run in registration order after the
// tickers stop.
func (s *Supervisor) OnStop(fn func()) {
	s.onStop = append(s.onStop, fn)
}

// Run blocks until ctx is cancelled, driving every registered job at its
// period. On cancellation it stops accepting ticks, waits up to the grace
// window for in-flight runs, then executes the teardown hooks.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range s.jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, j)
		}()
		s.logger.Printf("job %s scheduled every %s", j.Name, j.Every)
	}

	<-ctx.Done()
	s.logger.Printf("shutdown requested, waiting for in-flight jobs (grace %s)", s.grace)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.grace):
		s.logger.Printf("grace window elapsed with jobs still running")
	}

	for _, fn := range s.onStop {
		fn()
	}
	s.logger.Printf("supervisor stopped")
}

func (s *Supervisor) loop(ctx context.Context, j *job) {
	ticker := time.NewTicker(j.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, j)
		}
	}
}

// RunJobNow fires one named job immediately, subject to the same
// reentrancy guard as its ticker. Returns false for unknown jobs.
func (s *Supervisor) RunJobNow(ctx context.Context, name string) bool {
	for _, j := range s.jobs {
		if j.Name == name {
			s.runOnce(ctx, j)
			return true
		}
	}
	return false
}

func (s *Supervisor) runOnce(ctx context.Context, j *job) {
	if !j.running.CompareAndSwap(false, true) {
		j.mu.Lock()
		j.skipped++
		j.mu.Unlock()
		s.logger.Printf("job %s skipped: previous run still in progress", j.Name)
		return
	}
	defer j.running.Store(false)

	start := time.Now()
	err := s.invoke(ctx, j)
	elapsed := time.Since(start)

	j.mu.Lock()
	j.runs++
	j.lastRun = start
	j.lastDuration = elapsed
	if err != nil {
		j.errs++
		j.lastError = err.Error()
	} else {
		j.lastError = ""
	}
	j.mu.Unlock()

	if err != nil {
		s.logger.Printf("job %s failed after %s: %v", j.Name, elapsed.Round(time.Millisecond), err)
	}
}

// invoke runs the job function, converting a panic into an error so the
// ticker re-arms for the next period.
func (s *Supervisor) invoke(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.logger.Printf("job %s panicked: %v\n%s", j.Name, r, debug.Stack())
		}
	}()
	return j.Fn(ctx)
}

// Status reports every job's counters for the status API.
func (s *Supervisor) Status() []JobStatus {
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.mu.Lock()
		st := JobStatus{
			Name:         j.Name,
			Every:        j.Every.String(),
			Running:      j.running.Load(),
			Runs:         j.runs,
			Errors:       j.errs,
			Skipped:      j.skipped,
			LastRun:      j.lastRun,
			LastDuration: j.lastDuration.Round(time.Millisecond).String(),
			LastError:    j.lastError,
		}
		j.mu.Unlock()
		out = append(out, st)
	}
	return out
}
