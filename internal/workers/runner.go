// Package workers runs the recurring background jobs: the past-due sweep and
// the digest scheduler.
package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrBusy is returned by RunOnce when the previous run has not finished.
var ErrBusy = errors.New("job already running")

// Job is a unit of recurring work.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Runner ticks one Job. Start and Stop are idempotent and runs never
// overlap.
type Runner struct {
	job Job
	log *zap.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
	runs    atomic.Int64
}

// NewRunner creates a runner for job.
func NewRunner(job Job, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if job.Timeout <= 0 {
		job.Timeout = 30 * time.Second
	}
	return &Runner{job: job, log: logger.With(zap.String("job", job.Name))}
}

// Name returns the job name.
func (r *Runner) Name() string { return r.job.Name }

// Runs reports how many runs have completed.
func (r *Runner) Runs() int64 { return r.runs.Load() }

// Start begins the ticking loop. Calling Start on a started runner does
// nothing.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopCh != nil {
		return
	}
	r.stopCh = make(chan struct{})
	r.wg.Add(1)
	go r.loop(r.stopCh)
	r.log.Info("worker started", zap.Duration("interval", r.job.Interval))
}

// Stop signals the loop to exit and waits for an in-flight run. Calling Stop
// on a stopped runner does nothing.
func (r *Runner) Stop() {
	r.mu.Lock()
	stopCh := r.stopCh
	r.stopCh = nil
	r.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	r.wg.Wait()
	r.log.Info("worker stopped")
}

func (r *Runner) loop(stopCh chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.job.Timeout)
			if err := r.RunOnce(ctx); err != nil && !errors.Is(err, ErrBusy) {
				r.log.Error("worker run failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// RunOnce runs the job immediately unless a run is already in progress.
func (r *Runner) RunOnce(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Debug("worker run skipped, previous run still active")
		return ErrBusy
	}
	defer r.running.Store(false)
	defer r.runs.Add(1)
	return r.job.Run(ctx)
}

// Group starts and stops several runners together.
type Group struct {
	runners []*Runner
}

// NewGroup creates a group of runners.
func NewGroup(runners ...*Runner) *Group {
	return &Group{runners: runners}
}

// Start starts every runner.
func (g *Group) Start() {
	for _, r := range g.runners {
		r.Start()
	}
}

// Stop stops every runner in reverse order.
func (g *Group) Stop() {
	for i := len(g.runners) - 1; i >= 0; i-- {
		g.runners[i].Stop()
	}
}
