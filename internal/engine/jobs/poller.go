package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clipflow/internal/engine"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

type Config struct {
	// Interval between two polls of a healthy job.
	Interval time.Duration
	// MaxAttempts is the number of consecutive failed polls tolerated before giving up.
	MaxAttempts int
	// Timeout is the default wall-clock cap of a job.
	Timeout time.Duration
	// MaxBackoff caps the wait after failed polls.
	MaxBackoff time.Duration
	// MaxConcurrentPolls bounds provider requests in flight across all jobs.
	MaxConcurrentPolls int64
	// Jitter randomises backoff waits.
	Jitter bool
}

func DefaultConfig() Config {
	return Config{
		Interval:           2 * time.Second,
		MaxAttempts:        5,
		Timeout:            5 * time.Minute,
		MaxBackoff:         30 * time.Second,
		MaxConcurrentPolls: 16,
		Jitter:             true,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxBackoff < c.Interval {
		c.MaxBackoff = max(d.MaxBackoff, c.Interval)
	}
	if c.MaxConcurrentPolls <= 0 {
		c.MaxConcurrentPolls = d.MaxConcurrentPolls
	}
	return c
}

type entry struct {
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
}

// Poller owns every in-flight external job of the process. Each job gets its own polling goroutine;
// callers block in Await until the job reaches a terminal status.
type Poller struct {
	provider Provider
	observer Observer
	logger   zerolog.Logger
	cfg      Config
	sem      *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]*entry
}

type Option func(*Poller)

func WithObserver(o Observer) Option {
	return func(p *Poller) { p.observer = o }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

func NewPoller(provider Provider, cfg Config, opts ...Option) *Poller {
	cfg = cfg.normalized()
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		provider: provider,
		logger:   zerolog.Nop(),
		cfg:      cfg,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrentPolls),
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit creates the external job and starts polling it. A failure to create the job is returned
// as an ExternalCallFailed node error and nothing is polled.
func (slf *Poller) Submit(ctx context.Context, req Request) (string, error) {
	externalID, err := slf.provider.Create(ctx, req.Model, req.Input)
	if err != nil {
		return "", err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = slf.cfg.Timeout
	}
	now := time.Now()
	jobCtx, cancel := context.WithCancel(slf.ctx)
	e := &entry{
		job: Job{
			ID:                uuid.NewString(),
			ExternalID:        externalID,
			ExecutionID:       req.ExecutionID,
			NodeID:            req.NodeID,
			Model:             req.Model,
			Status:            StatusQueued,
			PollIntervalMs:    slf.cfg.Interval.Milliseconds(),
			AttemptsRemaining: slf.cfg.MaxAttempts,
			Input:             req.Input,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	slf.mu.Lock()
	slf.jobs[e.job.ID] = e
	slf.mu.Unlock()
	slf.notify(e.job)

	slf.logger.Info().Str("jobId", e.job.ID).Str("externalId", externalID).Str("model", req.Model).
		Str("executionId", req.ExecutionID).Str("nodeId", req.NodeID).Msg("Job submitted")

	slf.wg.Add(1)
	go slf.run(jobCtx, e, timeout)
	return e.job.ID, nil
}

// Poll returns the current view of a live job.
func (slf *Poller) Poll(jobID string) (Job, error) {
	slf.mu.Lock()
	defer slf.mu.Unlock()
	e, ok := slf.jobs[jobID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return e.job, nil
}

// Await blocks until the job is terminal and maps its outcome to a result or a node error. If ctx
// ends first the job is cancelled.
func (slf *Poller) Await(ctx context.Context, jobID string) (any, error) {
	slf.mu.Lock()
	e, ok := slf.jobs[jobID]
	slf.mu.Unlock()
	if !ok {
		return nil, ErrJobNotFound
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		slf.Cancel(jobID)
		<-e.done
		return nil, engine.AsNodeError(ctx.Err())
	}

	job, _ := slf.Poll(jobID)
	switch job.Status {
	case StatusSucceeded:
		return job.Result, nil
	case StatusTimedOut:
		return nil, engine.NewNodeError(engine.CodeExternalCallTimeout, "%s", job.Error)
	case StatusCancelled:
		return nil, engine.NewNodeError(engine.CodeCancelled, "%s", job.Error)
	default:
		return nil, engine.NewNodeError(engine.CodeExternalCallFailed, "%s", job.Error)
	}
}

// Cancel stops polling a job; the provider is asked to cancel it on a best-effort basis.
func (slf *Poller) Cancel(jobID string) {
	slf.mu.Lock()
	e, ok := slf.jobs[jobID]
	slf.mu.Unlock()
	if ok {
		e.cancel()
	}
}

// Forget drops a job from the live table, cancelling it if it is still running.
func (slf *Poller) Forget(jobID string) {
	slf.mu.Lock()
	e, ok := slf.jobs[jobID]
	slf.mu.Unlock()
	if !ok {
		return
	}
	e.cancel()
	<-e.done

	slf.mu.Lock()
	delete(slf.jobs, jobID)
	slf.mu.Unlock()
}

// Stop cancels every live job and waits for the polling goroutines to exit.
func (slf *Poller) Stop() {
	slf.logger.Info().Msg("Stopping job poller")
	slf.cancel()
	slf.wg.Wait()
	slf.logger.Info().Msg("Job poller stopped")
}

func (slf *Poller) run(ctx context.Context, e *entry, timeout time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			slf.logger.Error().Interface("panic", r).Str("jobId", e.job.ID).Msg("Job poller panicked")
			slf.finish(e, StatusFailed, nil, fmt.Sprintf("poller panic: %v", r))
		}
		close(e.done)
		slf.wg.Done()
	}()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	wait := time.NewTimer(slf.cfg.Interval)
	defer wait.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			slf.cancelRemote(e)
			slf.finish(e, StatusCancelled, nil, "job cancelled")
			return
		case <-deadline.C:
			slf.cancelRemote(e)
			slf.finish(e, StatusTimedOut, nil, fmt.Sprintf("job did not finish within %s", timeout))
			return
		case <-wait.C:
		}

		remote, err := slf.fetch(ctx, e)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			failures++
			pollErr := &engine.JobPollError{JobID: e.job.ID, Attempt: failures, Err: err}
			remaining := slf.cfg.MaxAttempts - failures
			slf.update(e, func(j *Job) { j.AttemptsRemaining = remaining })
			slf.logger.Warn().Err(pollErr).Str("jobId", e.job.ID).Int("attemptsRemaining", remaining).Msg("Job poll failed")
			if remaining <= 0 {
				slf.cancelRemote(e)
				slf.finish(e, StatusTimedOut, nil, fmt.Sprintf("gave up polling after %d failed attempts: %v", failures, err))
				return
			}
			wait.Reset(backoff(failures, slf.cfg.Interval, slf.cfg.MaxBackoff, slf.cfg.Jitter))
			continue
		}

		if failures > 0 {
			failures = 0
			slf.update(e, func(j *Job) { j.AttemptsRemaining = slf.cfg.MaxAttempts })
		}

		switch remote.Status {
		case StatusSucceeded:
			slf.finish(e, StatusSucceeded, remote.Output, "")
			return
		case StatusFailed, StatusCancelled, StatusTimedOut:
			msg := remote.Error
			if msg == "" {
				msg = fmt.Sprintf("job %s", remote.Status)
			}
			slf.finish(e, StatusFailed, nil, msg)
			return
		case StatusRunning:
			slf.update(e, func(j *Job) { j.Status = StatusRunning })
		}
		wait.Reset(slf.cfg.Interval)
	}
}

func (slf *Poller) fetch(ctx context.Context, e *entry) (Remote, error) {
	if err := slf.sem.Acquire(ctx, 1); err != nil {
		return Remote{}, err
	}
	defer slf.sem.Release(1)
	return slf.provider.Get(ctx, e.job.ExternalID)
}

func (slf *Poller) cancelRemote(e *entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := slf.provider.Cancel(ctx, e.job.ExternalID); err != nil {
		slf.logger.Warn().Err(err).Str("jobId", e.job.ID).Msg("Failed to cancel external job")
	}
}

func (slf *Poller) update(e *entry, fn func(*Job)) {
	slf.mu.Lock()
	before := e.job
	fn(&e.job)
	changed := before.Status != e.job.Status || before.AttemptsRemaining != e.job.AttemptsRemaining
	if changed {
		e.job.UpdatedAt = time.Now()
	}
	job := e.job
	slf.mu.Unlock()
	if changed {
		slf.notify(job)
	}
}

func (slf *Poller) finish(e *entry, status Status, result any, msg string) {
	slf.update(e, func(j *Job) {
		j.Status = status
		j.Result = result
		j.Error = msg
	})
	slf.logger.Info().Str("jobId", e.job.ID).Str("status", string(status)).Msg("Job finished")
}

func (slf *Poller) notify(j Job) {
	if slf.observer != nil {
		slf.observer.JobChanged(j)
	}
}
