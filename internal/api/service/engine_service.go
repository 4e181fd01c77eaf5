package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clipflow"
	"clipflow/internal/api/models"
	"clipflow/internal/api/repo"
	"clipflow/internal/engine"
	"clipflow/internal/engine/credit"
	"clipflow/internal/engine/jobs"
	"clipflow/internal/engine/modelapi"
	"clipflow/internal/engine/node"
	"clipflow/internal/engine/scheduler"
	"clipflow/internal/engine/store"
	"clipflow/internal/engine/stream"

	"github.com/rs/zerolog"
)

// EngineOptions are the collaborators of an Engine. Nil fields fall back to in-memory
// implementations, which is what tests and the CLI use.
type EngineOptions struct {
	Store       store.Store
	Ledger      credit.Ledger
	Models      node.ModelRunner
	JobProvider jobs.Provider
	JobObserver jobs.Observer
	Catalog     *modelapi.Catalog
	Forward     engine.Emitter
	OnFinish    func(engine.Record)
	Scheduler   scheduler.Config
	Jobs        jobs.Config
	Logger      zerolog.Logger
}

// Engine bundles the execution engine components shared by the services of one process.
type Engine struct {
	Registry  *node.Registry
	Catalog   *modelapi.Catalog
	Poller    *jobs.Poller
	Broker    *stream.Broker
	Scheduler *scheduler.Scheduler
	Ledger    credit.Ledger
	Store     store.Store
	logger    zerolog.Logger
}

func NewEngine(opts EngineOptions) *Engine {
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.Ledger == nil {
		opts.Ledger = credit.NewMemoryLedger(credit.DefaultStartingBalance)
	}
	if opts.Catalog == nil {
		opts.Catalog = modelapi.NewCatalog(modelapi.DefaultCost)
	}

	e := &Engine{
		Catalog: opts.Catalog,
		Ledger:  opts.Ledger,
		Store:   opts.Store,
		logger:  opts.Logger,
	}

	deps := node.Deps{
		Models:     opts.Models,
		Catalog:    opts.Catalog,
		JobTimeout: opts.Jobs.Timeout,
	}
	if opts.JobProvider != nil {
		pollerOpts := []jobs.Option{jobs.WithLogger(opts.Logger)}
		if opts.JobObserver != nil {
			pollerOpts = append(pollerOpts, jobs.WithObserver(opts.JobObserver))
		}
		e.Poller = jobs.NewPoller(opts.JobProvider, opts.Jobs, pollerOpts...)
		deps.Jobs = e.Poller
	}
	e.Registry = node.NewRegistry(deps)

	brokerOpts := []stream.Option{stream.WithLogger(opts.Logger)}
	if opts.Forward != nil {
		brokerOpts = append(brokerOpts, stream.WithForward(opts.Forward))
	}
	e.Broker = stream.NewBroker(brokerOpts...)

	schedOpts := []scheduler.Option{
		scheduler.WithLedger(opts.Ledger),
		scheduler.WithBroker(e.Broker),
		scheduler.WithLogger(opts.Logger),
	}
	if opts.OnFinish != nil {
		schedOpts = append(schedOpts, scheduler.OnFinish(opts.OnFinish))
	}
	e.Scheduler = scheduler.New(opts.Store, opts.Scheduler, schedOpts...)
	return e
}

// NewEngineFromConfig wires the engine against Postgres, Redis, NATS and the model provider
// configured in the environment.
func NewEngineFromConfig() *Engine {
	cfg := clipflow.GetConfig()
	logger := clipflow.Logger

	client := modelapi.NewClient(cfg.ModelProvider.URL, cfg.ModelProvider.Token, modelapi.WithLogger(logger))
	jobRepo := repo.NewAsyncJobRepository()
	notifier := NewNotificationService()

	return NewEngine(EngineOptions{
		Store:       repo.NewExecutionRepository(),
		Ledger:      NewAuditedLedger(credit.NewRedisLedger(clipflow.Redis, int64(cfg.EngineConfig.StartingCredits)), repo.NewCreditTransactionRepository()),
		Models:      client,
		JobProvider: modelapi.JobProvider{Client: client},
		JobObserver: jobs.ObserverFunc(func(j jobs.Job) {
			row := models.AsyncJobFromJob(j)
			if err := jobRepo.Save(&row); err != nil {
				logger.Error().Err(err).Str("jobId", j.ID).Msg("Failed to persist async job")
			}
		}),
		Catalog:  modelapi.NewCatalog(int64(cfg.ModelProvider.DefaultCost)),
		Forward:  stream.NewNATSPublisher(clipflow.Nats, cfg.TenantID, logger),
		OnFinish: notifier.ExecutionFinished,
		Scheduler: scheduler.Config{
			MaxConcurrency: cfg.EngineConfig.MaxConcurrency,
			NodeTimeout:    time.Duration(cfg.EngineConfig.NodeTimeoutSeconds) * time.Second,
		},
		Jobs: jobs.Config{
			Interval:           time.Duration(cfg.EngineConfig.PollIntervalMs) * time.Millisecond,
			MaxAttempts:        cfg.EngineConfig.PollMaxAttempts,
			Timeout:            time.Duration(cfg.EngineConfig.JobTimeoutSeconds) * time.Second,
			MaxBackoff:         30 * time.Second,
			MaxConcurrentPolls: 16,
			Jitter:             true,
		},
		Logger: logger,
	})
}

// Stop cancels the live executions and the jobs they wait on.
func (e *Engine) Stop() {
	e.Scheduler.Stop()
	if e.Poller != nil {
		e.Poller.Stop()
	}
}

// RecoverInterrupted fails the executions a previous process left pending or running. Their
// goroutines died with that process, so nothing would ever finish them.
func (e *Engine) RecoverInterrupted(ctx context.Context) (int, error) {
	recs, err := e.Store.ListByStatus(ctx, engine.ExecutionPending, engine.ExecutionRunning)
	if err != nil {
		return 0, fmt.Errorf("list interrupted executions: %w", err)
	}
	now := time.Now()
	recovered := 0
	for _, rec := range recs {
		if e.Scheduler.Running(rec.ID) {
			continue
		}
		for id, st := range rec.NodeStates {
			if st.Status != engine.NodeRunning && st.Status != engine.NodeReady {
				continue
			}
			st.Status = engine.NodeFailed
			st.Error = engine.NewNodeError(engine.CodeCancelled, "interrupted by a server restart")
			st.FinishedAt = &now
			if err := e.Store.SaveNodeState(ctx, rec.ID, id, st); err != nil {
				return recovered, fmt.Errorf("recover node %s of %s: %w", id, rec.ID, err)
			}
		}
		rec.Status = engine.ExecutionFailed
		rec.ErrorMessage = "execution interrupted by a server restart"
		rec.CompletedAt = &now
		if err := e.Store.Update(ctx, rec); err != nil {
			if errors.Is(err, store.ErrTerminal) {
				continue
			}
			return recovered, fmt.Errorf("recover execution %s: %w", rec.ID, err)
		}
		e.logger.Warn().Str("executionId", rec.ID).Str("workflowId", rec.WorkflowID).Msg("Marked interrupted execution as failed")
		recovered++
	}
	return recovered, nil
}
