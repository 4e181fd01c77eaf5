package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clipflow/internal/engine"
	"clipflow/internal/engine/credit"
	"clipflow/internal/engine/graph"
	"clipflow/internal/engine/node"
	"clipflow/internal/engine/store"
	"clipflow/internal/engine/stream"

	"github.com/rs/zerolog"
)

var ErrNotRunning = errors.New("execution is not running")

type Config struct {
	MaxConcurrency int
	NodeTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{MaxConcurrency: 4, NodeTimeout: 120 * time.Second}
}

// Plan is a compiled execution: the record to create, the frozen graph and the built nodes.
type Plan struct {
	Record engine.Record
	Graph  *graph.Graph
	Built  map[string]node.Built
}

// Scheduler starts executions and keeps track of the live ones so they can be cancelled.
type Scheduler struct {
	store    store.Store
	ledger   credit.Ledger
	broker   *stream.Broker
	emitter  engine.Emitter
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
	onFinish func(engine.Record)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	runs map[string]*Run
}

type Option func(*Scheduler)

// WithLedger meters nodes whose kind is metered. Without a ledger nothing is charged.
func WithLedger(l credit.Ledger) Option {
	return func(s *Scheduler) { s.ledger = l }
}

// WithBroker opens every execution on the broker and emits its events there.
func WithBroker(b *stream.Broker) Option {
	return func(s *Scheduler) { s.broker = b }
}

// WithEmitter adds a receiver for events, called after the broker. Events reaching it are not
// sequenced; use stream.WithForward to relay sequenced events.
func WithEmitter(e engine.Emitter) Option {
	return func(s *Scheduler) { s.emitter = e }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// OnFinish is called with the final record once an execution is terminal and persisted.
func OnFinish(fn func(engine.Record)) Option {
	return func(s *Scheduler) { s.onFinish = fn }
}

func New(st store.Store, cfg Config, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.NodeTimeout <= 0 {
		cfg.NodeTimeout = def.NodeTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		store:  st,
		cfg:    cfg,
		logger: zerolog.Nop(),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		runs:   make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start persists the record with every node pending and runs the graph in the background.
func (s *Scheduler) Start(plan Plan) (*Run, error) {
	if plan.Graph == nil {
		return nil, errors.New("plan has no graph")
	}
	rec := plan.Record.Clone()
	rec.Status = engine.ExecutionPending
	rec.NodeStates = make(map[string]engine.NodeState, plan.Graph.Len())
	for _, id := range plan.Graph.NodeIDs() {
		rec.NodeStates[id] = engine.NodeState{Status: engine.NodePending}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	if err := s.store.Create(s.ctx, rec); err != nil {
		return nil, engine.NewFatalError(engine.CodeStorageUnavailable, err, "create execution: %v", err)
	}
	if s.broker != nil {
		if err := s.broker.Open(rec); err != nil {
			return nil, fmt.Errorf("open stream: %w", err)
		}
	}

	r := &Run{
		ID:        rec.ID,
		cancelled: make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.mu.Lock()
	s.runs[rec.ID] = r
	s.mu.Unlock()

	ex := newExecution(s, r, plan, rec)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ex.run()
	}()
	return r, nil
}

// Cancel cancels a live execution.
func (s *Scheduler) Cancel(executionID string) error {
	s.mu.Lock()
	r, ok := s.runs[executionID]
	s.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}
	r.Cancel()
	return nil
}

func (s *Scheduler) Running(executionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[executionID]
	return ok
}

// Stop cancels every live execution and waits for them and their workers to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) forget(id string) {
	s.mu.Lock()
	delete(s.runs, id)
	s.mu.Unlock()
}

func (s *Scheduler) emit(ev engine.Event) {
	if s.broker != nil {
		s.broker.Emit(ev)
	}
	if s.emitter != nil {
		s.emitter.Emit(ev)
	}
}

// Run is the handle of one started execution.
type Run struct {
	ID string

	cancelOnce sync.Once
	cancelled  chan struct{}
	done       chan struct{}
	result     engine.Record
}

// Cancel asks the execution to stop. It returns immediately; Done is closed once the record is
// terminal.
func (r *Run) Cancel() {
	r.cancelOnce.Do(func() { close(r.cancelled) })
}

func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result is the final record. Only valid after Done is closed.
func (r *Run) Result() engine.Record {
	<-r.done
	return r.result
}

// Wait blocks until the execution is terminal or ctx is done.
func (r *Run) Wait(ctx context.Context) (engine.Record, error) {
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return engine.Record{}, ctx.Err()
	}
}
