package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"clipflow/internal/engine"
	"clipflow/internal/engine/credit"
	"clipflow/internal/engine/graph"
	"clipflow/internal/engine/node"

	"github.com/rs/zerolog"
)

const (
	billOpen int32 = iota
	billCharged
	billRefunded
)

type flight struct {
	cancel context.CancelFunc
	cost   int64
	bill   atomic.Int32
}

// settle refunds the node's debit unless the provider already billed it. Returns the amount
// actually charged.
func (f *flight) settle(refund func(int64)) int64 {
	if f.cost == 0 {
		return 0
	}
	if f.bill.CompareAndSwap(billOpen, billRefunded) {
		refund(f.cost)
		return 0
	}
	if f.bill.Load() == billCharged {
		return f.cost
	}
	return 0
}

type result struct {
	nodeID string
	output any
	err    error
}

// execution is the single goroutine that owns one record. Workers only report results over the
// results channel, every state change happens here.
type execution struct {
	s        *Scheduler
	handle   *Run
	graph    *graph.Graph
	resolver *graph.Resolver
	built    map[string]node.Built
	rec      engine.Record
	logger   zerolog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	outputs  map[string]any
	queue    []string
	inflight map[string]*flight
	results  chan result
	fatal    *engine.FatalError
}

func newExecution(s *Scheduler, r *Run, plan Plan, rec engine.Record) *execution {
	ctx, cancel := context.WithCancel(s.ctx)
	return &execution{
		s:        s,
		handle:   r,
		graph:    plan.Graph,
		resolver: graph.NewResolver(plan.Graph),
		built:    plan.Built,
		rec:      rec,
		logger:   s.logger.With().Str("executionId", rec.ID).Str("workflowId", rec.WorkflowID).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		outputs:  make(map[string]any),
		inflight: make(map[string]*flight),
		results:  make(chan result, plan.Graph.Len()),
	}
}

func (e *execution) run() {
	defer e.cancel()

	now := e.s.now()
	e.rec.Status = engine.ExecutionRunning
	e.rec.StartedAt = &now
	if err := e.s.store.Update(e.ctx, e.rec); err != nil {
		e.fail(engine.NewFatalError(engine.CodeStorageUnavailable, err, "persist execution: %v", err))
	}
	e.logger.Info().Int("nodes", e.graph.Len()).Msg("Execution started")

	for _, id := range e.graph.NodeIDs() {
		e.s.emit(engine.NodeEvent(e.rec.ID, id, e.rec.NodeStates[id], now))
	}

	for e.fatal == nil {
		e.step()
		if e.fatal != nil {
			break
		}
		if len(e.inflight) == 0 {
			e.finish(e.outcome())
			return
		}

		select {
		case r := <-e.results:
			e.complete(r)
		case <-e.handle.cancelled:
			e.abort(engine.CodeCancelled, "execution cancelled")
			e.finish(engine.ExecutionCancelled)
			return
		case <-e.ctx.Done():
			e.abort(engine.CodeCancelled, "scheduler stopped")
			e.finish(engine.ExecutionCancelled)
			return
		}
	}

	e.abort(e.fatal.Code, e.fatal.Reason)
	e.rec.ErrorMessage = e.fatal.Reason
	e.finish(engine.ExecutionFailed)
}

// step skips blocked nodes, promotes ready ones and dispatches as many as the bound allows.
func (e *execution) step() {
	for {
		blocked := e.resolver.Blocked(e.statuses())
		if len(blocked) == 0 {
			break
		}
		for _, id := range blocked {
			e.queue = remove(e.queue, id)
			e.transition(id, engine.NodeState{
				Status: engine.NodeSkipped,
				Error:  engine.NewNodeError(engine.CodeUpstreamFailed, "an upstream node did not succeed"),
			})
		}
	}

	for _, id := range e.resolver.Ready(e.statuses()) {
		e.transition(id, engine.NodeState{Status: engine.NodeReady})
		e.queue = append(e.queue, id)
	}

	for len(e.queue) > 0 && len(e.inflight) < e.s.cfg.MaxConcurrency && e.fatal == nil {
		id := e.queue[0]
		e.queue = e.queue[1:]
		e.dispatch(id)
	}
}

func (e *execution) dispatch(id string) {
	b := e.built[id]
	fl := &flight{cost: b.Cost}

	if fl.cost > 0 && e.s.ledger != nil {
		if _, err := e.s.ledger.Debit(credit.WithExecution(e.ctx, e.rec.ID), e.rec.UserID, fl.cost); err != nil {
			if errors.Is(err, credit.ErrInsufficientCredits) {
				e.fail(engine.NewFatalError(engine.CodeCreditExhausted, err, "%s", err.Error()))
			} else {
				e.fail(engine.NewFatalError(engine.CodeStorageUnavailable, err, "debit credits: %v", err))
			}
			return
		}
	} else {
		fl.cost = 0
	}

	now := e.s.now()
	e.transition(id, engine.NodeState{Status: engine.NodeRunning, StartedAt: &now})
	if e.fatal != nil {
		// abort records it failed and refunds it
		fl.cancel = func() {}
		e.inflight[id] = fl
		return
	}

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = e.s.cfg.NodeTimeout
	}
	nctx, cancel := context.WithTimeout(e.ctx, timeout)
	fl.cancel = cancel
	e.inflight[id] = fl

	in := node.Inputs{
		ExecutionID: e.rec.ID,
		NodeID:      id,
		Values:      e.inputs(id),
		Lookup:      e.graph.Snapshot,
		Billed:      func() { fl.bill.CompareAndSwap(billOpen, billCharged) },
	}
	logger := e.logger.With().Str("nodeId", id).Logger()
	logger.Debug().Int64("cost", fl.cost).Dur("timeout", timeout).Msg("Node dispatched")

	e.s.wg.Add(1)
	go func() {
		defer e.s.wg.Done()
		var r result
		defer func() {
			if p := recover(); p != nil {
				logger.Error().Interface("panic", p).Msg("Node executor panicked")
				r = result{nodeID: id, err: engine.NewNodeError(engine.CodeExternalCallFailed, "executor panicked: %v", p)}
			}
			e.results <- r
		}()
		out, err := b.Executor.Execute(nctx, in)
		r = result{nodeID: id, output: out, err: err}
	}()
}

func (e *execution) inputs(id string) map[string][]any {
	n, _ := e.graph.Node(id)
	values := make(map[string][]any, len(n.Inputs))
	for _, port := range n.Inputs {
		if vals := e.resolver.OrderedInputs(id, port.Name, e.outputs); len(vals) > 0 {
			values[port.Name] = vals
		}
	}
	return values
}

func (e *execution) complete(r result) {
	fl, ok := e.inflight[r.nodeID]
	if !ok {
		return
	}
	delete(e.inflight, r.nodeID)
	fl.cancel()

	now := e.s.now()
	st := e.rec.NodeStates[r.nodeID]
	st.FinishedAt = &now

	if r.err != nil {
		var fe *engine.FatalError
		if errors.As(r.err, &fe) {
			e.rec.CreditsUsed += fl.settle(e.refund)
			e.fail(fe)
			st.Status = engine.NodeFailed
			st.Error = &engine.NodeError{Code: fe.Code, Message: fe.Reason}
			e.transition(r.nodeID, st)
			return
		}
		e.rec.CreditsUsed += fl.settle(e.refund)
		st.Status = engine.NodeFailed
		st.Error = engine.AsNodeError(r.err)
		e.logger.Warn().Str("nodeId", r.nodeID).Str("code", string(st.Error.Code)).Msg(st.Error.Message)
	} else {
		e.rec.CreditsUsed += fl.cost
		st.Status = engine.NodeSucceeded
		st.Output = r.output
		e.outputs[r.nodeID] = r.output
	}
	e.transition(r.nodeID, st)
}

// abort stops every in-flight node and records it failed with code. Nodes that never started
// keep their state and get no further event.
func (e *execution) abort(code engine.ErrorCode, reason string) {
	e.cancel()
	ids := make([]string, 0, len(e.inflight))
	for id := range e.inflight {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := e.s.now()
	for _, id := range ids {
		fl := e.inflight[id]
		fl.cancel()
		e.rec.CreditsUsed += fl.settle(e.refund)
		st := e.rec.NodeStates[id]
		st.Status = engine.NodeFailed
		st.Error = &engine.NodeError{Code: code, Message: reason}
		st.FinishedAt = &now
		e.transition(id, st)
	}
	e.inflight = map[string]*flight{}
	e.logger.Warn().Str("code", string(code)).Msg("Execution aborted: " + reason)
}

// outcome is succeeded when at least one terminal node succeeded.
func (e *execution) outcome() engine.ExecutionStatus {
	for _, id := range e.graph.Terminals() {
		if e.rec.NodeStates[id].Status == engine.NodeSucceeded {
			return engine.ExecutionSucceeded
		}
	}
	e.rec.ErrorMessage = "no terminal node succeeded"
	return engine.ExecutionFailed
}

func (e *execution) finish(status engine.ExecutionStatus) {
	now := e.s.now()
	e.rec.Status = status
	e.rec.CompletedAt = &now
	e.rec.OutputData = e.collectOutputs()

	// the execution context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.s.store.Update(ctx, e.rec); err != nil {
		e.logger.Error().Err(err).Msg("Failed to persist final execution state")
	}
	e.s.emit(engine.ExecutionEvent(e.rec, now))

	e.logger.Info().
		Str("status", string(status)).
		Int64("creditsUsed", e.rec.CreditsUsed).
		Dur("elapsed", e.rec.ExecutionTime()).
		Msg("Execution finished")

	e.s.forget(e.rec.ID)
	e.handle.result = e.rec.Clone()
	close(e.handle.done)
	if e.s.onFinish != nil {
		e.s.onFinish(e.rec.Clone())
	}
}

func (e *execution) collectOutputs() map[string]any {
	out := make(map[string]any)
	for _, n := range e.graph.Nodes() {
		if n.Kind != graph.KindOutput {
			continue
		}
		if v, ok := e.outputs[n.ID]; ok {
			out[node.OutputName(n)] = v
		}
	}
	return out
}

// transition applies a node state change: update, persist, emit. A persistence failure is fatal
// and the change is not emitted.
func (e *execution) transition(id string, next engine.NodeState) {
	cur := e.rec.NodeStates[id]
	if !cur.Status.CanTransition(next.Status) {
		e.logger.Error().Str("nodeId", id).Str("from", string(cur.Status)).Str("to", string(next.Status)).Msg("Illegal node transition")
		return
	}
	if next.StartedAt == nil {
		next.StartedAt = cur.StartedAt
	}
	e.rec.NodeStates[id] = next

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.s.store.SaveNodeState(ctx, e.rec.ID, id, next); err != nil {
		e.logger.Error().Err(err).Str("nodeId", id).Msg("Failed to persist node state")
		if e.fatal == nil {
			e.fail(engine.NewFatalError(engine.CodeStorageUnavailable, err, "persist node state: %v", err))
		}
		return
	}
	e.s.emit(engine.NodeEvent(e.rec.ID, id, next, e.s.now()))
}

func (e *execution) fail(fe *engine.FatalError) {
	if e.fatal == nil {
		e.fatal = fe
	}
}

func (e *execution) refund(amount int64) {
	if e.s.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(credit.WithExecution(context.Background(), e.rec.ID), 5*time.Second)
	defer cancel()
	if _, err := e.s.ledger.Refund(ctx, e.rec.UserID, amount); err != nil {
		e.logger.Error().Err(err).Int64("amount", amount).Msg("Failed to refund credits")
	}
}

func (e *execution) statuses() map[string]engine.NodeStatus {
	out := make(map[string]engine.NodeStatus, len(e.rec.NodeStates))
	for id, st := range e.rec.NodeStates {
		out[id] = st.Status
	}
	return out
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
