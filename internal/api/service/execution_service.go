package service

import (
	"context"
	"errors"
	"time"

	"clipflow"
	"clipflow/internal/api/models"
	"clipflow/internal/api/repo"
	"clipflow/internal/engine"
	"clipflow/internal/engine/credit"
	"clipflow/internal/engine/node"
	"clipflow/internal/engine/scheduler"
	"clipflow/internal/engine/store"
	"clipflow/internal/engine/stream"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var ErrNotCancellable = errors.New("only pending or running executions can be cancelled")

type WorkflowFinder interface {
	FindByID(id string) (models.Workflow, error)
}

// ExecuteInput is one execute request of a user.
type ExecuteInput struct {
	WorkflowID    string
	UserID        string
	UserEmail     string
	InputData     map[string]any
	TargetNodeIDs []string
}

// Watch is what a stream client starts from. Sub is nil when the execution is no longer live;
// Final then carries its terminal event.
type Watch struct {
	Snapshot stream.Snapshot
	Sub      *stream.Subscription
	Final    *engine.Event
}

type ExecutionService struct {
	engine    *Engine
	workflows WorkflowFinder
	logger    zerolog.Logger
}

func NewExecutionService(e *Engine) *ExecutionService {
	return NewExecutionServiceWith(e, repo.NewWorkflowRepository())
}

func NewExecutionServiceWith(e *Engine, workflows WorkflowFinder) *ExecutionService {
	return &ExecutionService{engine: e, workflows: workflows, logger: clipflow.Logger}
}

// Execute compiles the workflow graph against the input snapshot, checks that the user can pay
// for every metered node and starts the execution. The returned record is pending or running.
func (slf *ExecutionService) Execute(ctx context.Context, in ExecuteInput) (engine.Record, error) {
	workflow, err := slf.workflows.FindByID(in.WorkflowID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return engine.Record{}, ErrWorkflowNotFound
		}
		slf.logger.Error().Err(err).Str("workflowId", in.WorkflowID).Msg("Error getting workflow")
		return engine.Record{}, err
	}
	if workflow.UserID != in.UserID {
		return engine.Record{}, ErrForbidden
	}

	snapshot := in.InputData
	if snapshot == nil {
		snapshot = map[string]any{}
	}
	g, built, err := slf.engine.Registry.Compile(workflow.Graph.Spec(snapshot, in.TargetNodeIDs))
	if err != nil {
		return engine.Record{}, err
	}

	if required := estimate(built); required > 0 {
		available, err := slf.engine.Ledger.Balance(ctx, in.UserID)
		if err != nil {
			slf.logger.Error().Err(err).Str("userId", in.UserID).Msg("Error reading credit balance")
			return engine.Record{}, engine.NewFatalError(engine.CodeStorageUnavailable, err, "credit balance unavailable")
		}
		if available < required {
			return engine.Record{}, &credit.InsufficientError{Required: required, Available: available}
		}
	}

	run, err := slf.engine.Scheduler.Start(scheduler.Plan{
		Record: engine.Record{
			ID:            uuid.NewString(),
			WorkflowID:    workflow.ID,
			UserID:        in.UserID,
			UserEmail:     in.UserEmail,
			InputSnapshot: snapshot,
			TargetNodeIDs: in.TargetNodeIDs,
			CreatedAt:     time.Now(),
		},
		Graph: g,
		Built: built,
	})
	if err != nil {
		slf.logger.Error().Err(err).Str("workflowId", workflow.ID).Msg("Failed to start execution")
		return engine.Record{}, err
	}
	slf.logger.Info().Str("executionId", run.ID).Str("workflowId", workflow.ID).Str("userId", in.UserID).Msg("Execution started")
	return slf.engine.Store.Get(ctx, run.ID)
}

// estimate is the credit cost of running every node of the compiled graph.
func estimate(built map[string]node.Built) int64 {
	var total int64
	for _, b := range built {
		total += b.Cost
	}
	return total
}

// FindForUser loads an execution owned by userID.
func (slf *ExecutionService) FindForUser(ctx context.Context, id, userID string) (engine.Record, error) {
	rec, err := slf.engine.Store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slf.logger.Error().Err(err).Str("executionId", id).Msg("Error getting execution")
		}
		return engine.Record{}, err
	}
	if rec.UserID != userID {
		return engine.Record{}, ErrForbidden
	}
	return rec, nil
}

// ListForWorkflow pages through the executions of a workflow, newest first.
func (slf *ExecutionService) ListForWorkflow(ctx context.Context, workflowID, userID string, limit, offset int) ([]engine.Record, error) {
	workflow, err := slf.workflows.FindByID(workflowID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkflowNotFound
		}
		return nil, err
	}
	if workflow.UserID != userID {
		return nil, ErrForbidden
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	recs, err := slf.engine.Store.List(ctx, workflowID, limit, offset)
	if err != nil {
		slf.logger.Error().Err(err).Str("workflowId", workflowID).Msg("Error listing executions")
		return nil, err
	}
	return recs, nil
}

// Cancel stops a pending or running execution. An execution that is not live in this process
// (left over by a crashed one) is marked cancelled directly.
func (slf *ExecutionService) Cancel(ctx context.Context, id, userID string) error {
	rec, err := slf.FindForUser(ctx, id, userID)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		return ErrNotCancellable
	}
	if err := slf.engine.Scheduler.Cancel(id); err == nil {
		slf.logger.Info().Str("executionId", id).Msg("Execution cancel requested")
		return nil
	} else if !errors.Is(err, scheduler.ErrNotRunning) {
		return err
	}

	now := time.Now()
	rec.Status = engine.ExecutionCancelled
	rec.CompletedAt = &now
	// the store refuses the write if the execution finished since it was read
	if err := slf.engine.Store.Update(ctx, rec); err != nil {
		if errors.Is(err, store.ErrTerminal) {
			return ErrNotCancellable
		}
		slf.logger.Error().Err(err).Str("executionId", id).Msg("Error cancelling orphaned execution")
		return err
	}
	slf.logger.Warn().Str("executionId", id).Msg("Cancelled execution that was not live")
	return nil
}

// Subscribe attaches to the event stream of an execution. Live executions give a snapshot and
// the tail of later events; finished ones are served from the store.
func (slf *ExecutionService) Subscribe(ctx context.Context, id, userID string) (Watch, error) {
	rec, err := slf.FindForUser(ctx, id, userID)
	if err != nil {
		return Watch{}, err
	}
	snap, sub, err := slf.engine.Broker.Subscribe(id)
	if err == nil {
		return Watch{Snapshot: snap, Sub: sub}, nil
	}
	if !errors.Is(err, stream.ErrNotLive) {
		return Watch{}, err
	}

	// the execution may have finished between the two reads
	rec, err = slf.engine.Store.Get(ctx, id)
	if err != nil {
		return Watch{}, err
	}
	w := Watch{Snapshot: stream.Snapshot{
		ExecutionID: rec.ID,
		Status:      rec.Status,
		Nodes:       rec.NodeStates,
	}}
	if rec.Status.Terminal() {
		at := time.Now()
		if rec.CompletedAt != nil {
			at = *rec.CompletedAt
		}
		final := engine.ExecutionEvent(rec, at)
		w.Final = &final
	}
	return w, nil
}
