package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"clipflow"
	"clipflow/internal/api/models"
	"clipflow/internal/engine"
	"clipflow/internal/engine/store"

	"gorm.io/gorm"
)

// ExecutionRepository is the Postgres execution store.
type ExecutionRepository struct {
	Db *gorm.DB
}

var _ store.Store = (*ExecutionRepository)(nil)

func NewExecutionRepository() *ExecutionRepository {
	return &ExecutionRepository{Db: clipflow.DB}
}

func (slf *ExecutionRepository) Create(ctx context.Context, rec engine.Record) error {
	execution := models.ExecutionFromRecord(rec)
	return slf.Db.WithContext(ctx).Create(&execution).Error
}

// SaveNodeState rewrites a single key of the node_states document so concurrent executions never
// overwrite each other's rows and a record is never rewritten whole per transition.
func (slf *ExecutionRepository) SaveNodeState(ctx context.Context, executionID, nodeID string, state engine.NodeState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode node state: %w", err)
	}
	res := slf.Db.WithContext(ctx).Model(&models.Execution{}).
		Where("id = ?", executionID).
		Update("node_states", gorm.Expr(
			"jsonb_set(COALESCE(node_states, '{}'::jsonb), ARRAY[?]::text[], ?::jsonb)",
			nodeID, string(data),
		))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Update writes the execution level fields of a pending or running execution, node_states is
// left alone.
func (slf *ExecutionRepository) Update(ctx context.Context, rec engine.Record) error {
	execution := models.ExecutionFromRecord(rec)
	res := slf.Db.WithContext(ctx).Model(&models.Execution{}).
		Where("id = ? AND status IN ?", rec.ID, []engine.ExecutionStatus{engine.ExecutionPending, engine.ExecutionRunning}).
		Updates(map[string]interface{}{
			"status":            execution.Status,
			"output_data":       execution.OutputData,
			"credits_used":      execution.CreditsUsed,
			"error_message":     execution.ErrorMessage,
			"execution_time_ms": execution.ExecutionTimeMs,
			"started_at":        execution.StartedAt,
			"completed_at":      execution.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return slf.missOrTerminal(ctx, rec.ID)
	}
	return nil
}

// missOrTerminal tells why a guarded update touched no row.
func (slf *ExecutionRepository) missOrTerminal(ctx context.Context, id string) error {
	var count int64
	if err := slf.Db.WithContext(ctx).Model(&models.Execution{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return store.ErrTerminal
}

func (slf *ExecutionRepository) Get(ctx context.Context, id string) (engine.Record, error) {
	var execution models.Execution
	err := slf.Db.WithContext(ctx).Where("id = ?", id).First(&execution).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.Record{}, store.ErrNotFound
	}
	if err != nil {
		return engine.Record{}, err
	}
	return execution.Record(), nil
}

// List retrieves the executions of a workflow, newest first
func (slf *ExecutionRepository) List(ctx context.Context, workflowID string, limit, offset int) ([]engine.Record, error) {
	var executions []models.Execution
	q := slf.Db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("created_at DESC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&executions).Error; err != nil {
		return nil, err
	}
	return toRecords(executions), nil
}

func (slf *ExecutionRepository) ListByStatus(ctx context.Context, statuses ...engine.ExecutionStatus) ([]engine.Record, error) {
	var executions []models.Execution
	err := slf.Db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("id").
		Find(&executions).Error
	if err != nil {
		return nil, err
	}
	return toRecords(executions), nil
}

func toRecords(executions []models.Execution) []engine.Record {
	out := make([]engine.Record, 0, len(executions))
	for _, e := range executions {
		out = append(out, e.Record())
	}
	return out
}
