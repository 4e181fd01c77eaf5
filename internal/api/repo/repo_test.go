package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipflow/internal/api/models"
	"clipflow/internal/engine"
	"clipflow/internal/engine/graph"
	"clipflow/internal/engine/jobs"
	"clipflow/internal/engine/store"
	"clipflow/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func migratedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.StartPostgres(t)
	require.NoError(t, db.AutoMigrate(
		&models.Workflow{},
		&models.Execution{},
		&models.AsyncJob{},
		&models.CreditTransaction{},
	))
	return db
}

func pendingRecord(workflowID string, created time.Time) engine.Record {
	return engine.Record{
		ID:            uuid.NewString(),
		WorkflowID:    workflowID,
		UserID:        "user-1",
		Status:        engine.ExecutionPending,
		InputSnapshot: map[string]any{"prompt": "a cat"},
		NodeStates: map[string]engine.NodeState{
			"in":  {Status: engine.NodePending},
			"out": {Status: engine.NodePending},
		},
		CreatedAt: created,
	}
}

func TestRepositories_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	db := migratedDB(t)
	ctx := context.Background()

	// ============ Workflows ============

	t.Run("workflow lifecycle", func(t *testing.T) {
		r := &WorkflowRepository{Db: db}
		wf := &models.Workflow{
			ID:     uuid.NewString(),
			UserID: "user-1",
			Name:   "first",
			Graph: models.WorkflowGraph{
				Nodes: []models.WorkflowNode{{ID: "in", Type: "input"}, {ID: "out", Type: "output"}},
				Edges: []graph.Edge{{Source: "in", Target: "out"}},
			},
		}
		require.NoError(t, r.Create(wf))

		got, err := r.FindByID(wf.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", got.Name)
		assert.Len(t, got.Graph.Nodes, 2)
		assert.Equal(t, "out", got.Graph.Edges[0].Target)

		got.Name = "renamed"
		require.NoError(t, r.Update(&got))
		list, err := r.FindAllByUser("user-1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "renamed", list[0].Name)

		require.NoError(t, r.Delete(wf.ID))
		_, err = r.FindByID(wf.ID)
		assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	})

	// ============ Executions ============

	t.Run("execution node states and update", func(t *testing.T) {
		r := &ExecutionRepository{Db: db}
		rec := pendingRecord(uuid.NewString(), time.Now())
		require.NoError(t, r.Create(ctx, rec))

		require.NoError(t, r.SaveNodeState(ctx, rec.ID, "in", engine.NodeState{Status: engine.NodeSucceeded, Output: "a cat"}))
		require.NoError(t, r.SaveNodeState(ctx, rec.ID, "out", engine.NodeState{Status: engine.NodeRunning}))

		started := time.Now()
		completed := started.Add(1500 * time.Millisecond)
		rec.Status = engine.ExecutionSucceeded
		rec.OutputData = map[string]any{"result": "a cat"}
		rec.CreditsUsed = 3
		rec.StartedAt = &started
		rec.CompletedAt = &completed
		rec.NodeStates = nil
		require.NoError(t, r.Update(ctx, rec))

		got, err := r.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, engine.ExecutionSucceeded, got.Status)
		assert.Equal(t, int64(3), got.CreditsUsed)
		assert.Equal(t, map[string]any{"result": "a cat"}, got.OutputData)
		assert.Equal(t, engine.NodeSucceeded, got.NodeStates["in"].Status)
		assert.Equal(t, "a cat", got.NodeStates["in"].Output)
		assert.Equal(t, engine.NodeRunning, got.NodeStates["out"].Status)

		var row models.Execution
		require.NoError(t, db.Where("id = ?", rec.ID).First(&row).Error)
		assert.Equal(t, int64(1500), row.ExecutionTimeMs)

		rec.Status = engine.ExecutionCancelled
		assert.ErrorIs(t, r.Update(ctx, rec), store.ErrTerminal)
		got, err = r.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, engine.ExecutionSucceeded, got.Status)
	})

	t.Run("execution missing rows", func(t *testing.T) {
		r := &ExecutionRepository{Db: db}
		missing := uuid.NewString()
		_, err := r.Get(ctx, missing)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, r.SaveNodeState(ctx, missing, "in", engine.NodeState{Status: engine.NodeRunning}), store.ErrNotFound)
		assert.ErrorIs(t, r.Update(ctx, engine.Record{ID: missing, Status: engine.ExecutionFailed}), store.ErrNotFound)
	})

	t.Run("execution list and status filter", func(t *testing.T) {
		r := &ExecutionRepository{Db: db}
		workflowID := uuid.NewString()
		base := time.Now().Add(-time.Hour)
		var ids []string
		for i := 0; i < 3; i++ {
			rec := pendingRecord(workflowID, base.Add(time.Duration(i)*time.Minute))
			if i == 2 {
				rec.Status = engine.ExecutionRunning
			}
			require.NoError(t, r.Create(ctx, rec))
			ids = append(ids, rec.ID)
		}

		page, err := r.List(ctx, workflowID, 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, ids[2], page[0].ID)
		assert.Equal(t, ids[1], page[1].ID)

		rest, err := r.List(ctx, workflowID, 2, 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, ids[0], rest[0].ID)

		running, err := r.ListByStatus(ctx, engine.ExecutionRunning)
		require.NoError(t, err)
		found := false
		for _, rec := range running {
			assert.Equal(t, engine.ExecutionRunning, rec.Status)
			found = found || rec.ID == ids[2]
		}
		assert.True(t, found)
	})

	// ============ Async jobs ============

	t.Run("async job upsert", func(t *testing.T) {
		r := &AsyncJobRepository{Db: db}
		executionID := uuid.NewString()
		job := models.AsyncJobFromJob(jobs.Job{
			ID:                uuid.NewString(),
			ExternalID:        "pred-1",
			ExecutionID:       executionID,
			NodeID:            "gen",
			Model:             "black-forest-labs/flux-schnell",
			Status:            jobs.StatusRunning,
			PollIntervalMs:    2000,
			AttemptsRemaining: 10,
			Input:             map[string]any{"prompt": "a cat"},
			CreatedAt:         time.Now(),
			UpdatedAt:         time.Now(),
		})
		require.NoError(t, r.Save(&job))

		job.Status = jobs.StatusSucceeded
		job.Result = models.JSONAny{V: "https://cdn.example/out.png"}
		job.AttemptsRemaining = 7
		require.NoError(t, r.Save(&job))

		got, err := r.FindByID(job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobs.StatusSucceeded, got.Status)
		assert.Equal(t, 7, got.AttemptsRemaining)
		assert.Equal(t, "https://cdn.example/out.png", got.Job().Result)
		assert.Equal(t, "a cat", got.Job().Input["prompt"])

		byExecution, err := r.FindByExecution(executionID)
		require.NoError(t, err)
		assert.Len(t, byExecution, 1)
	})

	// ============ Credit transactions ============

	t.Run("credit transactions newest first", func(t *testing.T) {
		r := &CreditTransactionRepository{Db: db}
		executionID := uuid.NewString()
		for _, tx := range []models.CreditTransaction{
			{UserID: "user-2", Amount: -10, Type: models.TransactionWorkflowExecution, ExecutionID: &executionID, BalanceAfter: 90},
			{UserID: "user-2", Amount: 10, Type: models.TransactionRefund, ExecutionID: &executionID, BalanceAfter: 100},
			{UserID: "user-2", Amount: 50, Type: models.TransactionGrant, BalanceAfter: 150},
			{UserID: "someone-else", Amount: 5, Type: models.TransactionGrant, BalanceAfter: 105},
		} {
			tx := tx
			require.NoError(t, r.Create(&tx))
		}

		txs, err := r.FindAllByUser("user-2", 2, 0)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, models.TransactionGrant, txs[0].Type)
		assert.Equal(t, models.TransactionRefund, txs[1].Type)

		rest, err := r.FindAllByUser("user-2", 10, 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, int64(-10), rest[0].Amount)
	})
}
