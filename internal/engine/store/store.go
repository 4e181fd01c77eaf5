package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"clipflow/internal/engine"
)

var (
	ErrNotFound = errors.New("execution not found")
	// ErrTerminal is returned by Update when the stored record already left pending/running.
	ErrTerminal = errors.New("execution already finished")
)

// Store persists execution records. The scheduler is the only writer of a record while it runs:
// Create once, SaveNodeState per node transition, Update for the execution level fields.
// Update never rewrites a record whose stored status is terminal.
type Store interface {
	Create(ctx context.Context, rec engine.Record) error
	SaveNodeState(ctx context.Context, executionID, nodeID string, state engine.NodeState) error
	Update(ctx context.Context, rec engine.Record) error
	Get(ctx context.Context, id string) (engine.Record, error)
	List(ctx context.Context, workflowID string, limit, offset int) ([]engine.Record, error)
	ListByStatus(ctx context.Context, statuses ...engine.ExecutionStatus) ([]engine.Record, error)
}

// Memory is an in process Store.
type Memory struct {
	mu      sync.RWMutex
	records map[string]engine.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]engine.Record)}
}

func (m *Memory) Create(_ context.Context, rec engine.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; ok {
		return errors.New("execution already exists")
	}
	m.records[rec.ID] = rec.Clone()
	return nil
}

func (m *Memory) SaveNodeState(_ context.Context, executionID, nodeID string, state engine.NodeState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[executionID]
	if !ok {
		return ErrNotFound
	}
	if rec.NodeStates == nil {
		rec.NodeStates = make(map[string]engine.NodeState)
	}
	rec.NodeStates[nodeID] = state
	m.records[executionID] = rec
	return nil
}

// Update replaces the execution level fields, node states are kept as saved.
func (m *Memory) Update(_ context.Context, rec engine.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status.Terminal() {
		return ErrTerminal
	}
	next := rec.Clone()
	next.NodeStates = cur.NodeStates
	m.records[rec.ID] = next
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (engine.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return engine.Record{}, ErrNotFound
	}
	return rec.Clone(), nil
}

// List returns the records of a workflow, newest first.
func (m *Memory) List(_ context.Context, workflowID string, limit, offset int) ([]engine.Record, error) {
	m.mu.RLock()
	var out []engine.Record
	for _, rec := range m.records {
		if rec.WorkflowID == workflowID {
			out = append(out, rec.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []engine.Record{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListByStatus(_ context.Context, statuses ...engine.ExecutionStatus) ([]engine.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Record
	for _, rec := range m.records {
		for _, s := range statuses {
			if rec.Status == s {
				out = append(out, rec.Clone())
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
