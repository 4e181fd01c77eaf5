package repo

import (
	"sort"
	"sync"
	"time"

	"clipflow/internal/api/models"

	"gorm.io/gorm"
)

// MemoryWorkflowRepository keeps workflows in process memory. It answers missing rows with
// gorm.ErrRecordNotFound like WorkflowRepository does.
type MemoryWorkflowRepository struct {
	mu   sync.RWMutex
	rows map[string]models.Workflow
}

func NewMemoryWorkflowRepository(workflows ...models.Workflow) *MemoryWorkflowRepository {
	r := &MemoryWorkflowRepository{rows: make(map[string]models.Workflow, len(workflows))}
	for _, wf := range workflows {
		r.rows[wf.ID] = wf
	}
	return r
}

func (slf *MemoryWorkflowRepository) FindByID(id string) (models.Workflow, error) {
	slf.mu.RLock()
	defer slf.mu.RUnlock()
	wf, ok := slf.rows[id]
	if !ok {
		return models.Workflow{}, gorm.ErrRecordNotFound
	}
	return wf, nil
}

func (slf *MemoryWorkflowRepository) FindAllByUser(userID string) ([]models.Workflow, error) {
	slf.mu.RLock()
	defer slf.mu.RUnlock()
	var workflows []models.Workflow
	for _, wf := range slf.rows {
		if wf.UserID == userID {
			workflows = append(workflows, wf)
		}
	}
	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].UpdatedAt.After(workflows[j].UpdatedAt)
	})
	return workflows, nil
}

func (slf *MemoryWorkflowRepository) Create(workflow *models.Workflow) error {
	now := time.Now()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	slf.mu.Lock()
	defer slf.mu.Unlock()
	slf.rows[workflow.ID] = *workflow
	return nil
}

func (slf *MemoryWorkflowRepository) Update(workflow *models.Workflow) error {
	workflow.UpdatedAt = time.Now()
	slf.mu.Lock()
	defer slf.mu.Unlock()
	if _, ok := slf.rows[workflow.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	slf.rows[workflow.ID] = *workflow
	return nil
}

func (slf *MemoryWorkflowRepository) Delete(id string) error {
	slf.mu.Lock()
	defer slf.mu.Unlock()
	delete(slf.rows, id)
	return nil
}
