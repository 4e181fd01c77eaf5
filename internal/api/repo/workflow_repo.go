package repo

import (
	"clipflow"
	"clipflow/internal/api/models"

	"gorm.io/gorm"
)

type WorkflowRepository struct {
	Db *gorm.DB
}

func NewWorkflowRepository() *WorkflowRepository {
	return &WorkflowRepository{Db: clipflow.DB}
}

func (slf *WorkflowRepository) FindByID(id string) (models.Workflow, error) {
	var workflow models.Workflow
	err := slf.Db.Where("id = ?", id).First(&workflow).Error
	return workflow, err
}

// FindAllByUser retrieves the workflows of a user, most recently updated first
func (slf *WorkflowRepository) FindAllByUser(userID string) ([]models.Workflow, error) {
	var workflows []models.Workflow
	err := slf.Db.
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&workflows).Error
	return workflows, err
}

func (slf *WorkflowRepository) Create(workflow *models.Workflow) error {
	return slf.Db.Create(workflow).Error
}

func (slf *WorkflowRepository) Update(workflow *models.Workflow) error {
	return slf.Db.Save(workflow).Error
}

// Delete soft-deletes a workflow
func (slf *WorkflowRepository) Delete(id string) error {
	return slf.Db.Where("id = ?", id).Delete(&models.Workflow{}).Error
}
