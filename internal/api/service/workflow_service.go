package service

import (
	"errors"

	"clipflow"
	"clipflow/internal/api/models"
	"clipflow/internal/api/repo"
	"clipflow/pkg"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrForbidden        = errors.New("you don't have access to this resource")
)

type WorkflowStore interface {
	FindByID(id string) (models.Workflow, error)
	FindAllByUser(userID string) ([]models.Workflow, error)
	Create(workflow *models.Workflow) error
	Update(workflow *models.Workflow) error
	Delete(id string) error
}

type WorkflowService struct {
	workflowRepo WorkflowStore
	logger       zerolog.Logger
}

func NewWorkflowService() *WorkflowService {
	return NewWorkflowServiceWith(repo.NewWorkflowRepository())
}

func NewWorkflowServiceWith(workflows WorkflowStore) *WorkflowService {
	return &WorkflowService{workflowRepo: workflows, logger: clipflow.Logger}
}

func (slf *WorkflowService) FindAllForUser(userID string) ([]models.Workflow, error) {
	workflows, err := slf.workflowRepo.FindAllByUser(userID)
	if err != nil {
		slf.logger.Error().Err(err).Str("userId", userID).Msg("Error getting workflows")
		return nil, err
	}
	return workflows, nil
}

// FindForUser loads a workflow and checks that userID owns it
func (slf *WorkflowService) FindForUser(id, userID string) (models.Workflow, error) {
	workflow, err := slf.workflowRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Workflow{}, ErrWorkflowNotFound
		}
		slf.logger.Error().Err(err).Str("workflowId", id).Msg("Error getting workflow")
		return models.Workflow{}, err
	}
	if workflow.UserID != userID {
		return models.Workflow{}, ErrForbidden
	}
	return workflow, nil
}

func (slf *WorkflowService) Create(userID, name, description string, g models.WorkflowGraph) (models.Workflow, error) {
	workflow := models.Workflow{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		Graph:       g,
	}
	if err := slf.workflowRepo.Create(&workflow); err != nil {
		slf.logger.Error().Err(err).Str("userId", userID).Msg("Error creating workflow")
		return models.Workflow{}, err
	}
	slf.logger.Info().Str("workflowId", workflow.ID).Str("userId", userID).Msg("Workflow created")
	return workflow, nil
}

// Update replaces the fields that are set. A nil graph keeps the stored one.
func (slf *WorkflowService) Update(id, userID string, name, description *string, g *models.WorkflowGraph) (models.Workflow, error) {
	workflow, err := slf.FindForUser(id, userID)
	if err != nil {
		return models.Workflow{}, err
	}
	workflow.Name = pkg.Deref(name, workflow.Name)
	workflow.Description = pkg.Deref(description, workflow.Description)
	workflow.Graph = pkg.Deref(g, workflow.Graph)
	if err := slf.workflowRepo.Update(&workflow); err != nil {
		slf.logger.Error().Err(err).Str("workflowId", id).Msg("Error updating workflow")
		return models.Workflow{}, err
	}
	return workflow, nil
}

func (slf *WorkflowService) Delete(id, userID string) error {
	if _, err := slf.FindForUser(id, userID); err != nil {
		return err
	}
	if err := slf.workflowRepo.Delete(id); err != nil {
		slf.logger.Error().Err(err).Str("workflowId", id).Msg("Error deleting workflow")
		return err
	}
	return nil
}
