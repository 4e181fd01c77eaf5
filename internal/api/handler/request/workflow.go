package request

import "clipflow/internal/api/models"

type CreateWorkflow struct {
	Name        string               `json:"name" validate:"required,max=200"`
	Description string               `json:"description"`
	Graph       models.WorkflowGraph `json:"graph"`
}

type UpdateWorkflow struct {
	Name        *string               `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string               `json:"description,omitempty"`
	Graph       *models.WorkflowGraph `json:"graph,omitempty"`
}
