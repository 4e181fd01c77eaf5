package response

import "clipflow/internal/api/models"

type Workflow struct {
	ID          string               `json:"id"`
	UserID      string               `json:"userId"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Graph       models.WorkflowGraph `json:"graph"`
	CreatedAt   int64                `json:"createdAt"`
	UpdatedAt   int64                `json:"updatedAt"`
}

// WorkflowSummary is a list entry, without the graph
type WorkflowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	NodeCount   int    `json:"nodeCount"`
	UpdatedAt   int64  `json:"updatedAt"`
}
