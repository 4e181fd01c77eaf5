package mapper

import (
	"clipflow/internal/api/handler/response"
	"clipflow/internal/api/models"
	"clipflow/internal/engine/graph"
)

func ToWorkflowResponse(w models.Workflow) response.Workflow {
	g := w.Graph
	if g.Nodes == nil {
		g.Nodes = []models.WorkflowNode{}
	}
	if g.Edges == nil {
		g.Edges = []graph.Edge{}
	}
	return response.Workflow{
		ID:          w.ID,
		UserID:      w.UserID,
		Name:        w.Name,
		Description: w.Description,
		Graph:       g,
		CreatedAt:   millis(w.CreatedAt),
		UpdatedAt:   millis(w.UpdatedAt),
	}
}

func ToWorkflowSummaries(ws []models.Workflow) []response.WorkflowSummary {
	out := make([]response.WorkflowSummary, 0, len(ws))
	for _, w := range ws {
		out = append(out, response.WorkflowSummary{
			ID:          w.ID,
			Name:        w.Name,
			Description: w.Description,
			NodeCount:   len(w.Graph.Nodes),
			UpdatedAt:   millis(w.UpdatedAt),
		})
	}
	return out
}
