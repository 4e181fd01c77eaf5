package response

import "clipflow/internal/engine/jobs"

type Job struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Status      jobs.Status    `json:"status"`
	ExecutionID string         `json:"executionId"`
	NodeID      string         `json:"nodeId"`
	Model       string         `json:"model"`
	Output      any            `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	CreatedAt   int64          `json:"createdAt"`
	UpdatedAt   int64          `json:"updatedAt"`
}
