package mapper

import (
	"clipflow/internal/api/handler/response"
	"clipflow/internal/api/service"
)

func ToJobResponse(j service.JobDetail) response.Job {
	return response.Job{
		ID:          j.ID,
		Type:        j.Type,
		Status:      j.Status,
		ExecutionID: j.ExecutionID,
		NodeID:      j.NodeID,
		Model:       j.Model,
		Output:      j.Result,
		Error:       j.Error,
		Input:       j.Input,
		CreatedAt:   millis(j.CreatedAt),
		UpdatedAt:   millis(j.UpdatedAt),
	}
}
