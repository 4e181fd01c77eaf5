package mapper

import (
	"time"

	"clipflow/internal/api/handler/response"
	"clipflow/internal/engine"
	"clipflow/pkg"
)

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func millisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	return pkg.ToPtr(t.UnixMilli())
}

func ToExecutionResponse(rec engine.Record) response.Execution {
	resp := response.Execution{
		ID:            rec.ID,
		WorkflowID:    rec.WorkflowID,
		Status:        rec.Status,
		InputData:     rec.InputSnapshot,
		TargetNodeIDs: rec.TargetNodeIDs,
		OutputData:    rec.OutputData,
		NodeStates:    rec.NodeStates,
		CreditsUsed:   rec.CreditsUsed,
		CreatedAt:     millis(rec.CreatedAt),
		StartedAt:     millisPtr(rec.StartedAt),
		CompletedAt:   millisPtr(rec.CompletedAt),
	}
	if resp.InputData == nil {
		resp.InputData = map[string]any{}
	}
	if resp.NodeStates == nil {
		resp.NodeStates = map[string]engine.NodeState{}
	}
	if rec.ErrorMessage != "" {
		resp.ErrorMessage = pkg.ToPtr(rec.ErrorMessage)
	}
	if rec.CompletedAt != nil && rec.StartedAt != nil {
		resp.ExecutionTimeMs = pkg.ToPtr(rec.ExecutionTime().Milliseconds())
	}
	return resp
}

func ToExecutionResponses(recs []engine.Record) []response.Execution {
	out := make([]response.Execution, 0, len(recs))
	for _, rec := range recs {
		out = append(out, ToExecutionResponse(rec))
	}
	return out
}
