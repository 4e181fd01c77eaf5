package response

import "clipflow/internal/engine"

// Execution timestamps are unix milliseconds.
type Execution struct {
	ID              string                      `json:"id"`
	WorkflowID      string                      `json:"workflowId"`
	Status          engine.ExecutionStatus      `json:"status"`
	InputData       map[string]any              `json:"inputData"`
	TargetNodeIDs   []string                    `json:"targetNodeIds,omitempty"`
	OutputData      map[string]any              `json:"outputData"`
	NodeStates      map[string]engine.NodeState `json:"nodeStates"`
	CreditsUsed     int64                       `json:"creditsUsed"`
	ExecutionTimeMs *int64                      `json:"executionTimeMs"`
	ErrorMessage    *string                     `json:"errorMessage"`
	CreatedAt       int64                       `json:"createdAt"`
	StartedAt       *int64                      `json:"startedAt"`
	CompletedAt     *int64                      `json:"completedAt"`
}
