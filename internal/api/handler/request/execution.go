package request

type ExecuteWorkflow struct {
	InputData     map[string]any `json:"inputData"`
	TargetNodeIDs []string       `json:"targetNodeIds" validate:"omitempty,dive,required"`
}
