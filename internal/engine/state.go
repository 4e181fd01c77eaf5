package engine

import "time"

// ExecutionStatus is the overall status of one execution record.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionSucceeded || s == ExecutionFailed || s == ExecutionCancelled
}

// NodeStatus is the status of a single node inside an execution.
type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeReady     NodeStatus = "ready"
	NodeRunning   NodeStatus = "running"
	NodeSucceeded NodeStatus = "succeeded"
	NodeFailed    NodeStatus = "failed"
	NodeSkipped   NodeStatus = "skipped"
)

func (s NodeStatus) Terminal() bool {
	return s == NodeSucceeded || s == NodeFailed || s == NodeSkipped
}

func (s NodeStatus) rank() int {
	switch s {
	case NodePending:
		return 0
	case NodeReady:
		return 1
	case NodeRunning:
		return 2
	case NodeSucceeded, NodeFailed, NodeSkipped:
		return 3
	default:
		return -1
	}
}

// CanTransition reports whether a node may move from s to next. Node states only move forward
// and a terminal state is never left.
func (s NodeStatus) CanTransition(next NodeStatus) bool {
	if s.Terminal() || next.rank() < 0 {
		return false
	}
	// skipping is allowed from any non terminal state
	if next == NodeSkipped {
		return true
	}
	return next.rank() > s.rank()
}

type NodeState struct {
	Status     NodeStatus `json:"status"`
	Output     any        `json:"output,omitempty"`
	Error      *NodeError `json:"error,omitempty"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Record is one run of a workflow graph against an input snapshot.
type Record struct {
	ID            string               `json:"id"`
	WorkflowID    string               `json:"workflowId"`
	UserID        string               `json:"userId"`
	UserEmail     string               `json:"-"`
	Status        ExecutionStatus      `json:"status"`
	InputSnapshot map[string]any       `json:"inputData"`
	TargetNodeIDs []string             `json:"targetNodeIds,omitempty"`
	NodeStates    map[string]NodeState `json:"nodeStates"`
	OutputData    map[string]any       `json:"outputData,omitempty"`
	CreditsUsed   int64                `json:"creditsUsed"`
	CreatedAt     time.Time            `json:"createdAt"`
	StartedAt     *time.Time           `json:"startedAt,omitempty"`
	CompletedAt   *time.Time           `json:"completedAt,omitempty"`
	ErrorMessage  string               `json:"errorMessage,omitempty"`
}

// Clone returns a copy whose maps can be mutated independently of r.
func (r Record) Clone() Record {
	out := r
	out.NodeStates = CloneStates(r.NodeStates)
	if r.OutputData != nil {
		out.OutputData = make(map[string]any, len(r.OutputData))
		for k, v := range r.OutputData {
			out.OutputData[k] = v
		}
	}
	if r.TargetNodeIDs != nil {
		out.TargetNodeIDs = append([]string(nil), r.TargetNodeIDs...)
	}
	return out
}

// ExecutionTime is the wall-clock duration between start and completion.
func (r Record) ExecutionTime() time.Duration {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt)
}

func CloneStates(in map[string]NodeState) map[string]NodeState {
	out := make(map[string]NodeState, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
