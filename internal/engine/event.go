package engine

import "time"

type EventType string

const (
	EventNode      EventType = "node"
	EventExecution EventType = "execution"
)

// Event is one state transition pushed to stream subscribers. Seq is assigned by the broker and
// increases by one per event within an execution.
type Event struct {
	ExecutionID string     `json:"executionId"`
	Seq         uint64     `json:"seq"`
	Type        EventType  `json:"type"`
	NodeID      string     `json:"nodeId,omitempty"`
	Status      string     `json:"status"`
	Output      any        `json:"output,omitempty"`
	Error       *NodeError `json:"error,omitempty"`
	Message     string     `json:"message,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

func (e Event) Terminal() bool {
	return e.Type == EventExecution
}

// State is the node state a node event carries.
func (e Event) State() NodeState {
	return NodeState{
		Status:     NodeStatus(e.Status),
		Output:     e.Output,
		Error:      e.Error,
		StartedAt:  e.StartedAt,
		FinishedAt: e.FinishedAt,
	}
}

func NodeEvent(executionID, nodeID string, state NodeState, at time.Time) Event {
	return Event{
		ExecutionID: executionID,
		Type:        EventNode,
		NodeID:      nodeID,
		Status:      string(state.Status),
		Output:      state.Output,
		Error:       state.Error,
		StartedAt:   state.StartedAt,
		FinishedAt:  state.FinishedAt,
		Timestamp:   at,
	}
}

func ExecutionEvent(rec Record, at time.Time) Event {
	return Event{
		ExecutionID: rec.ID,
		Type:        EventExecution,
		Status:      string(rec.Status),
		Output:      rec.OutputData,
		Message:     rec.ErrorMessage,
		Timestamp:   at,
	}
}

// Emitter receives events in emission order.
type Emitter interface {
	Emit(Event)
}

// Emitters fans one event out to several emitters.
type Emitters []Emitter

func (m Emitters) Emit(ev Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ev)
		}
	}
}
