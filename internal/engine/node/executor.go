package node

import (
	"context"
	"time"

	"clipflow/internal/engine/jobs"
	"clipflow/internal/engine/graph"
)

// Inputs is everything an executor may read: the values resolved per input port, in the order the
// resolver produced them, and the execution's input snapshot.
type Inputs struct {
	ExecutionID string
	NodeID      string
	Values      map[string][]any
	Lookup      func(key string) (any, bool)
	Billed      func()
}

// First returns the first value resolved on port.
func (in Inputs) First(port string) (any, bool) {
	vals := in.Values[port]
	if len(vals) == 0 {
		return nil, false
	}
	return vals[0], true
}

func (in Inputs) All(port string) []any {
	return in.Values[port]
}

func (in Inputs) Snapshot(key string) (any, bool) {
	if in.Lookup == nil {
		return nil, false
	}
	return in.Lookup(key)
}

// MarkBilled records that the upstream provider accepted the request and will charge for it.
// Credits debited for the node are no longer refunded after this call.
func (in Inputs) MarkBilled() {
	if in.Billed != nil {
		in.Billed()
	}
}

// Executor runs one node kind. Implementations must honour ctx cancellation.
type Executor interface {
	Execute(ctx context.Context, in Inputs) (any, error)
}

type ExecutorFunc func(ctx context.Context, in Inputs) (any, error)

func (f ExecutorFunc) Execute(ctx context.Context, in Inputs) (any, error) {
	return f(ctx, in)
}

// ModelRunner performs one synchronous model prediction. accepted, when not nil, is called once
// the provider has taken the prediction and will charge for it, whatever its outcome.
type ModelRunner interface {
	Run(ctx context.Context, model string, input map[string]any, accepted func()) (any, error)
}

// JobRunner submits and awaits long running predictions.
type JobRunner interface {
	Submit(ctx context.Context, req jobs.Request) (string, error)
	Await(ctx context.Context, jobID string) (any, error)
	Forget(jobID string)
}

// Catalog describes models: the ports they take, what they produce and what they cost.
type Catalog interface {
	Inputs(model string) []graph.Port
	OutputType(model string) graph.PortType
	Cost(model string) int64
}

// Deps are the collaborators executors are built with. A registry used only to describe node
// types can be created with zero Deps.
type Deps struct {
	Models  ModelRunner
	Jobs    JobRunner
	Catalog Catalog

	// JobTimeout is used when an async node does not set timeoutSeconds.
	JobTimeout time.Duration
}
