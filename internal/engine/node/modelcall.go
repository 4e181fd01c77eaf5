package node

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"clipflow/internal/engine"
	"clipflow/internal/engine/graph"
	"clipflow/internal/engine/jobs"
)

// asyncGrace is added on top of the job timeout so the poller reports the timeout before the
// scheduler's own node deadline fires.
const asyncGrace = 30 * time.Second

type ModelCallParams struct {
	Model          string         `json:"model" validate:"required"`
	Input          map[string]any `json:"input"`
	TimeoutSeconds int            `json:"timeoutSeconds" validate:"gte=0"`
}

var modelPorts = []graph.Port{
	{Name: "prompt", Type: graph.PortString, Required: true},
	{Name: "image", Type: graph.PortImage},
	{Name: "mask", Type: graph.PortImage},
}

var modelParams = []ParamSpec{
	{Name: "model", Label: "Model", Type: "string", Required: true, Description: "Model identifier, e.g. black-forest-labs/flux-1.1-pro"},
	{Name: "input", Label: "Extra input", Type: "object", Description: "Static model input merged under the port values"},
	{Name: "timeoutSeconds", Label: "Timeout (s)", Type: "number"},
}

func modelCallDefinition() Definition {
	return Definition{
		Kind:        graph.KindModelCall,
		Label:       "Model Call",
		Description: "Runs a model prediction and waits for the answer",
		Category:    "models",
		Inputs:      modelPorts,
		Outputs:     []graph.Port{{Name: "output", Type: graph.PortAny}},
		Parameters:  modelParams,
		Metered:     true,
		build: func(raw json.RawMessage, deps Deps) (Built, error) {
			p, err := decode[ModelCallParams](raw)
			if err != nil {
				return Built{}, err
			}
			built := modelBuilt(p, deps)
			built.Executor = &modelCallExecutor{params: p, runner: deps.Models, text: textOutput(built)}
			if p.TimeoutSeconds > 0 {
				built.Timeout = time.Duration(p.TimeoutSeconds) * time.Second
			}
			return built, nil
		},
	}
}

func asyncModelCallDefinition() Definition {
	return Definition{
		Kind:        graph.KindAsyncModelCall,
		Label:       "Async Model Call",
		Description: "Submits a long running prediction (video, upscaling) and polls it to completion",
		Category:    "models",
		Inputs:      modelPorts,
		Outputs:     []graph.Port{{Name: "output", Type: graph.PortAny}},
		Parameters:  modelParams,
		Metered:     true,
		build: func(raw json.RawMessage, deps Deps) (Built, error) {
			p, err := decode[ModelCallParams](raw)
			if err != nil {
				return Built{}, err
			}
			timeout := deps.JobTimeout
			if p.TimeoutSeconds > 0 {
				timeout = time.Duration(p.TimeoutSeconds) * time.Second
			}
			built := modelBuilt(p, deps)
			built.Executor = &asyncModelCallExecutor{params: p, jobs: deps.Jobs, timeout: timeout, text: textOutput(built)}
			if timeout > 0 {
				built.Timeout = timeout + asyncGrace
			}
			return built, nil
		},
	}
}

func modelBuilt(p ModelCallParams, deps Deps) Built {
	if deps.Catalog == nil {
		return Built{}
	}
	return Built{
		Inputs:  deps.Catalog.Inputs(p.Model),
		Outputs: []graph.Port{{Name: "output", Type: deps.Catalog.OutputType(p.Model)}},
		Cost:    deps.Catalog.Cost(p.Model),
	}
}

// modelInput merges the static input with the values arriving on the ports, ports win.
func modelInput(static map[string]any, in Inputs) map[string]any {
	input := make(map[string]any, len(static)+len(in.Values))
	for k, v := range static {
		input[k] = v
	}
	for port := range in.Values {
		if v, ok := in.First(port); ok && v != nil {
			input[port] = v
		}
	}
	return input
}

func textOutput(b Built) bool {
	return len(b.Outputs) == 1 && b.Outputs[0].Type == graph.PortString
}

// joinTokens flattens the token stream language models answer with into one string.
func joinTokens(out any, text bool) any {
	parts, ok := out.([]any)
	if !text || !ok {
		return out
	}
	var sb strings.Builder
	for _, p := range parts {
		s, ok := p.(string)
		if !ok {
			return out
		}
		sb.WriteString(s)
	}
	return sb.String()
}

type modelCallExecutor struct {
	params ModelCallParams
	runner ModelRunner
	text   bool
}

func (e *modelCallExecutor) Execute(ctx context.Context, in Inputs) (any, error) {
	if e.runner == nil {
		return nil, engine.NewNodeError(engine.CodeExternalCallFailed, "no model provider configured")
	}
	out, err := e.runner.Run(ctx, e.params.Model, modelInput(e.params.Input, in), in.MarkBilled)
	if err != nil {
		return nil, err
	}
	in.MarkBilled()
	return joinTokens(out, e.text), nil
}

type asyncModelCallExecutor struct {
	params  ModelCallParams
	jobs    JobRunner
	timeout time.Duration
	text    bool
}

func (e *asyncModelCallExecutor) Execute(ctx context.Context, in Inputs) (any, error) {
	if e.jobs == nil {
		return nil, engine.NewNodeError(engine.CodeExternalCallFailed, "no job poller configured")
	}
	id, err := e.jobs.Submit(ctx, jobs.Request{
		ExecutionID: in.ExecutionID,
		NodeID:      in.NodeID,
		Model:       e.params.Model,
		Input:       modelInput(e.params.Input, in),
		Timeout:     e.timeout,
	})
	if err != nil {
		return nil, err
	}
	in.MarkBilled()
	defer e.jobs.Forget(id)
	out, err := e.jobs.Await(ctx, id)
	if err != nil {
		return nil, err
	}
	return joinTokens(out, e.text), nil
}
