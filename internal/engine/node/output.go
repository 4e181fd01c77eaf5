package node

import (
	"context"
	"encoding/json"

	"clipflow/internal/engine/graph"
)

type OutputParams struct {
	Name string `json:"name"`
}

func outputDefinition() Definition {
	return Definition{
		Kind:        graph.KindOutput,
		Label:       "Output",
		Description: "Collects the final result of a branch",
		Category:    "outputs",
		Inputs:      []graph.Port{{Name: "input", Type: graph.PortAny, Multi: true, Required: true}},
		Outputs:     []graph.Port{},
		Parameters: []ParamSpec{
			{Name: "name", Label: "Name", Type: "string", Description: "Key of this value in the execution output data"},
		},
		build: func(raw json.RawMessage, _ Deps) (Built, error) {
			if _, err := decode[OutputParams](raw); err != nil {
				return Built{}, err
			}
			return Built{Executor: ExecutorFunc(collect)}, nil
		},
	}
}

// collect stores upstream values untouched: a single value as itself, fan-in as a list.
func collect(_ context.Context, in Inputs) (any, error) {
	vals := in.All("input")
	switch len(vals) {
	case 0:
		return nil, nil
	case 1:
		return vals[0], nil
	}
	return append([]any(nil), vals...), nil
}

// OutputName is the key an output node's value is stored under in the execution output data.
func OutputName(n graph.Node) string {
	p, err := decode[OutputParams](n.Parameters)
	if err != nil || p.Name == "" {
		return n.ID
	}
	return p.Name
}
