package node

import (
	"context"
	"encoding/json"

	"clipflow/internal/engine/graph"
)

const (
	OpSelectFirst = "select_first"
	OpPassthrough = "passthrough"
)

type TransformParams struct {
	Operation string `json:"operation" validate:"omitempty,oneof=select_first passthrough"`
}

func transformDefinition() Definition {
	return Definition{
		Kind:        graph.KindTransform,
		Label:       "Transform",
		Description: "Reshapes a value, for instance picking the first image of a batch",
		Category:    "utils",
		Inputs:      []graph.Port{{Name: "input", Type: graph.PortAny, Required: true}},
		Outputs:     []graph.Port{{Name: "output", Type: graph.PortAny}},
		Parameters: []ParamSpec{
			{Name: "operation", Label: "Operation", Type: "select", Default: OpPassthrough, Options: []string{OpSelectFirst, OpPassthrough}},
		},
		build: func(raw json.RawMessage, _ Deps) (Built, error) {
			p, err := decode[TransformParams](raw)
			if err != nil {
				return Built{}, err
			}
			op := p.Operation
			return Built{Executor: ExecutorFunc(func(_ context.Context, in Inputs) (any, error) {
				v, _ := in.First("input")
				if op == OpSelectFirst {
					return selectFirst(v), nil
				}
				return v, nil
			})}, nil
		},
	}
}

func selectFirst(v any) any {
	switch t := v.(type) {
	case []any:
		if len(t) > 0 {
			return t[0]
		}
	case []string:
		if len(t) > 0 {
			return t[0]
		}
	}
	return v
}
