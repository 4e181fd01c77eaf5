package node

import (
	"context"
	"encoding/json"
	"strings"

	"clipflow/internal/engine/graph"
)

type ConcatParams struct {
	Separator string `json:"separator"`
}

func concatDefinition() Definition {
	return Definition{
		Kind:        graph.KindConcat,
		Label:       "Concatenate",
		Description: "Joins the connected values top to bottom",
		Category:    "utils",
		Inputs:      []graph.Port{{Name: "input", Type: graph.PortAny, Multi: true, Required: true}},
		Outputs:     []graph.Port{{Name: "output", Type: graph.PortString}},
		Parameters: []ParamSpec{
			{Name: "separator", Label: "Separator", Type: "string", Default: ""},
		},
		build: func(raw json.RawMessage, _ Deps) (Built, error) {
			p, err := decode[ConcatParams](raw)
			if err != nil {
				return Built{}, err
			}
			return Built{Executor: &concatExecutor{separator: p.Separator}}, nil
		},
	}
}

type concatExecutor struct {
	separator string
}

// Execute joins the input values in the order the resolver handed them over. Empty values are
// dropped so a missing branch does not leave a dangling separator.
func (e *concatExecutor) Execute(_ context.Context, in Inputs) (any, error) {
	parts := make([]string, 0, len(in.All("input")))
	for _, v := range in.All("input") {
		s, err := Canonical(v)
		if err != nil {
			return nil, err
		}
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, e.separator), nil
}
