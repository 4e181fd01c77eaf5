package node

import (
	"context"
	"encoding/json"

	"clipflow/internal/engine"
	"clipflow/internal/engine/graph"
)

type InputParams struct {
	Name         string         `json:"name"`
	Type         graph.PortType `json:"type" validate:"omitempty,oneof=string image video audio object any"`
	Value        any            `json:"value"`
	DefaultValue any            `json:"defaultValue"`
	Required     *bool          `json:"required"`
}

func (p InputParams) required() bool {
	return p.Required == nil || *p.Required
}

func inputDefinition() Definition {
	return Definition{
		Kind:        graph.KindInput,
		Label:       "Input",
		Description: "Value taken from the execution's input data",
		Category:    "inputs",
		Outputs:     []graph.Port{{Name: "output", Type: graph.PortString}},
		Parameters: []ParamSpec{
			{Name: "name", Label: "Name", Type: "string", Description: "Key looked up in the input data when the node id is absent"},
			{Name: "type", Label: "Type", Type: "select", Default: "string", Options: []string{"string", "image", "video", "audio", "object", "any"}},
			{Name: "value", Label: "Initial Value", Type: "textarea"},
			{Name: "defaultValue", Label: "Default Value", Type: "textarea"},
			{Name: "required", Label: "Required", Type: "boolean", Default: true},
		},
		build: func(raw json.RawMessage, _ Deps) (Built, error) {
			p, err := decode[InputParams](raw)
			if err != nil {
				return Built{}, err
			}
			typ := p.Type
			if typ == "" {
				typ = graph.PortString
			}
			return Built{
				Executor: &inputExecutor{params: p},
				Outputs:  []graph.Port{{Name: "output", Type: typ}},
			}, nil
		},
	}
}

type inputExecutor struct {
	params InputParams
}

// Execute resolves the node id in the input data first, then the node name, then the values
// stored on the node itself.
func (e *inputExecutor) Execute(_ context.Context, in Inputs) (any, error) {
	if v, ok := in.Snapshot(in.NodeID); ok {
		return v, nil
	}
	if e.params.Name != "" {
		if v, ok := in.Snapshot(e.params.Name); ok {
			return v, nil
		}
	}
	for _, v := range []any{e.params.Value, e.params.DefaultValue} {
		if !isBlank(v) {
			return v, nil
		}
	}
	if e.params.required() {
		return nil, engine.NewNodeError(engine.CodeMissingInput, "no value provided for input %q", in.NodeID)
	}
	return nil, nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
