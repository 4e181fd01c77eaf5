package mapper

import (
	"clipflow/internal/api/handler/response"
	"clipflow/internal/engine/graph"
	"clipflow/internal/engine/modelapi"
	"clipflow/internal/engine/node"
)

func toPorts(ports []graph.Port) []response.Port {
	out := make([]response.Port, 0, len(ports))
	for _, p := range ports {
		out = append(out, response.Port{Name: p.Name, Type: string(p.Type), Required: p.Required, Multi: p.Multi})
	}
	return out
}

func ToNodeTypeResponse(def node.Definition) response.NodeType {
	params := def.Parameters
	if params == nil {
		params = []node.ParamSpec{}
	}
	return response.NodeType{
		ID:          string(def.Kind),
		Label:       def.Label,
		Description: def.Description,
		Category:    def.Category,
		Inputs:      toPorts(def.Inputs),
		Outputs:     toPorts(def.Outputs),
		Parameters:  params,
		Metered:     def.Metered,
	}
}

func ToNodeTypeResponses(defs []node.Definition) []response.NodeType {
	out := make([]response.NodeType, 0, len(defs))
	for _, def := range defs {
		out = append(out, ToNodeTypeResponse(def))
	}
	return out
}

func ToModelResponses(ms []modelapi.Model) []response.Model {
	out := make([]response.Model, 0, len(ms))
	for _, m := range ms {
		out = append(out, response.Model{
			ModelID:     m.ID,
			ModelName:   m.Name,
			Description: m.Description,
			Category:    m.Category,
			CostPerRun:  m.CostPerRun,
		})
	}
	return out
}
