package response

import "clipflow/internal/engine/node"

type Port struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Multi    bool   `json:"multi"`
}

type NodeType struct {
	ID          string           `json:"id"`
	Label       string           `json:"label"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Inputs      []Port           `json:"inputs"`
	Outputs     []Port           `json:"outputs"`
	Parameters  []node.ParamSpec `json:"parameters"`
	Metered     bool             `json:"metered"`
}
