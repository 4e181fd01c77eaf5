package graph

import "encoding/json"

type Kind string

const (
	KindInput          Kind = "input"
	KindConcat         Kind = "concat"
	KindModelCall      Kind = "model_call"
	KindAsyncModelCall Kind = "async_model_call"
	KindOutput         Kind = "output"
	KindTransform      Kind = "transform"
)

type PortType string

const (
	PortString PortType = "string"
	PortImage  PortType = "image"
	PortVideo  PortType = "video"
	PortAudio  PortType = "audio"
	PortObject PortType = "object"
	PortAny    PortType = "any"
)

func (t PortType) Valid() bool {
	switch t {
	case PortString, PortImage, PortVideo, PortAudio, PortObject, PortAny:
		return true
	}
	return false
}

// Accepts reports whether a value produced on a port of type src can flow into t.
func (t PortType) Accepts(src PortType) bool {
	return t == PortAny || src == PortAny || t == src
}

type Port struct {
	Name     string   `json:"name"`
	Type     PortType `json:"type"`
	Multi    bool     `json:"multi,omitempty"`
	Required bool     `json:"required,omitempty"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Node struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Position   Position        `json:"position"`
	Inputs     []Port          `json:"inputs,omitempty"`
	Outputs    []Port          `json:"outputs,omitempty"`
}

func (n Node) Input(name string) (Port, bool) {
	for _, p := range n.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

func (n Node) Output(name string) (Port, bool) {
	for _, p := range n.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// Edge connects an output port to an input port. Seq is the creation order of the edge and
// breaks ties when fan-in sources share the same vertical position.
type Edge struct {
	Source     string `json:"source"`
	SourcePort string `json:"sourceHandle"`
	Target     string `json:"target"`
	TargetPort string `json:"targetHandle"`
	Seq        int    `json:"-"`
}

const (
	DefaultSourcePort = "output"
	DefaultTargetPort = "input"
)

// SnapshotKey is the input snapshot key that feeds an unconnected input port directly.
func SnapshotKey(nodeID, port string) string {
	return nodeID + "." + port
}
