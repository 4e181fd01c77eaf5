package node

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"clipflow/internal/engine/graph"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ParamSpec describes one parameter of a node kind for the graph editor.
type ParamSpec struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Required    bool     `json:"required,omitempty"`
	Default     any      `json:"defaultValue,omitempty"`
	Options     []string `json:"options,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Built is a node ready to be scheduled.
type Built struct {
	Executor Executor
	Inputs   []graph.Port
	Outputs  []graph.Port
	Cost     int64

	// Timeout overrides the scheduler's per node deadline when set.
	Timeout time.Duration
}

type factory func(raw json.RawMessage, deps Deps) (Built, error)

// Definition is one registry entry. Inputs and Outputs are the default ports; a node may derive
// different ones from its parameters (an input node picks its output type, a model call takes the
// ports of its model).
type Definition struct {
	Kind        graph.Kind   `json:"id"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Inputs      []graph.Port `json:"inputs"`
	Outputs     []graph.Port `json:"outputs"`
	Parameters  []ParamSpec  `json:"parameters"`
	Metered     bool         `json:"metered"`

	build factory
}

// Registry maps node kinds to their definition and executor constructor.
type Registry struct {
	mu   sync.RWMutex
	defs map[graph.Kind]Definition
	deps Deps
}

// NewRegistry returns a registry holding every built-in kind.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{defs: make(map[graph.Kind]Definition), deps: deps}
	for _, def := range builtins() {
		r.Register(def)
	}
	return r
}

func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Kind] = def
}

func (r *Registry) Definition(kind graph.Kind) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[kind]
	return def, ok
}

// Definitions lists every kind sorted by id.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Build decodes the node parameters, attaches its ports and builds its executor. Errors are
// graph.ValidationError so they surface like any other graph problem.
func (r *Registry) Build(n graph.Node) (graph.Node, Built, error) {
	def, ok := r.Definition(n.Kind)
	if !ok {
		return n, Built{}, &graph.ValidationError{
			Kind:    graph.UnknownKind,
			NodeID:  n.ID,
			Message: fmt.Sprintf("node %q has unknown kind %q", n.ID, n.Kind),
		}
	}
	built, err := def.build(n.Parameters, r.deps)
	if err != nil {
		return n, Built{}, &graph.ValidationError{
			Kind:    graph.InvalidParameters,
			NodeID:  n.ID,
			Message: fmt.Sprintf("node %q: invalid parameters: %v", n.ID, err),
		}
	}
	if built.Inputs == nil {
		built.Inputs = def.Inputs
	}
	if built.Outputs == nil {
		built.Outputs = def.Outputs
	}
	if !def.Metered {
		built.Cost = 0
	}
	n.Inputs = built.Inputs
	n.Outputs = built.Outputs
	return n, built, nil
}

// decode unmarshals raw into a typed parameter struct and runs struct validation. Fields the
// editor stores for display only are ignored.
func decode[T any](raw json.RawMessage) (T, error) {
	var p T
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return p, err
		}
	}
	if err := validate.Struct(p); err != nil {
		return p, err
	}
	return p, nil
}

func builtins() []Definition {
	return []Definition{
		inputDefinition(),
		concatDefinition(),
		modelCallDefinition(),
		asyncModelCallDefinition(),
		outputDefinition(),
		transformDefinition(),
	}
}

// Compile builds every node of spec, attaches the ports its kind declares and validates the
// resulting graph. Only the nodes kept by the validated graph (the target closure) are returned.
func (r *Registry) Compile(spec graph.Spec) (*graph.Graph, map[string]Built, error) {
	built := make(map[string]Built, len(spec.Nodes))
	nodes := make([]graph.Node, 0, len(spec.Nodes))
	for _, n := range spec.Nodes {
		prepared, b, err := r.Build(n)
		if err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, prepared)
		built[n.ID] = b
	}
	spec.Nodes = nodes

	g, err := graph.Validate(spec)
	if err != nil {
		return nil, nil, err
	}
	for id := range built {
		if _, ok := g.Node(id); !ok {
			delete(built, id)
		}
	}
	return g, built, nil
}
