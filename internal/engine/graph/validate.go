package graph

import "fmt"

// Spec is the raw material of an execution: the workflow nodes with their ports already declared,
// the edges in creation order, the input snapshot and an optional subset of target nodes.
type Spec struct {
	Nodes    []Node
	Edges    []Edge
	Snapshot map[string]any
	Targets  []string
}

// Validate checks the graph and returns its frozen form. Checks run in a fixed order: references,
// port types, single-input fan-in, acyclicity, required inputs, then the structural rules (input and
// output presence, disconnected nodes). When Targets is set only the targets and their upstream
// closure are validated and kept.
func Validate(spec Spec) (*Graph, error) {
	byID := make(map[string]Node, len(spec.Nodes))
	for _, n := range spec.Nodes {
		if _, dup := byID[n.ID]; dup {
			return nil, newError(DuplicateNode, n.ID, "", "duplicate node id %q", n.ID)
		}
		byID[n.ID] = n
	}

	edges := make([]Edge, len(spec.Edges))
	for i, e := range spec.Edges {
		e.Seq = i
		if e.SourcePort == "" {
			e.SourcePort = DefaultSourcePort
		}
		if e.TargetPort == "" {
			e.TargetPort = DefaultTargetPort
		}
		edges[i] = e
	}

	if err := checkReferences(byID, edges); err != nil {
		return nil, err
	}

	nodes := spec.Nodes
	if len(spec.Targets) > 0 {
		var err error
		nodes, edges, err = restrict(spec.Nodes, edges, spec.Targets, byID)
		if err != nil {
			return nil, err
		}
	}

	g := newGraph(nodes, edges, spec.Snapshot)
	checks := []func(*Graph) error{
		checkPortTypes,
		checkSingleInputs,
		checkAcyclic,
		checkRequiredInputs,
	}
	if len(spec.Targets) == 0 {
		checks = append(checks, checkEndpoints)
	}
	checks = append(checks, checkConnected)
	for _, check := range checks {
		if err := check(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func checkReferences(byID map[string]Node, edges []Edge) error {
	for _, e := range edges {
		src, ok := byID[e.Source]
		if !ok {
			return newError(UnknownNode, e.Source, "", "edge references unknown source node %q", e.Source)
		}
		dst, ok := byID[e.Target]
		if !ok {
			return newError(UnknownNode, e.Target, "", "edge references unknown target node %q", e.Target)
		}
		if _, ok := src.Output(e.SourcePort); !ok {
			return newError(UnknownPort, e.Source, e.SourcePort, "node %q has no output port %q", e.Source, e.SourcePort)
		}
		if _, ok := dst.Input(e.TargetPort); !ok {
			return newError(UnknownPort, e.Target, e.TargetPort, "node %q has no input port %q", e.Target, e.TargetPort)
		}
	}
	return nil
}

func checkPortTypes(g *Graph) error {
	for _, e := range g.edges {
		src, _ := g.nodes[e.Source].Output(e.SourcePort)
		dst, _ := g.nodes[e.Target].Input(e.TargetPort)
		if !dst.Type.Accepts(src.Type) {
			return &ValidationError{
				Kind:    IncompatiblePortType,
				Nodes:   []string{e.Source, e.Target},
				NodeID:  e.Target,
				Port:    e.TargetPort,
				Message: fmt.Sprintf("cannot connect %s.%s (%s) to %s.%s (%s)", e.Source, e.SourcePort, src.Type, e.Target, e.TargetPort, dst.Type),
			}
		}
	}
	return nil
}

func checkSingleInputs(g *Graph) error {
	for _, id := range g.order {
		counts := make(map[string]int)
		for _, e := range g.incoming[id] {
			counts[e.TargetPort]++
		}
		for _, port := range g.nodes[id].Inputs {
			if !port.Multi && counts[port.Name] > 1 {
				return newError(MultipleEdgesIntoSingleInput, id, port.Name,
					"input %q of node %q accepts a single edge, got %d", port.Name, id, counts[port.Name])
			}
		}
	}
	return nil
}

const (
	white = iota
	grey
	black
)

func checkAcyclic(g *Graph) error {
	colour := make(map[string]int, len(g.order))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		colour[id] = grey
		stack = append(stack, id)
		for _, e := range g.outgoing[id] {
			switch colour[e.Target] {
			case grey:
				for i, s := range stack {
					if s == e.Target {
						return append([]string(nil), stack[i:]...)
					}
				}
			case white:
				if cycle := visit(e.Target); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		colour[id] = black
		return nil
	}

	for _, id := range g.order {
		if colour[id] != white {
			continue
		}
		if cycle := visit(id); cycle != nil {
			return cycleError(cycle)
		}
	}
	return nil
}

func checkRequiredInputs(g *Graph) error {
	for _, id := range g.order {
		connected := make(map[string]bool)
		for _, e := range g.incoming[id] {
			connected[e.TargetPort] = true
		}
		for _, port := range g.nodes[id].Inputs {
			if !port.Required || connected[port.Name] {
				continue
			}
			if _, ok := g.PortValue(id, port.Name); ok {
				continue
			}
			return newError(MissingRequiredInput, id, port.Name,
				"node %q: required input %q is not connected and has no value", id, port.Name)
		}
	}
	return nil
}

func checkEndpoints(g *Graph) error {
	var inputs, outputs int
	for _, n := range g.nodes {
		switch n.Kind {
		case KindInput:
			inputs++
		case KindOutput:
			outputs++
		}
	}
	if inputs == 0 {
		return newError(MissingInputNode, "", "", "workflow must have at least one input node")
	}
	if outputs == 0 {
		return newError(MissingOutputNode, "", "", "workflow must have at least one output node")
	}
	return nil
}

func checkConnected(g *Graph) error {
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Kind == KindInput || n.Kind == KindOutput {
			continue
		}
		if len(g.incoming[id]) == 0 && len(g.outgoing[id]) == 0 {
			return newError(DisconnectedNode, id, "", "node %q is not connected", id)
		}
	}
	return nil
}

// restrict keeps the targets and every node they transitively depend on.
func restrict(nodes []Node, edges []Edge, targets []string, byID map[string]Node) ([]Node, []Edge, error) {
	incoming := make(map[string][]Edge)
	for _, e := range edges {
		incoming[e.Target] = append(incoming[e.Target], e)
	}

	keep := make(map[string]bool)
	queue := make([]string, 0, len(targets))
	for _, t := range targets {
		if _, ok := byID[t]; !ok {
			return nil, nil, newError(UnknownNode, t, "", "target node %q does not exist", t)
		}
		if !keep[t] {
			keep[t] = true
			queue = append(queue, t)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range incoming[id] {
			if !keep[e.Source] {
				keep[e.Source] = true
				queue = append(queue, e.Source)
			}
		}
	}

	var keptNodes []Node
	for _, n := range nodes {
		if keep[n.ID] {
			keptNodes = append(keptNodes, n)
		}
	}
	var keptEdges []Edge
	for _, e := range edges {
		if keep[e.Source] && keep[e.Target] {
			keptEdges = append(keptEdges, e)
		}
	}
	return keptNodes, keptEdges, nil
}
