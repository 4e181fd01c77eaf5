package graph

import "slices"

// Graph is a validated, frozen workflow snapshot. It is never mutated once Validate returns it,
// so a single value can be shared by every goroutine of one execution.
type Graph struct {
	nodes    map[string]Node
	order    []string
	edges    []Edge
	incoming map[string][]Edge
	outgoing map[string][]Edge
	snapshot map[string]any
}

func newGraph(nodes []Node, edges []Edge, snapshot map[string]any) *Graph {
	g := &Graph{
		nodes:    make(map[string]Node, len(nodes)),
		order:    make([]string, 0, len(nodes)),
		edges:    append([]Edge(nil), edges...),
		incoming: make(map[string][]Edge),
		outgoing: make(map[string][]Edge),
		snapshot: make(map[string]any, len(snapshot)),
	}
	for _, n := range nodes {
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}
	for _, e := range g.edges {
		g.incoming[e.Target] = append(g.incoming[e.Target], e)
		g.outgoing[e.Source] = append(g.outgoing[e.Source], e)
	}
	for k, v := range snapshot {
		g.snapshot[k] = v
	}
	return g
}

func (g *Graph) Len() int {
	return len(g.order)
}

// NodeIDs returns ids in declaration order.
func (g *Graph) NodeIDs() []string {
	return slices.Clone(g.order)
}

func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Incoming returns the edges into id in creation order.
func (g *Graph) Incoming(id string) []Edge {
	return slices.Clone(g.incoming[id])
}

func (g *Graph) Outgoing(id string) []Edge {
	return slices.Clone(g.outgoing[id])
}

// Upstream returns the distinct source node ids feeding id.
func (g *Graph) Upstream(id string) []string {
	return distinct(g.incoming[id], func(e Edge) string { return e.Source })
}

// Downstream returns the distinct node ids fed by id.
func (g *Graph) Downstream(id string) []string {
	return distinct(g.outgoing[id], func(e Edge) string { return e.Target })
}

// Terminals are the nodes without outgoing edges.
func (g *Graph) Terminals() []string {
	var out []string
	for _, id := range g.order {
		if len(g.outgoing[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

func (g *Graph) Snapshot(key string) (any, bool) {
	v, ok := g.snapshot[key]
	return v, ok
}

// PortValue returns the snapshot value wired straight into an input port.
func (g *Graph) PortValue(nodeID, port string) (any, bool) {
	return g.Snapshot(SnapshotKey(nodeID, port))
}

func distinct(edges []Edge, key func(Edge) string) []string {
	seen := make(map[string]struct{}, len(edges))
	var out []string
	for _, e := range edges {
		k := key(e)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
