package graph

import (
	"sort"

	"clipflow/internal/engine"
)

// Resolver answers readiness questions against a frozen graph. It holds no state of its own, the
// caller passes the current node statuses on every call.
type Resolver struct {
	g *Graph
}

func NewResolver(g *Graph) *Resolver {
	return &Resolver{g: g}
}

func (r *Resolver) Graph() *Graph {
	return r.g
}

// Ready returns the pending nodes that can start: every upstream node is terminal and every
// required port is fed by succeeded upstreams or by the input snapshot. Ids are sorted.
func (r *Resolver) Ready(states map[string]engine.NodeStatus) []string {
	var ready []string
	for _, id := range r.g.order {
		if states[id] != engine.NodePending {
			continue
		}
		if r.isReady(id, states) {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)
	return ready
}

func (r *Resolver) isReady(id string, states map[string]engine.NodeStatus) bool {
	fed := make(map[string]bool)
	for _, e := range r.g.incoming[id] {
		st := states[e.Source]
		if !st.Terminal() {
			return false
		}
		port, _ := r.g.nodes[id].Input(e.TargetPort)
		if port.Required && st != engine.NodeSucceeded {
			return false
		}
		fed[e.TargetPort] = true
	}
	for _, port := range r.g.nodes[id].Inputs {
		if !port.Required || fed[port.Name] {
			continue
		}
		if _, ok := r.g.PortValue(id, port.Name); !ok {
			return false
		}
	}
	return true
}

// Blocked returns the non terminal, not yet running nodes that can never run because a required
// port is fed by a failed or skipped upstream. Ids are sorted.
func (r *Resolver) Blocked(states map[string]engine.NodeStatus) []string {
	var blocked []string
	for _, id := range r.g.order {
		st := states[id]
		if st != engine.NodePending && st != engine.NodeReady {
			continue
		}
		for _, e := range r.g.incoming[id] {
			src := states[e.Source]
			if src != engine.NodeFailed && src != engine.NodeSkipped {
				continue
			}
			if port, _ := r.g.nodes[id].Input(e.TargetPort); port.Required {
				blocked = append(blocked, id)
				break
			}
		}
	}
	sort.Strings(blocked)
	return blocked
}

// OrderedInputs returns the values arriving on one input port. Sources are ordered by their
// vertical position, top first, and ties keep edge creation order. Sources without an output in
// outputs (not succeeded) are left out. An unconnected port falls back to its snapshot value.
func (r *Resolver) OrderedInputs(nodeID, port string, outputs map[string]any) []any {
	var edges []Edge
	for _, e := range r.g.incoming[nodeID] {
		if e.TargetPort == port {
			edges = append(edges, e)
		}
	}
	if len(edges) == 0 {
		if v, ok := r.g.PortValue(nodeID, port); ok {
			return []any{v}
		}
		return nil
	}

	sort.SliceStable(edges, func(i, j int) bool {
		yi := r.g.nodes[edges[i].Source].Position.Y
		yj := r.g.nodes[edges[j].Source].Position.Y
		if yi != yj {
			return yi < yj
		}
		return edges[i].Seq < edges[j].Seq
	})

	values := make([]any, 0, len(edges))
	for _, e := range edges {
		if v, ok := outputs[e.Source]; ok {
			values = append(values, v)
		}
	}
	return values
}

// Dependents returns every node reachable downstream of id.
func (r *Resolver) Dependents(id string) []string {
	seen := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range r.g.Downstream(cur) {
			if seen[next] {
				continue
			}
			seen[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out
}
