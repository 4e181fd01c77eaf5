package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"clipflow/internal/engine/graph"

	"gorm.io/gorm"
)

type Workflow struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string         `gorm:"not null;index" json:"userId"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description"`
	Graph       WorkflowGraph  `gorm:"type:jsonb" json:"graph"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// WorkflowGraph is the graph as the editor saves it.
type WorkflowGraph struct {
	Nodes []WorkflowNode `json:"nodes"`
	Edges []graph.Edge   `json:"edges"`
}

// WorkflowNode keeps the editor's node shape: the kind lives in "type" and the parameters in
// "data".
type WorkflowNode struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Position graph.Position  `json:"position"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func (g WorkflowGraph) Value() (driver.Value, error) {
	return json.Marshal(g)
}

func (g *WorkflowGraph) Scan(value interface{}) error {
	return scanJSON(value, g, "WorkflowGraph")
}

// Spec turns the stored graph into the engine's input.
func (g WorkflowGraph) Spec(snapshot map[string]any, targets []string) graph.Spec {
	nodes := make([]graph.Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, graph.Node{
			ID:         n.ID,
			Kind:       graph.Kind(n.Type),
			Parameters: n.Data,
			Position:   n.Position,
		})
	}
	return graph.Spec{
		Nodes:    nodes,
		Edges:    append([]graph.Edge(nil), g.Edges...),
		Snapshot: snapshot,
		Targets:  targets,
	}
}
