// Package workflow defines the graph-shaped data model that the orchestration
// kernel walks: nodes, edges, the mutable per-execution context, and the
// driver response/trace/progress shapes that flow between components.
package workflow

import "fmt"

// Node is a single typed unit in a workflow graph. Data holds type-specific
// configuration (model name, expression, cron, operation, ...); nodes are
// immutable during an execution.
type Node struct {
	ID   string
	Type string
	Data map[string]any
}

// DataString returns node.Data[key] as a string, or the empty string if the
// key is absent or not a string.
func (n Node) DataString(key string) string {
	if n.Data == nil {
		return ""
	}
	v, ok := n.Data[key].(string)
	if !ok {
		return ""
	}
	return v
}

// DataStringOr is DataString with a fallback for the empty/absent case.
func (n Node) DataStringOr(key, fallback string) string {
	if v := n.DataString(key); v != "" {
		return v
	}
	return fallback
}

// Edge connects a source node to a target node. SourceHandle/TargetHandle
// discriminate multi-output/input ports (e.g. "yes"/"no" on routers,
// "body"/"exit" on loops).
type Edge struct {
	ID           string
	Source       string
	Target       string
	SourceHandle string
	TargetHandle string
}

// Graph is a complete workflow: its nodes and the edges between them. No
// acyclicity requirement is imposed; cycle protection is step-budget-based
// in the kernel.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// ValidationError reports a structural problem with a Graph, surfaced to
// callers at HTTP 400 without starting execution.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validate enforces the data-model invariants from the spec: every node id
// is unique, and every edge's source/target reference extant node ids.
func (g Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return &ValidationError{Message: "nodes are required"}
	}

	seen := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return &ValidationError{Message: "node id cannot be empty"}
		}
		if _, dup := seen[n.ID]; dup {
			return &ValidationError{Message: fmt.Sprintf("duplicate node id: %s", n.ID)}
		}
		seen[n.ID] = struct{}{}
	}

	for _, e := range g.Edges {
		if _, ok := seen[e.Source]; !ok {
			return &ValidationError{Message: fmt.Sprintf("edge %s references unknown source node: %s", e.ID, e.Source)}
		}
		if _, ok := seen[e.Target]; !ok {
			return &ValidationError{Message: fmt.Sprintf("edge %s references unknown target node: %s", e.ID, e.Target)}
		}
	}

	return nil
}

// NodeByID indexes nodes by id for O(1) lookup during execution.
func (g Graph) NodeByID() map[string]Node {
	m := make(map[string]Node, len(g.Nodes))
	for _, n := range g.Nodes {
		m[n.ID] = n
	}
	return m
}

// Outgoing indexes edges by their source node id, preserving declaration order.
func (g Graph) Outgoing() map[string][]Edge {
	m := make(map[string][]Edge, len(g.Nodes))
	for _, e := range g.Edges {
		m[e.Source] = append(m[e.Source], e)
	}
	return m
}

// IncomingCount counts incoming edges per node id, used for start-node
// resolution (a node with zero incoming edges is a start-node candidate).
func (g Graph) IncomingCount() map[string]int {
	m := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		m[n.ID] = 0
	}
	for _, e := range g.Edges {
		if _, ok := m[e.Target]; ok {
			m[e.Target]++
		}
	}
	return m
}
