// Package router implements next-edge selection (spec.md §4.3): given the
// node just executed, its DriverResponse, and the graph's edges, it picks
// which edge the walk continues along.
//
// Grounded on original_source/api/orchestration/workflow_executor.py's
// _select_next_node/_select_router_edge/_select_preferred_edge.
package router

import (
	"sort"

	"github.com/dshills/orchestrator/workflow"
)

var preferredHandles = map[string]bool{
	"s": true, "out": true, "write": true, "default": true,
}

var targetTypePriority = map[string]int{
	"claude_agent": 9,
	"openai_agent": 9,
	"google_agent": 9,
	"router":       8,
	"memory":       7,
	"output":       1,
}

const defaultTargetPriority = 5

var routeDrivenTypes = map[string]bool{
	"router":    true,
	"condition": true,
	"loop":      true,
	"for_each":  true,
}

// Select returns the outgoing edge the walk should follow from current,
// or ok=false if no edge survives filtering (execution halts).
func Select(current workflow.Node, result workflow.DriverResponse, g workflow.Graph) (workflow.Edge, bool) {
	nodeByID := g.NodeByID()

	var candidates []workflow.Edge
	for _, e := range g.Outgoing()[current.ID] {
		target, ok := nodeByID[e.Target]
		if !ok {
			continue
		}
		if target.Type == "memory" || target.Type == "tool" {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return workflow.Edge{}, false
	}

	if routeDrivenTypes[current.Type] {
		return selectByRoute(result.Route, candidates)
	}
	return selectPreferred(candidates, nodeByID)
}

func selectByRoute(route string, candidates []workflow.Edge) (workflow.Edge, bool) {
	if route != "" {
		for _, e := range candidates {
			if e.SourceHandle == route {
				return e, true
			}
		}
	}
	return candidates[0], true
}

func selectPreferred(candidates []workflow.Edge, nodeByID map[string]workflow.Node) (workflow.Edge, bool) {
	for _, e := range candidates {
		if preferredHandles[e.SourceHandle] {
			return e, true
		}
	}

	if len(candidates) > 1 {
		ranked := make([]workflow.Edge, len(candidates))
		copy(ranked, candidates)
		sort.SliceStable(ranked, func(i, j int) bool {
			return score(ranked[i], nodeByID) > score(ranked[j], nodeByID)
		})
		return ranked[0], true
	}

	return candidates[0], true
}

func score(e workflow.Edge, nodeByID map[string]workflow.Node) int {
	target, ok := nodeByID[e.Target]
	if !ok {
		return defaultTargetPriority
	}
	if p, ok := targetTypePriority[target.Type]; ok {
		return p
	}
	return defaultTargetPriority
}
