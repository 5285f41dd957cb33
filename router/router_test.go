package router

import (
	"testing"

	"github.com/dshills/orchestrator/workflow"
)

func TestSelect_RouterNodeFollowsMatchingRoute(t *testing.T) {
	g := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "r1", Type: "router"},
			{ID: "yes1", Type: "output"},
			{ID: "no1", Type: "output"},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "r1", SourceHandle: "yes", Target: "yes1"},
			{ID: "e2", Source: "r1", SourceHandle: "no", Target: "no1"},
		},
	}

	edge, ok := Select(g.Nodes[0], workflow.DriverResponse{Route: "no"}, g)
	if !ok || edge.Target != "no1" {
		t.Fatalf("edge = %+v, ok = %v, want no1", edge, ok)
	}
}

func TestSelect_RouterNodeFallsBackToFirstEdgeWhenNoRouteMatches(t *testing.T) {
	g := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "r1", Type: "router"},
			{ID: "a", Type: "output"},
			{ID: "b", Type: "output"},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "r1", SourceHandle: "x", Target: "a"},
			{ID: "e2", Source: "r1", SourceHandle: "y", Target: "b"},
		},
	}

	edge, ok := Select(g.Nodes[0], workflow.DriverResponse{Route: "nonexistent"}, g)
	if !ok || edge.Target != "a" {
		t.Fatalf("edge = %+v, ok = %v, want first edge (a)", edge, ok)
	}
}

func TestSelect_LoopNodeRoutesToExitOrBody(t *testing.T) {
	g := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "loop1", Type: "loop"},
			{ID: "body1", Type: "output"},
			{ID: "after", Type: "output"},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "loop1", SourceHandle: "body", Target: "body1"},
			{ID: "e2", Source: "loop1", SourceHandle: "exit", Target: "after"},
		},
	}

	edge, ok := Select(g.Nodes[0], workflow.DriverResponse{Route: "exit"}, g)
	if !ok || edge.Target != "after" {
		t.Fatalf("edge = %+v, ok = %v, want after", edge, ok)
	}
}

func TestSelect_PrefersExplicitDataFlowHandle(t *testing.T) {
	g := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "n1", Type: "tool"},
			{ID: "a", Type: "output"},
			{ID: "b", Type: "claude_agent"},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "n1", SourceHandle: "", Target: "b"},
			{ID: "e2", Source: "n1", SourceHandle: "default", Target: "a"},
		},
	}

	edge, ok := Select(g.Nodes[0], workflow.DriverResponse{}, g)
	if !ok || edge.Target != "a" {
		t.Fatalf("edge = %+v, ok = %v, want a (default handle preferred)", edge, ok)
	}
}

func TestSelect_RanksByTargetTypePriorityWhenNoPreferredHandle(t *testing.T) {
	g := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "n1", Type: "input"},
			{ID: "out1", Type: "output"},
			{ID: "agent1", Type: "claude_agent"},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "n1", Target: "out1"},
			{ID: "e2", Source: "n1", Target: "agent1"},
		},
	}

	edge, ok := Select(g.Nodes[0], workflow.DriverResponse{}, g)
	if !ok || edge.Target != "agent1" {
		t.Fatalf("edge = %+v, ok = %v, want agent1 (priority 9 beats output's 1)", edge, ok)
	}
}

func TestSelect_FiltersOutMemoryAndToolTargets(t *testing.T) {
	g := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "n1", Type: "claude_agent"},
			{ID: "mem1", Type: "memory"},
			{ID: "out1", Type: "output"},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "n1", Target: "mem1"},
			{ID: "e2", Source: "n1", Target: "out1"},
		},
	}

	edge, ok := Select(g.Nodes[0], workflow.DriverResponse{}, g)
	if !ok || edge.Target != "out1" {
		t.Fatalf("edge = %+v, ok = %v, want out1 (memory target filtered)", edge, ok)
	}
}

func TestSelect_NoSurvivingEdgeHaltsExecution(t *testing.T) {
	g := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "n1", Type: "output"},
			{ID: "mem1", Type: "memory"},
		},
		Edges: []workflow.Edge{{ID: "e1", Source: "n1", Target: "mem1"}},
	}

	_, ok := Select(g.Nodes[0], workflow.DriverResponse{}, g)
	if ok {
		t.Fatal("expected no surviving edge")
	}
}
