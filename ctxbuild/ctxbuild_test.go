package ctxbuild

import (
	"context"
	"testing"

	"github.com/dshills/orchestrator/graph/emit"
	"github.com/dshills/orchestrator/kvstore"
	"github.com/dshills/orchestrator/kvstore/inprockv"
	"github.com/dshills/orchestrator/workflow"
)

func newStore() *kvstore.Manager {
	return kvstore.NewManager(emit.NewNullEmitter(), inprockv.New())
}

func TestBuild_PopulatesKnowledgeFromConnectedMemoryNode(t *testing.T) {
	store := newStore()
	store.Set(context.Background(), "ns1", "topic", "widgets")

	g := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "agent1", Type: "claude_agent"},
			{ID: "mem1", Type: "memory", Data: map[string]any{"key": "topic", "namespace": "ns1"}},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "mem1", Target: "agent1"},
		},
	}

	b := New(store)
	out := b.Build(context.Background(), g.Nodes[0], g, workflow.NewContext())

	if out.Knowledge["topic"] != "widgets" {
		t.Fatalf("knowledge[topic] = %v, want widgets", out.Knowledge["topic"])
	}
	if len(out.AgentMemoryNodes) != 1 || out.AgentMemoryNodes[0].NodeID != "mem1" {
		t.Fatalf("agent memory nodes = %+v", out.AgentMemoryNodes)
	}
}

func TestBuild_PopulatesToolsFromConnectedToolNode(t *testing.T) {
	g := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "agent1", Type: "openai_agent"},
			{ID: "tool1", Type: "tool", Data: map[string]any{"label": "Search", "operation": "google_search"}},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "agent1", Target: "tool1"},
		},
	}

	b := New(newStore())
	out := b.Build(context.Background(), g.Nodes[0], g, workflow.NewContext())

	if len(out.AgentTools) != 1 || out.AgentTools[0].Operation != "google_search" {
		t.Fatalf("agent tools = %+v", out.AgentTools)
	}
	if _, ok := out.AgentToolNodes["Search"]; !ok {
		t.Fatalf("agent tool nodes = %+v, want key \"Search\"", out.AgentToolNodes)
	}
}

func TestBuild_NonAgentNodeLeavesKnowledgeEmpty(t *testing.T) {
	g := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "router1", Type: "router"},
			{ID: "mem1", Type: "memory", Data: map[string]any{"key": "topic"}},
		},
		Edges: []workflow.Edge{{ID: "e1", Source: "mem1", Target: "router1"}},
	}

	b := New(newStore())
	out := b.Build(context.Background(), g.Nodes[0], g, workflow.NewContext())

	if len(out.Knowledge) != 0 {
		t.Fatalf("knowledge = %v, want empty for non-agent node", out.Knowledge)
	}
}

func TestBuild_ResolvesJudgeNodeForConsensus(t *testing.T) {
	g := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "consensus1", Type: "consensus"},
			{ID: "judge1", Type: "claude_agent"},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "judge1", Target: "consensus1", TargetHandle: "judge-left"},
		},
	}

	b := New(newStore())
	out := b.Build(context.Background(), g.Nodes[0], g, workflow.NewContext())

	judge, ok := out.Extra("judgeNode").(workflow.Node)
	if !ok || judge.ID != "judge1" {
		t.Fatalf("judgeNode = %v, want judge1", out.Extra("judgeNode"))
	}
}

func TestBuild_NoJudgeEdgeLeavesExtraUnset(t *testing.T) {
	g := workflow.Graph{
		Nodes: []workflow.Node{{ID: "consensus1", Type: "consensus"}},
	}

	b := New(newStore())
	out := b.Build(context.Background(), g.Nodes[0], g, workflow.NewContext())

	if out.Extra("judgeNode") != nil {
		t.Fatalf("judgeNode = %v, want nil", out.Extra("judgeNode"))
	}
}

func TestBuild_ThreadsEdgesIntoExtrasForEveryNode(t *testing.T) {
	g := workflow.Graph{
		Nodes: []workflow.Node{{ID: "loop1", Type: "loop"}},
		Edges: []workflow.Edge{{ID: "e1", Source: "loop1", SourceHandle: "body", Target: "body1"}},
	}

	b := New(newStore())
	out := b.Build(context.Background(), g.Nodes[0], g, workflow.NewContext())

	edges, ok := out.Extra("_edges").([]workflow.Edge)
	if !ok || len(edges) != 1 {
		t.Fatalf("_edges = %v, want 1 edge", out.Extra("_edges"))
	}
}
