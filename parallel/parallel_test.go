package parallel

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dshills/orchestrator/workflow"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (r *fakeRunner) RunBranch(ctx context.Context, startNode workflow.Node, g workflow.Graph, wctx workflow.Context) BranchResult {
	r.mu.Lock()
	r.calls = append(r.calls, startNode.ID)
	r.mu.Unlock()

	if r.fail != nil && r.fail[startNode.ID] {
		return BranchResult{Err: fmt.Errorf("branch at %s failed", startNode.ID)}
	}
	return BranchResult{Output: startNode.ID + "-output"}
}

func threeBranchGraph() (workflow.Graph, []workflow.Edge) {
	g := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "p1", Type: "parallel"},
			{ID: "b0", Type: "claude_agent"},
			{ID: "b1", Type: "claude_agent"},
			{ID: "b2", Type: "claude_agent"},
		},
		Edges: []workflow.Edge{
			{ID: "e0", Source: "p1", Target: "b0"},
			{ID: "e1", Source: "p1", Target: "b1"},
			{ID: "e2", Source: "p1", Target: "b2"},
		},
	}
	return g, g.Edges
}

func TestCoordinator_RunsAllBranchesAndPreservesOrder(t *testing.T) {
	g, heads := threeBranchGraph()
	runner := &fakeRunner{}
	c := New(runner)

	outcome := c.Run(context.Background(), "p1", heads, g, workflow.NewContext())
	want := []any{"b0-output", "b1-output", "b2-output"}
	for i, w := range want {
		if outcome.Results[i] != w {
			t.Fatalf("results[%d] = %v, want %v", i, outcome.Results[i], w)
		}
	}
	if len(outcome.Errors) != 0 {
		t.Fatalf("errors = %v, want none", outcome.Errors)
	}
}

func TestCoordinator_FailedBranchContributesNilAndLogsError(t *testing.T) {
	g, heads := threeBranchGraph()
	runner := &fakeRunner{fail: map[string]bool{"b1": true}}
	c := New(runner)

	outcome := c.Run(context.Background(), "p1", heads, g, workflow.NewContext())
	if outcome.Results[1] != nil {
		t.Fatalf("results[1] = %v, want nil for failed branch", outcome.Results[1])
	}
	if outcome.Results[0] != "b0-output" || outcome.Results[2] != "b2-output" {
		t.Fatalf("sibling branches should still succeed: %+v", outcome.Results)
	}
	if len(outcome.Errors) != 1 {
		t.Fatalf("errors = %v, want 1 entry", outcome.Errors)
	}
}

func TestCoordinator_DeepCopiesStatePerBranch(t *testing.T) {
	g, heads := threeBranchGraph()
	var mu sync.Mutex
	seenStates := map[string]map[string]any{}
	runner := branchRunnerFunc(func(ctx context.Context, startNode workflow.Node, g workflow.Graph, wctx workflow.Context) BranchResult {
		mu.Lock()
		seenStates[startNode.ID] = wctx.State
		mu.Unlock()
		wctx.State["mutated"] = startNode.ID
		return BranchResult{Output: startNode.ID}
	})
	c := New(runner)

	seed := workflow.NewContext()
	seed.State["shared"] = "original"

	c.Run(context.Background(), "p1", heads, g, seed)

	if seed.State["mutated"] != nil {
		t.Fatalf("parent state was mutated by a branch: %+v", seed.State)
	}
	for id, s := range seenStates {
		if s["shared"] != "original" {
			t.Fatalf("branch %s did not see shared seed state: %+v", id, s)
		}
	}
}

func TestFindJoinNode_LocatesJoinDownstreamOfBranchHeads(t *testing.T) {
	g := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "p1", Type: "parallel"},
			{ID: "b0", Type: "claude_agent"},
			{ID: "join1", Type: "join"},
		},
		Edges: []workflow.Edge{
			{ID: "e0", Source: "p1", Target: "b0"},
			{ID: "e1", Source: "b0", Target: "join1"},
		},
	}

	node, ok := FindJoinNode([]workflow.Edge{g.Edges[0]}, g)
	if !ok || node.ID != "join1" {
		t.Fatalf("join node = %+v, ok = %v, want join1", node, ok)
	}
}

func TestFindJoinNode_NoneFound(t *testing.T) {
	g := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "p1", Type: "parallel"},
			{ID: "b0", Type: "output"},
		},
		Edges: []workflow.Edge{{ID: "e0", Source: "p1", Target: "b0"}},
	}

	_, ok := FindJoinNode([]workflow.Edge{g.Edges[0]}, g)
	if ok {
		t.Fatal("expected no join node")
	}
}

type branchRunnerFunc func(ctx context.Context, startNode workflow.Node, g workflow.Graph, wctx workflow.Context) BranchResult

func (f branchRunnerFunc) RunBranch(ctx context.Context, startNode workflow.Node, g workflow.Graph, wctx workflow.Context) BranchResult {
	return f(ctx, startNode, g, wctx)
}
