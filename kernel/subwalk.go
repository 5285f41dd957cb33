package kernel

import (
	"context"
	"fmt"

	"github.com/dshills/orchestrator/workflow"
)

// maxBodySteps bounds a single loop/for_each body sub-walk, independent of
// the outer walk's step budget. Grounded on
// original_source/api/drivers/loop.py's _execute_body, which uses a fixed
// 100-step internal budget per invocation.
const maxBodySteps = 100

// RunBody implements driver.SubWalker for LoopDriver/ForEachDriver: walks
// the body sub-graph from startNodeID using the simplest possible
// traversal (first outgoing edge, no Router preference logic, no Context
// Builder invocation even for agent-type nodes), stopping at stopNodeID
// (checked before executing), or at a node of type "output" or
// "loop_end". This mirrors loop.py's _execute_body exactly rather than
// reusing the main walk's richer step logic: the original implementation
// never applies routing preference or agent-context assembly inside a
// loop body, and this port keeps that simplification rather than
// "improving" on it.
func (k *Kernel) RunBody(ctx context.Context, startNodeID, stopNodeID string, wctx workflow.Context) (any, workflow.Context, error) {
	edges, _ := wctx.Extra("_edges").([]workflow.Edge)
	nodes, _ := wctx.Extra("_nodes").(map[string]workflow.Node)
	if nodes == nil {
		return nil, wctx, fmt.Errorf("subwalk: no node map in context extras")
	}

	currentID := startNodeID
	var output any = wctx.Input

	for step := 0; step < maxBodySteps; step++ {
		if stopNodeID != "" && currentID == stopNodeID {
			return output, wctx, nil
		}

		node, ok := nodes[currentID]
		if !ok {
			return nil, wctx, fmt.Errorf("subwalk: unknown node %q", currentID)
		}

		stepCtx := wctx.ShallowCopy()
		result := k.Registry.Dispatch(ctx, node, stepCtx)
		if !result.OK() {
			return nil, wctx, fmt.Errorf("subwalk: node %s failed: %s", node.ID, result.Error)
		}

		wctx = mergeState(wctx, result)
		if result.HasOutput() {
			output = result.Output
			wctx.Input = result.Output
		}

		if node.Type == "output" || node.Type == "loop_end" {
			return output, wctx, nil
		}

		next, ok := firstOutgoingEdge(edges, currentID)
		if !ok {
			return output, wctx, nil
		}
		currentID = next.Target
	}

	return nil, wctx, fmt.Errorf("subwalk: exceeded %d steps without reaching stop node", maxBodySteps)
}

func firstOutgoingEdge(edges []workflow.Edge, sourceID string) (workflow.Edge, bool) {
	for _, e := range edges {
		if e.Source == sourceID {
			return e, true
		}
	}
	return workflow.Edge{}, false
}
