package driver

import (
	"context"
	"fmt"

	"github.com/dshills/orchestrator/workflow"
)

// SubWalker executes a loop/for_each node's body sub-graph from startNodeID
// up to (but not including) stopNodeID, returning the body's final output
// and the context carrying forward any state mutations. Implemented by the
// kernel package and injected here to avoid a driver -> kernel import
// cycle (spec.md §4.4's loop/for_each sub-walk).
type SubWalker interface {
	RunBody(ctx context.Context, startNodeID, stopNodeID string, wctx workflow.Context) (output any, next workflow.Context, err error)
}

const maxLoopIterations = 10000

// LoopDriver implements counter-based iteration over a node's "body"
// handle, exiting via its "exit" handle. Grounded on original_source's
// LoopDriver.
type LoopDriver struct {
	Walker SubWalker
}

func NewLoopDriver(walker SubWalker) *LoopDriver { return &LoopDriver{Walker: walker} }

func (LoopDriver) Type() string { return "loop" }

func (d *LoopDriver) Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse {
	iterations := int(dataNumber(node, "iterations", 1))
	counterVar := node.DataStringOr("counter_var", "i")
	startFrom := int(dataNumber(node, "start_from", 0))
	passThrough := true
	if v, ok := node.Data["pass_through"].(bool); ok {
		passThrough = v
	}

	if iterations < 0 {
		return workflow.ErrorResponse("iterations must be non-negative")
	}
	if iterations > maxLoopIterations {
		return workflow.ErrorResponse(fmt.Sprintf("iterations cannot exceed %d", maxLoopIterations))
	}

	edges, _ := wctx.Extra("_edges").([]workflow.Edge)
	bodyEdge, hasBody := findHandleEdge(edges, node.ID, "body")
	exitEdge, hasExit := findHandleEdge(edges, node.ID, "exit")
	if !hasBody {
		return workflow.DriverResponse{Status: workflow.StatusOK, Output: wctx.Input, Route: "exit"}
	}

	result := wctx.Input
	var results []any
	iterCtx := wctx

	for i := startFrom; i < startFrom+iterations; i++ {
		iterCtx.Extras = cloneExtras(wctx.Extras)
		if passThrough {
			iterCtx.Input = result
		} else {
			iterCtx.Input = wctx.Input
		}
		iterCtx.Extras[counterVar] = i
		iterCtx.Extras["loop_index"] = i - startFrom
		iterCtx.Extras["loop_counter"] = i
		iterCtx.Extras["loop_total"] = iterations
		iterCtx.Extras["is_first"] = i == startFrom
		iterCtx.Extras["is_last"] = i == startFrom+iterations-1

		stopAt := ""
		if hasExit {
			stopAt = exitEdge.Target
		}

		output, next, err := d.Walker.RunBody(ctx, bodyEdge.Target, stopAt, iterCtx)
		if err != nil {
			return workflow.DriverResponse{
				Status: workflow.StatusError,
				Error:  fmt.Sprintf("loop iteration %d failed: %v", i, err),
				Extras: map[string]any{"iteration": i},
			}
		}
		iterCtx = next
		if passThrough {
			result = output
		} else {
			results = append(results, output)
		}
	}

	output := result
	if !passThrough {
		output = results
	}

	return workflow.DriverResponse{
		Status: workflow.StatusOK,
		Output: output,
		Route:  "exit",
		State:  iterCtx.State,
		Extras: map[string]any{"iterations": iterations},
	}
}

func dataNumber(node workflow.Node, key string, fallback float64) float64 {
	if node.Data == nil {
		return fallback
	}
	switch v := node.Data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

func findHandleEdge(edges []workflow.Edge, sourceID, handle string) (workflow.Edge, bool) {
	for _, e := range edges {
		if e.Source == sourceID && e.SourceHandle == handle {
			return e, true
		}
	}
	return workflow.Edge{}, false
}

func cloneExtras(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+5)
	for k, v := range m {
		out[k] = v
	}
	return out
}
