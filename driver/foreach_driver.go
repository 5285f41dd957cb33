package driver

import (
	"context"
	"fmt"

	"github.com/dshills/orchestrator/workflow"
)

// ForEachDriver iterates a list input, binding item_var (and loop_index/
// loop_total/is_first/is_last) per element, over the node's "body" handle,
// exiting via "exit". Distinct from LoopDriver's counter-based iteration:
// ForEachDriver's count comes from the input list, not a fixed iterations
// config. Grounded on original_source's ForEachDriver.
type ForEachDriver struct {
	Walker SubWalker
}

func NewForEachDriver(walker SubWalker) *ForEachDriver { return &ForEachDriver{Walker: walker} }

func (ForEachDriver) Type() string { return "for_each" }

func (d *ForEachDriver) Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse {
	items, ok := wctx.Input.([]any)
	if !ok {
		return workflow.ErrorResponse(fmt.Sprintf("for_each requires an array/list input, got %T", wctx.Input))
	}

	itemVar := node.DataStringOr("item_var", "item")
	collectResults := true
	if v, ok := node.Data["collect_results"].(bool); ok {
		collectResults = v
	}
	maxIterations := int(dataNumber(node, "max_iterations", 1000))

	edges, _ := wctx.Extra("_edges").([]workflow.Edge)
	bodyEdge, hasBody := findHandleEdge(edges, node.ID, "body")
	exitEdge, hasExit := findHandleEdge(edges, node.ID, "exit")
	if !hasBody {
		return workflow.DriverResponse{Status: workflow.StatusOK, Output: items, Route: "exit"}
	}

	if len(items) > maxIterations {
		items = items[:maxIterations]
	}

	var results []any
	iterCtx := wctx
	for i, item := range items {
		iterCtx.Extras = cloneExtras(wctx.Extras)
		iterCtx.Input = item
		iterCtx.Extras[itemVar] = item
		iterCtx.Extras["loop_index"] = i
		iterCtx.Extras["loop_total"] = len(items)
		iterCtx.Extras["is_first"] = i == 0
		iterCtx.Extras["is_last"] = i == len(items)-1

		stopAt := ""
		if hasExit {
			stopAt = exitEdge.Target
		}

		output, next, err := d.Walker.RunBody(ctx, bodyEdge.Target, stopAt, iterCtx)
		if err != nil {
			return workflow.DriverResponse{
				Status: workflow.StatusError,
				Error:  fmt.Sprintf("for_each iteration %d failed: %v", i, err),
				Extras: map[string]any{"iteration": i, "partial_results": results},
			}
		}
		iterCtx = next
		if collectResults {
			results = append(results, output)
		}
	}

	output := any(results)
	if !collectResults {
		output = items
	}

	return workflow.DriverResponse{
		Status: workflow.StatusOK,
		Output: output,
		Route:  "exit",
		State:  iterCtx.State,
		Extras: map[string]any{"iterations": len(results)},
	}
}
