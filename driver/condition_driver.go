package driver

import (
	"context"
	"fmt"

	"github.com/dshills/orchestrator/driver/condition"
	"github.com/dshills/orchestrator/workflow"
)

// ConditionDriver evaluates node.Data["expression"] against the context's
// input/state/params via the sandboxed condition grammar, and routes "yes"
// or "no". An empty or unparseable expression routes "no" with the
// evaluation error surfaced on the response rather than aborting the walk,
// matching original_source's ConditionDriver fallback behavior.
type ConditionDriver struct{}

func (ConditionDriver) Type() string { return "condition" }

func (ConditionDriver) Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse {
	expression := node.DataString("expression")
	if expression == "" {
		return workflow.DriverResponse{Status: workflow.StatusOK, Route: "no"}
	}

	tree, err := condition.Parse(expression)
	if err != nil {
		return workflow.DriverResponse{
			Status: workflow.StatusOK,
			Route:  "no",
			Error:  fmt.Sprintf("expression evaluation failed: %v", err),
		}
	}

	result, err := condition.Eval(tree, condition.Env{
		Input:  wctx.Input,
		State:  wctx.State,
		Params: wctx.Params,
	})
	if err != nil {
		return workflow.DriverResponse{
			Status: workflow.StatusOK,
			Route:  "no",
			Error:  fmt.Sprintf("expression evaluation failed: %v", err),
		}
	}

	route := "no"
	if result {
		route = "yes"
	}
	return workflow.DriverResponse{Status: workflow.StatusOK, Route: route}
}
