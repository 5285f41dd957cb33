package driver

import (
	"context"

	"github.com/dshills/orchestrator/workflow"
)

// InputDriver passes the context's current input through as its output,
// marking the start of a walk. Grounded on original_source's InputDriver.
type InputDriver struct{}

func (InputDriver) Type() string { return "input" }

func (InputDriver) Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse {
	return workflow.DriverResponse{Status: workflow.StatusOK, Output: wctx.Input}
}

// OutputDriver treats the context's current input as the walk's final
// value. Grounded on original_source's OutputDriver.
type OutputDriver struct{}

func (OutputDriver) Type() string { return "output" }

func (OutputDriver) Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse {
	return workflow.DriverResponse{Status: workflow.StatusOK, Final: wctx.Input}
}

// RouterDriver routes on the boolean Context.Condition flag as it arrives
// in the context ("yes" when true, else "no"); neither the router package
// nor the kernel sets that flag. Grounded on original_source's RouterDriver.
type RouterDriver struct{}

func (RouterDriver) Type() string { return "router" }

func (RouterDriver) Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse {
	route := "no"
	if wctx.Condition {
		route = "yes"
	}
	return workflow.DriverResponse{Status: workflow.StatusOK, Route: route}
}
