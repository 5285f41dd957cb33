package driver

import (
	"context"

	"github.com/dshills/orchestrator/workflow"
)

// ParallelDriver marks the node as a fan-out point: it does no work
// itself, leaving branch execution to the Parallel Coordinator, which
// reacts to DriverResponse.Parallel. Grounded on original_source's
// ParallelDriver.
type ParallelDriver struct{}

func (ParallelDriver) Type() string { return "parallel" }

func (ParallelDriver) Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse {
	return workflow.DriverResponse{Status: workflow.StatusOK, Parallel: true, Output: wctx.Input}
}
