// Package parallel implements the Parallel Coordinator (spec.md §4.6): fans
// a "parallel" node's surviving branch-head edges out to independent
// workers, each running a reduced kernel walk that stops at a join node, an
// output node, or a dead end, then joins on all of them with a bounded
// timeout.
//
// Grounded on original_source/api/drivers/parallel.py (the marker-only
// driver; real fan-out lives in the orchestrator) and api/tasks.py's
// execute_branch_task (branch status transitions queued -> running ->
// ok|error, deep-copied branch context, per-branch error isolation).
package parallel

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dshills/orchestrator/graph/emit"
	"github.com/dshills/orchestrator/workflow"
)

// BranchStatus values, mirrored from workflow.Branch* constants to keep this
// package's public surface self-contained for callers that only need status
// transition names.
const (
	StatusQueued  = workflow.BranchQueued
	StatusRunning = workflow.BranchRunning
	StatusOK      = workflow.BranchOK
	StatusError   = workflow.BranchError
)

// joinTimeout bounds how long the coordinator waits for all branches to
// finish, per spec.md §4.6's "~5 minutes" bound.
const joinTimeout = 5 * time.Minute

// BranchRunner executes one branch of a parallel fan-out: starting at
// startNode, following the same step rules as the main walk, but stopping
// at a join node (without executing it), an output node (after executing
// it), or when no next node exists. Implemented by the kernel package and
// injected here to avoid a parallel -> kernel import cycle, mirroring
// driver.SubWalker's dependency-inversion pattern.
type BranchRunner interface {
	RunBranch(ctx context.Context, startNode workflow.Node, g workflow.Graph, wctx workflow.Context) BranchResult
}

// BranchResult is one branch's outcome: its final output, the trace entries
// it produced, and an error if the branch failed.
type BranchResult struct {
	BranchID string
	Output   any
	Trace    []workflow.TraceEntry
	Err      error
}

// StatusReporter receives branch status transitions as they happen, for the
// Progress Reporter to surface via its cache record. A nil StatusReporter is
// valid; Coordinator treats it as a no-op.
type StatusReporter interface {
	OnBranchStatus(ctx context.Context, branchID, status string, err error)
}

// InflightGauge reports how many branch goroutines are currently executing.
// graph.PrometheusMetrics.UpdateInflightNodes satisfies this structurally.
type InflightGauge interface {
	UpdateInflightNodes(count int)
}

type noOpGauge struct{}

func (noOpGauge) UpdateInflightNodes(int) {}

// Coordinator runs a parallel node's branches concurrently and joins them.
type Coordinator struct {
	Runner   BranchRunner
	Reporter StatusReporter
	Emitter  emit.Emitter
	Inflight InflightGauge
}

func New(runner BranchRunner) *Coordinator {
	return &Coordinator{Runner: runner, Emitter: emit.NewNullEmitter(), Inflight: noOpGauge{}}
}

// Outcome is the coordinator's result for one parallel node: branch outputs
// in branch order (a failed branch contributes nil), the combined trace
// entries from every branch, and any branch errors (for logging — a branch
// error does not abort the sibling branches or the outer walk; spec.md
// §4.6 says failed branches contribute null and an error log entry).
type Outcome struct {
	Results []any
	Trace   []workflow.TraceEntry
	Errors  []error
}

type branchResult struct {
	index int
	BranchResult
}

// Run dispatches one goroutine per branch-head edge, deep-copying State into
// each branch's Context per spec.md §3 invariant 3, and joins with a bounded
// timeout. branchHeads is the parallel node's filtered outgoing edges
// (router.Select's filtering already applied by the caller); parallelID
// names the branch ids. Results are collected through a single channel read
// by this method alone, so no branch result is ever written by more than one
// goroutine (the teacher's own executeParallel uses the same channel-collect
// shape for the identical reason).
func (c *Coordinator) Run(ctx context.Context, parallelID string, branchHeads []workflow.Edge, g workflow.Graph, wctx workflow.Context) Outcome {
	nodeByID := g.NodeByID()
	n := len(branchHeads)

	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	// executionID isn't readable here without importing kernel (which would
	// cycle back to this package), so branch events carry only the branch id;
	// StatusReporter.OnBranchStatus is what correlates branches back to an
	// execution, via kernel.ExecutionIDFromContext on ctx.
	var active atomic.Int32

	resultsCh := make(chan branchResult, n)
	for i, edge := range branchHeads {
		i, edge := i, edge
		branchID := fmt.Sprintf("%s_branch_%d", parallelID, i)
		c.report(ctx, branchID, StatusQueued, nil)

		go func() {
			c.Inflight.UpdateInflightNodes(int(active.Add(1)))
			defer func() { c.Inflight.UpdateInflightNodes(int(active.Add(-1))) }()

			c.report(ctx, branchID, StatusRunning, nil)
			c.Emitter.Emit(emit.Event{NodeID: branchID, Msg: "branch_start"})

			startNode, ok := nodeByID[edge.Target]
			if !ok {
				err := fmt.Errorf("branch %s: target node %s not found", branchID, edge.Target)
				c.report(ctx, branchID, StatusError, err)
				resultsCh <- branchResult{index: i, BranchResult: BranchResult{BranchID: branchID, Err: err}}
				return
			}

			branchCtx := wctx.DeepCopyState()
			result := c.Runner.RunBranch(ctx, startNode, g, branchCtx)
			result.BranchID = branchID

			if result.Err != nil {
				c.report(ctx, branchID, StatusError, result.Err)
				c.Emitter.Emit(emit.Event{NodeID: branchID, Msg: "branch_error", Meta: map[string]any{"error": result.Err.Error()}})
			} else {
				c.report(ctx, branchID, StatusOK, nil)
				c.Emitter.Emit(emit.Event{NodeID: branchID, Msg: "branch_complete"})
			}
			resultsCh <- branchResult{index: i, BranchResult: result}
		}()
	}

	results := make([]any, n)
	traces := make([][]workflow.TraceEntry, n)
	errs := make([]error, n)
	received := make([]bool, n)

collect:
	for done := 0; done < n; done++ {
		select {
		case r := <-resultsCh:
			results[r.index] = r.Output
			traces[r.index] = r.Trace
			errs[r.index] = r.Err
			received[r.index] = true
		case <-ctx.Done():
			break collect
		}
	}

	for i := range branchHeads {
		if !received[i] {
			errs[i] = fmt.Errorf("branch %s_branch_%d: join timed out", parallelID, i)
		}
	}

	var combinedTrace []workflow.TraceEntry
	var combinedErrs []error
	for i := range branchHeads {
		combinedTrace = append(combinedTrace, traces[i]...)
		if errs[i] != nil {
			combinedErrs = append(combinedErrs, errs[i])
		}
	}

	return Outcome{Results: results, Trace: combinedTrace, Errors: combinedErrs}
}

func (c *Coordinator) report(ctx context.Context, branchID, status string, err error) {
	if c.Reporter != nil {
		c.Reporter.OnBranchStatus(ctx, branchID, status, err)
	}
}

// FindJoinNode locates the join node downstream of a parallel node's branch
// heads: for each branch-head edge's target, scan its outgoing edges for the
// first node of type "join", per spec.md §4.4 step 5's "find the join node
// by looking at branch-head targets, then their outgoing edges".
func FindJoinNode(branchHeads []workflow.Edge, g workflow.Graph) (workflow.Node, bool) {
	nodeByID := g.NodeByID()
	outgoing := g.Outgoing()

	for _, head := range branchHeads {
		for _, e := range outgoing[head.Target] {
			if target, ok := nodeByID[e.Target]; ok && target.Type == "join" {
				return target, true
			}
		}
	}
	return workflow.Node{}, false
}
