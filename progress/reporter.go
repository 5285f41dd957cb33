package progress

import (
	"context"
	"encoding/json"

	"github.com/dshills/orchestrator/kernel"
	"github.com/dshills/orchestrator/workflow"
)

// PollingReporter implements kernel.ProgressReporter structurally (no
// import of kernel back from here — kernel only needs something
// satisfying its interface shape, not this concrete type). A single
// owner goroutine holds every execution's in-memory record and processes
// hook calls off a command channel one at a time, so no lock is needed:
// state mutation and the resulting Cache write both happen on that one
// goroutine, in the order hooks were called. Every hook blocks its caller
// until the actor has applied and flushed it, so a status check issued
// right after any hook call always observes that hook's write — in
// particular OnExecutionComplete/OnExecutionError are never reordered
// behind an in-flight OnNodeStart/OnBranchStatus from another goroutine.
type PollingReporter struct {
	Cache Cache

	cmds chan func(ctx context.Context, records map[string]*workflow.ExecutionState)
}

// NewPollingReporter starts the owner goroutine and wires it over cache.
func NewPollingReporter(cache Cache) *PollingReporter {
	r := &PollingReporter{
		Cache: cache,
		cmds:  make(chan func(context.Context, map[string]*workflow.ExecutionState), 256),
	}
	go r.run()
	return r
}

func (r *PollingReporter) run() {
	records := make(map[string]*workflow.ExecutionState)
	for cmd := range r.cmds {
		cmd(context.Background(), records)
	}
}

func recordFor(records map[string]*workflow.ExecutionState, executionID string) *workflow.ExecutionState {
	if s, ok := records[executionID]; ok {
		return s
	}
	s := &workflow.ExecutionState{Status: workflow.ExecRunning}
	records[executionID] = s
	return s
}

func (r *PollingReporter) flush(ctx context.Context, executionID string, state workflow.ExecutionState) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	_ = r.Cache.Set(ctx, CacheKey(executionID), data, TTL)
}

// post enqueues a command and blocks until the owner goroutine has run
// it, so callers observe their own write before it returns.
func (r *PollingReporter) post(cmd func(ctx context.Context, records map[string]*workflow.ExecutionState)) {
	done := make(chan struct{})
	r.cmds <- func(ctx context.Context, records map[string]*workflow.ExecutionState) {
		cmd(ctx, records)
		close(done)
	}
	<-done
}

// OnNodeStart records the node currently executing.
func (r *PollingReporter) OnNodeStart(ctx context.Context, executionID string, nodeID string, step int) {
	if executionID == "" {
		return
	}
	r.post(func(ctx context.Context, records map[string]*workflow.ExecutionState) {
		s := recordFor(records, executionID)
		s.CurrentNodeID = nodeID
		s.Steps = step
		s.Timestamp = workflow.Now()
		r.flush(ctx, executionID, s.Clone())
	})
}

// OnNodeComplete replaces the execution's running snapshot with state,
// preserving whatever ParallelStatus entries branch workers have already
// reported.
func (r *PollingReporter) OnNodeComplete(ctx context.Context, executionID string, state workflow.ExecutionState) {
	if executionID == "" {
		return
	}
	r.post(func(ctx context.Context, records map[string]*workflow.ExecutionState) {
		existing := recordFor(records, executionID)
		state.ParallelStatus = existing.ParallelStatus
		*existing = state
		r.flush(ctx, executionID, existing.Clone())
	})
}

// OnBranchStatus merges one branch's status transition into the owning
// execution's ParallelStatus map. The execution id isn't part of this
// hook's signature (branchID only encodes the parallel node and branch
// index, e.g. "p1_branch_0"), so it is recovered from ctx, which
// kernel.Run stashes there (kernel.WithExecutionID) before delegating to
// the Parallel Coordinator — see kernel.ExecutionIDFromContext.
func (r *PollingReporter) OnBranchStatus(ctx context.Context, branchID, status string, err error) {
	executionID := kernel.ExecutionIDFromContext(ctx)
	if executionID == "" {
		return
	}
	r.post(func(ctx context.Context, records map[string]*workflow.ExecutionState) {
		s := recordFor(records, executionID)
		if s.ParallelStatus == nil {
			s.ParallelStatus = make(map[string]string)
		}
		s.ParallelStatus[branchID] = status
		r.flush(ctx, executionID, s.Clone())
	})
}

// OnExecutionComplete writes the final completed record, blocking the
// caller until it is flushed.
func (r *PollingReporter) OnExecutionComplete(ctx context.Context, executionID string, state workflow.ExecutionState) {
	if executionID == "" {
		return
	}
	r.post(func(ctx context.Context, records map[string]*workflow.ExecutionState) {
		existing := recordFor(records, executionID)
		*existing = state
		existing.Status = workflow.ExecCompleted
		r.flush(ctx, executionID, existing.Clone())
	})
}

// OnExecutionError writes the final error record, blocking the caller
// until it is flushed.
func (r *PollingReporter) OnExecutionError(ctx context.Context, executionID string, state workflow.ExecutionState) {
	if executionID == "" {
		return
	}
	r.post(func(ctx context.Context, records map[string]*workflow.ExecutionState) {
		existing := recordFor(records, executionID)
		*existing = state
		existing.Status = workflow.ExecError
		r.flush(ctx, executionID, existing.Clone())
	})
}

// Read fetches and decodes an execution's current record from Cache, for
// the /execution/<id>/status HTTP handler.
func Read(ctx context.Context, cache Cache, executionID string) (workflow.ExecutionState, bool, error) {
	data, ok, err := cache.Get(ctx, CacheKey(executionID))
	if err != nil || !ok {
		return workflow.ExecutionState{}, ok, err
	}
	var state workflow.ExecutionState
	if err := json.Unmarshal(data, &state); err != nil {
		return workflow.ExecutionState{}, false, err
	}
	return state, true, nil
}
