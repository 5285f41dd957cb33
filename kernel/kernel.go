// Package kernel implements the Executor Kernel (spec.md §4.4): the main
// step loop that walks a workflow graph node by node, dispatching through
// the Driver Registry, assembling agent context via the Context Builder,
// selecting the next edge via the Router, and delegating to the Parallel
// Coordinator when a node fans out.
//
// Grounded on original_source/api/orchestration/workflow_executor.py's
// WorkflowExecutor.execute, with the generic step-budget/hook shape styled
// on the teacher's graph.Engine.Run.
package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/orchestrator/ctxbuild"
	"github.com/dshills/orchestrator/driver"
	"github.com/dshills/orchestrator/graph/emit"
	"github.com/dshills/orchestrator/kernelerr"
	"github.com/dshills/orchestrator/parallel"
	"github.com/dshills/orchestrator/router"
	"github.com/dshills/orchestrator/workflow"
)

// Metrics receives per-step timing the kernel observes. graph.PrometheusMetrics
// satisfies this structurally (no import here, same dependency-inversion
// shape as ProgressReporter below) — construct one and assign it to
// Kernel.Metrics to expose langgraph_step_latency_ms for the orchestration
// kernel's own node dispatches.
type Metrics interface {
	RecordStepLatency(runID, nodeID string, latency time.Duration, status string)
}

type noOpMetrics struct{}

func (noOpMetrics) RecordStepLatency(string, string, time.Duration, string) {}

// agentNodeTypes names the node types the Context Builder augments.
var agentNodeTypes = map[string]bool{
	"claude_agent": true,
	"openai_agent": true,
	"google_agent": true,
}

// ProgressReporter receives step-level hooks as the kernel walks a graph.
// The base kernel uses NoOpReporter; a polling variant (progress package)
// writes these into a shared cache record. Defined here, implemented
// structurally by the progress package with no import back into kernel.
type ProgressReporter interface {
	OnNodeStart(ctx context.Context, executionID string, nodeID string, step int)
	OnNodeComplete(ctx context.Context, executionID string, state workflow.ExecutionState)
	OnBranchStatus(ctx context.Context, branchID, status string, err error)
	OnExecutionComplete(ctx context.Context, executionID string, state workflow.ExecutionState)
	OnExecutionError(ctx context.Context, executionID string, state workflow.ExecutionState)
}

// NoOpReporter is the base kernel's reporter: every hook is a no-op, per
// spec.md §4.7 ("Hook methods are no-ops in the base kernel").
type NoOpReporter struct{}

func (NoOpReporter) OnNodeStart(context.Context, string, string, int)               {}
func (NoOpReporter) OnNodeComplete(context.Context, string, workflow.ExecutionState) {}
func (NoOpReporter) OnBranchStatus(context.Context, string, string, error)           {}
func (NoOpReporter) OnExecutionComplete(context.Context, string, workflow.ExecutionState) {
}
func (NoOpReporter) OnExecutionError(context.Context, string, workflow.ExecutionState) {}

// Kernel walks workflow graphs. Parallel is wired up after construction
// (New) because the Coordinator itself needs a BranchRunner the Kernel
// satisfies, mirroring driver.SubWalker's dependency-inversion pattern.
type Kernel struct {
	Registry *driver.Registry
	Builder  *ctxbuild.Builder
	Parallel *parallel.Coordinator
	Reporter ProgressReporter

	// Emitter and Metrics are the ambient observability hooks (spec.md §9's
	// "never log.Printf directly in request-path code"): every dispatch
	// emits a node_start/node_complete/node_error event and records step
	// latency. Both default to no-ops so New's zero-config callers are
	// unaffected.
	Emitter emit.Emitter
	Metrics Metrics
}

// New wires a Kernel with its own Parallel Coordinator (the Kernel acts as
// its own parallel.BranchRunner and driver.SubWalker).
func New(registry *driver.Registry, builder *ctxbuild.Builder) *Kernel {
	k := &Kernel{
		Registry: registry, Builder: builder, Reporter: NoOpReporter{},
		Emitter: emit.NewNullEmitter(), Metrics: noOpMetrics{},
	}
	coordinator := parallel.New(k)
	coordinator.Reporter = branchReporterAdapter{k}
	k.Parallel = coordinator
	return k
}

// UseObservability swaps the Kernel's and its Parallel Coordinator's
// no-op Emitter/Metrics for real ones (e.g. emit.NewLogEmitter and a
// graph.PrometheusMetrics), so a composition root can opt into logging and
// metrics without reaching into the Coordinator directly.
func (k *Kernel) UseObservability(emitter emit.Emitter, metrics Metrics, inflight parallel.InflightGauge) {
	k.Emitter = emitter
	k.Metrics = metrics
	k.Parallel.Emitter = emitter
	k.Parallel.Inflight = inflight
}

type branchReporterAdapter struct{ k *Kernel }

func (a branchReporterAdapter) OnBranchStatus(ctx context.Context, branchID, status string, err error) {
	a.k.Reporter.OnBranchStatus(ctx, branchID, status, err)
}

// Result is the outcome of a full workflow walk.
type Result struct {
	Status         string
	Final          any
	Trace          []workflow.TraceEntry
	Steps          int
	StartNodeID    string
	CompletedNodes []string
	ErrorNodes     []string
	Error          string
}

type executionIDKey struct{}

// WithExecutionID returns a copy of ctx carrying executionID, the form Run
// stashes it in before delegating to the Parallel Coordinator. Exported so
// callers driving RunBranch/a ProgressReporter directly (outside a full
// Run call, e.g. in tests) can reproduce the same context shape.
func WithExecutionID(ctx context.Context, executionID string) context.Context {
	return context.WithValue(ctx, executionIDKey{}, executionID)
}

// ExecutionIDFromContext recovers the execution id Run stashed in ctx, so
// a ProgressReporter's OnBranchStatus hook (which carries a branch id, not
// an execution id, per parallel.StatusReporter's signature) can still
// attribute a branch's status update to the right execution record.
func ExecutionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(executionIDKey{}).(string)
	return id
}

// Run walks g starting from startNodeID (resolved per spec.md §4.4's
// priority order when empty), seeded with seed, reporting progress under
// executionID (the empty string is fine when no caller is polling).
func (k *Kernel) Run(ctx context.Context, executionID string, g workflow.Graph, seed workflow.Context, startNodeID string) (Result, error) {
	if err := g.Validate(); err != nil {
		return Result{}, kernelerr.Validation("INVALID_GRAPH", err.Error())
	}
	ctx = WithExecutionID(ctx, executionID)

	start, ok := resolveStartNode(g, startNodeID)
	if !ok {
		return Result{Status: workflow.StatusOK}, nil
	}
	seed = seedInputFromStartNode(start, seed)

	maxSteps := len(g.Nodes) + len(g.Edges) + 10
	nodeByID := g.NodeByID()

	current := &start
	wctx := seed
	steps := 0
	var trace []workflow.TraceEntry
	var completed []string
	var errorNodes []string
	var final any

	for current != nil && steps < maxSteps {
		steps++
		k.Reporter.OnNodeStart(ctx, executionID, current.ID, steps)
		k.Emitter.Emit(emit.Event{RunID: executionID, Step: steps, NodeID: current.ID, Msg: "node_start"})
		stepStart := time.Now()

		stepCtx := k.buildStepContext(ctx, *current, g, wctx)
		result := k.Registry.Dispatch(ctx, *current, stepCtx)
		if coe, _ := current.Data["continue_on_error"].(bool); coe && !result.OK() {
			// Opted-in node: the failure becomes a soft error passing its input through.
			result = workflow.DriverResponse{Status: workflow.StatusOK, Output: stepCtx.Input, HadError: true, Error: result.Error}
		}

		if !result.OK() {
			k.Metrics.RecordStepLatency(executionID, current.ID, time.Since(stepStart), "error")
			k.Emitter.Emit(emit.Event{RunID: executionID, Step: steps, NodeID: current.ID, Msg: "node_error", Meta: map[string]any{"error": result.Error}})
			state := buildState(workflow.ExecRunning, current.ID, completed, errorNodes, trace, steps, final, result.Error, start.ID)
			state.Status = workflow.ExecError
			k.Reporter.OnExecutionError(ctx, executionID, state)
			return Result{
				Status: workflow.StatusError, Error: result.Error, Trace: trace,
				Steps: steps, StartNodeID: start.ID, CompletedNodes: completed, ErrorNodes: errorNodes,
			}, nil
		}

		if result.HadError {
			errorNodes = append(errorNodes, current.ID)
		}

		var entry workflow.TraceEntry
		var next *workflow.Node

		if result.Parallel {
			entry, next, wctx = k.runParallelStep(ctx, *current, g, wctx, result)
			if next == nil {
				trace = append(trace, entry)
				break
			}
		} else {
			wctx = mergeState(wctx, result)
			if result.HasOutput() {
				final = result.Output
			}
			if result.HasFinal() {
				final = result.Final
			}

			edge, hasEdge := router.Select(*current, result, g)
			entry = workflow.TraceEntry{
				NodeID: current.ID, Type: current.Type, Result: result,
				ContextInput: stepCtx.Input,
			}
			if hasEdge {
				entry.EdgeID = edge.ID
				entry.NextNodeID = edge.Target
				if n, ok := nodeByID[edge.Target]; ok {
					next = &n
				}
			}
			if agentNodeTypes[current.Type] {
				entry.UsedMemory = memorySpecIDs(stepCtx)
				entry.UsedTools = toolSpecIDs(stepCtx)
			}
		}

		trace = append(trace, entry)
		k.Reporter.OnNodeComplete(ctx, executionID, buildState(workflow.ExecRunning, "", completed, errorNodes, trace, steps, final, "", start.ID))
		k.Metrics.RecordStepLatency(executionID, current.ID, time.Since(stepStart), "success")
		k.Emitter.Emit(emit.Event{RunID: executionID, Step: steps, NodeID: current.ID, Msg: "node_complete"})

		if current.Type == "output" {
			completed = append(completed, current.ID)
			break
		}
		completed = append(completed, current.ID)
		current = next
	}

	state := buildState(workflow.ExecCompleted, "", completed, errorNodes, trace, steps, final, "", start.ID)
	k.Reporter.OnExecutionComplete(ctx, executionID, state)
	k.Emitter.Emit(emit.Event{RunID: executionID, Step: steps, Msg: "execution_complete"})

	return Result{
		Status: workflow.StatusOK, Final: final, Trace: trace, Steps: steps,
		StartNodeID: start.ID, CompletedNodes: completed, ErrorNodes: errorNodes,
	}, nil
}

// buildStepContext threads the graph's edge/node-by-id map into Extras for
// every node (needed by loop/for_each/consensus drivers) and additionally
// populates Knowledge/AgentTools for agent nodes and the resolved judge
// node for consensus nodes; ctxbuild.Builder.Build already applies all of
// this unconditionally, branching internally on node type.
func (k *Kernel) buildStepContext(ctx context.Context, node workflow.Node, g workflow.Graph, wctx workflow.Context) workflow.Context {
	return k.Builder.Build(ctx, node, g, wctx)
}

func (k *Kernel) runParallelStep(ctx context.Context, node workflow.Node, g workflow.Graph, wctx workflow.Context, result workflow.DriverResponse) (workflow.TraceEntry, *workflow.Node, workflow.Context) {
	var branchHeads []workflow.Edge
	for _, e := range g.Outgoing()[node.ID] {
		if target, ok := g.NodeByID()[e.Target]; ok && target.Type != "memory" && target.Type != "tool" {
			branchHeads = append(branchHeads, e)
		}
	}

	outcome := k.Parallel.Run(ctx, node.ID, branchHeads, g, wctx)
	wctx.ParallelResults = outcome.Results

	entry := workflow.TraceEntry{NodeID: node.ID, Type: node.Type, Result: result}

	joinNode, ok := parallel.FindJoinNode(branchHeads, g)
	if !ok {
		return entry, nil, wctx
	}
	entry.NextNodeID = joinNode.ID
	return entry, &joinNode, wctx
}

// RunBranch implements parallel.BranchRunner: runs the same step rules as
// Run, but stops before executing a join node (left for the outer walk),
// after executing an output node, or when no next node exists.
func (k *Kernel) RunBranch(ctx context.Context, startNode workflow.Node, g workflow.Graph, wctx workflow.Context) parallel.BranchResult {
	maxSteps := len(g.Nodes) + len(g.Edges) + 10
	nodeByID := g.NodeByID()

	current := &startNode
	var trace []workflow.TraceEntry
	steps := 0

	for current != nil && steps < maxSteps {
		if current.Type == "join" {
			break
		}
		steps++

		stepCtx := k.buildStepContext(ctx, *current, g, wctx)
		result := k.Registry.Dispatch(ctx, *current, stepCtx)
		if coe, _ := current.Data["continue_on_error"].(bool); coe && !result.OK() {
			result = workflow.DriverResponse{Status: workflow.StatusOK, Output: stepCtx.Input, HadError: true, Error: result.Error}
		}
		if !result.OK() {
			return parallel.BranchResult{Trace: trace, Err: fmt.Errorf("node %s failed: %s", current.ID, result.Error)}
		}

		wctx = mergeState(wctx, result)
		if result.HasOutput() {
			wctx.Input = result.Output
		}

		edge, hasEdge := router.Select(*current, result, g)
		entry := workflow.TraceEntry{NodeID: current.ID, Type: current.Type, Result: result, ContextInput: stepCtx.Input}
		var next *workflow.Node
		if hasEdge {
			entry.EdgeID = edge.ID
			entry.NextNodeID = edge.Target
			if n, ok := nodeByID[edge.Target]; ok {
				next = &n
			}
		}
		trace = append(trace, entry)

		if current.Type == "output" {
			break
		}
		current = next
	}

	return parallel.BranchResult{Output: wctx.Input, Trace: trace}
}

func resolveStartNode(g workflow.Graph, startNodeID string) (workflow.Node, bool) {
	if startNodeID != "" {
		if n, ok := g.NodeByID()[startNodeID]; ok {
			return n, true
		}
	}
	for _, n := range g.Nodes {
		if n.Type == "input" {
			return n, true
		}
	}
	incoming := g.IncomingCount()
	for _, n := range g.Nodes {
		if incoming[n.ID] == 0 {
			return n, true
		}
	}
	if len(g.Nodes) > 0 {
		return g.Nodes[0], true
	}
	return workflow.Node{}, false
}

func seedInputFromStartNode(start workflow.Node, wctx workflow.Context) workflow.Context {
	if start.Type != "input" {
		return wctx
	}
	empty := wctx.Input == nil
	if s, ok := wctx.Input.(string); ok && s == "" {
		empty = true
	}
	if !empty {
		return wctx
	}
	if v, ok := start.Data["value"]; ok && v != nil {
		wctx.Input = v
	}
	return wctx
}

func mergeState(wctx workflow.Context, result workflow.DriverResponse) workflow.Context {
	if result.State != nil {
		wctx.State = result.State
	}
	return wctx
}

func memorySpecIDs(wctx workflow.Context) []string {
	if len(wctx.AgentMemoryNodes) == 0 {
		return nil
	}
	ids := make([]string, 0, len(wctx.AgentMemoryNodes))
	for _, m := range wctx.AgentMemoryNodes {
		ids = append(ids, m.NodeID)
	}
	return ids
}

func toolSpecIDs(wctx workflow.Context) []string {
	if len(wctx.AgentTools) == 0 {
		return nil
	}
	ids := make([]string, 0, len(wctx.AgentTools))
	for _, t := range wctx.AgentTools {
		ids = append(ids, t.NodeID)
	}
	return ids
}

func buildState(status, currentNodeID string, completed, errorNodes []string, trace []workflow.TraceEntry, steps int, final any, errMsg, startNodeID string) workflow.ExecutionState {
	return workflow.ExecutionState{
		Status:         status,
		CurrentNodeID:  currentNodeID,
		CompletedNodes: completed,
		ErrorNodes:     errorNodes,
		Trace:          trace,
		Steps:          steps,
		Final:          final,
		Error:          errMsg,
		Timestamp:      workflow.Now(),
		StartNodeID:    startNodeID,
	}
}
