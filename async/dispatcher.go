// Package async implements the Async Dispatcher (spec.md §4.8): the
// POST /execute-workflow-async entry point validates the submitted graph,
// cheaply confirms a worker is reachable, allocates an execution id, and
// enqueues the run rather than walking it inline.
package async

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/orchestrator/graph/emit"
	"github.com/dshills/orchestrator/kernelerr"
	"github.com/dshills/orchestrator/workflow"
)

// pingTimeout bounds how long Dispatch waits to hear back from a worker
// before concluding none are available, per spec.md §4.8's "~1s timeout".
const pingTimeout = time.Second

// WorkerPinger reports whether at least one worker is currently able to
// pick up enqueued jobs.
type WorkerPinger interface {
	Ping(ctx context.Context) bool
}

// Job is one enqueued workflow run: everything a worker needs to hand
// straight to kernel.Kernel.Run without re-deriving anything from the
// original HTTP request.
type Job struct {
	ExecutionID string
	Graph       workflow.Graph
	Seed        workflow.Context
	StartNodeID string
}

// Queue accepts jobs for asynchronous execution. Implemented by whatever
// backing transport a deployment chooses (an in-process channel, a Redis
// list, a task queue); this package only defines the contract.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// HistoryRecorder optionally persists that an execution started, for
// deployments that keep a durable execution-history log (nil is valid —
// history recording is not required by spec.md §4.8).
type HistoryRecorder interface {
	RecordStart(ctx context.Context, executionID string, g workflow.Graph) error
}

// QueueDepthGauge reports how many successfully enqueued jobs have not yet
// been reported finished through Completed (queued or still running).
// graph.PrometheusMetrics.UpdateQueueDepth satisfies this structurally.
type QueueDepthGauge interface {
	UpdateQueueDepth(count int)
}

type noOpQueueGauge struct{}

func (noOpQueueGauge) UpdateQueueDepth(int) {}

// Dispatcher validates, pings, allocates, and enqueues workflow runs.
type Dispatcher struct {
	Pinger  WorkerPinger
	Queue   Queue
	History HistoryRecorder

	// Emitter and Depth are the ambient observability hooks: every accepted
	// or rejected dispatch emits an event, and Depth tracks the queue's
	// occupancy as jobs are enqueued. Both default to no-ops.
	Emitter emit.Emitter
	Depth   QueueDepthGauge

	depth atomic.Int32
}

// New wires a Dispatcher with no history recording. Set History directly
// on the returned value to opt in.
func New(pinger WorkerPinger, queue Queue) *Dispatcher {
	return &Dispatcher{Pinger: pinger, Queue: queue, Emitter: emit.NewNullEmitter(), Depth: noOpQueueGauge{}}
}

// Accepted is the 202 response body: {executionId, status: "started"}.
type Accepted struct {
	ExecutionID string
	Status      string
}

// Dispatch validates g is non-empty, confirms a worker is reachable,
// allocates a UUID execution id, optionally records execution history,
// and enqueues the job. A validation failure should surface as HTTP 400
// (kernelerr.IsValidation), a ping failure as 503
// (kernelerr.IsInfrastructure).
func (d *Dispatcher) Dispatch(ctx context.Context, g workflow.Graph, seed workflow.Context, startNodeID string) (Accepted, error) {
	if len(g.Nodes) == 0 {
		return Accepted{}, kernelerr.Validation("EMPTY_GRAPH", "nodes are required")
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if !d.Pinger.Ping(pingCtx) {
		d.Emitter.Emit(emit.Event{Msg: "dispatch_rejected", Meta: map[string]any{"reason": "no worker reachable"}})
		return Accepted{}, kernelerr.Infrastructure("WORKER_UNAVAILABLE", "no worker reachable within the ping timeout")
	}

	executionID := uuid.NewString()

	if d.History != nil {
		if err := d.History.RecordStart(ctx, executionID, g); err != nil {
			return Accepted{}, kernelerr.Internal("failed to record execution history", err)
		}
	}

	job := Job{ExecutionID: executionID, Graph: g, Seed: seed, StartNodeID: startNodeID}
	if err := d.Queue.Enqueue(ctx, job); err != nil {
		d.Emitter.Emit(emit.Event{RunID: executionID, Msg: "dispatch_enqueue_failed", Meta: map[string]any{"error": err.Error()}})
		return Accepted{}, kernelerr.Infrastructure("ENQUEUE_FAILED", err.Error())
	}

	d.Depth.UpdateQueueDepth(int(d.depth.Add(1)))
	d.Emitter.Emit(emit.Event{RunID: executionID, Msg: "dispatch_accepted"})

	return Accepted{ExecutionID: executionID, Status: "started"}, nil
}

// Completed decrements the tracked queue depth once a worker has picked up
// and finished (or failed) a job. A Queue implementation that knows when a
// job leaves the queue (e.g. InProcessQueue) should call this so Depth
// reflects backlog rather than lifetime-enqueued count.
func (d *Dispatcher) Completed() {
	d.Depth.UpdateQueueDepth(int(d.depth.Add(-1)))
}
