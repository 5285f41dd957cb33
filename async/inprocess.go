package async

import (
	"context"

	"github.com/dshills/orchestrator/kernel"
	"github.com/dshills/orchestrator/workflow"
)

// Runner executes one enqueued job to completion. *kernel.Kernel satisfies
// this directly.
type Runner interface {
	Run(ctx context.Context, executionID string, g workflow.Graph, seed workflow.Context, startNodeID string) (kernel.Result, error)
}

// InProcessQueue is a bounded, goroutine-pool-backed Queue: Enqueue sends
// onto a capacity-limited channel (blocking as backpressure once it's full,
// mirroring the bounded-channel admission control of the teacher's
// graph/scheduler.go Frontier, minus its deterministic OrderKey heap — each
// queued job here is an independent workflow execution, so there is no
// cross-job ordering requirement to preserve). A fixed pool of worker
// goroutines drains the channel and hands each job straight to a Runner.
type InProcessQueue struct {
	jobs   chan Job
	runner Runner

	// OnJobDone, if set, fires after a worker finishes a job (success or
	// error), so a Dispatcher can call Completed() and keep its queue-depth
	// gauge reflecting backlog rather than lifetime-enqueued count.
	OnJobDone func()
}

// NewInProcessQueue starts workers goroutines pulling from a channel of the
// given capacity and returns the Queue that feeds them.
func NewInProcessQueue(runner Runner, workers, capacity int) *InProcessQueue {
	q := &InProcessQueue{jobs: make(chan Job, capacity), runner: runner}
	for i := 0; i < workers; i++ {
		go q.work()
	}
	return q
}

func (q *InProcessQueue) work() {
	for job := range q.jobs {
		_, _ = q.runner.Run(context.Background(), job.ExecutionID, job.Graph, job.Seed, job.StartNodeID)
		if q.OnJobDone != nil {
			q.OnJobDone()
		}
	}
}

// Enqueue blocks until there is room in the channel or ctx is cancelled.
func (q *InProcessQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.jobs <- job:
		return nil
	}
}

// LocalPinger reports in-process workers as always reachable: unlike a
// networked Celery-style worker pool, a goroutine pool living in the same
// process has no liveness question to answer over the wire.
type LocalPinger struct{}

func (LocalPinger) Ping(ctx context.Context) bool { return true }
