package async

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/orchestrator/kernelerr"
	"github.com/dshills/orchestrator/workflow"
)

type fakePinger struct{ up bool }

func (p fakePinger) Ping(ctx context.Context) bool { return p.up }

type fakeQueue struct {
	jobs []Job
	err  error
}

func (q *fakeQueue) Enqueue(ctx context.Context, job Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeHistory struct {
	started []string
	err     error
}

func (h *fakeHistory) RecordStart(ctx context.Context, executionID string, g workflow.Graph) error {
	if h.err != nil {
		return h.err
	}
	h.started = append(h.started, executionID)
	return nil
}

func sampleGraph() workflow.Graph {
	return workflow.Graph{Nodes: []workflow.Node{{ID: "in1", Type: "input"}}}
}

func TestDispatch_RejectsEmptyGraph(t *testing.T) {
	d := New(fakePinger{up: true}, &fakeQueue{})

	_, err := d.Dispatch(context.Background(), workflow.Graph{}, workflow.NewContext(), "")
	if err == nil || !kernelerr.IsValidation(err) {
		t.Fatalf("err = %v, want a validation error", err)
	}
}

func TestDispatch_ReturnsInfrastructureErrorWhenNoWorkerReachable(t *testing.T) {
	d := New(fakePinger{up: false}, &fakeQueue{})

	_, err := d.Dispatch(context.Background(), sampleGraph(), workflow.NewContext(), "")
	if err == nil || !kernelerr.IsInfrastructure(err) {
		t.Fatalf("err = %v, want an infrastructure error", err)
	}
}

func TestDispatch_EnqueuesWithAllocatedExecutionIDAndStartedStatus(t *testing.T) {
	queue := &fakeQueue{}
	d := New(fakePinger{up: true}, queue)

	accepted, err := d.Dispatch(context.Background(), sampleGraph(), workflow.NewContext(), "in1")
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if accepted.Status != "started" {
		t.Fatalf("status = %q, want started", accepted.Status)
	}
	if accepted.ExecutionID == "" {
		t.Fatal("expected a non-empty execution id")
	}
	if len(queue.jobs) != 1 || queue.jobs[0].ExecutionID != accepted.ExecutionID {
		t.Fatalf("queued jobs = %+v, want one job matching the accepted execution id", queue.jobs)
	}
}

func TestDispatch_RecordsHistoryWhenConfigured(t *testing.T) {
	history := &fakeHistory{}
	d := New(fakePinger{up: true}, &fakeQueue{})
	d.History = history

	accepted, err := d.Dispatch(context.Background(), sampleGraph(), workflow.NewContext(), "")
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if len(history.started) != 1 || history.started[0] != accepted.ExecutionID {
		t.Fatalf("history = %+v, want one entry matching %s", history.started, accepted.ExecutionID)
	}
}

func TestDispatch_SurfacesQueueFailureAsInfrastructureError(t *testing.T) {
	queue := &fakeQueue{err: errors.New("queue unavailable")}
	d := New(fakePinger{up: true}, queue)

	_, err := d.Dispatch(context.Background(), sampleGraph(), workflow.NewContext(), "")
	if err == nil || !kernelerr.IsInfrastructure(err) {
		t.Fatalf("err = %v, want an infrastructure error", err)
	}
}
