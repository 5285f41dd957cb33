package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dshills/orchestrator/async"
	"github.com/dshills/orchestrator/ctxbuild"
	"github.com/dshills/orchestrator/driver"
	"github.com/dshills/orchestrator/kernel"
	"github.com/dshills/orchestrator/kvstore"
	"github.com/dshills/orchestrator/progress"
	"github.com/dshills/orchestrator/workflow"
)

type echoDriver struct{}

func (echoDriver) Type() string { return "input" }
func (echoDriver) Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse {
	return workflow.DriverResponse{Status: workflow.StatusOK, Output: wctx.Input, Final: wctx.Input}
}

func newTestServer() *Server {
	registry := driver.NewRegistry()
	registry.Register(echoDriver{})

	builder := ctxbuild.New(kvstore.NewManager(nil))
	k := kernel.New(registry, builder)

	cache := progress.NewInProcess()
	dispatcher := async.New(alwaysUp{}, &captureQueue{})

	return &Server{
		Registry:   registry,
		Kernel:     k,
		Dispatcher: dispatcher,
		Cache:      cache,
		Validator:  fakeValidator{},
	}
}

type alwaysUp struct{}

func (alwaysUp) Ping(ctx context.Context) bool { return true }

type captureQueue struct{ jobs []async.Job }

func (q *captureQueue) Enqueue(ctx context.Context, job async.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeValidator struct{}

func (fakeValidator) Authorize(ctx context.Context, workflowID, apiKey string) (workflow.Graph, error) {
	switch {
	case workflowID == "missing":
		return workflow.Graph{}, ErrWorkflowNotFound
	case workflowID == "disabled":
		return workflow.Graph{}, ErrAPIAccessDisabled
	case apiKey != "good-key":
		return workflow.Graph{}, ErrInvalidAPIKey
	default:
		return sampleGraph(), nil
	}
}

func sampleGraph() workflow.Graph {
	return workflow.Graph{
		Nodes: []workflow.Node{{ID: "in1", Type: "input", Data: map[string]any{"value": "hi"}}},
	}
}

func TestExecuteNode_UnknownType(t *testing.T) {
	s := newTestServer()
	body := strings.NewReader(`{"node":{"id":"n1","type":"nope"},"context":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/execute-node", body)
	rr := httptest.NewRecorder()

	s.NewMux().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestExecuteNode_Dispatches(t *testing.T) {
	s := newTestServer()
	body := strings.NewReader(`{"node":{"id":"n1","type":"input"},"context":{"input":"hello"}}`)
	req := httptest.NewRequest(http.MethodPost, "/execute-node", body)
	rr := httptest.NewRecorder()

	s.NewMux().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rr.Code, rr.Body.String())
	}
	var resp DriverResponseDTO
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Output != "hello" {
		t.Fatalf("output = %v, want hello", resp.Output)
	}
}

func TestExecuteWorkflow_RejectsEmptyGraph(t *testing.T) {
	s := newTestServer()
	body := strings.NewReader(`{"nodes":[],"edges":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/execute-workflow", body)
	rr := httptest.NewRecorder()

	s.NewMux().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestExecuteWorkflow_RunsSynchronously(t *testing.T) {
	s := newTestServer()
	body := strings.NewReader(`{"nodes":[{"id":"in1","type":"input"}],"edges":[],"context":{"input":"x"}}`)
	req := httptest.NewRequest(http.MethodPost, "/execute-workflow", body)
	rr := httptest.NewRecorder()

	s.NewMux().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rr.Code, rr.Body.String())
	}
	var resp ExecuteWorkflowResponseDTO
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != workflow.StatusOK {
		t.Fatalf("status = %q, want ok", resp.Status)
	}
}

func TestExecuteWorkflowAsync_Returns202(t *testing.T) {
	s := newTestServer()
	body := strings.NewReader(`{"nodes":[{"id":"in1","type":"input"}],"edges":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/execute-workflow-async", body)
	rr := httptest.NewRecorder()

	s.NewMux().ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", rr.Code, rr.Body.String())
	}
	var resp AcceptedDTO
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ExecutionID == "" || resp.Status != "started" {
		t.Fatalf("resp = %+v, want a non-empty id and status started", resp)
	}
}

func TestExecuteWorkflowAsync_NoWorkerReachable(t *testing.T) {
	s := newTestServer()
	s.Dispatcher = async.New(downPinger{}, &captureQueue{})
	body := strings.NewReader(`{"nodes":[{"id":"in1","type":"input"}],"edges":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/execute-workflow-async", body)
	rr := httptest.NewRecorder()

	s.NewMux().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

type downPinger struct{}

func (downPinger) Ping(ctx context.Context) bool { return false }

func TestExecutionStatus_NotFound(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/execution/does-not-exist/status", nil)
	rr := httptest.NewRecorder()

	s.NewMux().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestExecutionStatus_ReturnsCachedState(t *testing.T) {
	s := newTestServer()
	state := workflow.ExecutionState{Status: workflow.ExecCompleted, Steps: 3}
	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	if err := s.Cache.Set(context.Background(), progress.CacheKey("exec-1"), data, progress.TTL); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/execution/exec-1/status", nil)
	rr := httptest.NewRecorder()
	s.NewMux().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp ExecutionStateDTO
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != workflow.ExecCompleted || resp.Steps != 3 {
		t.Fatalf("resp = %+v, want completed/3 steps", resp)
	}
}

func TestTriggerWorkflow_RequiresAPIKeyHeader(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/workflows/wf1/trigger", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()

	s.NewMux().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestTriggerWorkflow_UnknownWorkflowIs404(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/workflows/missing/trigger", strings.NewReader(`{}`))
	req.Header.Set("X-API-Key", "good-key")
	rr := httptest.NewRecorder()

	s.NewMux().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestTriggerWorkflow_DisabledAccessIs403(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/workflows/disabled/trigger", strings.NewReader(`{}`))
	req.Header.Set("X-API-Key", "good-key")
	rr := httptest.NewRecorder()

	s.NewMux().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestTriggerWorkflow_BadKeyIs401(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/workflows/wf1/trigger", strings.NewReader(`{}`))
	req.Header.Set("X-API-Key", "wrong-key")
	rr := httptest.NewRecorder()

	s.NewMux().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestTriggerWorkflow_AcceptsAndDispatches(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/workflows/wf1/trigger", strings.NewReader(`{"input":"hi"}`))
	req.Header.Set("X-API-Key", "good-key")
	rr := httptest.NewRecorder()

	s.NewMux().ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", rr.Code, rr.Body.String())
	}
}
