package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/dshills/orchestrator/async"
	"github.com/dshills/orchestrator/driver"
	"github.com/dshills/orchestrator/kernel"
	"github.com/dshills/orchestrator/kernelerr"
	"github.com/dshills/orchestrator/progress"
	"github.com/dshills/orchestrator/workflow"
)

// Sentinel errors an APIKeyValidator returns to select the trigger
// endpoint's HTTP status, mirroring the original API's 404/403/401 gates.
var (
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrAPIAccessDisabled = errors.New("api access is not enabled for this workflow")
	ErrInvalidAPIKey     = errors.New("invalid api key")
)

// APIKeyValidator resolves a workflow id and its X-API-Key to the graph to
// run, for POST /workflows/<id>/trigger. CRUD/issuance of keys is out of
// scope (spec.md §1) — this interface only answers "can apiKey run
// workflowID, and if so, with what graph?".
type APIKeyValidator interface {
	Authorize(ctx context.Context, workflowID, apiKey string) (workflow.Graph, error)
}

// Server wires the five HTTP endpoints to the kernel, driver registry,
// async dispatcher, and progress cache.
type Server struct {
	Registry   *driver.Registry
	Kernel     *kernel.Kernel
	Dispatcher *async.Dispatcher
	Cache      progress.Cache
	Validator  APIKeyValidator
}

// NewMux builds the ServeMux routing all five endpoints to s.
func (s *Server) NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute-node", s.handleExecuteNode)
	mux.HandleFunc("POST /execute-workflow", s.handleExecuteWorkflow)
	mux.HandleFunc("POST /execute-workflow-async", s.handleExecuteWorkflowAsync)
	mux.HandleFunc("GET /execution/{id}/status", s.handleExecutionStatus)
	mux.HandleFunc("POST /workflows/{id}/trigger", s.handleTriggerWorkflow)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("httpapi: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorDTO{Status: "error", Error: message})
}

// statusForKernelErr maps the kernelerr taxonomy onto HTTP status codes.
func statusForKernelErr(err error) int {
	switch {
	case kernelerr.IsValidation(err):
		return http.StatusBadRequest
	case kernelerr.IsInfrastructure(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleExecuteNode implements POST /execute-node: {node, context} ->
// DriverResponse. 400 if node.type is missing or has no registered driver.
func (s *Server) handleExecuteNode(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Node    NodeDTO    `json:"node"`
		Context ContextDTO `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if payload.Node.Type == "" {
		writeError(w, http.StatusBadRequest, "node.type is required")
		return
	}
	if _, ok := s.Registry.Lookup(payload.Node.Type); !ok {
		writeError(w, http.StatusBadRequest, "no driver registered for node type \""+payload.Node.Type+"\"")
		return
	}

	result := s.Registry.Dispatch(r.Context(), payload.Node.toNode(), payload.Context.toContext())
	status := http.StatusOK
	if !result.OK() {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, driverResponseDTO(result))
}

// handleExecuteWorkflow implements POST /execute-workflow: synchronous
// traversal, 400 on empty nodes or a hard node failure.
func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		GraphDTO
		Context     ContextDTO `json:"context"`
		StartNodeID string     `json:"startNodeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	g := payload.GraphDTO.toGraph()
	if len(g.Nodes) == 0 {
		writeError(w, http.StatusBadRequest, "nodes are required")
		return
	}

	result, err := s.Kernel.Run(r.Context(), "", g, payload.Context.toContext(), payload.StartNodeID)
	if err != nil {
		writeError(w, statusForKernelErr(err), err.Error())
		return
	}

	resp := ExecuteWorkflowResponseDTO{
		Status: result.Status, Final: result.Final, Trace: traceDTOs(result.Trace),
		Steps: result.Steps, StartNodeID: result.StartNodeID, Error: result.Error,
	}
	status := http.StatusOK
	if result.Status != workflow.StatusOK {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

// handleExecuteWorkflowAsync implements POST /execute-workflow-async: same
// payload plus an optional workflowId, 202 accepted or 503 if no worker is
// reachable.
func (s *Server) handleExecuteWorkflowAsync(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		GraphDTO
		Context     ContextDTO `json:"context"`
		StartNodeID string     `json:"startNodeId"`
		WorkflowID  string     `json:"workflowId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	accepted, err := s.Dispatcher.Dispatch(r.Context(), payload.GraphDTO.toGraph(), payload.Context.toContext(), payload.StartNodeID)
	if err != nil {
		writeError(w, statusForKernelErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, AcceptedDTO{ExecutionID: accepted.ExecutionID, Status: accepted.Status})
}

// handleExecutionStatus implements GET /execution/<id>/status.
func (s *Server) handleExecutionStatus(w http.ResponseWriter, r *http.Request) {
	executionID := r.PathValue("id")
	state, ok, err := progress.Read(r.Context(), s.Cache, executionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorDTO{Status: "not_found", Error: "execution not found or expired"})
		return
	}
	writeJSON(w, http.StatusOK, executionStateDTO(state))
}

// handleTriggerWorkflow implements POST /workflows/<id>/trigger: resolves
// and authorizes workflowID via the X-API-Key header, then dispatches the
// resolved graph exactly as /execute-workflow-async does.
func (s *Server) handleTriggerWorkflow(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("id")
	apiKey := strings.TrimSpace(r.Header.Get("X-API-Key"))
	if apiKey == "" {
		writeError(w, http.StatusUnauthorized, "X-API-Key header is required")
		return
	}

	g, err := s.Validator.Authorize(r.Context(), workflowID, apiKey)
	switch {
	case errors.Is(err, ErrWorkflowNotFound):
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	case errors.Is(err, ErrAPIAccessDisabled):
		writeError(w, http.StatusForbidden, "API access is not enabled for this workflow")
		return
	case errors.Is(err, ErrInvalidAPIKey):
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if len(g.Nodes) == 0 {
		writeError(w, http.StatusBadRequest, "workflow has no nodes")
		return
	}

	var payload struct {
		Input any `json:"input"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	seed := workflow.NewContext()
	seed.Input = payload.Input

	accepted, err := s.Dispatcher.Dispatch(r.Context(), g, seed, "")
	if err != nil {
		writeError(w, statusForKernelErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, AcceptedDTO{ExecutionID: accepted.ExecutionID, Status: accepted.Status})
}
