// Package httpapi exposes the orchestration kernel over the five HTTP
// endpoints of spec.md §6, built on net/http.ServeMux (see DESIGN.md for
// the no-router-framework justification). Every wire type here is a plain
// JSON DTO translated to/from the untagged workflow.* model types — the
// core model stays framework-agnostic and only this package knows about
// camelCase wire field names and HTTP status codes.
package httpapi

import "github.com/dshills/orchestrator/workflow"

// NodeDTO is the wire shape of a workflow node.
type NodeDTO struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func (n NodeDTO) toNode() workflow.Node {
	return workflow.Node{ID: n.ID, Type: n.Type, Data: n.Data}
}

// EdgeDTO is the wire shape of a workflow edge.
type EdgeDTO struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

func (e EdgeDTO) toEdge() workflow.Edge {
	return workflow.Edge{
		ID: e.ID, Source: e.Source, Target: e.Target,
		SourceHandle: e.SourceHandle, TargetHandle: e.TargetHandle,
	}
}

// ContextDTO is the wire shape of the seed execution context a caller
// supplies: {input, params, condition, state}.
type ContextDTO struct {
	Input     any            `json:"input,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Condition bool           `json:"condition,omitempty"`
	State     map[string]any `json:"state,omitempty"`
}

func (c ContextDTO) toContext() workflow.Context {
	wctx := workflow.NewContext()
	wctx.Input = c.Input
	wctx.Condition = c.Condition
	if c.Params != nil {
		wctx.Params = c.Params
	}
	if c.State != nil {
		wctx.State = c.State
	}
	return wctx
}

// GraphDTO is the wire shape of {nodes, edges}.
type GraphDTO struct {
	Nodes []NodeDTO `json:"nodes"`
	Edges []EdgeDTO `json:"edges"`
}

func (g GraphDTO) toGraph() workflow.Graph {
	nodes := make([]workflow.Node, len(g.Nodes))
	for i, n := range g.Nodes {
		nodes[i] = n.toNode()
	}
	edges := make([]workflow.Edge, len(g.Edges))
	for i, e := range g.Edges {
		edges[i] = e.toEdge()
	}
	return workflow.Graph{Nodes: nodes, Edges: edges}
}

// DriverResponseDTO is the wire shape returned by POST /execute-node.
type DriverResponseDTO struct {
	Status    string         `json:"status"`
	Output    any            `json:"output,omitempty"`
	Final     any            `json:"final,omitempty"`
	State     map[string]any `json:"state,omitempty"`
	Route     string         `json:"route,omitempty"`
	Parallel  bool           `json:"parallel,omitempty"`
	Error     string         `json:"error,omitempty"`
	HadError  bool           `json:"hadError,omitempty"`
	ErrorType string         `json:"errorType,omitempty"`
}

func driverResponseDTO(r workflow.DriverResponse) DriverResponseDTO {
	return DriverResponseDTO{
		Status: r.Status, Output: r.Output, Final: r.Final, State: r.State,
		Route: r.Route, Parallel: r.Parallel, Error: r.Error,
		HadError: r.HadError, ErrorType: r.ErrorType,
	}
}

// TraceEntryDTO is the wire shape of one workflow.TraceEntry.
type TraceEntryDTO struct {
	NodeID       string            `json:"nodeId"`
	Type         string            `json:"type"`
	Result       DriverResponseDTO `json:"result"`
	ContextInput any               `json:"contextInput,omitempty"`
	EdgeID       string            `json:"edgeId,omitempty"`
	NextNodeID   string            `json:"nextNodeId,omitempty"`
	UsedMemory   []string          `json:"usedMemory,omitempty"`
	UsedTools    []string          `json:"usedTools,omitempty"`
}

func traceEntryDTO(e workflow.TraceEntry) TraceEntryDTO {
	return TraceEntryDTO{
		NodeID: e.NodeID, Type: e.Type, Result: driverResponseDTO(e.Result),
		ContextInput: e.ContextInput, EdgeID: e.EdgeID, NextNodeID: e.NextNodeID,
		UsedMemory: e.UsedMemory, UsedTools: e.UsedTools,
	}
}

func traceDTOs(trace []workflow.TraceEntry) []TraceEntryDTO {
	out := make([]TraceEntryDTO, len(trace))
	for i, e := range trace {
		out[i] = traceEntryDTO(e)
	}
	return out
}

// ExecuteWorkflowResponseDTO is the POST /execute-workflow response body.
type ExecuteWorkflowResponseDTO struct {
	Status      string          `json:"status"`
	Final       any             `json:"final,omitempty"`
	Trace       []TraceEntryDTO `json:"trace"`
	Steps       int             `json:"steps"`
	StartNodeID string          `json:"startNodeId,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// AcceptedDTO is the 202 response body shared by the async and trigger
// endpoints.
type AcceptedDTO struct {
	ExecutionID string `json:"executionId"`
	Status      string `json:"status"`
}

// ExecutionStateDTO is the GET /execution/<id>/status response body.
type ExecutionStateDTO struct {
	Status         string            `json:"status"`
	CurrentNodeID  string            `json:"currentNodeId,omitempty"`
	CompletedNodes []string          `json:"completedNodes"`
	ErrorNodes     []string          `json:"errorNodes"`
	Trace          []TraceEntryDTO   `json:"trace"`
	Steps          int               `json:"steps"`
	Final          any               `json:"final,omitempty"`
	Error          string            `json:"error,omitempty"`
	Timestamp      float64           `json:"timestamp,omitempty"`
	ParallelStatus map[string]string `json:"parallelStatus,omitempty"`
	TotalNodes     int               `json:"totalNodes,omitempty"`
	StartNodeID    string            `json:"startNodeId,omitempty"`
}

func executionStateDTO(s workflow.ExecutionState) ExecutionStateDTO {
	return ExecutionStateDTO{
		Status: s.Status, CurrentNodeID: s.CurrentNodeID,
		CompletedNodes: s.CompletedNodes, ErrorNodes: s.ErrorNodes,
		Trace: traceDTOs(s.Trace), Steps: s.Steps, Final: s.Final,
		Error: s.Error, Timestamp: s.Timestamp, ParallelStatus: s.ParallelStatus,
		TotalNodes: s.TotalNodes, StartNodeID: s.StartNodeID,
	}
}

// errorDTO is the uniform {status:"error", error:"..."} body for every
// non-2xx response, matching the original API's error shape.
type errorDTO struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}
