package httpapi

import (
	"context"
	"sync"

	"github.com/dshills/orchestrator/workflow"
)

// WorkflowRecord is one stored workflow's graph and API-trigger settings,
// mirroring original_source/api/models.py's Workflow.api_enabled/api_key
// fields (id/name/nodes/edges/created_at/updated_at and CRUD itself are out
// of scope per spec.md §1 — this only models what the trigger endpoint
// needs to answer "can apiKey run this workflow?").
type WorkflowRecord struct {
	Graph      workflow.Graph
	APIEnabled bool
	APIKey     string
}

// InMemoryValidator is an APIKeyValidator backed by a plain map, suitable
// for a single-process deployment or tests. A database-backed validator
// would satisfy the same interface without touching httpapi.
type InMemoryValidator struct {
	mu        sync.RWMutex
	workflows map[string]WorkflowRecord
}

func NewInMemoryValidator() *InMemoryValidator {
	return &InMemoryValidator{workflows: make(map[string]WorkflowRecord)}
}

// Put registers (or replaces) a workflow record under id.
func (v *InMemoryValidator) Put(id string, rec WorkflowRecord) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.workflows[id] = rec
}

// Authorize reproduces the original trigger_workflow view's gate order:
// unknown id -> ErrWorkflowNotFound, api_enabled false -> ErrAPIAccessDisabled,
// key mismatch -> ErrInvalidAPIKey.
func (v *InMemoryValidator) Authorize(ctx context.Context, workflowID, apiKey string) (workflow.Graph, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	rec, ok := v.workflows[workflowID]
	if !ok {
		return workflow.Graph{}, ErrWorkflowNotFound
	}
	if !rec.APIEnabled {
		return workflow.Graph{}, ErrAPIAccessDisabled
	}
	if rec.APIKey == "" || rec.APIKey != apiKey {
		return workflow.Graph{}, ErrInvalidAPIKey
	}
	return rec.Graph, nil
}
