// Package driver implements the Driver Registry (spec.md §4.2): dynamic
// dispatch from a node's type string to the Driver that knows how to
// execute it, plus the built-in drivers for every node type named in the
// spec.
package driver

import (
	"context"
	"fmt"

	"github.com/dshills/orchestrator/workflow"
)

// Driver knows how to execute one node type against a Context, returning
// the DriverResponse contract the kernel interprets.
type Driver interface {
	Type() string
	Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse
}

// Registry is a process-wide type string -> Driver map. Dispatch never
// returns a Go error: a missing driver or a panic inside Execute both
// convert to a workflow.DriverResponse with Status "error", per spec.md
// §4.2 and §7.
type Registry struct {
	drivers map[string]Driver
}

// NewRegistry returns an empty registry. Use Register to add drivers; no
// driver, built-in or otherwise, is registered by default.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register adds (or replaces) the driver for its own Type().
func (r *Registry) Register(d Driver) {
	r.drivers[d.Type()] = d
}

// Lookup returns the driver registered for typ, if any.
func (r *Registry) Lookup(typ string) (Driver, bool) {
	d, ok := r.drivers[typ]
	return d, ok
}

// Dispatch executes node.Type's driver against wctx. A missing driver
// yields a clean error response; a panic inside the driver (a third-party
// agent SDK call misbehaving, a nil map dereference in a misconfigured
// node) is recovered and converted to the same shape rather than crashing
// the kernel's step loop.
func (r *Registry) Dispatch(ctx context.Context, node workflow.Node, wctx workflow.Context) (resp workflow.DriverResponse) {
	d, ok := r.drivers[node.Type]
	if !ok {
		return workflow.ErrorResponse(fmt.Sprintf("no driver registered for node type %q", node.Type))
	}

	defer func() {
		if r := recover(); r != nil {
			resp = workflow.ErrorResponse(fmt.Sprintf("driver panic: %v", r))
		}
	}()

	return d.Execute(ctx, node, wctx)
}
