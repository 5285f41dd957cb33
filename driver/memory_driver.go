package driver

import (
	"context"

	"github.com/dshills/orchestrator/kvstore"
	"github.com/dshills/orchestrator/workflow"
)

// MemoryDriver writes a value into the Memory Store under
// "{namespace}:{key}", mirrors it into the transient Context.State[key], and
// passes the value through as output so downstream nodes see the same
// value. Grounded on original_source's MemoryDriver.
type MemoryDriver struct {
	Store *kvstore.Manager
}

func NewMemoryDriver(store *kvstore.Manager) *MemoryDriver {
	return &MemoryDriver{Store: store}
}

func (d *MemoryDriver) Type() string { return "memory" }

func (d *MemoryDriver) Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse {
	key := node.DataStringOr("key", "memory")
	namespace := node.DataStringOr("namespace", "default")

	value := wctx.Extra("value")
	if value == nil {
		value = wctx.Input
	}

	previous, _ := d.Store.Get(ctx, namespace, key)
	d.Store.Set(ctx, namespace, key, value)

	state := wctx.State
	if state == nil {
		state = make(map[string]any)
	}
	state[key] = value

	return workflow.DriverResponse{
		Status: workflow.StatusOK,
		Output: value,
		State:  state,
		Extras: map[string]any{
			"previous": previous,
			"stored":   value,
		},
	}
}
