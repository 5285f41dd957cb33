package driver

import (
	"context"
	"testing"

	"github.com/dshills/orchestrator/graph/emit"
	"github.com/dshills/orchestrator/kvstore"
	"github.com/dshills/orchestrator/kvstore/inprockv"
	"github.com/dshills/orchestrator/workflow"
)

func newTestStore() *kvstore.Manager {
	return kvstore.NewManager(emit.NewNullEmitter(), inprockv.New())
}

func TestMemoryDriver_StoresAndPassesThrough(t *testing.T) {
	store := newTestStore()
	d := NewMemoryDriver(store)

	node := workflow.Node{Data: map[string]any{"key": "topic", "namespace": "ns1"}}
	wctx := workflow.NewContext()
	wctx.Input = "widgets"

	resp := d.Execute(context.Background(), node, wctx)
	if !resp.OK() || resp.Output != "widgets" {
		t.Fatalf("got %+v", resp)
	}
	if resp.State["topic"] != "widgets" {
		t.Fatalf("state[topic] = %v, want widgets", resp.State["topic"])
	}

	stored, ok := store.Get(context.Background(), "ns1", "topic")
	if !ok || stored != "widgets" {
		t.Fatalf("store.Get = (%v, %v), want (widgets, true)", stored, ok)
	}
}

func TestMemoryDriver_ReportsPreviousValue(t *testing.T) {
	store := newTestStore()
	store.Set(context.Background(), "ns1", "topic", "old")
	d := NewMemoryDriver(store)

	node := workflow.Node{Data: map[string]any{"key": "topic", "namespace": "ns1"}}
	wctx := workflow.NewContext()
	wctx.Input = "new"

	resp := d.Execute(context.Background(), node, wctx)
	if resp.Extras["previous"] != "old" {
		t.Fatalf("previous = %v, want old", resp.Extras["previous"])
	}
}
