package driver

import (
	"context"
	"testing"

	"github.com/dshills/orchestrator/workflow"
)

func TestConditionDriver_RoutesOnExpression(t *testing.T) {
	node := workflow.Node{Data: map[string]any{"expression": "len(input) > 3"}}

	wctx := workflow.NewContext()
	wctx.Input = "short"
	resp := ConditionDriver{}.Execute(context.Background(), node, wctx)
	if resp.Route != "yes" {
		t.Fatalf("route = %q, want yes", resp.Route)
	}

	wctx.Input = "hi"
	resp = ConditionDriver{}.Execute(context.Background(), node, wctx)
	if resp.Route != "no" {
		t.Fatalf("route = %q, want no", resp.Route)
	}
}

func TestConditionDriver_EmptyExpressionDefaultsToNo(t *testing.T) {
	resp := ConditionDriver{}.Execute(context.Background(), workflow.Node{}, workflow.NewContext())
	if resp.Route != "no" {
		t.Fatalf("route = %q, want no", resp.Route)
	}
}

func TestConditionDriver_BadExpressionRoutesNoWithError(t *testing.T) {
	node := workflow.Node{Data: map[string]any{"expression": "input @ bad"}}
	resp := ConditionDriver{}.Execute(context.Background(), node, workflow.NewContext())
	if resp.Route != "no" || resp.Error == "" {
		t.Fatalf("got %+v, want route=no with a non-empty error", resp)
	}
}
