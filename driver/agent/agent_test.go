package agent

import (
	"context"
	"testing"

	"github.com/dshills/orchestrator/driver"
	"github.com/dshills/orchestrator/graph/model"
	"github.com/dshills/orchestrator/workflow"
)

func TestDriver_DirectAnswerWithoutToolCalls(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "hello there"}}}
	d := New("claude_agent", mock, driver.NewRegistry())

	node := workflow.Node{Data: map[string]any{"system": "Be terse."}}
	wctx := workflow.NewContext()
	wctx.Input = "hi"

	resp := d.Execute(context.Background(), node, wctx)
	if !resp.OK() {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.Output != "hello there" {
		t.Fatalf("output = %v, want %q", resp.Output, "hello there")
	}
	if mock.CallCount() != 1 {
		t.Fatalf("call count = %d, want 1", mock.CallCount())
	}
}

func TestDriver_InjectsKnowledgeIntoSystemPrompt(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "ok"}}}
	d := New("claude_agent", mock, driver.NewRegistry())

	node := workflow.Node{Data: map[string]any{"system": "Base prompt."}}
	wctx := workflow.NewContext()
	wctx.Knowledge = map[string]any{"topic": "widgets"}

	d.Execute(context.Background(), node, wctx)

	system := mock.Calls[0].Messages[0].Content
	if !contains(system, "Base prompt.") || !contains(system, "widgets") {
		t.Fatalf("system prompt = %q, want it to contain base prompt and knowledge", system)
	}
}

func TestDriver_DispatchesRequestedToolCalls(t *testing.T) {
	registry := driver.NewRegistry()
	echo := echoToolDriver{}
	registry.Register(echo)

	mock := &model.MockChatModel{Responses: []model.ChatOut{
		{ToolCalls: []model.ToolCall{{Name: "lookup", Input: map[string]any{"q": "weather"}}}},
		{Text: "final answer"},
	}}
	d := New("claude_agent", mock, registry)

	node := workflow.Node{}
	wctx := workflow.NewContext()
	wctx.Input = "what's the weather"
	wctx.AgentTools = []workflow.ToolSpec{{NodeID: "tool1", Name: "lookup", Operation: "echo"}}
	wctx.AgentToolNodes = map[string]workflow.Node{"lookup": {ID: "tool1", Type: "echo_tool"}}

	resp := d.Execute(context.Background(), node, wctx)
	if !resp.OK() {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.Output != "final answer" {
		t.Fatalf("output = %v, want final answer", resp.Output)
	}
	if mock.CallCount() != 2 {
		t.Fatalf("call count = %d, want 2 (one tool round trip)", mock.CallCount())
	}
}

func TestDriver_UnconnectedToolNameErrors(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{
		{ToolCalls: []model.ToolCall{{Name: "missing", Input: nil}}},
		{Text: "done"},
	}}
	d := New("claude_agent", mock, driver.NewRegistry())

	resp := d.Execute(context.Background(), workflow.Node{}, workflow.NewContext())
	if !resp.OK() {
		t.Fatalf("agent loop itself should not error: %s", resp.Error)
	}
	if resp.Output != "done" {
		t.Fatalf("output = %v, want done", resp.Output)
	}
}

func TestDriver_StopsAtMaxToolCallDepth(t *testing.T) {
	responses := make([]model.ChatOut, 0, maxToolCallDepth)
	for i := 0; i < maxToolCallDepth; i++ {
		responses = append(responses, model.ChatOut{
			ToolCalls: []model.ToolCall{{Name: "loop", Input: nil}},
		})
	}
	registry := driver.NewRegistry()
	registry.Register(echoToolDriver{})
	mock := &model.MockChatModel{Responses: responses}
	d := New("claude_agent", mock, registry)

	wctx := workflow.NewContext()
	wctx.AgentToolNodes = map[string]workflow.Node{"loop": {ID: "t", Type: "echo_tool"}}

	resp := d.Execute(context.Background(), workflow.Node{}, wctx)
	if resp.Error == "" {
		t.Fatal("expected depth-exceeded error to be surfaced")
	}
	if mock.CallCount() != maxToolCallDepth {
		t.Fatalf("call count = %d, want %d", mock.CallCount(), maxToolCallDepth)
	}
}

type echoToolDriver struct{}

func (echoToolDriver) Type() string { return "echo_tool" }
func (echoToolDriver) Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse {
	return workflow.DriverResponse{Status: workflow.StatusOK, Output: wctx.Input}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (substr == "" || indexOf(s, substr) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
