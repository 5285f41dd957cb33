// Package agent implements the orchestration kernel's LLM-agent node
// drivers: a shared Driver (system-prompt assembly, knowledge injection,
// and a bounded tool-call loop) plus thin per-provider constructors wrapping
// the teacher's graph/model ChatModel adapters (anthropic, openai, google).
// Grounded on original_source's BaseAgentDriver
// (api/drivers/base.py) and its openai_agent.py/claude_agent.py/
// ollama_agent.py subclasses.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/orchestrator/driver"
	"github.com/dshills/orchestrator/graph/model"
	"github.com/dshills/orchestrator/workflow"
)

// maxToolCallDepth bounds how many tool-call round trips a single agent
// node invocation may take before it must answer directly, preventing a
// misbehaving model from looping forever inside one kernel step.
const maxToolCallDepth = 4

// maxKnowledgeJSONLen caps how much supplemental-knowledge JSON is appended
// to the system prompt, matching original_source's 4000-character budget.
const maxKnowledgeJSONLen = 4000

// Driver is a generic LLM-agent node driver: nodeType identifies which
// workflow node type it serves ("claude_agent", "openai_agent",
// "google_agent"), and Model does the actual chat completion call.
type Driver struct {
	nodeType string
	Model    model.ChatModel
	Registry *driver.Registry
}

// New returns an agent Driver for nodeType backed by chatModel. registry is
// used to dispatch tool-node invocations the model requests; it may be the
// same *driver.Registry the agent driver itself is registered in.
func New(nodeType string, chatModel model.ChatModel, registry *driver.Registry) *Driver {
	return &Driver{nodeType: nodeType, Model: chatModel, Registry: registry}
}

func (d *Driver) Type() string { return d.nodeType }

func (d *Driver) Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse {
	systemPrompt := buildSystemPrompt(node, wctx.Knowledge)
	tools := buildToolSpecs(wctx.AgentTools)

	messages := []model.Message{
		{Role: model.RoleSystem, Content: systemPrompt},
		{Role: model.RoleUser, Content: stringifyInput(wctx.Input)},
	}

	var toolCallLog []map[string]any
	for depth := 0; depth < maxToolCallDepth; depth++ {
		out, err := d.Model.Chat(ctx, messages, tools)
		if err != nil {
			return workflow.ErrorResponse(err.Error())
		}

		if len(out.ToolCalls) == 0 {
			return workflow.DriverResponse{
				Status: workflow.StatusOK,
				Output: out.Text,
				Extras: map[string]any{"tool_call_log": toolCallLog},
			}
		}

		messages = append(messages, model.Message{Role: model.RoleAssistant, Content: out.Text})
		for _, call := range out.ToolCalls {
			result := d.invokeTool(ctx, call, wctx)
			toolCallLog = append(toolCallLog, map[string]any{
				"name":   call.Name,
				"input":  call.Input,
				"result": result,
			})
			encoded, _ := json.Marshal(result)
			messages = append(messages, model.Message{
				Role:    model.RoleUser,
				Content: fmt.Sprintf("Tool %s result: %s", call.Name, string(encoded)),
			})
		}
	}

	return workflow.DriverResponse{
		Status: workflow.StatusOK,
		Output: "",
		Error:  "tool-call depth exceeded without a final answer",
		Extras: map[string]any{"tool_call_log": toolCallLog},
	}
}

func (d *Driver) invokeTool(ctx context.Context, call model.ToolCall, wctx workflow.Context) workflow.DriverResponse {
	toolNode, ok := wctx.AgentToolNodes[call.Name]
	if !ok {
		return workflow.ErrorResponse(fmt.Sprintf("no tool node connected for %q", call.Name))
	}

	toolCtx := wctx
	toolCtx.Input = call.Input
	toolCtx.Params = call.Input
	return d.Registry.Dispatch(ctx, toolNode, toolCtx)
}

// buildSystemPrompt assembles the agent's system prompt plus any
// supplemental knowledge the Context Builder gathered from connected
// memory nodes, matching original_source's _build_system_prompt.
func buildSystemPrompt(node workflow.Node, knowledge map[string]any) string {
	systemPrompt := node.DataStringOr("system", "You are a helpful assistant.")
	if len(knowledge) == 0 {
		return systemPrompt
	}

	encoded, err := json.Marshal(knowledge)
	if err != nil {
		return systemPrompt
	}
	text := string(encoded)
	if len(text) > maxKnowledgeJSONLen {
		text = text[:maxKnowledgeJSONLen]
	}
	return fmt.Sprintf("%s\n\nSupplemental knowledge (JSON):\n%s", systemPrompt, text)
}

func buildToolSpecs(tools []workflow.ToolSpec) []model.ToolSpec {
	if len(tools) == 0 {
		return nil
	}
	out := make([]model.ToolSpec, 0, len(tools))
	for _, t := range tools {
		out = append(out, model.ToolSpec{
			Name:        t.Name,
			Description: fmt.Sprintf("%s operation", t.Operation),
			Schema: map[string]any{
				"type": "object",
			},
		})
	}
	return out
}

func stringifyInput(input any) string {
	if s, ok := input.(string); ok {
		return s
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return fmt.Sprint(input)
	}
	return strings.TrimSpace(string(encoded))
}
