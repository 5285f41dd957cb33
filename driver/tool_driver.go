package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/orchestrator/graph/tool"
	"github.com/dshills/orchestrator/kvstore"
	"github.com/dshills/orchestrator/workflow"
)

// ToolDriver executes a node.Data["operation"] action: a handful of
// built-in string/memory operations grounded on original_source's
// ToolDriver, plus text_transform/json_validator (supplemented from the
// original's transform family), plus any externally registered
// tool.Tool implementations (web search, code execution, ...) dispatched
// by operation name.
type ToolDriver struct {
	Store *kvstore.Manager
	Tools map[string]tool.Tool
}

func NewToolDriver(store *kvstore.Manager) *ToolDriver {
	return &ToolDriver{Store: store, Tools: make(map[string]tool.Tool)}
}

// RegisterTool makes an external tool.Tool reachable by name as a tool
// node's operation.
func (d *ToolDriver) RegisterTool(t tool.Tool) {
	d.Tools[t.Name()] = t
}

func (ToolDriver) Type() string { return "tool" }

func (d *ToolDriver) Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse {
	operation := node.DataStringOr("operation", "echo")
	arg := node.DataString("arg")
	label := node.DataStringOr("label", "Tool")
	input := wctx.Input

	switch operation {
	case "save_memory", "set_memory", "append_memory":
		return d.memoryOperation(ctx, node, wctx, operation, label)

	case "uppercase":
		if s, ok := input.(string); ok {
			return workflow.DriverResponse{Status: workflow.StatusOK, Output: strings.ToUpper(s), Extras: map[string]any{"tool": label}}
		}

	case "lowercase":
		if s, ok := input.(string); ok {
			return workflow.DriverResponse{Status: workflow.StatusOK, Output: strings.ToLower(s), Extras: map[string]any{"tool": label}}
		}

	case "append":
		if s, ok := input.(string); ok {
			return workflow.DriverResponse{Status: workflow.StatusOK, Output: s + arg, Extras: map[string]any{"tool": label}}
		}

	case "text_transform":
		return d.textTransform(node, wctx, label)

	case "json_validator":
		return d.jsonValidator(wctx, label)
	}

	if t, ok := d.Tools[operation]; ok {
		args, _ := input.(map[string]any)
		if args == nil {
			args = map[string]any{"input": input, "arg": arg}
		}
		out, err := t.Call(ctx, args)
		if err != nil {
			return workflow.ErrorResponse(err.Error())
		}
		return workflow.DriverResponse{Status: workflow.StatusOK, Output: out, Extras: map[string]any{"tool": label}}
	}

	return workflow.DriverResponse{
		Status: workflow.StatusOK,
		Output: map[string]any{"echo": wctx.Params},
		Extras: map[string]any{"tool": label},
	}
}

func (d *ToolDriver) memoryOperation(ctx context.Context, node workflow.Node, wctx workflow.Context, operation, label string) workflow.DriverResponse {
	key := node.DataStringOr("key", "memory")
	namespace := node.DataStringOr("namespace", "default")
	if k, ok := wctx.Params["key"].(string); ok && k != "" {
		key = k
	}
	if ns, ok := wctx.Params["namespace"].(string); ok && ns != "" {
		namespace = ns
	}

	value := wctx.Input
	if v, ok := wctx.Params["value"]; ok {
		value = v
	}
	appendMode := operation == "append_memory"
	if a, ok := wctx.Params["append"].(bool); ok {
		appendMode = appendMode || a
	}

	previous, _ := d.Store.Get(ctx, namespace, key)

	var stored any
	if appendMode {
		base, _ := previous.([]any)
		values, ok := value.([]any)
		if !ok {
			values = []any{value}
		}
		merged := append([]any(nil), base...)
		for _, v := range values {
			if !containsAny(merged, v) {
				merged = append(merged, v)
			}
		}
		d.Store.Set(ctx, namespace, key, merged)
		stored = merged
	} else {
		d.Store.Set(ctx, namespace, key, value)
		stored = value
	}

	return workflow.DriverResponse{
		Status: workflow.StatusOK,
		Output: wctx.Input,
		Extras: map[string]any{
			"tool":      label,
			"operation": operation,
			"key":       key,
			"namespace": namespace,
			"previous":  previous,
			"stored":    stored,
		},
	}
}

func containsAny(list []any, v any) bool {
	for _, e := range list {
		if fmt.Sprint(e) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}

// textTransform applies a node-configured transform ("trim", "reverse",
// "title", or a template containing "{input}") to the current input.
func (d *ToolDriver) textTransform(node workflow.Node, wctx workflow.Context, label string) workflow.DriverResponse {
	s, _ := wctx.Input.(string)
	mode := node.DataStringOr("transform", "trim")

	var out string
	switch mode {
	case "trim":
		out = strings.TrimSpace(s)
	case "reverse":
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		out = string(r)
	case "title":
		out = strings.Title(strings.ToLower(s)) //nolint:staticcheck
	default:
		out = strings.ReplaceAll(mode, "{input}", s)
	}

	return workflow.DriverResponse{Status: workflow.StatusOK, Output: out, Extras: map[string]any{"tool": label}}
}

// jsonValidator reports whether the current input parses as JSON,
// returning the decoded value on success and routing "invalid" on failure
// via an error-carrying but status-ok response (a malformed payload is an
// expected outcome, not a driver fault).
func (d *ToolDriver) jsonValidator(wctx workflow.Context, label string) workflow.DriverResponse {
	s, ok := wctx.Input.(string)
	if !ok {
		return workflow.DriverResponse{Status: workflow.StatusOK, Route: "invalid", Extras: map[string]any{"tool": label}}
	}

	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return workflow.DriverResponse{
			Status: workflow.StatusOK,
			Route:  "invalid",
			Error:  err.Error(),
			Extras: map[string]any{"tool": label},
		}
	}

	return workflow.DriverResponse{Status: workflow.StatusOK, Output: v, Route: "valid", Extras: map[string]any{"tool": label}}
}
