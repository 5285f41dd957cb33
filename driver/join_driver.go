package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/orchestrator/workflow"
)

// JoinDriver combines values from one or more sources — by default the
// parallel-branch results the Parallel Coordinator deposited into
// Context.ParallelResults — according to a configured merge strategy.
// Grounded on original_source's JoinDriver.
type JoinDriver struct{}

func (JoinDriver) Type() string { return "join" }

func (JoinDriver) Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse {
	strategy := node.DataStringOr("merge_strategy", "list")
	separator := node.DataString("separator")

	var values []any
	if sources, ok := node.Data["sources"].([]any); ok && len(sources) > 0 {
		for _, s := range sources {
			src, _ := s.(string)
			if v := valueFromSource(src, wctx); v != nil {
				values = append(values, v)
			}
		}
	} else {
		values = wctx.ParallelResults
	}

	return workflow.DriverResponse{Status: workflow.StatusOK, Output: mergeValues(values, strategy, separator)}
}

func valueFromSource(source string, wctx workflow.Context) any {
	switch {
	case source == "input":
		return wctx.Input
	case source == "parallel_results":
		out := make([]any, len(wctx.ParallelResults))
		copy(out, wctx.ParallelResults)
		return out
	case strings.HasPrefix(source, "state."):
		return wctx.State[strings.TrimPrefix(source, "state.")]
	case strings.HasPrefix(source, "params."):
		return wctx.Params[strings.TrimPrefix(source, "params.")]
	default:
		return nil
	}
}

func mergeValues(values []any, strategy, separator string) any {
	if len(values) == 0 {
		return nil
	}

	switch strategy {
	case "first":
		return values[0]
	case "last":
		return values[len(values)-1]
	case "concat":
		return joinStrings(values, "")
	case "join":
		return joinStrings(values, separator)
	case "merge":
		merged := make(map[string]any)
		for _, v := range values {
			if m, ok := v.(map[string]any); ok {
				for k, mv := range m {
					merged[k] = mv
				}
			}
		}
		return merged
	default: // "list"
		var out []any
		for _, v := range values {
			if list, ok := v.([]any); ok {
				out = append(out, list...)
			} else {
				out = append(out, v)
			}
		}
		return out
	}
}

func joinStrings(values []any, separator string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			parts[i] = ""
			continue
		}
		if s, ok := v.(string); ok {
			parts[i] = s
			continue
		}
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, separator)
}
