// Package ctxbuild implements the Context Builder (spec.md §4.5): for
// agent-type nodes it scans every edge incident to the node, pulling
// connected memory nodes into wctx.Knowledge and connected tool nodes into
// wctx.AgentTools/AgentToolNodes, and for consensus nodes it resolves the
// judge-left/judge-right handle into wctx.Extras["judgeNode"]. It also
// threads the graph's edge/node maps into wctx.Extras so loop/for_each
// drivers can find their body/exit handles, mirroring original_source's
// context['_edges']/context['_nodes'] convention.
//
// Grounded on original_source/api/orchestration/workflow_executor.py's
// _build_agent_context and consensus.py's _find_connected_judge.
package ctxbuild

import (
	"context"

	"github.com/dshills/orchestrator/kvstore"
	"github.com/dshills/orchestrator/workflow"
)

var agentTypes = map[string]bool{
	"claude_agent": true,
	"openai_agent": true,
	"google_agent": true,
}

// Builder assembles per-node execution context ahead of driver dispatch.
type Builder struct {
	Store *kvstore.Manager
}

func New(store *kvstore.Manager) *Builder {
	return &Builder{Store: store}
}

// Build returns wctx augmented with whatever node's type needs: agent nodes
// get Knowledge/AgentTools populated from their connected memory/tool
// neighbors, consensus nodes get a resolved judge node, and every node gets
// the graph's edges/node-by-id map threaded into Extras for drivers that
// need to see graph structure (loop, for_each, consensus).
func (b *Builder) Build(ctx context.Context, node workflow.Node, g workflow.Graph, wctx workflow.Context) workflow.Context {
	nodeByID := make(map[string]workflow.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		nodeByID[n.ID] = n
	}

	out := wctx
	out.Extras = cloneExtras(wctx.Extras)
	out.Extras["_edges"] = g.Edges
	out.Extras["_nodes"] = nodeByID

	if agentTypes[node.Type] {
		out = b.buildAgentContext(ctx, node, g, nodeByID, out)
	}
	if node.Type == "consensus" {
		out = resolveJudge(node, g, nodeByID, out)
	}
	return out
}

func (b *Builder) buildAgentContext(ctx context.Context, node workflow.Node, g workflow.Graph, nodeByID map[string]workflow.Node, wctx workflow.Context) workflow.Context {
	knowledge := map[string]any{}
	var memNodes []workflow.MemorySpec
	memNodeMap := map[string]workflow.Node{}
	var toolSpecs []workflow.ToolSpec
	toolNodeMap := map[string]workflow.Node{}

	for _, e := range g.Edges {
		otherID := ""
		switch node.ID {
		case e.Source:
			otherID = e.Target
		case e.Target:
			otherID = e.Source
		default:
			continue
		}
		if otherID == "" {
			continue
		}
		other, ok := nodeByID[otherID]
		if !ok {
			continue
		}

		switch other.Type {
		case "memory":
			key := other.DataStringOr("key", "memory")
			namespace := other.DataStringOr("namespace", "default")
			val, _ := b.Store.Get(ctx, namespace, key)
			knowledge[key] = val
			memNodes = append(memNodes, workflow.MemorySpec{NodeID: other.ID, Key: key, Namespace: namespace})
			memNodeMap[other.ID] = other

		case "tool":
			name := other.DataStringOr("label", "Tool "+other.ID)
			operation, _ := other.Data["operation"].(string)
			toolSpecs = append(toolSpecs, workflow.ToolSpec{
				NodeID:    other.ID,
				Name:      name,
				Operation: operation,
				Arg:       other.Data["arg"],
			})
			toolNodeMap[name] = other
		}
	}

	if len(knowledge) > 0 {
		wctx.Knowledge = knowledge
		wctx.AgentMemoryNodes = memNodes
		wctx.AgentMemoryNodeMap = memNodeMap
	}
	if len(toolSpecs) > 0 {
		wctx.AgentTools = toolSpecs
		wctx.AgentToolNodes = toolNodeMap
	}
	return wctx
}

// resolveJudge finds the agent node connected to the consensus node's
// judge-left or judge-right target handle, per consensus.py's
// _find_connected_judge. Absence is not an error here: ConsensusDriver
// itself rejects an llm_judge method with no resolved judge.
func resolveJudge(node workflow.Node, g workflow.Graph, nodeByID map[string]workflow.Node, wctx workflow.Context) workflow.Context {
	for _, e := range g.Edges {
		if e.Target != node.ID {
			continue
		}
		if e.TargetHandle != "judge-left" && e.TargetHandle != "judge-right" {
			continue
		}
		if judge, ok := nodeByID[e.Source]; ok {
			return wctx.WithExtra("judgeNode", judge)
		}
	}
	return wctx
}

func cloneExtras(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}
