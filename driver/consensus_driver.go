package driver

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/orchestrator/workflow"
)

// ConsensusDriver analyzes agreement among a list of responses (typically
// the output of a Join node collecting parallel agent branches).
// Grounded on original_source's ConsensusDriver (consensus.py).
//
// The "llm_judge" method needs a judge agent connected to the node's
// judge-left/judge-right handle; the Context Builder resolves that edge and
// places the judge Node under wctx.Extras["judgeNode"], and Registry lets
// this driver dispatch to whichever agent driver the judge node names.
type ConsensusDriver struct {
	Registry *Registry
}

func NewConsensusDriver(registry *Registry) *ConsensusDriver {
	return &ConsensusDriver{Registry: registry}
}

func (ConsensusDriver) Type() string { return "consensus" }

func (d *ConsensusDriver) Execute(ctx context.Context, node workflow.Node, wctx workflow.Context) workflow.DriverResponse {
	method := node.DataStringOr("method", "llm_judge")
	thresholdRaw, _ := node.Data["threshold"]
	returnAll := true
	if v, ok := node.Data["return_all"].(bool); ok {
		returnAll = v
	}

	responses, ok := wctx.Input.([]any)
	if !ok {
		return workflow.ErrorResponse("consensus node requires a list of responses as input; use a join node before consensus")
	}
	if len(responses) == 0 {
		return workflow.ErrorResponse("consensus node received empty list of responses")
	}

	threshold := parseThreshold(thresholdRaw, len(responses))

	var result consensusResult
	var err error
	switch method {
	case "exact":
		result = exactConsensus(responses, threshold)
	case "semantic":
		result = semanticConsensus(responses, threshold)
	case "llm_judge":
		result, err = d.llmJudgeConsensus(ctx, node, wctx, responses, threshold)
	default:
		return workflow.ErrorResponse(fmt.Sprintf("unknown consensus method: %s", method))
	}
	if err != nil {
		return workflow.ErrorResponse(err.Error())
	}

	output := map[string]any{
		"consensus":      result.consensus,
		"agreement_rate": result.agreementRate,
		"answer":         result.answer,
		"analysis":       result.analysis,
	}
	if returnAll {
		output["responses"] = responses
		output["disagreements"] = result.disagreements
	}

	return workflow.DriverResponse{Status: workflow.StatusOK, Output: output}
}

type consensusResult struct {
	consensus     bool
	agreementRate float64
	answer        any
	analysis      string
	disagreements []any
}

func parseThreshold(raw any, n int) float64 {
	switch v := raw.(type) {
	case string:
		switch v {
		case "majority", "":
			return 0.5
		case "unanimous":
			return 1.0
		default:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
			return 0.5
		}
	case float64:
		return v
	default:
		return 0.5
	}
}

func normalizeResponse(r any) string {
	if r == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(fmt.Sprint(r)))
}

func exactConsensus(responses []any, threshold float64) consensusResult {
	counts := make(map[string]int)
	firstSeen := make(map[string]any)
	order := make([]string, 0)
	for _, r := range responses {
		norm := normalizeResponse(r)
		if _, ok := counts[norm]; !ok {
			firstSeen[norm] = r
			order = append(order, norm)
		}
		counts[norm]++
	}

	mostCommon := order[0]
	for _, norm := range order {
		if counts[norm] > counts[mostCommon] {
			mostCommon = norm
		}
	}

	agreementRate := float64(counts[mostCommon]) / float64(len(responses))
	consensus := agreementRate > threshold

	var disagreements []any
	for _, r := range responses {
		if normalizeResponse(r) != mostCommon {
			disagreements = append(disagreements, r)
		}
	}

	status := "No consensus."
	if consensus {
		status = "Consensus reached."
	}
	return consensusResult{
		consensus:     consensus,
		agreementRate: agreementRate,
		answer:        firstSeen[mostCommon],
		analysis: fmt.Sprintf("Exact match: %d/%d responses agree (%.1f%%). %s",
			counts[mostCommon], len(responses), agreementRate*100, status),
		disagreements: disagreements,
	}
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "were": true, "been": true, "be": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true,
}

func semanticallySimilar(a, b string) bool {
	if a == "" || b == "" {
		return a == b
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	wa := contentWords(a)
	wb := contentWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}
	overlap, union := 0, len(wa)
	seen := make(map[string]bool, len(wa))
	for w := range wa {
		seen[w] = true
	}
	for w := range wb {
		if seen[w] {
			overlap++
		} else {
			union++
		}
	}
	if union == 0 {
		return false
	}
	return float64(overlap)/float64(union) > 0.5
}

func contentWords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		if !stopWords[w] {
			out[w] = true
		}
	}
	return out
}

func semanticConsensus(responses []any, threshold float64) consensusResult {
	normalized := make([]string, len(responses))
	for i, r := range responses {
		normalized[i] = normalizeResponse(r)
	}

	var groups [][]int
	for i, norm := range normalized {
		placed := false
		for gi, group := range groups {
			if semanticallySimilar(norm, normalized[group[0]]) {
				groups[gi] = append(group, i)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []int{i})
		}
	}

	largest := groups[0]
	for _, g := range groups {
		if len(g) > len(largest) {
			largest = g
		}
	}

	inLargest := make(map[int]bool, len(largest))
	for _, i := range largest {
		inLargest[i] = true
	}

	agreementRate := float64(len(largest)) / float64(len(responses))
	consensus := agreementRate > threshold

	var disagreements []any
	for i, r := range responses {
		if !inLargest[i] {
			disagreements = append(disagreements, r)
		}
	}

	status := "No consensus."
	if consensus {
		status = "Consensus reached."
	}
	return consensusResult{
		consensus:     consensus,
		agreementRate: agreementRate,
		answer:        responses[largest[0]],
		analysis: fmt.Sprintf("Semantic analysis: %d/%d responses are similar (%.1f%%). %s",
			len(largest), len(responses), agreementRate*100, status),
		disagreements: disagreements,
	}
}

var judgeLinePattern = regexp.MustCompile(`(?i)^(CONSENSUS|AGREEMENT|ANSWER|DISAGREEING|ANALYSIS):\s*(.*)$`)
var numberPattern = regexp.MustCompile(`\d+`)
var percentPattern = regexp.MustCompile(`\d+(\.\d+)?`)

func (d *ConsensusDriver) llmJudgeConsensus(ctx context.Context, node workflow.Node, wctx workflow.Context, responses []any, threshold float64) (consensusResult, error) {
	judgeNode, ok := wctx.Extra("judgeNode").(workflow.Node)
	if !ok {
		return consensusResult{}, fmt.Errorf("llm_judge method requires a judge agent node connected to the judge-left or judge-right handle")
	}

	validAgentTypes := map[string]bool{"claude_agent": true, "openai_agent": true, "google_agent": true}
	if !validAgentTypes[judgeNode.Type] {
		return consensusResult{}, fmt.Errorf("connected judge node must be an agent (claude_agent, openai_agent, google_agent); got %q", judgeNode.Type)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze the following %d responses and determine if they agree on the same answer.\n\n", len(responses))
	for i, r := range responses {
		fmt.Fprintf(&sb, "Response %d:\n%v\n\n", i+1, r)
	}
	sb.WriteString("Please analyze:\n" +
		"1. Do these responses fundamentally agree? (yes/no)\n" +
		"2. What percentage agree? (0-100)\n" +
		"3. What is the consensus answer?\n" +
		"4. Which response numbers disagree? (e.g., \"4, 5\")\n" +
		"5. Brief explanation of agreement/disagreement\n\n" +
		"Format your response as:\n" +
		"CONSENSUS: [yes/no]\nAGREEMENT: [percentage]\nANSWER: [consensus answer]\n" +
		"DISAGREEING: [comma-separated response numbers that disagree]\nANALYSIS: [brief explanation]")

	judgeData := map[string]any{}
	for k, v := range judgeNode.Data {
		judgeData[k] = v
	}
	judgeData["system_prompt"] = "You are an expert at analyzing and comparing responses to determine consensus."
	judgeCopy := workflow.Node{ID: judgeNode.ID, Type: judgeNode.Type, Data: judgeData}

	judgeCtx := workflow.NewContext()
	judgeCtx.Input = sb.String()

	result := d.Registry.Dispatch(ctx, judgeCopy, judgeCtx)
	if !result.OK() {
		return consensusResult{}, fmt.Errorf("judge agent failed: %s", result.Error)
	}

	llmResponse, _ := result.Output.(string)
	return parseJudgment(llmResponse, threshold, responses), nil
}

func parseJudgment(llmResponse string, threshold float64, responses []any) consensusResult {
	var consensus bool
	var agreementRate float64
	var answer, analysis string
	var disagreeing []int

	for _, line := range strings.Split(strings.TrimSpace(llmResponse), "\n") {
		m := judgeLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		switch strings.ToUpper(m[1]) {
		case "CONSENSUS":
			lower := strings.ToLower(m[2])
			consensus = strings.Contains(lower, "yes") || strings.Contains(lower, "true")
		case "AGREEMENT":
			if match := percentPattern.FindString(m[2]); match != "" {
				if f, err := strconv.ParseFloat(match, 64); err == nil {
					agreementRate = f / 100.0
				}
			}
		case "ANSWER":
			answer = strings.TrimSpace(m[2])
		case "DISAGREEING":
			text := strings.ToLower(strings.TrimSpace(m[2]))
			if text != "none" && text != "n/a" && text != "" {
				for _, numStr := range numberPattern.FindAllString(m[2], -1) {
					if n, err := strconv.Atoi(numStr); err == nil {
						disagreeing = append(disagreeing, n)
					}
				}
			}
		case "ANALYSIS":
			analysis = strings.TrimSpace(m[2])
		}
	}

	finalConsensus := consensus && agreementRate > threshold
	if analysis == "" {
		analysis = llmResponse
	}

	var disagreements []any
	for _, n := range disagreeing {
		idx := n - 1
		if idx >= 0 && idx < len(responses) {
			disagreements = append(disagreements, responses[idx])
		}
	}

	finalAnswer := any(answer)
	if answer == "" {
		finalAnswer = llmResponse
	}

	return consensusResult{
		consensus:     finalConsensus,
		agreementRate: agreementRate,
		answer:        finalAnswer,
		analysis:      analysis,
		disagreements: disagreements,
	}
}
