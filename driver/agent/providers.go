package agent

import (
	"github.com/dshills/orchestrator/driver"
	"github.com/dshills/orchestrator/graph/model/anthropic"
	"github.com/dshills/orchestrator/graph/model/google"
	"github.com/dshills/orchestrator/graph/model/openai"
)

// NewClaudeAgent returns the "claude_agent" node driver, backed by
// github.com/anthropics/anthropic-sdk-go via the teacher's anthropic
// ChatModel adapter.
func NewClaudeAgent(apiKey, modelName string, registry *driver.Registry) *Driver {
	return New("claude_agent", anthropic.NewChatModel(apiKey, modelName), registry)
}

// NewOpenAIAgent returns the "openai_agent" node driver, backed by
// github.com/openai/openai-go via the teacher's openai ChatModel adapter.
func NewOpenAIAgent(apiKey, modelName string, registry *driver.Registry) *Driver {
	return New("openai_agent", openai.NewChatModel(apiKey, modelName), registry)
}

// NewGoogleAgent returns the "google_agent" node driver, backed by
// github.com/google/generative-ai-go via the teacher's google ChatModel
// adapter.
func NewGoogleAgent(apiKey, modelName string, registry *driver.Registry) *Driver {
	return New("google_agent", google.NewChatModel(apiKey, modelName), registry)
}
