// Package llmclient wraps the graph's model.ChatModel with the structured
// JSON request/response conventions the planner nodes share: a system
// instruction demanding a single JSON object, defensive fenced-code-block
// stripping, and a uniform "generation failed" signal instead of a parse
// panic.
package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/Aahiro/deerhacks/graph"
	"github.com/Aahiro/deerhacks/graph/model"
)

// ErrUnavailable is returned when the underlying model is nil or the
// provider call itself failed — the generate(prompt) → text | null
// contract's "null" case.
var ErrUnavailable = errors.New("llm unavailable")

// Client generates structured JSON completions on top of a model.ChatModel.
type Client struct {
	Model   model.ChatModel
	Tracker *graph.CostTracker
	// PricingKey names the model entry the Tracker should bill calls
	// against; empty disables cost tracking for this client.
	PricingKey string
}

// New builds a Client. tracker may be nil to disable cost accounting.
func New(m model.ChatModel, tracker *graph.CostTracker, pricingKey string) *Client {
	return &Client{Model: m, Tracker: tracker, PricingKey: pricingKey}
}

// ImageInput is a photo to attach to a multimodal prompt.
type ImageInput struct {
	MediaType string
	Data      []byte
}

// GenerateJSON sends a system instruction plus a user prompt (optionally
// with inline images) and unmarshals the reply into out. It returns
// ErrUnavailable when the model is unset or the call fails, and a plain
// error when the reply is not valid JSON after fence-stripping — callers
// decide whether that maps to a fallback value. nodeID attributes the
// call's cost, when a tracker is configured.
func (c *Client) GenerateJSON(ctx context.Context, nodeID, system, prompt string, images []ImageInput, out any) error {
	if c == nil || c.Model == nil {
		return ErrUnavailable
	}

	userMsg := model.Message{Role: model.RoleUser, Content: prompt}
	for _, img := range images {
		userMsg.Images = append(userMsg.Images, model.ImagePart{MediaType: img.MediaType, Data: img.Data})
	}

	messages := []model.Message{
		{Role: model.RoleSystem, Content: system},
		userMsg,
	}

	chatOut, err := c.Model.Chat(ctx, messages, nil)
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}

	c.recordCost(nodeID, system, prompt, chatOut)

	cleaned := StripFences(chatOut.Text)
	if cleaned == "" {
		return errors.New("empty llm response")
	}

	return json.Unmarshal([]byte(cleaned), out)
}

// recordCost estimates token usage from rune counts, since model.ChatOut
// carries no provider usage metadata. This is an approximation good enough
// for relative cost attribution across nodes, not billing reconciliation.
func (c *Client) recordCost(nodeID, system, prompt string, out model.ChatOut) {
	if c.Tracker == nil || c.PricingKey == "" {
		return
	}
	inputTokens := estimateTokens(system) + estimateTokens(prompt)
	outputTokens := estimateTokens(out.Text)
	_ = c.Tracker.RecordLLMCall(c.PricingKey, inputTokens, outputTokens, nodeID)
}

// estimateTokens approximates token count at ~4 characters per token.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// StripFences removes a leading/trailing markdown code fence (``` or
// ```json) around an LLM reply, defensively, the way every JSON-demanding
// node in this pipeline must before calling json.Unmarshal.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(trimmed[:nl])
		if firstLine == "json" || firstLine == "" {
			trimmed = trimmed[nl+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
