// Package openairesponses translates between the canonical IR and OpenAI's
// Responses API wire format, and is also used to talk to an upstream
// configured with provider: openai_responses.
package openairesponses

import "encoding/json"

type wireRequest struct {
	Model           string     `json:"model"`
	Input           []wireItem `json:"input"`
	Instructions    string     `json:"instructions,omitempty"`
	MaxOutputTokens *int64     `json:"max_output_tokens,omitempty"`
	Temperature     *float64   `json:"temperature,omitempty"`
	TopP            *float64   `json:"top_p,omitempty"`
	Tools           []wireTool `json:"tools,omitempty"`
	ToolChoice      any        `json:"tool_choice,omitempty"`
	Stream          bool       `json:"stream,omitempty"`
}

// wireItem folds every input/output item shape the Responses API uses into
// one struct; only the fields for Type are populated.
type wireItem struct {
	Type    string            `json:"type"`
	Role    string            `json:"role,omitempty"`
	Content []wireContentPart `json:"content,omitempty"`

	// function_call
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// function_call_output
	Output string `json:"output,omitempty"`
}

type wireContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Refusal  string `json:"refusal,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

type wireTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type wireResponse struct {
	ID     string     `json:"id"`
	Object string     `json:"object"`
	Model  string     `json:"model"`
	Status string     `json:"status"`
	Output []wireItem `json:"output"`
	Usage  *wireUsage `json:"usage,omitempty"`

	IncompleteDetails *wireIncompleteDetails `json:"incomplete_details,omitempty"`
}

type wireIncompleteDetails struct {
	Reason string `json:"reason"`
}

type wireUsage struct {
	InputTokens         int64                    `json:"input_tokens"`
	OutputTokens        int64                    `json:"output_tokens"`
	TotalTokens         int64                    `json:"total_tokens"`
	InputTokensDetails  *wireInputTokensDetails  `json:"input_tokens_details,omitempty"`
	OutputTokensDetails *wireOutputTokensDetails `json:"output_tokens_details,omitempty"`
}

type wireInputTokensDetails struct {
	CachedTokens int64 `json:"cached_tokens,omitempty"`
}

type wireOutputTokensDetails struct {
	ReasoningTokens int64 `json:"reasoning_tokens,omitempty"`
}

// wireStreamEvent folds every response.* SSE event payload into one struct.
type wireStreamEvent struct {
	Type        string        `json:"type"`
	Response    *wireResponse `json:"response,omitempty"`
	OutputIndex int           `json:"output_index,omitempty"`
	Item        *wireItem     `json:"item,omitempty"`
	ItemID      string        `json:"item_id,omitempty"`
	Delta       string        `json:"delta,omitempty"`
	Text        string        `json:"text,omitempty"`
	CallID      string        `json:"call_id,omitempty"`
	Arguments   string        `json:"arguments,omitempty"`
	Error       *wireError    `json:"error,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wireErrorEnvelope is the OpenAI-family error shape, shared with
// internal/codec/openaichat: {"error":{"message","type","code"}}.
type wireErrorEnvelope struct {
	Error wireErrorEnvelopeBody `json:"error"`
}

type wireErrorEnvelopeBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}
