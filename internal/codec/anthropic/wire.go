// Package anthropic translates between the canonical IR and the Anthropic
// Messages wire format, and is
// also used to talk to an upstream configured with provider: anthropic.
package anthropic

import "encoding/json"

type wireRequest struct {
	Model         string          `json:"model"`
	System        string          `json:"system,omitempty"`
	Messages      []wireMessage   `json:"messages"`
	MaxTokens     int64           `json:"max_tokens"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Tools         []wireTool      `json:"tools,omitempty"`
	ToolChoice    *wireToolChoice `json:"tool_choice,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
}

type wireMessage struct {
	Role    string       `json:"role"`
	Content []wireBlock  `json:"content"`
}

// wireBlock is every content-block shape Anthropic's Messages API uses,
// folded into one struct since Go has no sum types; only the fields for
// Type are populated.
type wireBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text,omitempty"`
	Thinking string         `json:"thinking,omitempty"`
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	// image
	Source *wireImageSource `json:"source,omitempty"`
}

type wireImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

type wireToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type wireResponse struct {
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	Role         string      `json:"role"`
	Model        string      `json:"model"`
	Content      []wireBlock `json:"content"`
	StopReason   string      `json:"stop_reason"`
	StopSequence *string     `json:"stop_sequence"`
	Usage        wireUsage   `json:"usage"`
}

type wireUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens,omitempty"`
}

// Streaming event payloads. Anthropic SSE sends a distinct JSON shape per
// "event:" line; these mirror each one.

type wireMessageStartEvent struct {
	Message wireResponse `json:"message"`
}

type wireContentBlockStartEvent struct {
	Index        int       `json:"index"`
	ContentBlock wireBlock `json:"content_block"`
}

type wireContentBlockDeltaEvent struct {
	Index int            `json:"index"`
	Delta wireBlockDelta `json:"delta"`
}

type wireBlockDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
}

type wireContentBlockStopEvent struct {
	Index int `json:"index"`
}

// wireErrorEnvelope is the Anthropic error shape:
// {"type":"error","error":{"type","message"}}.
type wireErrorEnvelope struct {
	Type  string        `json:"type"`
	Error wireErrorBody `json:"error"`
}

type wireErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type wireMessageDeltaEvent struct {
	Delta struct {
		StopReason   string  `json:"stop_reason"`
		StopSequence *string `json:"stop_sequence"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}
