package anthropic

import (
	"encoding/json"

	"github.com/nexusgate/llm-gateway/internal/apperrors"
	"github.com/nexusgate/llm-gateway/internal/ir"
)

const defaultMaxTokens = 4096

// EncodeRequest renders the canonical IR as an Anthropic Messages request
// body, for dispatch to an upstream configured with provider: anthropic.
// Anthropic requires max_tokens; a
// request with none set falls back to defaultMaxTokens.
func EncodeRequest(req ir.Request) ([]byte, error) {
	w := wireRequest{
		Model:         req.Model,
		System:        req.SystemPrompt,
		Stream:        req.Stream,
		Temperature:   req.GenerationParams.Temperature,
		TopP:          req.GenerationParams.TopP,
		StopSequences: req.GenerationParams.StopSequences,
		MaxTokens:     defaultMaxTokens,
	}
	if req.GenerationParams.MaxOutputTokens != nil {
		w.MaxTokens = *req.GenerationParams.MaxOutputTokens
	}

	for _, m := range req.Messages {
		w.Messages = append(w.Messages, encodeMessage(m))
	}

	for _, t := range req.Tools {
		schema := t.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		w.Tools = append(w.Tools, wireTool{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	if tc := encodeToolChoice(req.ToolChoice); tc != nil {
		w.ToolChoice = tc
	}

	b, err := json.Marshal(w)
	if err != nil {
		return nil, apperrors.Translation("failed to encode messages request", err)
	}
	return b, nil
}

// encodeMessage renders one canonical message as an Anthropic message.
// Every role other than Assistant is rendered as "user" here (via
// ir.AnthropicRoleString); a Tool message keeps only its tool results, as
// tool_result blocks.
func encodeMessage(m ir.Message) wireMessage {
	w := wireMessage{Role: ir.AnthropicRoleString(m.Role)}

	if m.Role == ir.RoleTool {
		for _, p := range m.Parts {
			if tr, ok := p.(ir.ToolResultPart); ok {
				w.Content = append(w.Content, wireBlock{Type: "tool_result", ToolUseID: tr.ToolCallID, Content: jsonString(tr.Content)})
			}
		}
		return w
	}

	for _, p := range m.Parts {
		switch v := p.(type) {
		case ir.TextPart:
			w.Content = append(w.Content, wireBlock{Type: "text", Text: v.Text})
		case ir.ReasoningPart:
			w.Content = append(w.Content, wireBlock{Type: "thinking", Thinking: v.Text})
		case ir.ToolCallPart:
			input := json.RawMessage(v.Arguments)
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			w.Content = append(w.Content, wireBlock{Type: "tool_use", ID: v.ID, Name: v.Name, Input: input})
		case ir.ImageURLPart:
			w.Content = append(w.Content, wireBlock{Type: "image", Source: &wireImageSource{Type: "url", URL: v.URL}})
		case ir.RefusalPart:
			w.Content = append(w.Content, wireBlock{Type: "text", Text: v.Text})
		}
	}
	return w
}

func jsonString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func encodeToolChoice(tc ir.ToolChoice) *wireToolChoice {
	switch tc.Kind {
	case ir.ToolChoiceNone:
		return &wireToolChoice{Type: "none"}
	case ir.ToolChoiceRequired:
		return &wireToolChoice{Type: "any"}
	case ir.ToolChoiceSpecific:
		return &wireToolChoice{Type: "tool", Name: tc.Name}
	case ir.ToolChoiceAuto:
		return &wireToolChoice{Type: "auto"}
	default:
		return nil
	}
}

// EncodeError renders an apperrors-style failure in the Anthropic
// error shape: {"type":"error","error":{"type","message"}}.
func EncodeError(kind, message string) []byte {
	b, _ := json.Marshal(wireErrorEnvelope{Type: "error", Error: wireErrorBody{Type: kind, Message: message}})
	return b
}

// EncodeResponse renders a canonical Response as a non-streaming Anthropic
// Messages response body, for an Anthropic-ingress client.
func EncodeResponse(resp ir.Response) ([]byte, error) {
	w := wireResponse{
		ID:    resp.ID,
		Type:  "message",
		Role:  "assistant",
		Model: resp.Model,
	}

	for _, p := range resp.Content {
		switch v := p.(type) {
		case ir.TextPart:
			w.Content = append(w.Content, wireBlock{Type: "text", Text: v.Text})
		case ir.ReasoningPart:
			w.Content = append(w.Content, wireBlock{Type: "thinking", Thinking: v.Text})
		case ir.ToolCallPart:
			input := json.RawMessage(v.Arguments)
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			w.Content = append(w.Content, wireBlock{Type: "tool_use", ID: v.ID, Name: v.Name, Input: input})
		case ir.RefusalPart:
			w.Content = append(w.Content, wireBlock{Type: "text", Text: v.Text})
		}
	}

	w.StopReason = ir.AnthropicStopReasonString(resp.StopReason)
	w.Usage = wireUsage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens}
	if resp.Usage.InputDetails != nil {
		if resp.Usage.InputDetails.CacheReadTokens != nil {
			w.Usage.CacheReadInputTokens = *resp.Usage.InputDetails.CacheReadTokens
		}
		if resp.Usage.InputDetails.CacheWriteTokens != nil {
			w.Usage.CacheCreationInputTokens = *resp.Usage.InputDetails.CacheWriteTokens
		}
	}

	b, err := json.Marshal(w)
	if err != nil {
		return nil, apperrors.Translation("failed to encode messages response", err)
	}
	return b, nil
}
