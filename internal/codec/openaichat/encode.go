package openaichat

import (
	"encoding/json"

	"github.com/nexusgate/llm-gateway/internal/apperrors"
	"github.com/nexusgate/llm-gateway/internal/ir"
)

// EncodeRequest renders the canonical IR as an OpenAI Chat Completions
// request body, for dispatch to an upstream configured with provider:
// openai.
func EncodeRequest(req ir.Request) ([]byte, error) {
	w := wireRequest{
		Model:  req.Model,
		Stream: req.Stream,
	}

	if req.SystemPrompt != "" {
		w.Messages = append(w.Messages, wireMessage{Role: "system", Content: jsonString(req.SystemPrompt)})
	}
	for _, m := range req.Messages {
		w.Messages = append(w.Messages, encodeMessage(m))
	}

	for _, t := range req.Tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		w.Tools = append(w.Tools, wireTool{
			Type: "function",
			Function: wireToolSpecBody{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	w.ToolChoice = encodeToolChoice(req.ToolChoice)

	w.Temperature = req.GenerationParams.Temperature
	w.TopP = req.GenerationParams.TopP
	w.MaxTokens = req.GenerationParams.MaxOutputTokens
	w.Stop = req.GenerationParams.StopSequences

	b, err := json.Marshal(w)
	if err != nil {
		return nil, apperrors.Translation("failed to encode chat completions request", err)
	}
	return b, nil
}

func jsonString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func encodeMessage(m ir.Message) wireMessage {
	w := wireMessage{Role: ir.OpenAIRoleString(m.Role), Name: m.Name, ToolCallID: m.ToolCallID}

	if m.Role == ir.RoleTool {
		var content string
		for _, p := range m.Parts {
			if tr, ok := p.(ir.ToolResultPart); ok {
				content += tr.Content
			}
		}
		w.Content = jsonString(content)
		return w
	}

	var text string
	var hasImage bool
	for _, p := range m.Parts {
		switch v := p.(type) {
		case ir.TextPart:
			text += v.Text
		case ir.ReasoningPart:
			// OpenAI Chat Completions has no wire slot for reasoning text on
			// replay; it is dropped, matching how this dialect has never
			// round-tripped it.
		case ir.RefusalPart:
			w.Refusal = v.Text
		case ir.ImageURLPart:
			hasImage = true
		case ir.ToolCallPart:
			idx := len(w.ToolCalls)
			w.ToolCalls = append(w.ToolCalls, wireToolCall{
				Index: &idx,
				ID:    v.ID,
				Type:  "function",
				Function: wireToolFunction{
					Name:      v.Name,
					Arguments: v.Arguments,
				},
			})
		}
	}

	if hasImage {
		var items []wireContentPart
		for _, p := range m.Parts {
			switch v := p.(type) {
			case ir.TextPart:
				items = append(items, wireContentPart{Type: "text", Text: v.Text})
			case ir.ImageURLPart:
				items = append(items, wireContentPart{Type: "image_url", ImageURL: &wireImageURL{URL: v.URL, Detail: v.Detail}})
			}
		}
		b, _ := json.Marshal(items)
		w.Content = b
	} else if text != "" || len(w.ToolCalls) == 0 {
		w.Content = jsonString(text)
	}

	return w
}

func encodeToolChoice(tc ir.ToolChoice) any {
	switch tc.Kind {
	case ir.ToolChoiceNone:
		return "none"
	case ir.ToolChoiceRequired:
		return "required"
	case ir.ToolChoiceSpecific:
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": tc.Name},
		}
	case ir.ToolChoiceAuto:
		return "auto"
	default:
		return nil
	}
}

// EncodeResponse renders a canonical Response as a non-streaming OpenAI
// Chat Completions response body, for an OpenAI-ingress client.
func EncodeResponse(resp ir.Response) ([]byte, error) {
	msg := wireMessage{Role: "assistant"}
	var text string
	for _, p := range resp.Content {
		switch v := p.(type) {
		case ir.TextPart:
			text += v.Text
		case ir.RefusalPart:
			msg.Refusal = v.Text
		case ir.ToolCallPart:
			idx := len(msg.ToolCalls)
			msg.ToolCalls = append(msg.ToolCalls, wireToolCall{
				Index: &idx,
				ID:    v.ID,
				Type:  "function",
				Function: wireToolFunction{
					Name:      v.Name,
					Arguments: v.Arguments,
				},
			})
		}
	}
	if text != "" || len(msg.ToolCalls) == 0 {
		msg.Content = jsonString(text)
	}

	w := wireResponse{
		ID:     resp.ID,
		Object: "chat.completion",
		Model:  resp.Model,
		Choices: []wireChoice{
			{Index: 0, Message: msg, FinishReason: ir.OpenAIStopReasonString(resp.StopReason)},
		},
		Usage: encodeUsage(resp.Usage),
	}

	b, err := json.Marshal(w)
	if err != nil {
		return nil, apperrors.Translation("failed to encode chat completions response", err)
	}
	return b, nil
}

// EncodeError renders an apperrors-style failure in the
// OpenAI-family error shape: {"error":{"message","type","code"}}.
func EncodeError(kind, message string) []byte {
	b, _ := json.Marshal(wireErrorEnvelope{Error: wireErrorBody{Message: message, Type: kind, Code: kind}})
	return b
}

func encodeUsage(u ir.Usage) *wireUsage {
	w := &wireUsage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.TotalTokens,
	}
	if u.InputDetails != nil && u.InputDetails.CacheReadTokens != nil {
		w.PromptTokensDetails = &wirePromptTokenDetails{CachedTokens: u.InputDetails.CacheReadTokens}
	}
	if u.OutputDetails != nil && u.OutputDetails.ReasoningTokens != nil {
		w.CompletionTokensDetails = &wireCompletionTokenDetails{ReasoningTokens: u.OutputDetails.ReasoningTokens}
	}
	return w
}

// DecodeResponse parses a non-streaming OpenAI Chat Completions response
// body from an upstream configured with provider: openai into the
// canonical Response.
func DecodeResponse(body []byte) (ir.Response, error) {
	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return ir.Response{}, apperrors.Translation("malformed chat completions response body", err)
	}

	resp := ir.Response{ID: w.ID, Model: w.Model}
	if len(w.Choices) > 0 {
		c := w.Choices[0]
		text, err := decodeMessageText(c.Message.Content)
		if err != nil {
			return ir.Response{}, err
		}
		if text != "" {
			resp.Content = append(resp.Content, ir.TextPart{Text: text})
		}
		if c.Message.Refusal != "" {
			resp.Content = append(resp.Content, ir.RefusalPart{Text: c.Message.Refusal})
		}
		for _, tc := range c.Message.ToolCalls {
			resp.Content = append(resp.Content, ir.ToolCallPart{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		hasCalls := len(c.Message.ToolCalls) > 0
		resp.StopReason = ir.StopReasonFromOpenAIString(c.FinishReason)
		if hasCalls {
			resp.StopReason = ir.StopToolCalls
		}
	}

	if w.Usage != nil {
		resp.Usage = decodeUsage(*w.Usage)
	}

	return resp, nil
}

func decodeUsage(w wireUsage) ir.Usage {
	u := ir.Usage{
		InputTokens:  w.PromptTokens,
		OutputTokens: w.CompletionTokens,
		TotalTokens:  w.TotalTokens,
	}
	if w.PromptTokensDetails != nil && w.PromptTokensDetails.CachedTokens != nil {
		cached := *w.PromptTokensDetails.CachedTokens
		noCache := w.PromptTokens - cached
		u.InputDetails = &ir.InputTokenDetails{NoCacheTokens: &noCache, CacheReadTokens: &cached}
	}
	if w.CompletionTokensDetails != nil && w.CompletionTokensDetails.ReasoningTokens != nil {
		reasoning := *w.CompletionTokensDetails.ReasoningTokens
		text := w.CompletionTokens - reasoning
		u.OutputDetails = &ir.OutputTokenDetails{TextTokens: &text, ReasoningTokens: &reasoning}
	}
	return u
}
