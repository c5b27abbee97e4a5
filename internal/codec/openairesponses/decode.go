package openairesponses

import (
	"encoding/json"

	"github.com/nexusgate/llm-gateway/internal/apperrors"
	"github.com/nexusgate/llm-gateway/internal/ir"
)

// DecodeRequest parses an OpenAI Responses API request body into the
// canonical IR.
func DecodeRequest(body []byte) (ir.Request, error) {
	var w wireRequest
	if err := json.Unmarshal(body, &w); err != nil {
		return ir.Request{}, apperrors.InvalidRequest("malformed responses request body", err)
	}

	req := ir.Request{
		IngressAPI:   ir.IngressOpenAIResponses,
		Model:        w.Model,
		Stream:       w.Stream,
		SystemPrompt: w.Instructions,
	}

	for _, it := range w.Input {
		switch it.Type {
		case "message":
			role := ir.RoleFromOpenAIString(it.Role)
			msg := ir.Message{Role: role}
			for _, c := range it.Content {
				switch c.Type {
				case "input_text", "output_text", "text":
					msg.Parts = append(msg.Parts, ir.TextPart{Text: c.Text})
				case "refusal":
					msg.Parts = append(msg.Parts, ir.RefusalPart{Text: c.Refusal})
				case "input_image":
					msg.Parts = append(msg.Parts, ir.ImageURLPart{URL: c.ImageURL, Detail: c.Detail})
				}
			}
			req.Messages = append(req.Messages, msg)

		case "function_call":
			req.Messages = append(req.Messages, ir.Message{
				Role:  ir.RoleAssistant,
				Parts: []ir.Part{ir.ToolCallPart{ID: it.CallID, Name: it.Name, Arguments: it.Arguments}},
			})

		case "function_call_output":
			req.Messages = append(req.Messages, ir.Message{
				Role:       ir.RoleTool,
				ToolCallID: it.CallID,
				Parts:      []ir.Part{ir.ToolResultPart{ToolCallID: it.CallID, Content: it.Output}},
			})
		}
	}

	for _, t := range w.Tools {
		if t.Type != "function" && t.Type != "" {
			continue
		}
		req.Tools = append(req.Tools, ir.ToolSpec{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}

	req.ToolChoice = decodeToolChoice(w.ToolChoice)

	req.GenerationParams = ir.GenerationParams{
		Temperature:     w.Temperature,
		TopP:            w.TopP,
		MaxOutputTokens: w.MaxOutputTokens,
	}

	return req, nil
}

func decodeToolChoice(raw any) ir.ToolChoice {
	switch v := raw.(type) {
	case nil:
		return ir.ToolChoice{}
	case string:
		switch v {
		case "none":
			return ir.NoneToolChoice()
		case "required":
			return ir.RequiredToolChoice()
		default:
			return ir.AutoToolChoice()
		}
	case map[string]any:
		// Responses API spells a specific function choice flat:
		// {"type":"function","name":"X"} (no nested "function" object, unlike
		// Chat Completions).
		if name, ok := v["name"].(string); ok {
			return ir.SpecificToolChoice(name)
		}
		return ir.AutoToolChoice()
	default:
		return ir.AutoToolChoice()
	}
}

// DecodeResponse parses a non-streaming Responses API response body from an
// upstream configured with provider: openai_responses into the canonical
// Response.
func DecodeResponse(body []byte) (ir.Response, error) {
	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return ir.Response{}, apperrors.Translation("malformed responses response body", err)
	}

	resp := ir.Response{ID: w.ID, Model: w.Model}
	hasToolCall := false

	for _, it := range w.Output {
		switch it.Type {
		case "message":
			for _, c := range it.Content {
				switch c.Type {
				case "output_text", "text":
					resp.Content = append(resp.Content, ir.TextPart{Text: c.Text})
				case "refusal":
					resp.Content = append(resp.Content, ir.RefusalPart{Text: c.Refusal})
				}
			}
		case "function_call":
			hasToolCall = true
			resp.Content = append(resp.Content, ir.ToolCallPart{ID: it.CallID, Name: it.Name, Arguments: it.Arguments})
		}
	}

	resp.StopReason = decodeStopReason(w, hasToolCall)

	if w.Usage != nil {
		resp.Usage = ir.Usage{
			InputTokens:  w.Usage.InputTokens,
			OutputTokens: w.Usage.OutputTokens,
			TotalTokens:  w.Usage.TotalTokens,
		}
		if w.Usage.InputTokensDetails != nil && w.Usage.InputTokensDetails.CachedTokens > 0 {
			cached := w.Usage.InputTokensDetails.CachedTokens
			noCache := w.Usage.InputTokens - cached
			resp.Usage.InputDetails = &ir.InputTokenDetails{NoCacheTokens: &noCache, CacheReadTokens: &cached}
		}
		if w.Usage.OutputTokensDetails != nil && w.Usage.OutputTokensDetails.ReasoningTokens > 0 {
			reasoning := w.Usage.OutputTokensDetails.ReasoningTokens
			text := w.Usage.OutputTokens - reasoning
			resp.Usage.OutputDetails = &ir.OutputTokenDetails{TextTokens: &text, ReasoningTokens: &reasoning}
		}
	}

	return resp, nil
}

// decodeStopReason maps the Responses API's status/incomplete_details pair
// to canonical StopReason, upgrading to ToolCalls whenever the output
// contained a function_call item regardless of status.
func decodeStopReason(w wireResponse, hasToolCall bool) ir.StopReason {
	if hasToolCall {
		return ir.StopToolCalls
	}
	if w.Status == "incomplete" && w.IncompleteDetails != nil && w.IncompleteDetails.Reason == "max_output_tokens" {
		return ir.StopMaxTokens
	}
	return ir.StopEndOfTurn
}
