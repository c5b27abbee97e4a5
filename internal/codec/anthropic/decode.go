package anthropic

import (
	"encoding/json"

	"github.com/nexusgate/llm-gateway/internal/apperrors"
	"github.com/nexusgate/llm-gateway/internal/ir"
)

// DecodeRequest parses an Anthropic Messages request body into the
// canonical IR.
func DecodeRequest(body []byte) (ir.Request, error) {
	var w wireRequest
	if err := json.Unmarshal(body, &w); err != nil {
		return ir.Request{}, apperrors.InvalidRequest("malformed messages request body", err)
	}

	req := ir.Request{
		IngressAPI:   ir.IngressAnthropic,
		Model:        w.Model,
		Stream:       w.Stream,
		SystemPrompt: w.System,
	}

	for _, m := range w.Messages {
		role := ir.RoleUser
		if m.Role == "assistant" {
			role = ir.RoleAssistant
		}

		msg := ir.Message{Role: role}
		for _, b := range m.Content {
			switch b.Type {
			case "text":
				msg.Parts = append(msg.Parts, ir.TextPart{Text: b.Text})
			case "thinking":
				msg.Parts = append(msg.Parts, ir.ReasoningPart{Text: b.Thinking})
			case "tool_use", "mcp_tool_use":
				msg.Parts = append(msg.Parts, ir.ToolCallPart{ID: b.ID, Name: b.Name, Arguments: string(b.Input)})
			case "tool_result":
				msg.Parts = append(msg.Parts, ir.ToolResultPart{ToolCallID: b.ToolUseID, Content: decodeToolResultContent(b.Content)})
			case "image":
				if b.Source != nil {
					url := b.Source.URL
					if b.Source.Type == "base64" {
						url = "data:" + b.Source.MediaType + ";base64," + b.Source.Data
					}
					msg.Parts = append(msg.Parts, ir.ImageURLPart{URL: url})
				}
			}
		}
		req.Messages = append(req.Messages, msg)
	}

	for _, t := range w.Tools {
		req.Tools = append(req.Tools, ir.ToolSpec{Name: t.Name, Description: t.Description, Parameters: t.InputSchema})
	}

	if w.ToolChoice != nil {
		switch w.ToolChoice.Type {
		case "none":
			req.ToolChoice = ir.NoneToolChoice()
		case "any":
			req.ToolChoice = ir.RequiredToolChoice()
		case "tool":
			req.ToolChoice = ir.SpecificToolChoice(w.ToolChoice.Name)
		default:
			req.ToolChoice = ir.AutoToolChoice()
		}
	} else if len(req.Tools) > 0 {
		req.ToolChoice = ir.AutoToolChoice()
	}

	req.GenerationParams = ir.GenerationParams{
		Temperature:     w.Temperature,
		TopP:            w.TopP,
		MaxOutputTokens: &w.MaxTokens,
		StopSequences:   w.StopSequences,
	}

	return req, nil
}

func decodeToolResultContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []wireBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var out string
		for _, b := range blocks {
			if b.Type == "text" {
				out += b.Text
			}
		}
		return out
	}
	return string(raw)
}

// DecodeResponse parses a non-streaming Anthropic Messages response body
// from an upstream configured with provider: anthropic into the canonical
// Response.
func DecodeResponse(body []byte) (ir.Response, error) {
	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return ir.Response{}, apperrors.Translation("malformed messages response body", err)
	}

	resp := ir.Response{ID: w.ID, Model: w.Model}
	hasToolUse := false
	for _, b := range w.Content {
		switch b.Type {
		case "text":
			resp.Content = append(resp.Content, ir.TextPart{Text: b.Text})
		case "thinking":
			resp.Content = append(resp.Content, ir.ReasoningPart{Text: b.Thinking})
		case "tool_use", "mcp_tool_use":
			resp.Content = append(resp.Content, ir.ToolCallPart{ID: b.ID, Name: b.Name, Arguments: string(b.Input)})
			hasToolUse = true
		}
	}

	resp.StopReason = ir.StopReasonFromAnthropicString(w.StopReason)
	if hasToolUse {
		resp.StopReason = ir.StopToolCalls
	}

	resp.Usage = ir.Usage{
		InputTokens:  w.Usage.InputTokens,
		OutputTokens: w.Usage.OutputTokens,
		TotalTokens:  w.Usage.InputTokens + w.Usage.OutputTokens,
	}
	if w.Usage.CacheReadInputTokens > 0 || w.Usage.CacheCreationInputTokens > 0 {
		noCache := w.Usage.InputTokens - w.Usage.CacheReadInputTokens
		cacheRead := w.Usage.CacheReadInputTokens
		cacheWrite := w.Usage.CacheCreationInputTokens
		resp.Usage.InputDetails = &ir.InputTokenDetails{NoCacheTokens: &noCache, CacheReadTokens: &cacheRead, CacheWriteTokens: &cacheWrite}
	}

	return resp, nil
}
