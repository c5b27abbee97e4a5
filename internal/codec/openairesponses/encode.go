package openairesponses

import (
	"encoding/json"

	"github.com/nexusgate/llm-gateway/internal/apperrors"
	"github.com/nexusgate/llm-gateway/internal/ir"
)

// EncodeRequest renders the canonical IR as an OpenAI Responses API request
// body, for dispatch to an upstream configured with provider:
// openai_responses.
func EncodeRequest(req ir.Request) ([]byte, error) {
	w := wireRequest{
		Model:        req.Model,
		Instructions: req.SystemPrompt,
		Stream:       req.Stream,
	}

	for _, m := range req.Messages {
		w.Input = append(w.Input, encodeItems(m)...)
	}

	for _, t := range req.Tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		w.Tools = append(w.Tools, wireTool{Type: "function", Name: t.Name, Description: t.Description, Parameters: params})
	}
	w.ToolChoice = encodeToolChoice(req.ToolChoice)

	w.Temperature = req.GenerationParams.Temperature
	w.TopP = req.GenerationParams.TopP
	w.MaxOutputTokens = req.GenerationParams.MaxOutputTokens

	b, err := json.Marshal(w)
	if err != nil {
		return nil, apperrors.Translation("failed to encode responses request", err)
	}
	return b, nil
}

// encodeItems renders one canonical message as zero or more Responses API
// input items: a Tool-role message becomes one function_call_output item
// per ToolResultPart (the Responses API has no multi-result item), an
// Assistant message's ToolCallParts become their own function_call items
// alongside any text content, and every other part type becomes a content
// part on a single message item.
func encodeItems(m ir.Message) []wireItem {
	if m.Role == ir.RoleTool {
		var items []wireItem
		for _, p := range m.Parts {
			if tr, ok := p.(ir.ToolResultPart); ok {
				items = append(items, wireItem{Type: "function_call_output", CallID: tr.ToolCallID, Output: tr.Content})
			}
		}
		return items
	}

	var items []wireItem
	var content []wireContentPart
	textType := "input_text"
	if m.Role == ir.RoleAssistant {
		textType = "output_text"
	}

	for _, p := range m.Parts {
		switch v := p.(type) {
		case ir.TextPart:
			content = append(content, wireContentPart{Type: textType, Text: v.Text})
		case ir.ReasoningPart:
			// Responses API reasoning items carry encrypted/opaque state
			// this gateway never produced; dropped on replay rather than
			// guessing at a shape.
		case ir.RefusalPart:
			content = append(content, wireContentPart{Type: "refusal", Refusal: v.Text})
		case ir.ImageURLPart:
			content = append(content, wireContentPart{Type: "input_image", ImageURL: v.URL, Detail: v.Detail})
		case ir.ToolCallPart:
			items = append(items, wireItem{Type: "function_call", CallID: v.ID, Name: v.Name, Arguments: v.Arguments})
		}
	}

	if len(content) > 0 {
		items = append([]wireItem{{Type: "message", Role: ir.OpenAIRoleString(m.Role), Content: content}}, items...)
	}

	return items
}

func encodeToolChoice(tc ir.ToolChoice) any {
	switch tc.Kind {
	case ir.ToolChoiceNone:
		return "none"
	case ir.ToolChoiceRequired:
		return "required"
	case ir.ToolChoiceSpecific:
		return map[string]any{"type": "function", "name": tc.Name}
	case ir.ToolChoiceAuto:
		return "auto"
	default:
		return nil
	}
}

// EncodeResponse renders a canonical Response as a non-streaming Responses
// API response body, for a Responses-ingress client.
func EncodeResponse(resp ir.Response) ([]byte, error) {
	var output []wireItem
	var content []wireContentPart

	for _, p := range resp.Content {
		switch v := p.(type) {
		case ir.TextPart:
			content = append(content, wireContentPart{Type: "output_text", Text: v.Text})
		case ir.RefusalPart:
			content = append(content, wireContentPart{Type: "refusal", Refusal: v.Text})
		case ir.ToolCallPart:
			output = append(output, wireItem{Type: "function_call", CallID: v.ID, Name: v.Name, Arguments: v.Arguments})
		}
	}
	if len(content) > 0 {
		output = append([]wireItem{{Type: "message", Role: "assistant", Content: content}}, output...)
	}

	status := "completed"
	var incomplete *wireIncompleteDetails
	if resp.StopReason == ir.StopMaxTokens {
		status = "incomplete"
		incomplete = &wireIncompleteDetails{Reason: "max_output_tokens"}
	}

	w := wireResponse{
		ID:                resp.ID,
		Object:            "response",
		Model:             resp.Model,
		Status:            status,
		Output:            output,
		IncompleteDetails: incomplete,
		Usage:             encodeUsage(resp.Usage),
	}

	b, err := json.Marshal(w)
	if err != nil {
		return nil, apperrors.Translation("failed to encode responses response", err)
	}
	return b, nil
}

// EncodeError renders an apperrors-style failure in the
// OpenAI-family error shape: {"error":{"message","type","code"}}.
func EncodeError(kind, message string) []byte {
	b, _ := json.Marshal(wireErrorEnvelope{Error: wireErrorEnvelopeBody{Message: message, Type: kind, Code: kind}})
	return b
}

func encodeUsage(u ir.Usage) *wireUsage {
	w := &wireUsage{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens, TotalTokens: u.TotalTokens}
	if u.InputDetails != nil && u.InputDetails.CacheReadTokens != nil {
		w.InputTokensDetails = &wireInputTokensDetails{CachedTokens: *u.InputDetails.CacheReadTokens}
	}
	if u.OutputDetails != nil && u.OutputDetails.ReasoningTokens != nil {
		w.OutputTokensDetails = &wireOutputTokensDetails{ReasoningTokens: *u.OutputDetails.ReasoningTokens}
	}
	return w
}
