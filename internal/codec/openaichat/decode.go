package openaichat

import (
	"encoding/json"
	"strings"

	"github.com/nexusgate/llm-gateway/internal/apperrors"
	"github.com/nexusgate/llm-gateway/internal/ir"
)

// DecodeRequest parses an OpenAI Chat Completions request body into the
// canonical IR.
func DecodeRequest(body []byte) (ir.Request, error) {
	var w wireRequest
	if err := json.Unmarshal(body, &w); err != nil {
		return ir.Request{}, apperrors.InvalidRequest("malformed chat completions request body", err)
	}

	req := ir.Request{
		IngressAPI: ir.IngressOpenAIChat,
		Model:      w.Model,
		Stream:     w.Stream,
	}

	var systemParts []string
	for _, m := range w.Messages {
		role := ir.RoleFromOpenAIString(m.Role)
		if role == ir.RoleSystem {
			text, _ := decodeMessageText(m.Content)
			if text != "" {
				systemParts = append(systemParts, text)
			}
			continue
		}

		msg, err := decodeMessage(m, role)
		if err != nil {
			return ir.Request{}, err
		}
		req.Messages = append(req.Messages, msg)
	}
	req.SystemPrompt = strings.Join(systemParts, "\n\n")

	for _, t := range w.Tools {
		if t.Type != "function" && t.Type != "" {
			continue
		}
		req.Tools = append(req.Tools, ir.ToolSpec{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}

	req.ToolChoice = decodeToolChoice(w.ToolChoice)

	req.GenerationParams = ir.GenerationParams{
		Temperature:     w.Temperature,
		TopP:            w.TopP,
		MaxOutputTokens: w.MaxTokens,
		StopSequences:   w.Stop,
	}

	return req, nil
}

func decodeMessage(m wireMessage, role ir.Role) (ir.Message, error) {
	msg := ir.Message{Role: role, Name: m.Name, ToolCallID: m.ToolCallID}

	if role == ir.RoleTool {
		text, _ := decodeMessageText(m.Content)
		msg.Parts = append(msg.Parts, ir.ToolResultPart{ToolCallID: m.ToolCallID, Content: text})
		return msg, nil
	}

	if len(m.Content) > 0 {
		parts, err := decodeContentParts(m.Content)
		if err != nil {
			return ir.Message{}, err
		}
		msg.Parts = append(msg.Parts, parts...)
	}

	if m.Refusal != "" {
		msg.Parts = append(msg.Parts, ir.RefusalPart{Text: m.Refusal})
	}

	for _, tc := range m.ToolCalls {
		msg.Parts = append(msg.Parts, ir.ToolCallPart{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return msg, nil
}

// decodeMessageText reads Content as either a plain string or a content
// part array, returning only the concatenated text (used for system
// messages and tool results, neither of which carries images).
func decodeMessageText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	parts, err := decodeContentParts(raw)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, p := range parts {
		if tp, ok := p.(ir.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String(), nil
}

func decodeContentParts(raw json.RawMessage) ([]ir.Part, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil, nil
		}
		return []ir.Part{ir.TextPart{Text: s}}, nil
	}

	var items []wireContentPart
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, apperrors.InvalidRequest("malformed message content", err)
	}

	parts := make([]ir.Part, 0, len(items))
	for _, it := range items {
		switch it.Type {
		case "text":
			parts = append(parts, ir.TextPart{Text: it.Text})
		case "image_url":
			if it.ImageURL != nil {
				parts = append(parts, ir.ImageURLPart{URL: it.ImageURL.URL, Detail: it.ImageURL.Detail})
			}
		}
	}
	return parts, nil
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
		if fn, ok := v["function"].(map[string]any); ok {
			if name, ok := fn["name"].(string); ok {
				return ir.SpecificToolChoice(name)
			}
		}
		return ir.AutoToolChoice()
	default:
		return ir.AutoToolChoice()
	}
}
