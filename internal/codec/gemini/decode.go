package gemini

import (
	"encoding/json"

	"github.com/nexusgate/llm-gateway/internal/apperrors"
	"github.com/nexusgate/llm-gateway/internal/ir"
	"github.com/nexusgate/llm-gateway/internal/jsonutil"
)

// DecodeRequest parses a Gemini generateContent/streamGenerateContent
// request body into the canonical IR.
// model is passed in separately because Gemini carries it in the URL path
// (:generateContent / :streamGenerateContent), not the body.
func DecodeRequest(body []byte, model string, stream bool) (ir.Request, error) {
	var w wireRequest
	if err := json.Unmarshal(body, &w); err != nil {
		return ir.Request{}, apperrors.InvalidRequest("malformed generateContent request body", err)
	}

	req := ir.Request{
		IngressAPI: ir.IngressGemini,
		Model:      model,
		Stream:     stream,
	}

	if w.SystemInstruction != nil {
		req.SystemPrompt = textOf(w.SystemInstruction.Parts)
	}

	// FIFO queue keyed by function name, so that FunctionResponses bind to
	// the FunctionCall that produced them in call order. When no open call
	// remains for a given name, a fresh synthesized id is used as a
	// fallback so the ToolResult still has somewhere to point.
	pending := map[string][]string{}
	nextID := 0
	newCallID := func() string {
		id := jsonutil.SequentialCallID(nextID)
		nextID++
		return id
	}

	for _, c := range w.Contents {
		role := ir.RoleFromGeminiString(c.Role)
		msg := ir.Message{Role: role}

		for _, p := range c.Parts {
			switch {
			case p.Text != "" || (p.FunctionCall == nil && p.FunctionResponse == nil && p.InlineData == nil && p.FileData == nil):
				if p.Text != "" {
					msg.Parts = append(msg.Parts, ir.TextPart{Text: p.Text})
				}
			case p.FunctionCall != nil:
				id := newCallID()
				pending[p.FunctionCall.Name] = append(pending[p.FunctionCall.Name], id)
				args := p.FunctionCall.Args
				if len(args) == 0 {
					args = json.RawMessage("{}")
				}
				msg.Parts = append(msg.Parts, ir.ToolCallPart{ID: id, Name: p.FunctionCall.Name, Arguments: string(args)})
			case p.FunctionResponse != nil:
				var id string
				if ids := pending[p.FunctionResponse.Name]; len(ids) > 0 {
					id = ids[0]
					pending[p.FunctionResponse.Name] = ids[1:]
				} else {
					id = newCallID()
				}
				msg.Parts = append(msg.Parts, ir.ToolResultPart{ToolCallID: id, Content: decodeFunctionResponseContent(p.FunctionResponse.Response)})
			case p.InlineData != nil:
				msg.Parts = append(msg.Parts, ir.ImageURLPart{URL: "data:" + p.InlineData.MimeType + ";base64," + p.InlineData.Data})
			case p.FileData != nil:
				msg.Parts = append(msg.Parts, ir.ImageURLPart{URL: p.FileData.FileURI})
			}
		}

		req.Messages = append(req.Messages, msg)
	}

	for _, t := range w.Tools {
		for _, fd := range t.FunctionDeclarations {
			req.Tools = append(req.Tools, ir.ToolSpec{Name: fd.Name, Description: fd.Description, Parameters: fd.Parameters})
		}
	}

	req.ToolChoice = decodeToolChoice(w.ToolConfig)

	var params ir.GenerationParams
	if w.GenerationConfig != nil {
		params = ir.GenerationParams{
			Temperature:     w.GenerationConfig.Temperature,
			TopP:            w.GenerationConfig.TopP,
			MaxOutputTokens: w.GenerationConfig.MaxOutputTokens,
			StopSequences:   w.GenerationConfig.StopSequences,
		}
	}
	req.GenerationParams = params

	return req, nil
}

func textOf(parts []wirePart) string {
	var out string
	for _, p := range parts {
		out += p.Text
	}
	return out
}

// decodeFunctionResponseContent renders a functionResponse's `response`
// object back to a plain string. Gemini always wraps it as an object (most
// commonly {"content": ...} or {"result": ...}); if neither key is present
// the whole object is rendered as JSON text.
func decodeFunctionResponseContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"content", "result"} {
			if v, ok := obj[key]; ok {
				var s string
				if json.Unmarshal(v, &s) == nil {
					return s
				}
				return string(v)
			}
		}
	}
	return string(raw)
}

// decodeToolChoice maps Gemini's toolConfig back to canonical ToolChoice.
// Per the round-trip caveat: mode ANY with exactly one allowed
// name round-trips to Specific; ANY with none round-trips to Required.
func decodeToolChoice(tc *wireToolConfig) ir.ToolChoice {
	if tc == nil {
		return ir.ToolChoice{}
	}
	switch tc.FunctionCallingConfig.Mode {
	case "NONE":
		return ir.NoneToolChoice()
	case "ANY":
		if len(tc.FunctionCallingConfig.AllowedFunctionNames) == 1 {
			return ir.SpecificToolChoice(tc.FunctionCallingConfig.AllowedFunctionNames[0])
		}
		return ir.RequiredToolChoice()
	case "AUTO":
		return ir.AutoToolChoice()
	default:
		return ir.ToolChoice{}
	}
}

// DecodeResponse parses a non-streaming generateContent response body from
// an upstream configured with provider: gemini into the canonical Response.
func DecodeResponse(body []byte) (ir.Response, error) {
	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return ir.Response{}, apperrors.Translation("malformed generateContent response body", err)
	}

	resp := ir.Response{}
	hasFunctionCall := false
	var finishReason string

	if len(w.Candidates) > 0 {
		c := w.Candidates[0]
		finishReason = c.FinishReason
		for _, p := range c.Content.Parts {
			switch {
			case p.FunctionCall != nil:
				hasFunctionCall = true
				args := p.FunctionCall.Args
				if len(args) == 0 {
					args = json.RawMessage("{}")
				}
				resp.Content = append(resp.Content, ir.ToolCallPart{
					ID:        jsonutil.SequentialCallID(len(resp.Content)),
					Name:      p.FunctionCall.Name,
					Arguments: string(args),
				})
			case p.Text != "":
				resp.Content = append(resp.Content, ir.TextPart{Text: p.Text})
			}
		}
	}

	resp.StopReason = ir.StopReasonFromGeminiString(finishReason, hasFunctionCall)

	if w.UsageMetadata != nil {
		resp.Usage = ir.Usage{
			InputTokens:  w.UsageMetadata.PromptTokenCount,
			OutputTokens: w.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  w.UsageMetadata.TotalTokenCount,
		}
		if w.UsageMetadata.CachedContentTokenCount > 0 {
			noCache := w.UsageMetadata.PromptTokenCount - w.UsageMetadata.CachedContentTokenCount
			cached := w.UsageMetadata.CachedContentTokenCount
			resp.Usage.InputDetails = &ir.InputTokenDetails{NoCacheTokens: &noCache, CacheReadTokens: &cached}
		}
		if w.UsageMetadata.ThoughtsTokenCount > 0 {
			reasoning := w.UsageMetadata.ThoughtsTokenCount
			text := w.UsageMetadata.CandidatesTokenCount - reasoning
			resp.Usage.OutputDetails = &ir.OutputTokenDetails{TextTokens: &text, ReasoningTokens: &reasoning}
		}
	}

	return resp, nil
}
