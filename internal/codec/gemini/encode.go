package gemini

import (
	"encoding/json"

	"github.com/nexusgate/llm-gateway/internal/apperrors"
	"github.com/nexusgate/llm-gateway/internal/ir"
)

// EncodeRequest renders the canonical IR as a Gemini generateContent request
// body, for dispatch to an upstream configured with provider: gemini.
// Gemini wire parts carry only a function
// name, never a tool_call_id, so this builds a tool_call_id -> name map by
// scanning the whole request first, then uses it to rewrite every
// ToolResult into a functionResponse{name} part.
func EncodeRequest(req ir.Request) ([]byte, error) {
	nameByCallID := map[string]string{}
	for _, m := range req.Messages {
		for _, p := range m.Parts {
			if tc, ok := p.(ir.ToolCallPart); ok {
				nameByCallID[tc.ID] = tc.Name
			}
		}
	}

	w := wireRequest{}

	if req.SystemPrompt != "" {
		w.SystemInstruction = &wireContent{Parts: []wirePart{{Text: req.SystemPrompt}}}
	}

	for _, m := range req.Messages {
		w.Contents = append(w.Contents, encodeContent(m, nameByCallID))
	}

	for _, t := range req.Tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		if len(w.Tools) == 0 {
			w.Tools = []wireTool{{}}
		}
		w.Tools[0].FunctionDeclarations = append(w.Tools[0].FunctionDeclarations, wireFunctionDecl{
			Name: t.Name, Description: t.Description, Parameters: params,
		})
	}

	// An Auto tool choice with empty tools has no Gemini wire
	// representation; omit tool_config entirely rather than synthesize one.
	autoWithoutTools := req.ToolChoice.Kind == ir.ToolChoiceAuto && len(req.Tools) == 0
	if tc := encodeToolConfig(req.ToolChoice); tc != nil && !autoWithoutTools {
		w.ToolConfig = tc
	}

	w.GenerationConfig = encodeGenerationConfig(req.GenerationParams)

	b, err := json.Marshal(w)
	if err != nil {
		return nil, apperrors.Translation("failed to encode generateContent request", err)
	}
	return b, nil
}

func encodeGenerationConfig(p ir.GenerationParams) *wireGenConfig {
	if p.Temperature == nil && p.TopP == nil && p.MaxOutputTokens == nil && len(p.StopSequences) == 0 {
		return nil
	}
	return &wireGenConfig{
		Temperature:     p.Temperature,
		TopP:            p.TopP,
		MaxOutputTokens: p.MaxOutputTokens,
		StopSequences:   p.StopSequences,
	}
}

func encodeContent(m ir.Message, nameByCallID map[string]string) wireContent {
	c := wireContent{Role: ir.GeminiRoleString(m.Role)}

	for _, p := range m.Parts {
		switch v := p.(type) {
		case ir.TextPart:
			c.Parts = append(c.Parts, wirePart{Text: v.Text})
		case ir.ReasoningPart:
			// Gemini has no ingress/egress slot for a replayed reasoning
			// part; degrade to plain text per the uniform
			// unmapped-part handling.
			c.Parts = append(c.Parts, wirePart{Text: v.Text})
		case ir.ToolCallPart:
			args := json.RawMessage(v.Arguments)
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			c.Parts = append(c.Parts, wirePart{FunctionCall: &wireFunctionCall{Name: v.Name, Args: args}})
		case ir.ToolResultPart:
			name := nameByCallID[v.ToolCallID]
			if name == "" {
				name = v.ToolCallID
			}
			resp, _ := json.Marshal(map[string]string{"content": v.Content})
			c.Parts = append(c.Parts, wirePart{FunctionResponse: &wireFunctionResp{Name: name, Response: resp}})
		case ir.ImageURLPart:
			// Unmapped: Gemini native ingress/egress has no URL-reference
			// image part (only inlineData/fileData); the URL is sent as a
			// plain text part rather than failing. No warning is logged.
			c.Parts = append(c.Parts, wirePart{Text: v.URL})
		case ir.RefusalPart:
			c.Parts = append(c.Parts, wirePart{Text: v.Text})
		}
	}

	return c
}

func encodeToolConfig(tc ir.ToolChoice) *wireToolConfig {
	switch tc.Kind {
	case ir.ToolChoiceNone:
		return &wireToolConfig{FunctionCallingConfig: wireFunctionCallingConfig{Mode: "NONE"}}
	case ir.ToolChoiceRequired:
		return &wireToolConfig{FunctionCallingConfig: wireFunctionCallingConfig{Mode: "ANY"}}
	case ir.ToolChoiceSpecific:
		return &wireToolConfig{FunctionCallingConfig: wireFunctionCallingConfig{Mode: "ANY", AllowedFunctionNames: []string{tc.Name}}}
	case ir.ToolChoiceAuto:
		return &wireToolConfig{FunctionCallingConfig: wireFunctionCallingConfig{Mode: "AUTO"}}
	default:
		return nil
	}
}

// EncodeError renders an apperrors-style failure in the Gemini
// error shape: {"error":{"code","message","status"}}.
func EncodeError(status int, message, statusName string) []byte {
	b, _ := json.Marshal(wireErrorEnvelope{Error: wireErrorBody{Code: status, Message: message, Status: statusName}})
	return b
}

// EncodeResponse renders a canonical Response as a non-streaming
// generateContent response body, for a Gemini-ingress client.
func EncodeResponse(resp ir.Response) ([]byte, error) {
	var parts []wirePart
	for _, p := range resp.Content {
		switch v := p.(type) {
		case ir.TextPart:
			parts = append(parts, wirePart{Text: v.Text})
		case ir.ReasoningPart:
			parts = append(parts, wirePart{Text: v.Text})
		case ir.ToolCallPart:
			args := json.RawMessage(v.Arguments)
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			parts = append(parts, wirePart{FunctionCall: &wireFunctionCall{Name: v.Name, Args: args}})
		case ir.RefusalPart:
			parts = append(parts, wirePart{Text: v.Text})
		}
	}

	w := wireResponse{
		Candidates: []wireCandidate{{
			Content:      wireContent{Role: "model", Parts: parts},
			FinishReason: ir.GeminiStopReasonString(resp.StopReason),
			Index:        0,
		}},
		UsageMetadata: &wireUsage{
			PromptTokenCount:     resp.Usage.InputTokens,
			CandidatesTokenCount: resp.Usage.OutputTokens,
			TotalTokenCount:      resp.Usage.TotalTokens,
		},
	}

	b, err := json.Marshal(w)
	if err != nil {
		return nil, apperrors.Translation("failed to encode generateContent response", err)
	}
	return b, nil
}
