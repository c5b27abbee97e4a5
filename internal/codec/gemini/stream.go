package gemini

import (
	"encoding/json"

	"github.com/nexusgate/llm-gateway/internal/apperrors"
	"github.com/nexusgate/llm-gateway/internal/ir"
	"github.com/nexusgate/llm-gateway/internal/jsonutil"
)

// DecodeState tracks state across an upstream Gemini streamGenerateContent
// connection: Gemini sends each function call complete in a single chunk,
// but the stream-end stop-reason upgrade needs to remember that a call
// happened even once a later, call-free chunk carries the terminal
// finishReason.
type DecodeState struct {
	sawFunctionCall bool
	nextCallIndex   int
}

func NewDecodeState() *DecodeState { return &DecodeState{} }

// DecodeStreamChunk parses one streamed generateContent JSON object (the
// `data:` payload when called with alt=sse) from a provider: gemini
// upstream into zero or more canonical stream events.
func (s *DecodeState) DecodeStreamChunk(data []byte) ([]ir.StreamEvent, error) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, apperrors.Translation("malformed streamGenerateContent chunk", err)
	}

	var events []ir.StreamEvent
	var finishReason string

	if len(w.Candidates) > 0 {
		c := w.Candidates[0]
		finishReason = c.FinishReason
		for _, p := range c.Content.Parts {
			switch {
			case p.FunctionCall != nil:
				s.sawFunctionCall = true
				id := jsonutil.SequentialCallID(s.nextCallIndex)
				idx := s.nextCallIndex
				s.nextCallIndex++
				args := p.FunctionCall.Args
				if len(args) == 0 {
					args = json.RawMessage("{}")
				}
				events = append(events,
					ir.StreamEvent{Kind: ir.EventToolCallStart, Index: idx, CallID: id, CallName: p.FunctionCall.Name},
					ir.StreamEvent{Kind: ir.EventToolCallArgsDelta, Index: idx, CallID: id, Delta: string(args)},
					ir.StreamEvent{Kind: ir.EventToolCallEnd, Index: idx, CallID: id, CallName: p.FunctionCall.Name},
				)
			case p.Text != "":
				events = append(events, ir.StreamEvent{Kind: ir.EventTextDelta, Delta: p.Text})
			}
		}
	}

	if w.UsageMetadata != nil {
		u := ir.Usage{
			InputTokens:  w.UsageMetadata.PromptTokenCount,
			OutputTokens: w.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  w.UsageMetadata.TotalTokenCount,
		}
		events = append(events, ir.StreamEvent{Kind: ir.EventUsage, Usage: &u})
	}

	if finishReason != "" {
		events = append(events, ir.StreamEvent{
			Kind:       ir.EventMessageEnd,
			StopReason: ir.StopReasonFromGeminiString(finishReason, s.sawFunctionCall),
		})
	}

	return events, nil
}

// EncodeState renders canonical stream events as Gemini streamGenerateContent
// chunks for a Gemini-ingress client. Gemini's wire shape has no
// per-call-argument delta convention, so arguments are buffered until
// ToolCallEnd and emitted as one complete functionCall part, matching how a
// real Gemini upstream itself only ever sends a function call whole.
type EncodeState struct {
	argsByIndex  map[int]string
	nameByIndex  map[int]string
	sawToolCalls bool
}

func NewEncodeState() *EncodeState {
	return &EncodeState{argsByIndex: map[int]string{}, nameByIndex: map[int]string{}}
}

// EncodeStreamEvent renders one canonical stream event as zero or one
// streamGenerateContent chunk (internal/sse.Writer owns SSE framing).
func (s *EncodeState) EncodeStreamEvent(ev ir.StreamEvent) ([]byte, error) {
	switch ev.Kind {
	case ir.EventTextDelta:
		w := wireResponse{Candidates: []wireCandidate{{
			Content: wireContent{Role: "model", Parts: []wirePart{{Text: ev.Delta}}},
		}}}
		return json.Marshal(w)

	case ir.EventToolCallStart:
		s.nameByIndex[ev.Index] = ev.CallName

	case ir.EventToolCallArgsDelta:
		s.argsByIndex[ev.Index] += ev.Delta

	case ir.EventToolCallEnd:
		s.sawToolCalls = true
		name := s.nameByIndex[ev.Index]
		args := json.RawMessage(s.argsByIndex[ev.Index])
		if len(args) == 0 {
			args = json.RawMessage("{}")
		} else if !jsonutil.IsValidJSON(string(args)) {
			// A truncated delta stream can leave the buffer mid-object;
			// repair it before degrading to an empty object.
			if fixed := jsonutil.FixJSON(string(args)); jsonutil.IsValidJSON(fixed) {
				args = json.RawMessage(fixed)
			} else {
				args = json.RawMessage("{}")
			}
		}
		w := wireResponse{Candidates: []wireCandidate{{
			Content: wireContent{Role: "model", Parts: []wirePart{{FunctionCall: &wireFunctionCall{Name: name, Args: args}}}},
		}}}
		return json.Marshal(w)

	case ir.EventUsage:
		if ev.Usage != nil {
			w := wireResponse{UsageMetadata: &wireUsage{
				PromptTokenCount:     ev.Usage.InputTokens,
				CandidatesTokenCount: ev.Usage.OutputTokens,
				TotalTokenCount:      ev.Usage.TotalTokens,
			}}
			return json.Marshal(w)
		}

	case ir.EventMessageEnd:
		reason := ev.StopReason
		if s.sawToolCalls {
			reason = ir.StopToolCalls
		}
		w := wireResponse{Candidates: []wireCandidate{{FinishReason: ir.GeminiStopReasonString(reason)}}}
		return json.Marshal(w)

	case ir.EventError:
		status := ev.Status
		if status == 0 {
			status = 502
		}
		return EncodeError(status, ev.Message, "UNAVAILABLE"), nil
	}

	return nil, nil
}
