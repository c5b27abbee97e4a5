package openaichat

import (
	"encoding/json"

	"github.com/nexusgate/llm-gateway/internal/apperrors"
	"github.com/nexusgate/llm-gateway/internal/ir"
)

// DecodeStreamChunk parses one `data: {...}` SSE payload from an upstream
// configured with provider: openai into zero or more canonical stream
// events, including tool-call deltas and trailing usage.
func DecodeStreamChunk(data []byte) ([]ir.StreamEvent, error) {
	var w wireStreamChunk
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, apperrors.Translation("malformed chat completions stream chunk", err)
	}

	var events []ir.StreamEvent

	if len(w.Choices) == 0 {
		if w.Usage != nil {
			u := decodeUsage(*w.Usage)
			events = append(events, ir.StreamEvent{Kind: ir.EventUsage, Usage: &u})
		}
		return events, nil
	}

	choice := w.Choices[0]

	if choice.Delta.Content != "" {
		events = append(events, ir.StreamEvent{Kind: ir.EventTextDelta, Delta: choice.Delta.Content})
	}
	if choice.Delta.Refusal != "" {
		events = append(events, ir.StreamEvent{Kind: ir.EventTextDelta, Delta: choice.Delta.Refusal})
	}

	for _, tc := range choice.Delta.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		if tc.ID != "" || tc.Function.Name != "" {
			events = append(events, ir.StreamEvent{
				Kind: ir.EventToolCallStart, Index: idx, CallID: tc.ID, CallName: tc.Function.Name,
			})
		}
		if tc.Function.Arguments != "" {
			events = append(events, ir.StreamEvent{
				Kind: ir.EventToolCallArgsDelta, Index: idx, CallID: tc.ID, Delta: tc.Function.Arguments,
			})
		}
	}

	if choice.FinishReason != nil {
		hasCalls := len(choice.Delta.ToolCalls) > 0
		reason := ir.StopReasonFromOpenAIString(*choice.FinishReason)
		if hasCalls {
			reason = ir.StopToolCalls
		}
		events = append(events, ir.StreamEvent{Kind: ir.EventMessageEnd, StopReason: reason})
	}

	if w.Usage != nil {
		u := decodeUsage(*w.Usage)
		events = append(events, ir.StreamEvent{Kind: ir.EventUsage, Usage: &u})
	}

	return events, nil
}

// streamState tracks what's already been sent on this ingress SSE
// connection so EncodeStreamEvent knows when to emit the role-bearing
// first delta and how to index tool call deltas.
type streamState struct {
	ID           string
	Model        string
	Created      int64
	sentRole     bool
	toolCallByID map[string]int
	nextToolIdx  int
}

// NewStreamState begins a fresh OpenAI-ingress SSE encoding session.
func NewStreamState(id, model string, created int64) *streamState {
	return &streamState{ID: id, Model: model, Created: created, toolCallByID: map[string]int{}}
}

// EncodeStreamEvent renders one canonical stream event as an OpenAI
// Chat Completions SSE "data:" JSON payload (without the "data: " prefix
// or trailing newlines; internal/sse.Writer owns framing). Returns nil,
// nil for events that produce no chunk on this dialect.
func (s *streamState) EncodeStreamEvent(ev ir.StreamEvent) ([]byte, error) {
	chunk := wireStreamChunk{ID: s.ID, Object: "chat.completion.chunk", Created: s.Created, Model: s.Model}
	choice := wireStreamChoice{Index: 0}

	switch ev.Kind {
	case ir.EventTextDelta:
		choice.Delta.Content = ev.Delta
	case ir.EventToolCallStart:
		idx, ok := s.toolCallByID[ev.CallID]
		if !ok {
			idx = s.nextToolIdx
			s.nextToolIdx++
			s.toolCallByID[ev.CallID] = idx
		}
		i := idx
		choice.Delta.ToolCalls = []wireToolCall{{
			Index: &i, ID: ev.CallID, Type: "function",
			Function: wireToolFunction{Name: ev.CallName},
		}}
	case ir.EventToolCallArgsDelta:
		idx := s.toolCallByID[ev.CallID]
		i := idx
		choice.Delta.ToolCalls = []wireToolCall{{
			Index: &i, Function: wireToolFunction{Arguments: ev.Delta},
		}}
	case ir.EventMessageEnd:
		reason := ir.OpenAIStopReasonString(ev.StopReason)
		choice.FinishReason = &reason
	case ir.EventError:
		return EncodeError("upstream_error", ev.Message), nil
	case ir.EventUsage:
		if ev.Usage != nil {
			chunk.Usage = encodeUsage(*ev.Usage)
		}
		chunk.Choices = nil
		return json.Marshal(chunk)
	default:
		return nil, nil
	}

	if !s.sentRole {
		choice.Delta.Role = "assistant"
		s.sentRole = true
	}

	chunk.Choices = []wireStreamChoice{choice}
	return json.Marshal(chunk)
}
