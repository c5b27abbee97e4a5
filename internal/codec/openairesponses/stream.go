package openairesponses

import (
	"encoding/json"

	"github.com/nexusgate/llm-gateway/internal/apperrors"
	"github.com/nexusgate/llm-gateway/internal/ir"
)

// DecodeState tracks per-call-id index assignment across one upstream
// Responses API SSE connection, since function_call_arguments.delta events
// carry only a call_id/item_id, not the output_index the canonical IR keys
// tool-call events on.
type DecodeState struct {
	indexByCallID map[string]int
	nextIndex     int
}

func NewDecodeState() *DecodeState {
	return &DecodeState{indexByCallID: map[string]int{}}
}

// DecodeStreamEvent parses one named Responses API SSE event
// ("response.output_text.delta", ...) into zero or more canonical stream
// events.
func (s *DecodeState) DecodeStreamEvent(eventType string, data []byte) ([]ir.StreamEvent, error) {
	var e wireStreamEvent
	if len(data) > 0 {
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, apperrors.Translation("malformed "+eventType+" event", err)
		}
	}

	switch eventType {
	case "response.created":
		return []ir.StreamEvent{{Kind: ir.EventMessageStart}}, nil

	case "response.output_item.added":
		if e.Item != nil && e.Item.Type == "function_call" {
			idx := s.nextIndex
			s.nextIndex++
			s.indexByCallID[e.Item.CallID] = idx
			return []ir.StreamEvent{{Kind: ir.EventToolCallStart, Index: idx, CallID: e.Item.CallID, CallName: e.Item.Name}}, nil
		}
		return nil, nil

	case "response.output_text.delta":
		return []ir.StreamEvent{{Kind: ir.EventTextDelta, Delta: e.Delta}}, nil

	case "response.function_call_arguments.delta":
		idx, ok := s.indexByCallID[e.CallID]
		if !ok {
			idx = s.nextIndex
			s.nextIndex++
			s.indexByCallID[e.CallID] = idx
		}
		return []ir.StreamEvent{{Kind: ir.EventToolCallArgsDelta, Index: idx, CallID: e.CallID, Delta: e.Delta}}, nil

	case "response.output_item.done":
		if e.Item != nil && e.Item.Type == "function_call" {
			idx := s.indexByCallID[e.Item.CallID]
			return []ir.StreamEvent{{Kind: ir.EventToolCallEnd, Index: idx, CallID: e.Item.CallID, CallName: e.Item.Name}}, nil
		}
		return nil, nil

	case "response.completed", "response.incomplete":
		var events []ir.StreamEvent
		hasToolCall := len(s.indexByCallID) > 0
		stopReason := ir.StopEndOfTurn
		if hasToolCall {
			stopReason = ir.StopToolCalls
		}
		if e.Response != nil {
			if e.Response.Usage != nil {
				u := ir.Usage{InputTokens: e.Response.Usage.InputTokens, OutputTokens: e.Response.Usage.OutputTokens, TotalTokens: e.Response.Usage.TotalTokens}
				events = append(events, ir.StreamEvent{Kind: ir.EventUsage, Usage: &u})
			}
			if !hasToolCall {
				stopReason = decodeStopReason(*e.Response, false)
			}
		}
		events = append(events, ir.StreamEvent{Kind: ir.EventMessageEnd, StopReason: stopReason})
		return events, nil

	case "response.failed", "error":
		msg := "upstream response failed"
		status := 500
		if e.Error != nil {
			msg = e.Error.Message
		}
		return []ir.StreamEvent{{Kind: ir.EventError, Status: status, Message: msg}}, nil

	default: // response.output_item/content_part/etc lifecycle noise
		return nil, nil
	}
}

// EncodeState tracks what has already been emitted on a Responses-ingress
// SSE connection so canonical events can be reshaped into the
// response.created / response.output_item.* / response.completed sequence.
type EncodeState struct {
	ID, Model    string
	started      bool
	textItemOpen bool
	callIDByIdx  map[int]string
	sawToolCalls bool
}

func NewEncodeState(id, model string) *EncodeState {
	return &EncodeState{ID: id, Model: model, callIDByIdx: map[int]string{}}
}

type sseFrame struct {
	Event string
	Data  []byte
}

func marshal(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

// EncodeStreamEvent renders one canonical stream event as zero or more
// Responses API SSE frames.
func (s *EncodeState) EncodeStreamEvent(ev ir.StreamEvent) ([]sseFrame, error) {
	var frames []sseFrame

	if !s.started {
		s.started = true
		frames = append(frames, sseFrame{"response.created", marshal(wireStreamEvent{
			Type:     "response.created",
			Response: &wireResponse{ID: s.ID, Object: "response", Model: s.Model, Status: "in_progress"},
		})})
	}

	switch ev.Kind {
	case ir.EventTextDelta:
		if !s.textItemOpen {
			s.textItemOpen = true
			frames = append(frames, sseFrame{"response.output_item.added", marshal(wireStreamEvent{
				Type: "response.output_item.added",
				Item: &wireItem{Type: "message", Role: "assistant"},
			})})
		}
		frames = append(frames, sseFrame{"response.output_text.delta", marshal(wireStreamEvent{
			Type: "response.output_text.delta", Delta: ev.Delta,
		})})

	case ir.EventToolCallStart:
		s.sawToolCalls = true
		s.callIDByIdx[ev.Index] = ev.CallID
		frames = append(frames, sseFrame{"response.output_item.added", marshal(wireStreamEvent{
			Type:        "response.output_item.added",
			OutputIndex: ev.Index,
			Item:        &wireItem{Type: "function_call", CallID: ev.CallID, Name: ev.CallName},
		})})

	case ir.EventToolCallArgsDelta:
		frames = append(frames, sseFrame{"response.function_call_arguments.delta", marshal(wireStreamEvent{
			Type: "response.function_call_arguments.delta", CallID: ev.CallID, Delta: ev.Delta,
		})})

	case ir.EventToolCallEnd:
		frames = append(frames, sseFrame{"response.output_item.done", marshal(wireStreamEvent{
			Type:        "response.output_item.done",
			OutputIndex: ev.Index,
			Item:        &wireItem{Type: "function_call", CallID: ev.CallID, Name: ev.CallName},
		})})

	case ir.EventMessageEnd:
		stopReason := ev.StopReason
		if s.sawToolCalls {
			stopReason = ir.StopToolCalls
		}
		status := "completed"
		if stopReason == ir.StopMaxTokens {
			status = "incomplete"
		}
		resp := &wireResponse{ID: s.ID, Object: "response", Model: s.Model, Status: status}
		if ev.Usage != nil {
			resp.Usage = encodeUsage(*ev.Usage)
		}
		frames = append(frames, sseFrame{"response.completed", marshal(wireStreamEvent{
			Type:     "response.completed",
			Response: resp,
		})})

	case ir.EventUsage:
		// Usage reaches the client only when the MessageEnd event carries
		// it (folded into response.completed above); EventUsage on its own
		// produces no frame for this dialect.

	case ir.EventError:
		frames = append(frames, sseFrame{"response.error", EncodeError("upstream_error", ev.Message)})
	}

	return frames, nil
}
