package anthropic

import (
	"encoding/json"

	"github.com/nexusgate/llm-gateway/internal/apperrors"
	"github.com/nexusgate/llm-gateway/internal/ir"
)

// decoderBlockKind remembers what each open content_block index is, so a
// content_block_delta event (which only carries an index) can be routed to
// the right canonical event kind.
type decoderBlockKind int

const (
	blockUnknown decoderBlockKind = iota
	blockText
	blockThinking
	blockToolUse
)

// DecodeState tracks per-index content-block kinds across one upstream SSE
// connection from a provider: anthropic upstream.
type DecodeState struct {
	blocks map[int]decoderBlockKind
}

func NewDecodeState() *DecodeState {
	return &DecodeState{blocks: map[int]decoderBlockKind{}}
}

// DecodeStreamEvent parses one named Anthropic SSE event ("message_start",
// "content_block_start", ...) into zero or more canonical stream events.
func (s *DecodeState) DecodeStreamEvent(eventType string, data []byte) ([]ir.StreamEvent, error) {
	switch eventType {
	case "message_start":
		var e wireMessageStartEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, apperrors.Translation("malformed message_start event", err)
		}
		u := ir.Usage{InputTokens: e.Message.Usage.InputTokens, OutputTokens: e.Message.Usage.OutputTokens}
		return []ir.StreamEvent{{Kind: ir.EventMessageStart}, {Kind: ir.EventUsage, Usage: &u}}, nil

	case "content_block_start":
		var e wireContentBlockStartEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, apperrors.Translation("malformed content_block_start event", err)
		}
		switch e.ContentBlock.Type {
		case "tool_use", "mcp_tool_use":
			s.blocks[e.Index] = blockToolUse
			return []ir.StreamEvent{{Kind: ir.EventToolCallStart, Index: e.Index, CallID: e.ContentBlock.ID, CallName: e.ContentBlock.Name}}, nil
		case "thinking":
			s.blocks[e.Index] = blockThinking
		default:
			s.blocks[e.Index] = blockText
		}
		return nil, nil

	case "content_block_delta":
		var e wireContentBlockDeltaEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, apperrors.Translation("malformed content_block_delta event", err)
		}
		switch e.Delta.Type {
		case "text_delta":
			return []ir.StreamEvent{{Kind: ir.EventTextDelta, Delta: e.Delta.Text}}, nil
		case "thinking_delta":
			return []ir.StreamEvent{{Kind: ir.EventReasoningDelta, Delta: e.Delta.Thinking}}, nil
		case "input_json_delta":
			return []ir.StreamEvent{{Kind: ir.EventToolCallArgsDelta, Index: e.Index, Delta: e.Delta.PartialJSON}}, nil
		}
		return nil, nil

	case "content_block_stop":
		var e wireContentBlockStopEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, apperrors.Translation("malformed content_block_stop event", err)
		}
		if s.blocks[e.Index] == blockToolUse {
			return []ir.StreamEvent{{Kind: ir.EventToolCallEnd, Index: e.Index}}, nil
		}
		return nil, nil

	case "message_delta":
		var e wireMessageDeltaEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, apperrors.Translation("malformed message_delta event", err)
		}
		u := ir.Usage{OutputTokens: e.Usage.OutputTokens}
		return []ir.StreamEvent{
			{Kind: ir.EventUsage, Usage: &u},
			{Kind: ir.EventMessageEnd, StopReason: ir.StopReasonFromAnthropicString(e.Delta.StopReason)},
		}, nil

	case "message_stop":
		return []ir.StreamEvent{{Kind: ir.EventDone}}, nil

	default: // "ping", ignorable unknown events
		return nil, nil
	}
}

// EncodeState tracks what has already been emitted on an Anthropic-ingress
// SSE connection, so canonical events can be reshaped into Anthropic's
// message_start / content_block_* / message_delta / message_stop sequence.
type EncodeState struct {
	ID, Model      string
	started        bool
	openIndexByKey map[string]int // "" for the single open text block, call id for tool blocks
	nextIndex      int
	sawToolCalls   bool
}

func NewEncodeState(id, model string) *EncodeState {
	return &EncodeState{ID: id, Model: model, openIndexByKey: map[string]int{}}
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
// Anthropic SSE frames (event name + JSON payload; internal/sse.Writer
// owns the wire framing).
func (s *EncodeState) EncodeStreamEvent(ev ir.StreamEvent) ([]sseFrame, error) {
	var frames []sseFrame

	if !s.started {
		s.started = true
		frames = append(frames, sseFrame{"message_start", marshal(wireMessageStartEvent{
			Message: wireResponse{ID: s.ID, Type: "message", Role: "assistant", Model: s.Model, Content: []wireBlock{}},
		})})
	}

	switch ev.Kind {
	case ir.EventTextDelta:
		idx, opened := s.ensureBlockOpen("", "text", "", "")
		if opened {
			frames = append(frames, idx)
		}
		i := s.openIndexByKey[""]
		frames = append(frames, sseFrame{"content_block_delta", marshal(wireContentBlockDeltaEvent{
			Index: i, Delta: wireBlockDelta{Type: "text_delta", Text: ev.Delta},
		})})

	case ir.EventReasoningDelta:
		idx, opened := s.ensureBlockOpen("__thinking__", "thinking", "", "")
		if opened {
			frames = append(frames, idx)
		}
		i := s.openIndexByKey["__thinking__"]
		frames = append(frames, sseFrame{"content_block_delta", marshal(wireContentBlockDeltaEvent{
			Index: i, Delta: wireBlockDelta{Type: "thinking_delta", Thinking: ev.Delta},
		})})

	case ir.EventToolCallStart:
		s.sawToolCalls = true
		idx, opened := s.ensureBlockOpen(ev.CallID, "tool_use", ev.CallID, ev.CallName)
		if opened {
			frames = append(frames, idx)
		}

	case ir.EventToolCallArgsDelta:
		i, ok := s.openIndexByKey[ev.CallID]
		if !ok {
			return frames, nil
		}
		frames = append(frames, sseFrame{"content_block_delta", marshal(wireContentBlockDeltaEvent{
			Index: i, Delta: wireBlockDelta{Type: "input_json_delta", PartialJSON: ev.Delta},
		})})

	case ir.EventToolCallEnd:
		if i, ok := s.openIndexByKey[ev.CallID]; ok {
			delete(s.openIndexByKey, ev.CallID)
			frames = append(frames, sseFrame{"content_block_stop", marshal(wireContentBlockStopEvent{Index: i})})
		}

	case ir.EventMessageEnd:
		s.closeOpenBlocks(&frames)
		stopReason := ev.StopReason
		if s.sawToolCalls {
			stopReason = ir.StopToolCalls
		}
		var e wireMessageDeltaEvent
		e.Delta.StopReason = ir.AnthropicStopReasonString(stopReason)
		if ev.Usage != nil {
			e.Usage.OutputTokens = ev.Usage.OutputTokens
		}
		frames = append(frames, sseFrame{"message_delta", marshal(e)})

	case ir.EventDone:
		frames = append(frames, sseFrame{"message_stop", marshal(struct {
			Type string `json:"type"`
		}{Type: "message_stop"})})

	case ir.EventError:
		frames = append(frames, sseFrame{"error", EncodeError("overloaded_error", ev.Message)})
	}

	return frames, nil
}

// ensureBlockOpen opens a content block for key on first use, returning the
// content_block_start frame (only meaningful when opened is true).
func (s *EncodeState) ensureBlockOpen(key, blockType, toolID, toolName string) (sseFrame, bool) {
	if _, ok := s.openIndexByKey[key]; ok {
		return sseFrame{}, false
	}
	idx := s.nextIndex
	s.nextIndex++
	s.openIndexByKey[key] = idx

	block := wireBlock{Type: blockType}
	if blockType == "tool_use" {
		block.ID = toolID
		block.Name = toolName
		block.Input = json.RawMessage("{}")
	}
	return sseFrame{"content_block_start", marshal(wireContentBlockStartEvent{Index: idx, ContentBlock: block})}, true
}

func (s *EncodeState) closeOpenBlocks(frames *[]sseFrame) {
	for _, idx := range s.openIndexByKey {
		*frames = append(*frames, sseFrame{"content_block_stop", marshal(wireContentBlockStopEvent{Index: idx})})
	}
	s.openIndexByKey = map[string]int{}
}
