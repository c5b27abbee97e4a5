// Package transcoder composes a per-dialect provider stream decoder with a
// per-dialect ingress stream encoder into the single provider -> canonical
// -> ingress pipe. It owns nothing about HTTP or
// upstream dispatch; callers feed it raw provider SSE frames and receive
// ingress-bound SSE frames back.
package transcoder

import (
	"encoding/json"
	"fmt"

	"github.com/nexusgate/llm-gateway/internal/codec/anthropic"
	"github.com/nexusgate/llm-gateway/internal/codec/gemini"
	"github.com/nexusgate/llm-gateway/internal/codec/openaichat"
	"github.com/nexusgate/llm-gateway/internal/codec/openairesponses"
	"github.com/nexusgate/llm-gateway/internal/ir"
	"github.com/nexusgate/llm-gateway/internal/sse"
)

// Frame is a dialect-neutral SSE frame ready for internal/sse.Writer: Event
// is empty for the data-only dialects (OpenAI Chat, OpenAI Responses,
// Gemini) and set for Anthropic's always-named-event convention.
type Frame struct {
	Event string
	Data  []byte
}

// Config parameterizes one Transcoder stream session.
type Config struct {
	ProviderKind  ir.ProviderKind
	IngressAPI    ir.IngressAPI
	UpstreamModel string
	UpstreamID    string
	// ResponseID seeds the ingress-dialect response/message id; callers
	// mint it once per request with jsonutil.NewResponseID.
	ResponseID string
	// Created is a unix-seconds timestamp OpenAI-family chunks carry.
	Created int64

	// Reshape, when set, runs on every batch of canonical events decoded
	// from one provider frame before they reach the ingress encoder. The
	// pipeline's synthetic function-calling layer uses this to intercept
	// EventTextDelta and feed it through a functioncall.Detector instead of
	// letting raw "call the function" prose reach the client. Most requests (native tool calling, no injection) leave this
	// nil.
	Reshape func([]ir.StreamEvent) []ir.StreamEvent
}

type decodeFunc func(frame sse.Event) ([]ir.StreamEvent, error)
type encodeFunc func(ev ir.StreamEvent) ([]Frame, error)

// Transcoder is a single (provider, ingress) stream session. It is not
// safe for concurrent use; one instance serves one upstream SSE connection.
type Transcoder struct {
	cfg         Config
	decode      decodeFunc
	encode      encodeFunc
	doneEmitted bool

	// Per-tool-call state indexed by tool_index. Provider
	// decoders are allowed to emit ToolCallArgsDelta events with an empty
	// CallID (OpenAI Chat only carries the id on the first delta of a call)
	// and some never emit ToolCallEnd at all (OpenAI Chat signals the end of
	// its calls only via finish_reason); normalize() repairs both so every
	// ingress encoder sees the full Start/ArgsDelta/End contract.
	calls       map[int]*toolCallState
	callOrder   []int
	nextSynthID int
}

type toolCallState struct {
	id    string
	name  string
	ended bool
}

// New builds a Transcoder for one streaming request. It returns an
// error if the (provider, ingress) combination has no
// codec pairing; this should never happen for a correctly validated config,
// since every ProviderKind and IngressAPI has a codec package.
func New(cfg Config) (*Transcoder, error) {
	decode, err := newDecodeFunc(cfg.ProviderKind)
	if err != nil {
		return nil, err
	}
	encode, err := newEncodeFunc(cfg.IngressAPI, cfg.ResponseID, cfg.UpstreamModel, cfg.Created)
	if err != nil {
		return nil, err
	}
	return &Transcoder{cfg: cfg, decode: decode, encode: encode, calls: map[int]*toolCallState{}}, nil
}

// newDecodeFunc picks the provider-side stream decoder. gemini_openai
// upstreams speak the OpenAI Chat Completions wire shape (Gemini's own
// OpenAI-compatibility layer), so they share openaichat's stateless decoder
// rather than needing a codec package of their own.
func newDecodeFunc(kind ir.ProviderKind) (decodeFunc, error) {
	switch kind {
	case ir.ProviderOpenAI, ir.ProviderGeminiOpenAI:
		return func(frame sse.Event) ([]ir.StreamEvent, error) {
			return openaichat.DecodeStreamChunk([]byte(frame.Data))
		}, nil

	case ir.ProviderAnthropic:
		state := anthropic.NewDecodeState()
		return func(frame sse.Event) ([]ir.StreamEvent, error) {
			return state.DecodeStreamEvent(frame.Event, []byte(frame.Data))
		}, nil

	case ir.ProviderGemini:
		state := gemini.NewDecodeState()
		return func(frame sse.Event) ([]ir.StreamEvent, error) {
			return state.DecodeStreamChunk([]byte(frame.Data))
		}, nil

	case ir.ProviderOpenAIResponses:
		state := openairesponses.NewDecodeState()
		return func(frame sse.Event) ([]ir.StreamEvent, error) {
			return state.DecodeStreamEvent(frame.Event, []byte(frame.Data))
		}, nil

	default:
		return nil, fmt.Errorf("transcoder: unknown provider kind %q", kind)
	}
}

// newEncodeFunc picks the ingress-side stream encoder.
func newEncodeFunc(api ir.IngressAPI, responseID, model string, created int64) (encodeFunc, error) {
	switch api {
	case ir.IngressOpenAIChat:
		state := openaichat.NewStreamState(responseID, model, created)
		return func(ev ir.StreamEvent) ([]Frame, error) {
			b, err := state.EncodeStreamEvent(ev)
			if err != nil || b == nil {
				return nil, err
			}
			return []Frame{{Data: b}}, nil
		}, nil

	case ir.IngressAnthropic:
		state := anthropic.NewEncodeState(responseID, model)
		return func(ev ir.StreamEvent) ([]Frame, error) {
			frames, err := state.EncodeStreamEvent(ev)
			if err != nil {
				return nil, err
			}
			out := make([]Frame, len(frames))
			for i, f := range frames {
				out[i] = Frame{Event: f.Event, Data: f.Data}
			}
			return out, nil
		}, nil

	case ir.IngressGemini:
		state := gemini.NewEncodeState()
		return func(ev ir.StreamEvent) ([]Frame, error) {
			b, err := state.EncodeStreamEvent(ev)
			if err != nil || b == nil {
				return nil, err
			}
			return []Frame{{Data: b}}, nil
		}, nil

	case ir.IngressOpenAIResponses:
		state := openairesponses.NewEncodeState(responseID, model)
		return func(ev ir.StreamEvent) ([]Frame, error) {
			frames, err := state.EncodeStreamEvent(ev)
			if err != nil {
				return nil, err
			}
			out := make([]Frame, len(frames))
			for i, f := range frames {
				out[i] = Frame{Event: f.Event, Data: f.Data}
			}
			return out, nil
		}, nil

	default:
		return nil, fmt.Errorf("transcoder: unknown ingress api %q", api)
	}
}

// TranscodeFrame decodes one raw provider SSE frame and re-encodes it for
// the ingress dialect, preserving the tool-call ordering invariant:
// a tool_index's Start precedes its ArgsDeltas which precede its End.
// normalize() repairs missing call ids, missing Starts, duplicate
// Starts/Ends and missing Ends before the events reach the encoder.
func (t *Transcoder) TranscodeFrame(provider sse.Event) ([]Frame, error) {
	if sse.IsDoneMarker(&provider) {
		// OpenAI-family terminal marker: carries no payload. The ingress
		// dialect's own terminal is synthesized by Terminal() at stream end.
		return nil, nil
	}
	if provider.Event == "error" {
		return t.encodeError(provider.Data)
	}
	if errEvent, ok := sniffDataOnlyError(provider.Data); ok {
		return t.encodeError(errEvent)
	}

	canonical, err := t.decode(provider)
	if err != nil {
		return nil, err
	}
	if t.cfg.Reshape != nil {
		canonical = t.cfg.Reshape(canonical)
	}
	canonical = t.normalize(canonical)

	var frames []Frame
	for _, ev := range canonical {
		f, err := t.encode(ev)
		if err != nil {
			return frames, err
		}
		// Only count a Done as delivered if the ingress encoder actually
		// rendered a terminal frame for it (Anthropic's message_stop);
		// dialects whose encoder swallows Done still need Terminal()'s
		// synthesized marker.
		if ev.Kind == ir.EventDone && len(f) > 0 {
			t.doneEmitted = true
		}
		frames = append(frames, f...)
	}
	return frames, nil
}

// normalize enforces the frame-ordering contract on the canonical
// event sequence before it reaches the ingress encoder: every ArgsDelta
// carries the id its Start established, a second Start for an
// already-started index is dropped, and any call still open when
// MessageEnd arrives gets a synthesized ToolCallEnd first.
func (t *Transcoder) normalize(in []ir.StreamEvent) []ir.StreamEvent {
	out := make([]ir.StreamEvent, 0, len(in))
	for _, ev := range in {
		switch ev.Kind {
		case ir.EventToolCallStart:
			if st, ok := t.calls[ev.Index]; ok {
				// Mid-stream id assignment: adopt a late-arriving id for
				// subsequent deltas, but don't re-announce the call.
				if st.id == "" && ev.CallID != "" {
					st.id = ev.CallID
				}
				if st.name == "" && ev.CallName != "" {
					st.name = ev.CallName
				}
				continue
			}
			if ev.CallID == "" {
				ev.CallID = t.synthCallID()
			}
			t.calls[ev.Index] = &toolCallState{id: ev.CallID, name: ev.CallName}
			t.callOrder = append(t.callOrder, ev.Index)
			out = append(out, ev)

		case ir.EventToolCallArgsDelta:
			st, ok := t.calls[ev.Index]
			if !ok {
				st = &toolCallState{id: t.synthCallID()}
				t.calls[ev.Index] = st
				t.callOrder = append(t.callOrder, ev.Index)
				out = append(out, ir.StreamEvent{Kind: ir.EventToolCallStart, Index: ev.Index, CallID: st.id})
			}
			if ev.CallID == "" {
				ev.CallID = st.id
			}
			out = append(out, ev)

		case ir.EventToolCallEnd:
			st, ok := t.calls[ev.Index]
			if !ok || st.ended {
				continue
			}
			st.ended = true
			if ev.CallID == "" {
				ev.CallID = st.id
			}
			if ev.CallName == "" {
				ev.CallName = st.name
			}
			out = append(out, ev)

		case ir.EventMessageEnd:
			for _, idx := range t.callOrder {
				st := t.calls[idx]
				if st.ended {
					continue
				}
				st.ended = true
				out = append(out, ir.StreamEvent{Kind: ir.EventToolCallEnd, Index: idx, CallID: st.id, CallName: st.name})
			}
			out = append(out, ev)

		default:
			out = append(out, ev)
		}
	}
	return out
}

func (t *Transcoder) synthCallID() string {
	id := fmt.Sprintf("call_%d", t.nextSynthID)
	t.nextSynthID++
	return id
}

// Terminal synthesizes the ingress dialect's terminal marker, unless the
// provider stream itself already produced one (Anthropic's message_stop,
// forwarded as EventDone). Call once after the provider SSE stream closes.
func (t *Transcoder) Terminal() []Frame {
	if t.doneEmitted {
		return nil
	}
	if t.cfg.IngressAPI == ir.IngressAnthropic {
		frames, _ := t.encode(ir.StreamEvent{Kind: ir.EventDone})
		return frames
	}
	return []Frame{{Data: []byte("[DONE]")}}
}

// encodeError turns a raw upstream error payload into one synthesized
// canonical Error event, encoded for the ingress dialect.
func (t *Transcoder) encodeError(data string) ([]Frame, error) {
	msg := "upstream stream error"
	var probe struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(data), &probe) == nil {
		switch {
		case probe.Error.Message != "":
			msg = probe.Error.Message
		case probe.Message != "":
			msg = probe.Message
		}
	}
	return t.encode(ir.StreamEvent{Kind: ir.EventError, Status: 502, Message: msg})
}

// sniffDataOnlyError reports whether a data-only SSE payload (OpenAI Chat,
// OpenAI Responses non-error-named events, Gemini) is actually a bare error
// object rather than a normal chunk: some upstreams emit an error as
// `data: {"error": {...}}` with no distinguishing event name.
func sniffDataOnlyError(data string) (string, bool) {
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal([]byte(data), &probe) != nil {
		return "", false
	}
	if len(probe.Error) == 0 {
		return "", false
	}
	return data, true
}
