package transcoder

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusgate/llm-gateway/internal/ir"
	"github.com/nexusgate/llm-gateway/internal/sse"
)

func newTranscoder(t *testing.T, provider ir.ProviderKind, ingress ir.IngressAPI) *Transcoder {
	t.Helper()
	tc, err := New(Config{
		ProviderKind:  provider,
		IngressAPI:    ingress,
		UpstreamModel: "test-model",
		UpstreamID:    "test-upstream",
		ResponseID:    "resp_test",
		Created:       1700000000,
	})
	require.NoError(t, err)
	return tc
}

func feed(t *testing.T, tc *Transcoder, frames ...sse.Event) []Frame {
	t.Helper()
	var out []Frame
	for _, f := range frames {
		got, err := tc.TranscodeFrame(f)
		require.NoError(t, err)
		out = append(out, got...)
	}
	return out
}

func eventNames(frames []Frame) []string {
	names := make([]string, len(frames))
	for i, f := range frames {
		names[i] = f.Event
	}
	return names
}

func TestNewRejectsUnknownKinds(t *testing.T) {
	_, err := New(Config{ProviderKind: "smoke-signal", IngressAPI: ir.IngressOpenAIChat})
	assert.Error(t, err)

	_, err = New(Config{ProviderKind: ir.ProviderOpenAI, IngressAPI: "carrier-pigeon"})
	assert.Error(t, err)
}

// An OpenAI upstream carries the tool-call id only on the first delta and
// never sends an explicit per-call end; the transcoder must fill the id in
// on later deltas and close the block before message_delta so the Anthropic
// client sees one complete content_block lifecycle.
func TestOpenAIToolCallStreamToAnthropic(t *testing.T) {
	tc := newTranscoder(t, ir.ProviderOpenAI, ir.IngressAnthropic)

	frames := feed(t, tc,
		sse.Event{Data: `{"id":"x","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_abc","type":"function","function":{"name":"get_weather","arguments":"{\"ci"}}]},"finish_reason":null}]}`},
		sse.Event{Data: `{"id":"x","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ty\":\"SF\"}"}}]},"finish_reason":null}]}`},
		sse.Event{Data: `{"id":"x","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`},
		sse.Event{Data: `[DONE]`},
	)

	assert.Equal(t, []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
	}, eventNames(frames))

	var start struct {
		ContentBlock struct {
			Type string `json:"type"`
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"content_block"`
	}
	require.NoError(t, json.Unmarshal(frames[1].Data, &start))
	assert.Equal(t, "tool_use", start.ContentBlock.Type)
	assert.Equal(t, "call_abc", start.ContentBlock.ID)
	assert.Equal(t, "get_weather", start.ContentBlock.Name)

	var args string
	for _, f := range frames[2:4] {
		var delta struct {
			Delta struct {
				Type        string `json:"type"`
				PartialJSON string `json:"partial_json"`
			} `json:"delta"`
		}
		require.NoError(t, json.Unmarshal(f.Data, &delta))
		assert.Equal(t, "input_json_delta", delta.Delta.Type)
		args += delta.Delta.PartialJSON
	}
	assert.JSONEq(t, `{"city":"SF"}`, args)

	var end struct {
		Delta struct {
			StopReason string `json:"stop_reason"`
		} `json:"delta"`
	}
	require.NoError(t, json.Unmarshal(frames[5].Data, &end))
	assert.Equal(t, "tool_use", end.Delta.StopReason)

	terminal := tc.Terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, "message_stop", terminal[0].Event)
}

// Stop-reason upgrade through the full transcoder: a Gemini stream
// emits one complete functionCall, then finishes with a bare STOP; the
// OpenAI client must see a tool_calls finish_reason.
func TestGeminiFunctionCallStreamToOpenAI(t *testing.T) {
	tc := newTranscoder(t, ir.ProviderGemini, ir.IngressOpenAIChat)

	frames := feed(t, tc,
		sse.Event{Data: `{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"get_weather","args":{"city":"SF"}}}]},"index":0}]}`},
		sse.Event{Data: `{"candidates":[{"content":{"parts":[]},"finishReason":"STOP","index":0}],"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5,"totalTokenCount":15}}`},
	)

	var sawName, sawArgs string
	var finish string
	for _, f := range frames {
		var chunk struct {
			Choices []struct {
				Delta struct {
					ToolCalls []struct {
						ID       string `json:"id"`
						Function struct {
							Name      string `json:"name"`
							Arguments string `json:"arguments"`
						} `json:"function"`
					} `json:"tool_calls"`
				} `json:"delta"`
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
		}
		require.NoError(t, json.Unmarshal(f.Data, &chunk))
		for _, c := range chunk.Choices {
			for _, tcall := range c.Delta.ToolCalls {
				if tcall.Function.Name != "" {
					sawName = tcall.Function.Name
				}
				sawArgs += tcall.Function.Arguments
			}
			if c.FinishReason != nil {
				finish = *c.FinishReason
			}
		}
	}

	assert.Equal(t, "get_weather", sawName)
	assert.JSONEq(t, `{"city":"SF"}`, sawArgs)
	assert.Equal(t, "tool_calls", finish)

	terminal := tc.Terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, "[DONE]", string(terminal[0].Data))
}

// Concatenation of all TextDelta payloads yields the same final
// string regardless of ingress dialect.
func TestTextPassthroughAcrossIngressDialects(t *testing.T) {
	anthropicFrames := []sse.Event{
		{Event: "message_start", Data: `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"m","content":[],"usage":{"input_tokens":3,"output_tokens":0}}}`},
		{Event: "content_block_start", Data: `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		{Event: "content_block_delta", Data: `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello "}}`},
		{Event: "content_block_delta", Data: `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"world"}}`},
		{Event: "content_block_stop", Data: `{"type":"content_block_stop","index":0}`},
		{Event: "message_delta", Data: `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":2}}`},
		{Event: "message_stop", Data: `{"type":"message_stop"}`},
	}

	for _, ingress := range []ir.IngressAPI{ir.IngressOpenAIChat, ir.IngressGemini} {
		tc := newTranscoder(t, ir.ProviderAnthropic, ingress)
		frames := feed(t, tc, anthropicFrames...)

		var text string
		for _, f := range frames {
			switch ingress {
			case ir.IngressOpenAIChat:
				var chunk struct {
					Choices []struct {
						Delta struct {
							Content string `json:"content"`
						} `json:"delta"`
					} `json:"choices"`
				}
				if json.Unmarshal(f.Data, &chunk) == nil {
					for _, c := range chunk.Choices {
						text += c.Delta.Content
					}
				}
			case ir.IngressGemini:
				var chunk struct {
					Candidates []struct {
						Content struct {
							Parts []struct {
								Text string `json:"text"`
							} `json:"parts"`
						} `json:"content"`
					} `json:"candidates"`
				}
				if json.Unmarshal(f.Data, &chunk) == nil {
					for _, c := range chunk.Candidates {
						for _, p := range c.Content.Parts {
							text += p.Text
						}
					}
				}
			}
		}
		assert.Equal(t, "Hello world", text, "ingress %s", ingress)

		// The Anthropic upstream's message_stop produces no frame on these
		// dialects; Terminal must still synthesize their own marker.
		terminal := tc.Terminal()
		require.Len(t, terminal, 1)
	}
}

// Some upstreams report failure as a data-only {"error": ...} payload with
// no error event name; the transcoder must sniff it and reshape it into the
// ingress dialect's error frame instead of choking on a chunk decode.
func TestDataOnlyErrorIsReshaped(t *testing.T) {
	tc := newTranscoder(t, ir.ProviderOpenAI, ir.IngressOpenAIChat)

	frames := feed(t, tc, sse.Event{Data: `{"error":{"message":"quota exhausted","type":"insufficient_quota"}}`})
	require.Len(t, frames, 1)

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(frames[0].Data, &envelope))
	assert.Equal(t, "quota exhausted", envelope.Error.Message)
}

func TestNormalizeSynthesizesMissingStartAndEnd(t *testing.T) {
	tc := newTranscoder(t, ir.ProviderOpenAI, ir.IngressOpenAIChat)

	// An args-only delta for an index that never saw a start (a misbehaving
	// upstream): normalize must front a synthesized start so downstream
	// encoders keyed on call id still work.
	events := tc.normalize([]ir.StreamEvent{
		{Kind: ir.EventToolCallArgsDelta, Index: 0, Delta: `{"x":1}`},
		{Kind: ir.EventMessageEnd, StopReason: ir.StopToolCalls},
	})

	require.Len(t, events, 4)
	assert.Equal(t, ir.EventToolCallStart, events[0].Kind)
	assert.NotEmpty(t, events[0].CallID)
	assert.Equal(t, ir.EventToolCallArgsDelta, events[1].Kind)
	assert.Equal(t, events[0].CallID, events[1].CallID)
	assert.Equal(t, ir.EventToolCallEnd, events[2].Kind)
	assert.Equal(t, events[0].CallID, events[2].CallID)
	assert.Equal(t, ir.EventMessageEnd, events[3].Kind)
}

func TestNormalizeDropsDuplicateStartAndEnd(t *testing.T) {
	tc := newTranscoder(t, ir.ProviderOpenAI, ir.IngressOpenAIChat)

	events := tc.normalize([]ir.StreamEvent{
		{Kind: ir.EventToolCallStart, Index: 0, CallID: "call_a", CallName: "f"},
		{Kind: ir.EventToolCallStart, Index: 0, CallID: "call_a"},
		{Kind: ir.EventToolCallEnd, Index: 0},
		{Kind: ir.EventToolCallEnd, Index: 0},
		{Kind: ir.EventMessageEnd, StopReason: ir.StopToolCalls},
	})

	var kinds []ir.StreamEventKind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []ir.StreamEventKind{ir.EventToolCallStart, ir.EventToolCallEnd, ir.EventMessageEnd}, kinds)
	assert.Equal(t, "call_a", events[1].CallID)
	assert.Equal(t, "f", events[1].CallName)
}
