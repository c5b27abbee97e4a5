package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusgate/llm-gateway/internal/ir"
)

func TestDecodeRequestSystemAndToolResult(t *testing.T) {
	body := []byte(`{
		"model": "claude-sonnet-4-5",
		"system": "be terse",
		"max_tokens": 1024,
		"messages": [
			{"role":"user","content":[{"type":"text","text":"hi"}]},
			{"role":"assistant","content":[{"type":"tool_use","id":"t1","name":"lookup","input":{"q":"x"}}]},
			{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"result text"}]}
		]
	}`)

	req, err := DecodeRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "be terse", req.SystemPrompt)
	require.Len(t, req.Messages, 3)

	tr, ok := req.Messages[2].Parts[0].(ir.ToolResultPart)
	require.True(t, ok)
	assert.Equal(t, "t1", tr.ToolCallID)
	assert.Equal(t, "result text", tr.Content)

	require.NotNil(t, req.GenerationParams.MaxOutputTokens)
	assert.Equal(t, int64(1024), *req.GenerationParams.MaxOutputTokens)
}

func TestEncodeDecodeResponseRoundTrip(t *testing.T) {
	resp := ir.Response{
		ID:         "msg_1",
		Model:      "claude-sonnet-4-5",
		Content:    []ir.Part{ir.TextPart{Text: "hello"}, ir.ToolCallPart{ID: "t1", Name: "lookup", Arguments: `{"q":"x"}`}},
		StopReason: ir.StopToolCalls,
		Usage:      ir.Usage{InputTokens: 12, OutputTokens: 8},
	}

	body, err := EncodeResponse(resp)
	require.NoError(t, err)

	decoded, err := DecodeResponse(body)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, decoded.ID)
	assert.Equal(t, ir.StopToolCalls, decoded.StopReason)
	require.Len(t, decoded.Content, 2)
}

func TestDecodeStreamEventSequence(t *testing.T) {
	s := NewDecodeState()

	events, err := s.DecodeStreamEvent("content_block_start", []byte(`{"index":0,"content_block":{"type":"tool_use","id":"t1","name":"lookup"}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ir.EventToolCallStart, events[0].Kind)

	events, err = s.DecodeStreamEvent("content_block_delta", []byte(`{"index":0,"delta":{"type":"input_json_delta","partial_json":"{\"q\":1}"}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ir.EventToolCallArgsDelta, events[0].Kind)

	events, err = s.DecodeStreamEvent("content_block_stop", []byte(`{"index":0}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ir.EventToolCallEnd, events[0].Kind)
}

func TestEncodeStreamEventProducesWellFormedSequence(t *testing.T) {
	s := NewEncodeState("msg_1", "claude-sonnet-4-5")

	frames, err := s.EncodeStreamEvent(ir.StreamEvent{Kind: ir.EventTextDelta, Delta: "hi"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(frames), 2) // message_start + content_block_start + delta
	assert.Equal(t, "message_start", frames[0].Event)

	frames, err = s.EncodeStreamEvent(ir.StreamEvent{Kind: ir.EventMessageEnd, StopReason: ir.StopEndOfTurn})
	require.NoError(t, err)
	var sawDelta bool
	for _, f := range frames {
		if f.Event == "message_delta" {
			sawDelta = true
		}
	}
	assert.True(t, sawDelta)
}
