package openairesponses

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusgate/llm-gateway/internal/ir"
)

func TestDecodeRequestFunctionCallRoundTrip(t *testing.T) {
	body := []byte(`{
		"model": "gpt-5",
		"instructions": "be terse",
		"input": [
			{"type":"message","role":"user","content":[{"type":"input_text","text":"weather?"}]},
			{"type":"function_call","call_id":"call_1","name":"get_weather","arguments":"{\"city\":\"SF\"}"},
			{"type":"function_call_output","call_id":"call_1","output":"72F"}
		]
	}`)

	req, err := DecodeRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "be terse", req.SystemPrompt)
	require.Len(t, req.Messages, 3)

	call, ok := req.Messages[1].Parts[0].(ir.ToolCallPart)
	require.True(t, ok)
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "get_weather", call.Name)

	result, ok := req.Messages[2].Parts[0].(ir.ToolResultPart)
	require.True(t, ok)
	assert.Equal(t, "call_1", result.ToolCallID)
	assert.Equal(t, "72F", result.Content)
}

func TestDecodeRequestToolChoiceSpecificIsFlat(t *testing.T) {
	body := []byte(`{"model":"gpt-5","input":[],"tool_choice":{"type":"function","name":"get_weather"}}`)

	req, err := DecodeRequest(body)
	require.NoError(t, err)
	assert.Equal(t, ir.ToolChoiceSpecific, req.ToolChoice.Kind)
	assert.Equal(t, "get_weather", req.ToolChoice.Name)
}

func TestEncodeDecodeResponseRoundTrip(t *testing.T) {
	resp := ir.Response{
		ID:         "resp_1",
		Model:      "gpt-5",
		Content:    []ir.Part{ir.TextPart{Text: "hello"}, ir.ToolCallPart{ID: "call_1", Name: "get_weather", Arguments: `{"city":"SF"}`}},
		StopReason: ir.StopToolCalls,
		Usage:      ir.Usage{InputTokens: 12, OutputTokens: 8, TotalTokens: 20},
	}

	body, err := EncodeResponse(resp)
	require.NoError(t, err)

	decoded, err := DecodeResponse(body)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, decoded.ID)
	assert.Equal(t, ir.StopToolCalls, decoded.StopReason)
	require.Len(t, decoded.Content, 2)
	assert.Equal(t, int64(20), decoded.Usage.TotalTokens)
}

func TestEncodeRequestToolRoleBecomesFunctionCallOutput(t *testing.T) {
	req := ir.Request{
		Model: "gpt-5",
		Messages: []ir.Message{
			{Role: ir.RoleTool, Parts: []ir.Part{ir.ToolResultPart{ToolCallID: "call_1", Content: "72F"}}},
		},
	}

	body, err := EncodeRequest(req)
	require.NoError(t, err)

	decoded, err := DecodeRequest(body)
	require.NoError(t, err)
	require.Len(t, decoded.Messages, 1)
	result, ok := decoded.Messages[0].Parts[0].(ir.ToolResultPart)
	require.True(t, ok)
	assert.Equal(t, "call_1", result.ToolCallID)
	assert.Equal(t, "72F", result.Content)
}

func TestDecodeStreamEventFunctionCallLifecycle(t *testing.T) {
	s := NewDecodeState()

	events, err := s.DecodeStreamEvent("response.output_item.added", []byte(`{"output_index":0,"item":{"type":"function_call","call_id":"call_1","name":"get_weather"}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ir.EventToolCallStart, events[0].Kind)
	assert.Equal(t, "call_1", events[0].CallID)

	events, err = s.DecodeStreamEvent("response.function_call_arguments.delta", []byte(`{"call_id":"call_1","delta":"{\"city\":"}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ir.EventToolCallArgsDelta, events[0].Kind)
	assert.Equal(t, 0, events[0].Index)

	events, err = s.DecodeStreamEvent("response.output_item.done", []byte(`{"item":{"type":"function_call","call_id":"call_1","name":"get_weather"}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ir.EventToolCallEnd, events[0].Kind)

	events, err = s.DecodeStreamEvent("response.completed", []byte(`{"response":{"id":"resp_1","status":"completed"}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ir.EventMessageEnd, events[0].Kind)
	assert.Equal(t, ir.StopToolCalls, events[0].StopReason)
}

func TestEncodeStreamEventTextSequence(t *testing.T) {
	s := NewEncodeState("resp_1", "gpt-5")

	frames, err := s.EncodeStreamEvent(ir.StreamEvent{Kind: ir.EventTextDelta, Delta: "hi"})
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, "response.created", frames[0].Event)
	assert.Equal(t, "response.output_item.added", frames[1].Event)
	assert.Equal(t, "response.output_text.delta", frames[2].Event)

	frames, err = s.EncodeStreamEvent(ir.StreamEvent{Kind: ir.EventTextDelta, Delta: " there"})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "response.output_text.delta", frames[0].Event)

	frames, err = s.EncodeStreamEvent(ir.StreamEvent{Kind: ir.EventMessageEnd, StopReason: ir.StopEndOfTurn})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "response.completed", frames[0].Event)
}
