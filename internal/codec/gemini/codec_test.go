package gemini

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusgate/llm-gateway/internal/ir"
)

// TestDecodeRequestFunctionCallIDBinding covers call-id binding: one
// FunctionCall followed by two FunctionResponses for the same name binds
// the first response to the call's synthesized id and falls back to a
// fresh id for the unmatched second response.
func TestDecodeRequestFunctionCallIDBinding(t *testing.T) {
	body := []byte(`{
		"contents": [
			{"role":"model","parts":[{"functionCall":{"name":"get_weather","args":{"city":"SF"}}}]},
			{"role":"function","parts":[{"functionResponse":{"name":"get_weather","response":{"content":"72F"}}}]},
			{"role":"function","parts":[{"functionResponse":{"name":"get_weather","response":{"content":"stale"}}}]}
		]
	}`)

	req, err := DecodeRequest(body, "gemini-2.5-pro", false)
	require.NoError(t, err)
	require.Len(t, req.Messages, 3)

	call, ok := req.Messages[0].Parts[0].(ir.ToolCallPart)
	require.True(t, ok)
	assert.Equal(t, "call_0", call.ID)

	r1, ok := req.Messages[1].Parts[0].(ir.ToolResultPart)
	require.True(t, ok)
	assert.Equal(t, "call_0", r1.ToolCallID)
	assert.Equal(t, "72F", r1.Content)

	r2, ok := req.Messages[2].Parts[0].(ir.ToolResultPart)
	require.True(t, ok)
	assert.Equal(t, "call_1", r2.ToolCallID)
	assert.Equal(t, "stale", r2.Content)
}

func TestEncodeRequestRewritesToolResultsByName(t *testing.T) {
	req := ir.Request{
		Model: "gemini-2.5-pro",
		Messages: []ir.Message{
			{Role: ir.RoleAssistant, Parts: []ir.Part{ir.ToolCallPart{ID: "call_0", Name: "get_weather", Arguments: `{"city":"SF"}`}}},
			{Role: ir.RoleTool, Parts: []ir.Part{ir.ToolResultPart{ToolCallID: "call_0", Content: "72F"}}},
		},
	}

	body, err := EncodeRequest(req)
	require.NoError(t, err)

	var w wireRequest
	require.NoError(t, json.Unmarshal(body, &w))
	require.Len(t, w.Contents, 2)
	require.Len(t, w.Contents[1].Parts, 1)
	require.NotNil(t, w.Contents[1].Parts[0].FunctionResponse)
	assert.Equal(t, "get_weather", w.Contents[1].Parts[0].FunctionResponse.Name)
}

func TestDecodeResponseFunctionCallUpgradesStopReason(t *testing.T) {
	body := []byte(`{
		"candidates": [{"content":{"role":"model","parts":[{"functionCall":{"name":"get_weather","args":{}}}]},"finishReason":"STOP"}]
	}`)

	resp, err := DecodeResponse(body)
	require.NoError(t, err)
	assert.Equal(t, ir.StopToolCalls, resp.StopReason)
}

// TestStreamFunctionCallUpgradesFinalStopReason covers the stop-reason upgrade: scenario
// 6: a stream emits one FunctionCall part in an earlier chunk, then
// finishes with finishReason:STOP in a later, call-free chunk. The
// MessageEnd event must still carry stop_reason=ToolCalls.
func TestStreamFunctionCallUpgradesFinalStopReason(t *testing.T) {
	s := NewDecodeState()

	events, err := s.DecodeStreamChunk([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"get_weather","args":{}}}]}}]}`))
	require.NoError(t, err)
	require.NotEmpty(t, events)

	events, err = s.DecodeStreamChunk([]byte(`{"candidates":[{"finishReason":"STOP"}]}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ir.EventMessageEnd, events[0].Kind)
	assert.Equal(t, ir.StopToolCalls, events[0].StopReason)
}
