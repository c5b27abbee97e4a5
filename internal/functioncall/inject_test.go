package functioncall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusgate/llm-gateway/internal/ir"
)

func TestInjectNoToolsIsNoop(t *testing.T) {
	req := ir.Request{SystemPrompt: "be nice"}
	res := Inject(req)
	assert.False(t, res.Injected)
	assert.Equal(t, req, res.Request)
}

func TestInjectMovesToolsIntoSystemPrompt(t *testing.T) {
	req := ir.Request{
		SystemPrompt: "be nice",
		Tools: []ir.ToolSpec{
			{Name: "get_weather", Description: "looks up weather", Parameters: []byte(`{"type":"object"}`)},
		},
		ToolChoice: ir.AutoToolChoice(),
	}

	res := Inject(req)
	require.True(t, res.Injected)
	assert.Empty(t, res.Request.Tools)
	assert.Equal(t, ir.NoneToolChoice(), res.Request.ToolChoice)
	assert.Contains(t, res.Request.SystemPrompt, "be nice")
	assert.Contains(t, res.Request.SystemPrompt, triggerSignal)
	assert.Contains(t, res.Request.SystemPrompt, "get_weather")
	require.Len(t, res.SavedTools, 1)
	assert.Equal(t, "get_weather", res.SavedTools[0].Name)
}

func TestInjectFlattensToolResultMessages(t *testing.T) {
	req := ir.Request{
		Tools: []ir.ToolSpec{{Name: "lookup", Parameters: []byte(`{}`)}},
		Messages: []ir.Message{
			{Role: ir.RoleAssistant, Parts: []ir.Part{ir.ToolCallPart{ID: "call_0", Name: "lookup", Arguments: "{}"}}},
			{Role: ir.RoleTool, ToolCallID: "call_0", Parts: []ir.Part{ir.ToolResultPart{ToolCallID: "call_0", Content: "42"}}},
		},
	}

	res := Inject(req)
	require.Len(t, res.Request.Messages, 2)
	flattened := res.Request.Messages[1]
	assert.Equal(t, ir.RoleUser, flattened.Role)
	require.Len(t, flattened.Parts, 1)
	text, ok := flattened.Parts[0].(ir.TextPart)
	require.True(t, ok)
	assert.Contains(t, text.Text, "lookup")
	assert.Contains(t, text.Text, "42")
}
