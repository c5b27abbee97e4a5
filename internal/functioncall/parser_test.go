package functioncall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInvokeForm(t *testing.T) {
	text := `<function_calls><invoke name="get_weather"><parameter name="city">Boston</parameter><parameter name="days">3</parameter></invoke></function_calls>`
	calls := ParseFunctionCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.JSONEq(t, `{"city":"Boston","days":3}`, calls[0].ArgumentsJSON)
}

func TestParseInvokeSingleQuotesAndNameChild(t *testing.T) {
	text := `<invoke><name>lookup</name><parameter name='id'>42</parameter></invoke>`
	calls := ParseFunctionCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "lookup", calls[0].Name)
	assert.JSONEq(t, `{"id":42}`, calls[0].ArgumentsJSON)
}

func TestParseInvokeAllCapsTags(t *testing.T) {
	text := `<INVOKE NAME="shout"><PARAMETER NAME="loud">true</PARAMETER></INVOKE>`
	calls := ParseFunctionCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "shout", calls[0].Name)
	assert.JSONEq(t, `{"loud":true}`, calls[0].ArgumentsJSON)
}

func TestParseFunctionCallFormWithArgsJSON(t *testing.T) {
	text := `<function_call><tool>search</tool><args_json>{"q":"golang"}</args_json></function_call>`
	calls := ParseFunctionCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].Name)
	assert.JSONEq(t, `{"q":"golang"}`, calls[0].ArgumentsJSON)
}

func TestParseFunctionCallFormWithArgumentsAlias(t *testing.T) {
	text := `<function_call><tool>search</tool><arguments>{"q":"rust"}</arguments></function_call>`
	calls := ParseFunctionCalls(text)
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"q":"rust"}`, calls[0].ArgumentsJSON)
}

func TestParseCDATAUnwrap(t *testing.T) {
	text := `<invoke name="echo"><parameter name="text"><![CDATA[<not a tag> & stuff]]></parameter></invoke>`
	calls := ParseFunctionCalls(text)
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"text":"<not a tag> & stuff"}`, calls[0].ArgumentsJSON)
}

func TestParseMissingOuterWrapper(t *testing.T) {
	text := `preamble text <invoke name="solo"><parameter name="x">1</parameter></invoke> trailing`
	calls := ParseFunctionCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "solo", calls[0].Name)
}

func TestParseUnclosedInvokeIsIgnored(t *testing.T) {
	text := `<invoke name="partial"><parameter name="x">1</parameter>`
	calls := parseFunctionCallsStrict(text)
	assert.Empty(t, calls)
}

func TestParseMultipleInvokes(t *testing.T) {
	text := `<function_calls>` +
		`<invoke name="first"><parameter name="a">1</parameter></invoke>` +
		`<invoke name="second"><parameter name="b">2</parameter></invoke>` +
		`</function_calls>`
	calls := ParseFunctionCalls(text)
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].Name)
	assert.Equal(t, "second", calls[1].Name)
}

func TestFallbackParserRecoversNameAndArgs(t *testing.T) {
	text := `I will call the function now: name="compute" then args {"x": 1, "y": 2} done.`
	calls := ParseFunctionCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "compute", calls[0].Name)
	assert.JSONEq(t, `{"x":1,"y":2}`, calls[0].ArgumentsJSON)
}

func TestParseFunctionCallNameAttributeIsStrict(t *testing.T) {
	text := `<function_call name='get_weather'><arguments><![CDATA[{"city":"SF"}]]></arguments></function_call>`
	calls := parseFunctionCallsStrict(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.JSONEq(t, `{"city":"SF"}`, calls[0].ArgumentsJSON)
}

func TestParseFunctionCallToolChildWinsOverAttribute(t *testing.T) {
	text := `<function_call name="wrong"><tool>right</tool><args_json>{}</args_json></function_call>`
	calls := ParseFunctionCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "right", calls[0].Name)
}
