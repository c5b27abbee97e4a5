package functioncall

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParsedCall is one function call recovered from a model's text, prior to
// being wrapped as an ir.ToolCallPart (which needs a synthesized ID).
type ParsedCall struct {
	Name          string
	ArgumentsJSON string
}

var (
	cdataRe = regexp.MustCompile(`(?is)<!\[CDATA\[(.*?)\]\]>`)

	// <invoke name="X">...</invoke> or <invoke name='X'>...</invoke>, tools
	// using ALL-CAPS tag names are matched by (?i).
	invokeBlockRe = regexp.MustCompile(`(?is)<invoke\b([^>]*)>(.*?)</invoke>`)
	invokeNameAttrRe = regexp.MustCompile(`(?is)\bname\s*=\s*["']([^"']*)["']`)
	invokeNameChildRe = regexp.MustCompile(`(?is)^\s*<name>(.*?)</name>`)
	parameterRe = regexp.MustCompile(`(?is)<parameter\b[^>]*\bname\s*=\s*["']([^"']*)["'][^>]*>(.*?)</parameter>`)

	// <function_call><tool>X</tool><args_json>{...}</args_json></function_call>,
	// tolerating <arguments> in place of <args_json> and a name= attribute in
	// place of the <tool> child.
	functionCallBlockRe = regexp.MustCompile(`(?is)<function_call\b([^>]*)>(.*?)</function_call>`)
	toolNameRe          = regexp.MustCompile(`(?is)<tool\b[^>]*>(.*?)</tool>`)
	argsJSONRe          = regexp.MustCompile(`(?is)<args_json\b[^>]*>(.*?)</args_json>`)
	argumentsRe         = regexp.MustCompile(`(?is)<arguments\b[^>]*>(.*?)</arguments>`)

	// Fallback when neither form parses strictly: recover a bare name and a
	// JSON-looking blob anywhere nearby.
	fallbackNameRe = regexp.MustCompile(`(?is)\bname\s*=\s*["']([^"']+)["']|<(?:tool|name)>\s*([^<]+?)\s*</(?:tool|name)>`)
	fallbackJSONRe = regexp.MustCompile(`(?s)\{.*\}`)
)

func unwrapCDATA(s string) string {
	if m := cdataRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// ParseFunctionCalls recovers every complete function call from text,
// tolerating the two documented XML-ish shapes, single- or double-quoted
// attributes, a <name> child in place of a name= attribute, <arguments> in
// place of <args_json>, ALL-CAPS tag spelling, a missing outer
// <function_calls> wrapper, and CDATA-wrapped values. Unclosed/partial
// blocks are not matched by the strict pass; when that pass finds nothing,
// the regex fallback still runs, so an unclosed block can come back as one
// call (with "{}" arguments if no JSON object is present).
func ParseFunctionCalls(text string) []ParsedCall {
	calls := parseFunctionCallsStrict(text)
	if len(calls) == 0 {
		if c, ok := fallbackParse(text); ok {
			calls = append(calls, c)
		}
	}
	return calls
}

// parseFunctionCallsStrict matches only fully closed blocks, never the
// regex fallback. The streaming detector uses this form: the fallback would
// see a half-received <function_call> whose <tool> tag happens to be
// complete and emit a premature call with empty arguments.
func parseFunctionCallsStrict(text string) []ParsedCall {
	var calls []ParsedCall

	for _, m := range invokeBlockRe.FindAllStringSubmatch(text, -1) {
		attrs, body := m[1], m[2]
		name := ""
		if nm := invokeNameAttrRe.FindStringSubmatch(attrs); nm != nil {
			name = nm[1]
		} else if nm := invokeNameChildRe.FindStringSubmatch(body); nm != nil {
			name = strings.TrimSpace(unwrapCDATA(nm[1]))
		}
		if name == "" {
			continue
		}

		params := map[string]any{}
		for _, pm := range parameterRe.FindAllStringSubmatch(body, -1) {
			key := pm[1]
			raw := strings.TrimSpace(unwrapCDATA(strings.TrimSpace(pm[2])))
			params[key] = coerceParamValue(raw)
		}

		argsJSON, err := marshalSortedMap(params)
		if err != nil {
			continue
		}
		calls = append(calls, ParsedCall{Name: name, ArgumentsJSON: argsJSON})
	}

	for _, m := range functionCallBlockRe.FindAllStringSubmatch(text, -1) {
		attrs, body := m[1], m[2]
		name := ""
		if nameM := toolNameRe.FindStringSubmatch(body); nameM != nil {
			name = strings.TrimSpace(unwrapCDATA(nameM[1]))
		} else if nameM := invokeNameAttrRe.FindStringSubmatch(attrs); nameM != nil {
			name = strings.TrimSpace(nameM[1])
		}
		if name == "" {
			continue
		}

		var argsRaw string
		if am := argsJSONRe.FindStringSubmatch(body); am != nil {
			argsRaw = am[1]
		} else if am := argumentsRe.FindStringSubmatch(body); am != nil {
			argsRaw = am[1]
		} else {
			argsRaw = "{}"
		}
		argsRaw = strings.TrimSpace(unwrapCDATA(strings.TrimSpace(argsRaw)))
		if argsRaw == "" {
			argsRaw = "{}"
		}
		calls = append(calls, ParsedCall{Name: name, ArgumentsJSON: argsRaw})
	}

	return calls
}

// coerceParamValue is deliberately permissive: a
// parameter value that is itself valid JSON (an object, array, number,
// bool, or null) is passed through typed rather than re-stringified, since
// most tool schemas expect a native type, not its string rendering.
func coerceParamValue(raw string) any {
	if raw == "" {
		return ""
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		switch v.(type) {
		case map[string]any, []any, float64, bool, nil:
			return v
		}
	}
	return raw
}

func marshalSortedMap(m map[string]any) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fallbackParse(text string) (ParsedCall, bool) {
	nm := fallbackNameRe.FindStringSubmatch(text)
	if nm == nil {
		return ParsedCall{}, false
	}
	name := nm[1]
	if name == "" {
		name = nm[2]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ParsedCall{}, false
	}

	args := "{}"
	if jm := fallbackJSONRe.FindString(text); jm != "" {
		var v any
		if json.Unmarshal([]byte(jm), &v) == nil {
			args = jm
		}
	}
	return ParsedCall{Name: name, ArgumentsJSON: args}, true
}
