package jsonutil

import "encoding/json"

// ParseState reports how ParsePartial arrived at its result.
type ParseState string

const (
	ParseStateEmpty    ParseState = "empty"
	ParseStateOK       ParseState = "ok"
	ParseStateRepaired ParseState = "repaired"
	ParseStateFailed   ParseState = "failed"
)

// ParseResult is the outcome of attempting to parse possibly-incomplete
// JSON.
type ParseResult struct {
	Value any
	State ParseState
	Err   error
}

// ParsePartial tries json.Unmarshal as-is; on failure it repairs the text
// with FixJSON and retries once. The function-call streaming detector runs
// every recovered argument payload through this before emitting it, so a
// call whose args_json closed around a truncated object still reaches the
// client as valid JSON.
func ParsePartial(text string) ParseResult {
	if text == "" {
		return ParseResult{State: ParseStateEmpty}
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return ParseResult{Value: v, State: ParseStateOK}
	}

	repaired := FixJSON(text)
	if repaired == "" {
		return ParseResult{State: ParseStateFailed}
	}

	if err := json.Unmarshal([]byte(repaired), &v); err == nil {
		return ParseResult{Value: v, State: ParseStateRepaired}
	} else {
		return ParseResult{State: ParseStateFailed, Err: err}
	}
}

// IsValidJSON reports whether s parses cleanly as a complete JSON value.
func IsValidJSON(s string) bool {
	var v any
	return json.Unmarshal([]byte(s), &v) == nil
}
