// Package jsonutil holds small byte-oriented JSON helpers shared by the
// codecs, the function-call parser, and the streaming detector: a permissive
// "close whatever's still open" repair pass, a probe scanner that reads a
// handful of top-level fields without fully decoding a body, and request id
// generation.
package jsonutil

import "strings"

// FixJSON repairs incomplete or malformed JSON by closing unclosed strings,
// objects, and arrays and completing truncated literals. It is used on
// mid-stream tool-call argument buffers, which are not required to be valid
// JSON until the call is considered complete.
func FixJSON(jsonText string) string {
	if jsonText == "" {
		return ""
	}

	var openStack []rune
	inString := false
	escaped := false
	lastValidIndex := -1

	for i := 0; i < len(jsonText); i++ {
		char := rune(jsonText[i])

		if escaped {
			escaped = false
			lastValidIndex = i
			continue
		}

		if char == '\\' && inString {
			escaped = true
			lastValidIndex = i
			continue
		}

		if char == '"' {
			inString = !inString
			lastValidIndex = i
			continue
		}

		if inString {
			lastValidIndex = i
			continue
		}

		switch char {
		case '{':
			openStack = append(openStack, '{')
			lastValidIndex = i
		case '[':
			openStack = append(openStack, '[')
			lastValidIndex = i
		case '}':
			if len(openStack) > 0 && openStack[len(openStack)-1] == '{' {
				openStack = openStack[:len(openStack)-1]
				lastValidIndex = i
			}
		case ']':
			if len(openStack) > 0 && openStack[len(openStack)-1] == '[' {
				openStack = openStack[:len(openStack)-1]
				lastValidIndex = i
			}
		case ',', ':', ' ', '\t', '\n', '\r', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9',
			'-', '.', 'e', 'E', '+', 't', 'r', 'u', 'f', 'a', 'l', 's', 'n':
			lastValidIndex = i
		}
	}

	if lastValidIndex < 0 {
		return ""
	}

	result := jsonText[:lastValidIndex+1]

	if inString {
		result += "\""
	}

	result = completeLiterals(result)

	for i := len(openStack) - 1; i >= 0; i-- {
		if openStack[i] == '{' {
			result += "}"
		} else if openStack[i] == '[' {
			result += "]"
		}
	}

	return result
}

// completeLiterals finishes a truncated true/false/null at the end of s.
func completeLiterals(s string) string {
	i := len(s) - 1
	for i >= 0 && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i--
	}
	if i < 0 {
		return s
	}

	start := i
	for start > 0 && s[start-1] >= 'a' && s[start-1] <= 'z' {
		start--
	}
	if start == i+1 {
		return s
	}

	partial := s[start : i+1]

	if strings.HasPrefix("true", partial) && partial != "true" {
		return s[:start] + "true"
	}
	if strings.HasPrefix("false", partial) && partial != "false" {
		return s[:start] + "false"
	}
	if strings.HasPrefix("null", partial) && partial != "null" {
		return s[:start] + "null"
	}

	return s
}
