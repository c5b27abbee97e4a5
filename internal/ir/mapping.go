package ir

// This file holds the pure, table-driven role and stop-reason mappings
// the dialect codecs share. They have no I/O and no dialect-specific wire
// shapes; those live in internal/codec/*.

// OpenAIRoleString maps a canonical Role to the role string OpenAI Chat and
// OpenAI Responses expect on encode.
func OpenAIRoleString(r Role) string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleTool:
		return "tool"
	default:
		return "user"
	}
}

// RoleFromOpenAIString maps an OpenAI wire role to canonical Role. OpenAI's
// "developer" role is a synonym for system accepted on decode.
func RoleFromOpenAIString(s string) Role {
	switch s {
	case "system", "developer":
		return RoleSystem
	case "assistant":
		return RoleAssistant
	case "tool":
		return RoleTool
	default:
		return RoleUser
	}
}

// AnthropicRoleString maps a canonical Role to the Anthropic messages-array
// role. Anthropic has only "user" and "assistant" in the messages array;
// System is carried in the top-level `system` field and Tool becomes a
// user-role tool_result content block. Both collapses are lossy and
// documented as lossy round trips.
func AnthropicRoleString(r Role) string {
	switch r {
	case RoleAssistant:
		return "assistant"
	default:
		// System (lifted out separately) and Tool (content-block) both ride
		// in a user-role message on the wire.
		return "user"
	}
}

// GeminiRoleString maps a canonical Role to the Gemini `role` field.
func GeminiRoleString(r Role) string {
	switch r {
	case RoleAssistant:
		return "model"
	case RoleTool:
		return "function"
	default:
		return "user"
	}
}

// RoleFromGeminiString maps a Gemini wire role to canonical Role.
func RoleFromGeminiString(s string) Role {
	switch s {
	case "model":
		return RoleAssistant
	case "function":
		return RoleTool
	default:
		return RoleUser
	}
}

// OpenAIStopReasonString maps a canonical StopReason to OpenAI's
// finish_reason string.
func OpenAIStopReasonString(s StopReason) string {
	switch s {
	case StopToolCalls:
		return "tool_calls"
	case StopMaxTokens:
		return "length"
	case StopContentFilter:
		return "content_filter"
	default:
		return "stop"
	}
}

// StopReasonFromOpenAIString maps an OpenAI finish_reason to canonical
// StopReason.
func StopReasonFromOpenAIString(s string) StopReason {
	switch s {
	case "tool_calls", "function_call":
		return StopToolCalls
	case "length":
		return StopMaxTokens
	case "content_filter":
		return StopContentFilter
	default:
		return StopEndOfTurn
	}
}

// AnthropicStopReasonString maps a canonical StopReason to Anthropic's
// stop_reason string. ContentFilter has no dedicated Anthropic stop reason;
// it degrades to end_turn by design.
func AnthropicStopReasonString(s StopReason) string {
	switch s {
	case StopToolCalls:
		return "tool_use"
	case StopMaxTokens:
		return "max_tokens"
	default:
		return "end_turn"
	}
}

// StopReasonFromAnthropicString maps an Anthropic stop_reason to canonical
// StopReason.
func StopReasonFromAnthropicString(s string) StopReason {
	switch s {
	case "tool_use":
		return StopToolCalls
	case "max_tokens":
		return StopMaxTokens
	default:
		return StopEndOfTurn
	}
}

// GeminiStopReasonString maps a canonical StopReason to Gemini's
// finishReason string. Gemini conflates EndOfTurn and ToolCalls into "STOP"
// on the wire; decoders disambiguate by the presence of a
// functionCall part (see internal/codec/gemini).
func GeminiStopReasonString(s StopReason) string {
	switch s {
	case StopMaxTokens:
		return "MAX_TOKENS"
	case StopContentFilter:
		return "SAFETY"
	default:
		return "STOP"
	}
}

// StopReasonFromGeminiString maps a Gemini finishReason to canonical
// StopReason, given whether the candidate carried a functionCall part.
func StopReasonFromGeminiString(s string, hasFunctionCall bool) StopReason {
	switch s {
	case "MAX_TOKENS":
		return StopMaxTokens
	case "SAFETY", "RECITATION":
		return StopContentFilter
	case "STOP", "":
		if hasFunctionCall {
			return StopToolCalls
		}
		return StopEndOfTurn
	default:
		return StopEndOfTurn
	}
}
