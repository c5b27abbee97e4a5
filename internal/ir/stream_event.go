package ir

// StreamEventKind discriminates StreamEvent; every variant shares one
// struct with a Kind tag rather than one interface per variant.
type StreamEventKind string

const (
	EventMessageStart     StreamEventKind = "message_start"
	EventTextDelta        StreamEventKind = "text_delta"
	EventReasoningDelta   StreamEventKind = "reasoning_delta"
	EventToolCallStart    StreamEventKind = "tool_call_start"
	EventToolCallArgsDelta StreamEventKind = "tool_call_args_delta"
	EventToolCallEnd      StreamEventKind = "tool_call_end"
	EventToolResult       StreamEventKind = "tool_result"
	EventUsage            StreamEventKind = "usage"
	EventMessageEnd       StreamEventKind = "message_end"
	EventDone             StreamEventKind = "done"
	EventError            StreamEventKind = "error"
)

// StreamEvent is one canonical event in an SSE stream. Only the fields
// relevant to Kind are populated; the rest are zero. Invariants (enforced by
// producers, not by this type): for every EventToolCallArgsDelta there is an
// earlier EventToolCallStart with the same Index, and the concatenation of
// all deltas for an Index is valid JSON by the time EventToolCallEnd (or
// stream end) is reached.
type StreamEvent struct {
	Kind StreamEventKind

	// TextDelta / ReasoningDelta
	Delta string

	// ToolCallStart / ToolCallArgsDelta / ToolCallEnd
	Index    int
	CallID   string
	CallName string

	// ToolResult
	ToolCallID string
	Content    string

	// Usage
	Usage *Usage

	// MessageEnd
	StopReason StopReason

	// Error
	Status  int
	Message string
}
