package functioncall

import (
	"strings"

	"github.com/nexusgate/llm-gateway/internal/ir"
	"github.com/nexusgate/llm-gateway/internal/jsonutil"
)

// ResultKind classifies the outcome of scanning one complete response body
// for the trigger signal.
type ResultKind int

const (
	NoToolCalls ResultKind = iota
	ToolCallsFound
)

// Result is what ProcessResponse hands back to the pipeline.
type Result struct {
	Kind      ResultKind
	PriorText string
	ToolCalls []ir.ToolCallPart
}

// ProcessResponse scans a complete (non-streaming) upstream reply for the
// trigger signal, outside of any closed reasoning block, and parses
// whatever follows it into tool calls.
//
// Reasoning blocks are stripped before the scan, so a trigger the model
// only mentioned while thinking out loud (and a function_calls block
// nested inside that same reasoning block) is invisible to the detector;
// only a trigger sitting in the model's actual answer counts.
func ProcessResponse(text string) Result {
	stripped := StripThinkBlocks(text)

	idx := strings.LastIndex(stripped, triggerSignal)
	if idx == -1 {
		return Result{Kind: NoToolCalls, PriorText: text}
	}

	prior := stripped[:idx]
	rest := stripped[idx+len(triggerSignal):]

	parsed := ParseFunctionCalls(rest)
	if len(parsed) == 0 {
		return Result{Kind: NoToolCalls, PriorText: text}
	}

	calls := make([]ir.ToolCallPart, len(parsed))
	for i, p := range parsed {
		calls[i] = ir.ToolCallPart{
			ID:        jsonutil.SequentialCallID(i),
			Name:      p.Name,
			Arguments: p.ArgumentsJSON,
		}
	}

	return Result{Kind: ToolCallsFound, PriorText: prior, ToolCalls: calls}
}
