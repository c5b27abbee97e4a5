package pipeline

import (
	"strings"

	"github.com/nexusgate/llm-gateway/internal/functioncall"
	"github.com/nexusgate/llm-gateway/internal/ir"
)

// reshapeNonStreamResponse runs the synthetic function-call parser over a
// complete upstream reply from a prompt-mode upstream, replacing the raw trigger-signal text with structured tool calls
// when one is found.
func reshapeNonStreamResponse(resp ir.Response) ir.Response {
	var text strings.Builder
	for _, p := range resp.Content {
		if tp, ok := p.(ir.TextPart); ok {
			text.WriteString(tp.Text)
		}
	}

	result := functioncall.ProcessResponse(text.String())
	if result.Kind != functioncall.ToolCallsFound {
		return resp
	}

	var content []ir.Part
	if result.PriorText != "" {
		content = append(content, ir.TextPart{Text: result.PriorText})
	}
	for _, tc := range result.ToolCalls {
		content = append(content, tc)
	}
	resp.Content = content
	resp.StopReason = ir.StopToolCalls
	return resp
}

// reshapeStreamEvents returns a transcoder Reshape hook that routes a
// prompt-mode upstream's text deltas through a functioncall.Detector,
// turning the model's raw trigger-signal prose into canonical tool-call
// events before the ingress encoder ever sees it.
func reshapeStreamEvents(detector *functioncall.Detector) func([]ir.StreamEvent) []ir.StreamEvent {
	return func(in []ir.StreamEvent) []ir.StreamEvent {
		var out []ir.StreamEvent
		for _, ev := range in {
			switch ev.Kind {
			case ir.EventTextDelta:
				out = append(out, detector.Feed(ev.Delta)...)
			case ir.EventMessageEnd:
				out = append(out, detector.Finish()...)
				if detector.HasEmittedCalls() {
					ev.StopReason = ir.StopToolCalls
				}
				out = append(out, ev)
			default:
				out = append(out, ev)
			}
		}
		return out
	}
}
