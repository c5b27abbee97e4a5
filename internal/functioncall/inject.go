package functioncall

import (
	"fmt"
	"strings"

	"github.com/nexusgate/llm-gateway/internal/ir"
)

// InjectResult carries both the rewritten request and the tool set that was
// pulled out of it, so the pipeline can hand savedTools to the response
// reshaper once the upstream replies.
type InjectResult struct {
	Request    ir.Request
	SavedTools []ir.ToolSpec
	Injected   bool
}

// Inject rewrites req for an upstream running in config.FCModePrompt
//: tools move out of the native Tools field and into a
// system-prompt appendix describing the expected XML reply shape, any prior
// tool-result messages are flattened into plain user text (a prompt-mode
// upstream has no native notion of a tool message), and ToolChoice is
// forced to None so the upstream never tries its own native mechanism.
func Inject(req ir.Request) InjectResult {
	if len(req.Tools) == 0 {
		return InjectResult{Request: req}
	}

	saved := req.Tools

	out := req
	out.Tools = nil
	out.ToolChoice = ir.NoneToolChoice()
	out.SystemPrompt = appendFunctionCallPrompt(req.SystemPrompt, saved)
	out.Messages = flattenToolMessages(req.Messages)

	return InjectResult{Request: out, SavedTools: saved, Injected: true}
}

func appendFunctionCallPrompt(existing string, tools []ir.ToolSpec) string {
	var b strings.Builder
	if existing != "" {
		b.WriteString(existing)
		b.WriteString("\n\n")
	}

	b.WriteString("You have access to the following functions. To call one or more of them, ")
	b.WriteString("write the exact text ")
	b.WriteString(triggerSignal)
	b.WriteString(" followed immediately by one <function_calls> block containing one ")
	b.WriteString("<invoke name=\"FUNCTION_NAME\"> element per call, each holding one ")
	b.WriteString("<parameter name=\"PARAM_NAME\">value</parameter> element per argument. ")
	b.WriteString("Emit nothing else after the function_calls block. Available functions:\n\n")

	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n  parameters schema: %s\n", t.Name, t.Description, string(t.Parameters))
	}

	return b.String()
}

// flattenToolMessages converts ir.RoleTool messages (tool results) into
// plain user-role text, since prompt-mode upstreams were never told a tool
// message even exists. The tool name is recovered from the matching
// ToolCallPart emitted earlier in the same conversation.
func flattenToolMessages(msgs []ir.Message) []ir.Message {
	names := map[string]string{}
	for _, m := range msgs {
		for _, p := range m.Parts {
			if tc, ok := p.(ir.ToolCallPart); ok {
				names[tc.ID] = tc.Name
			}
		}
	}

	out := make([]ir.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != ir.RoleTool {
			out = append(out, m)
			continue
		}

		var b strings.Builder
		for _, p := range m.Parts {
			tr, ok := p.(ir.ToolResultPart)
			if !ok {
				continue
			}
			name := names[tr.ToolCallID]
			if name == "" {
				name = tr.ToolCallID
			}
			fmt.Fprintf(&b, "Tool execution result: name=%s result=%s\n", name, tr.Content)
		}

		out = append(out, ir.Message{
			Role:  ir.RoleUser,
			Parts: []ir.Part{ir.TextPart{Text: strings.TrimRight(b.String(), "\n")}},
		})
	}
	return out
}
