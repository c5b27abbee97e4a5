package functioncall

import "strings"

// thinkTags are the block names stripped before the trigger signal is
// searched for, so a model "thinking out loud" about calling a function
// never accidentally fires the detector.
var thinkTags = []string{"think", "thinking", "reasoning", "analysis"}

// StripThinkBlocks removes every fully-closed <tag>...</tag> region for each
// name in thinkTags, handling same-name nesting (an inner <think> closes
// before its outer <think> does). An unclosed opener leaves the text from
// that point on completely unchanged: the caller only ever sees a trigger
// signal that sits outside any reasoning block the model has actually
// finished emitting.
func StripThinkBlocks(text string) string {
	for _, tag := range thinkTags {
		text = stripBlocksForTag(text, tag)
	}
	return text
}

func stripBlocksForTag(text, tag string) string {
	open := "<" + tag + ">"
	close := "</" + tag + ">"
	lowerText := strings.ToLower(text)

	var out strings.Builder
	i := 0
	for {
		rel := strings.Index(lowerText[i:], open)
		if rel == -1 {
			out.WriteString(text[i:])
			return out.String()
		}
		openPos := i + rel
		out.WriteString(text[i:openPos])

		depth := 1
		pos := openPos + len(open)
		for depth > 0 {
			nextOpenRel := strings.Index(lowerText[pos:], open)
			nextCloseRel := strings.Index(lowerText[pos:], close)
			if nextCloseRel == -1 {
				// Unclosed: leave everything from the original opener onward
				// untouched and stop processing this tag entirely.
				out.WriteString(text[openPos:])
				return out.String()
			}
			if nextOpenRel != -1 && nextOpenRel < nextCloseRel {
				depth++
				pos += nextOpenRel + len(open)
			} else {
				depth--
				pos += nextCloseRel + len(close)
			}
		}
		i = pos
	}
}
