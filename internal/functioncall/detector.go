package functioncall

import (
	"encoding/json"
	"strings"

	"github.com/nexusgate/llm-gateway/internal/ir"
	"github.com/nexusgate/llm-gateway/internal/jsonutil"
)

// DetectorState is the streaming FSM's phase, per the
// pretrigger/triggered/in-function-calls state machine.
type DetectorState int

const (
	StatePretrigger DetectorState = iota
	StateTriggered
	StateInFunctionCalls
	StateOverflow
)

const maxDetectorBuffer = 256 * 1024

// watchedOpeners are the literal strings the detector must never flush a
// partial match of while in StatePretrigger: the trigger itself, and every
// reasoning-block opening tag (a block might still be forming).
var watchedOpeners = append([]string{triggerSignal}, func() []string {
	tags := make([]string, len(thinkTags))
	for i, t := range thinkTags {
		tags[i] = "<" + t + ">"
	}
	return tags
}()...)

// Detector consumes a provider's text deltas incrementally and emits
// canonical stream events: ordinary text while pretrigger, then tool-call
// events for each complete function call found after the trigger (an
// outer <function_calls> wrapper is not required).
type Detector struct {
	state DetectorState

	raw strings.Builder // everything seen so far, for think-aware rescans
	// flushedStrippedLen is how much of StripThinkBlocks(raw) has already
	// been emitted as TextDelta, so re-stripping on every Feed doesn't
	// double-flush.
	flushedStrippedLen int

	fcBuffer      strings.Builder // raw text collected once Triggered
	emittedCalls  int
	nextCallIndex int
}

// NewDetector returns a Detector starting in StatePretrigger.
func NewDetector() *Detector {
	return &Detector{}
}

// Feed processes one more chunk of upstream text and returns zero or more
// canonical events to forward downstream.
func (d *Detector) Feed(chunk string) []ir.StreamEvent {
	switch d.state {
	case StateOverflow:
		return []ir.StreamEvent{{Kind: ir.EventTextDelta, Delta: chunk}}
	case StatePretrigger:
		return d.feedPretrigger(chunk)
	default: // StateTriggered, StateInFunctionCalls
		return d.feedTriggered(chunk)
	}
}

func (d *Detector) feedPretrigger(chunk string) []ir.StreamEvent {
	d.raw.WriteString(chunk)
	if d.raw.Len() > maxDetectorBuffer {
		return d.overflow()
	}

	stripped := StripThinkBlocks(d.raw.String())

	if idx := strings.Index(stripped, triggerSignal); idx != -1 {
		var events []ir.StreamEvent
		if idx > d.flushedStrippedLen {
			events = append(events, ir.StreamEvent{Kind: ir.EventTextDelta, Delta: stripped[d.flushedStrippedLen:idx]})
		}
		d.state = StateTriggered
		d.fcBuffer.WriteString(stripped[idx+len(triggerSignal):])
		d.flushedStrippedLen = 0
		events = append(events, d.scanFunctionCalls()...)
		return events
	}

	safeEnd := safeFlushBound(stripped)
	if safeEnd > d.flushedStrippedLen {
		events := []ir.StreamEvent{{Kind: ir.EventTextDelta, Delta: stripped[d.flushedStrippedLen:safeEnd]}}
		d.flushedStrippedLen = safeEnd
		return events
	}
	return nil
}

func (d *Detector) feedTriggered(chunk string) []ir.StreamEvent {
	d.fcBuffer.WriteString(chunk)
	if d.fcBuffer.Len() > maxDetectorBuffer {
		return d.overflow()
	}
	return d.scanFunctionCalls()
}

// scanFunctionCalls re-parses the whole function-call buffer and emits
// start/delta/end events for any calls that have newly become complete
// since the last scan. Arguments are emitted as a single delta rather than
// incrementally; downstream consumers only require the buffer to be
// valid JSON once the call ends.
func (d *Detector) scanFunctionCalls() []ir.StreamEvent {
	d.state = StateInFunctionCalls
	calls := parseFunctionCallsStrict(d.fcBuffer.String())
	if len(calls) <= d.emittedCalls {
		return nil
	}

	var events []ir.StreamEvent
	for _, c := range calls[d.emittedCalls:] {
		id := jsonutil.SequentialCallID(d.nextCallIndex)
		d.nextCallIndex++
		idx := d.nextCallIndex - 1
		events = append(events,
			ir.StreamEvent{Kind: ir.EventToolCallStart, Index: idx, CallID: id, CallName: c.Name},
			ir.StreamEvent{Kind: ir.EventToolCallArgsDelta, Index: idx, CallID: id, Delta: repairArguments(c.ArgumentsJSON)},
			ir.StreamEvent{Kind: ir.EventToolCallEnd, Index: idx, CallID: id},
		)
	}
	d.emittedCalls = len(calls)
	return events
}

// repairArguments keeps the emitted argument delta valid JSON by the time
// the call ends: models occasionally close the args_json tag around a
// truncated object, so a speculative ParsePartial repairs what it can and
// the raw text is kept only when it was already well formed.
func repairArguments(args string) string {
	res := jsonutil.ParsePartial(args)
	switch res.State {
	case jsonutil.ParseStateOK:
		return args
	case jsonutil.ParseStateRepaired:
		if b, err := json.Marshal(res.Value); err == nil {
			return string(b)
		}
	}
	return "{}"
}

func (d *Detector) overflow() []ir.StreamEvent {
	d.state = StateOverflow
	var dump string
	if d.fcBuffer.Len() > 0 {
		dump = d.fcBuffer.String()
	} else {
		dump = d.raw.String()
	}
	return []ir.StreamEvent{
		{Kind: ir.EventError, Status: 500, Message: "function-call detector buffer exceeded limit, falling back to raw text"},
		{Kind: ir.EventTextDelta, Delta: dump},
	}
}

// HasEmittedCalls reports whether any tool call was found during this
// stream, for the stop-reason upgrade at stream end.
func (d *Detector) HasEmittedCalls() bool { return d.emittedCalls > 0 }

// Finish flushes whatever the detector was still holding back when the
// upstream stream ends: pretrigger text withheld because it could have been
// the start of a watched opener, or a post-trigger buffer that never grew
// into a complete call. Without this, a stream ending mid-prefix would
// silently drop its tail. Returns zero or more trailing TextDelta events;
// call exactly once, after the last Feed.
func (d *Detector) Finish() []ir.StreamEvent {
	switch d.state {
	case StatePretrigger:
		stripped := StripThinkBlocks(d.raw.String())
		if len(stripped) > d.flushedStrippedLen {
			tail := stripped[d.flushedStrippedLen:]
			d.flushedStrippedLen = len(stripped)
			return []ir.StreamEvent{{Kind: ir.EventTextDelta, Delta: tail}}
		}
	case StateTriggered, StateInFunctionCalls:
		// The model announced a call but never completed one: hand the raw
		// buffer back as text rather than losing it. Once calls were
		// emitted, any leftover is wrapper/whitespace and is dropped.
		if d.emittedCalls == 0 && d.fcBuffer.Len() > 0 {
			tail := triggerSignal + d.fcBuffer.String()
			d.fcBuffer.Reset()
			return []ir.StreamEvent{{Kind: ir.EventTextDelta, Delta: tail}}
		}
	}
	return nil
}

// safeFlushBound returns the longest prefix of s that cannot possibly be
// (a prefix of) any watched opener, so it is safe to flush immediately
// without risking having to retract it on the next chunk.
func safeFlushBound(s string) int {
	limit := len(s)
	for _, w := range watchedOpeners {
		maxK := len(w) - 1
		if maxK > len(s) {
			maxK = len(s)
		}
		for k := maxK; k > 0; k-- {
			if strings.HasSuffix(s, w[:k]) {
				if cut := len(s) - k; cut < limit {
					limit = cut
				}
				break
			}
		}
	}
	return limit
}
