// Package functioncall implements synthetic "function calling" for upstreams
// that cannot do it natively: it rewrites outgoing requests
// to advertise tools via a prompt convention, and parses the model's reply
// back into canonical tool calls, streaming or not.
package functioncall

// triggerSignal is the fixed ASCII token the injected system prompt
// promises to emit immediately before the function-call XML block. It must
// be stable for the lifetime of one process and unlikely enough that no
// reasonable model emits it spontaneously.
const triggerSignal = "<Function_AB12_Start/>"

// TriggerSignal returns the process-wide trigger token.
func TriggerSignal() string { return triggerSignal }
