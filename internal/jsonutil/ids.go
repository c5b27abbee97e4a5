package jsonutil

import (
	"fmt"

	"github.com/google/uuid"
)

// NewRequestID generates a request id for a freshly-decoded CanonicalRequest.
func NewRequestID() string {
	return "req_" + uuid.NewString()
}

// NewResponseID generates an id for a synthesized canonical response when
// the upstream didn't supply one of its own.
func NewResponseID() string {
	return "resp_" + uuid.NewString()
}

// SequentialCallID returns the Nth synthesized tool-call id, used when a
// dialect (Gemini) has no wire-level tool_call_id and the codec must invent
// one deterministically.
func SequentialCallID(n int) string {
	return fmt.Sprintf("call_%d", n)
}

// AllowedKeySet is a set of client API keys the gateway will accept,
// supporting O(1) membership checks.
type AllowedKeySet struct {
	keys map[string]struct{}
}

// NewAllowedKeySet builds an AllowedKeySet from a config-supplied slice.
func NewAllowedKeySet(keys []string) AllowedKeySet {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return AllowedKeySet{keys: set}
}

// Allowed reports whether key is in the set. An empty set allows nothing.
func (s AllowedKeySet) Allowed(key string) bool {
	if key == "" {
		return false
	}
	_, ok := s.keys[key]
	return ok
}
