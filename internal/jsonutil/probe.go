package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Probe is the lightweight pre-decode read of a request body: just enough to
// pick a router candidate and choose a fast path, without paying for a full
// canonical decode.
type Probe struct {
	Model       string
	Stream      bool
	HasTools    bool
}

// ScanProbe walks the top-level JSON object's tokens with a streaming
// decoder (never unmarshaling into a struct) looking for "model", "stream",
// and a non-empty "tools" array. It tolerates any request shape sharing
// those top-level field names, which covers all four ingress dialects
// (Gemini carries "tools" too, model comes from the URL path instead and is
// filled in by the caller).
func ScanProbe(body []byte) (Probe, error) {
	dec := json.NewDecoder(bytes.NewReader(body))

	tok, err := dec.Token()
	if err != nil {
		return Probe{}, err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return Probe{}, errors.New("probe: expected top-level JSON object")
	}

	var p Probe
	depth := 0
	var pendingKey string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return p, err
		}

		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				if depth == 0 && pendingKey == "tools" {
					// consume the whole tools value, recording whether it's
					// a non-empty array.
					nonEmpty, err := skipAndCheckNonEmpty(dec, d)
					if err != nil {
						return p, err
					}
					p.HasTools = nonEmpty
					pendingKey = ""
					continue
				}
				// Any other structured value at the top level satisfies its
				// pending key; without this, the next top-level key would be
				// mistaken for this key's value.
				if depth == 0 {
					pendingKey = ""
				}
				depth++
			case '}', ']':
				depth--
			}
			continue
		}

		if depth == 0 {
			if pendingKey == "" {
				if s, ok := tok.(string); ok {
					pendingKey = s
				}
				continue
			}
			switch pendingKey {
			case "model":
				if s, ok := tok.(string); ok {
					p.Model = s
				}
			case "stream":
				if b, ok := tok.(bool); ok {
					p.Stream = b
				}
			}
			pendingKey = ""
		}
	}

	return p, nil
}

// skipAndCheckNonEmpty consumes a JSON array or object value (the opening
// delim has already been read) and reports whether it contained at least
// one element/member.
func skipAndCheckNonEmpty(dec *json.Decoder, opened json.Delim) (bool, error) {
	depth := 1
	nonEmpty := false
	first := true
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nonEmpty, err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
				nonEmpty = true
			case '}', ']':
				depth--
			}
			continue
		}
		if first {
			nonEmpty = true
		}
		first = false
	}
	return nonEmpty, nil
}
