// Package sse is the wire-level Server-Sent Events line parser and writer
// shared by every provider stream decoder and every ingress stream encoder.
// It knows nothing about any dialect's event payload shape.
package sse

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Event is a single parsed Server-Sent Event frame.
type Event struct {
	Event string
	Data  string
	ID    string
	Retry int
}

// Reader parses SSE frames from an underlying byte stream, one at a time.
type Reader struct {
	scanner *bufio.Scanner
	err     error
}

// NewReader wraps r in an SSE frame reader. The scanner's buffer is grown
// beyond bufio's default so long provider frames (e.g. a full Anthropic
// content_block_delta carrying a large partial JSON string) don't truncate.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Next returns the next frame, or io.EOF when the stream is exhausted.
func (p *Reader) Next() (*Event, error) {
	if p.err != nil {
		return nil, p.err
	}

	event := &Event{}
	var dataLines []string

	for p.scanner.Scan() {
		line := p.scanner.Text()

		if line == "" {
			if len(dataLines) > 0 || event.Event != "" {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		colonIdx := strings.Index(line, ":")
		if colonIdx == -1 {
			continue
		}

		field := line[:colonIdx]
		value := line[colonIdx+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}

		switch field {
		case "event":
			event.Event = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			event.ID = value
		case "retry":
			var retry int
			_, _ = fmt.Sscanf(value, "%d", &retry)
			event.Retry = retry
		}
	}

	if err := p.scanner.Err(); err != nil {
		p.err = err
		return nil, err
	}

	if len(dataLines) > 0 || event.Event != "" {
		event.Data = strings.Join(dataLines, "\n")
		return event, nil
	}

	p.err = io.EOF
	return nil, io.EOF
}

// Writer emits SSE frames to an underlying writer.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// WriteEvent writes a complete SSE frame.
func (w *Writer) WriteEvent(event Event) error {
	var buf bytes.Buffer

	if event.Event != "" {
		fmt.Fprintf(&buf, "event: %s\n", event.Event)
	}
	if event.ID != "" {
		fmt.Fprintf(&buf, "id: %s\n", event.ID)
	}
	if event.Retry > 0 {
		fmt.Fprintf(&buf, "retry: %d\n", event.Retry)
	}
	if event.Data != "" {
		for _, line := range strings.Split(event.Data, "\n") {
			fmt.Fprintf(&buf, "data: %s\n", line)
		}
	} else {
		buf.WriteString("data: \n")
	}
	buf.WriteString("\n")

	_, err := w.w.Write(buf.Bytes())
	return err
}

// WriteData writes a data-only frame.
func (w *Writer) WriteData(data string) error {
	return w.WriteEvent(Event{Data: data})
}

// WriteNamedEvent writes an event with both a type and a data payload
// (Anthropic's convention: every frame carries an `event:` line).
func (w *Writer) WriteNamedEvent(eventType, data string) error {
	return w.WriteEvent(Event{Event: eventType, Data: data})
}

// IsDoneMarker reports whether a frame is the OpenAI/Gemini terminal
// `data: [DONE]` marker.
func IsDoneMarker(e *Event) bool {
	return e != nil && e.Data == "[DONE]"
}
