package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Frame is one raw server-sent event as read off the wire, before the JSON
// body has been interpreted.
type Frame struct {
	Event string
	Data  string
}

// Scanner reads newline-delimited server-sent events from a long-lived
// response body. It understands the `event:` and `data:` line prefixes and
// treats a blank line as the frame terminator. Comment lines (leading ':')
// are keepalives and are skipped.
type Scanner struct {
	scanner *bufio.Scanner
}

// NewScanner wraps a stream body. The buffer is sized generously because a
// single event may carry a full auction payload.
func NewScanner(r io.Reader) *Scanner {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	return &Scanner{scanner: scanner}
}

// Next returns the next complete frame. It returns io.EOF when the stream
// ends cleanly and the underlying read error otherwise.
func (s *Scanner) Next() (Frame, error) {
	var (
		name    string
		builder strings.Builder
		started bool
	)

	for {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Frame{}, err
			}
			if started {
				return Frame{Event: name, Data: builder.String()}, nil
			}
			return Frame{}, io.EOF
		}

		line := s.scanner.Text()
		if line == "" {
			if !started {
				continue
			}
			return Frame{Event: name, Data: builder.String()}, nil
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			started = true
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(data)
			started = true
		}
	}
}

// Decode parses a frame's data into an Event envelope. A decode failure is
// recoverable: the caller logs it and drops the message without touching the
// connection.
func Decode(frame Frame) (Event, error) {
	var ev Event
	if strings.TrimSpace(frame.Data) == "" {
		return Event{}, fmt.Errorf("empty event payload")
	}
	if err := json.Unmarshal([]byte(frame.Data), &ev); err != nil {
		return Event{}, fmt.Errorf("malformed event payload: %w", err)
	}
	// Some producers put the type only on the SSE event line.
	if ev.Type == "" {
		ev.Type = frame.Event
	}
	return ev, nil
}
