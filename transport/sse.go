package transport

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent is one Server-Sent Event parsed from a subscription stream.
type SSEEvent struct {
	// Type is the "event:" field, empty for the default event type.
	Type string

	// Data is the payload assembled from one or more "data:" lines,
	// joined with newlines per the SSE specification.
	Data string
}

// SSEScanner reads Server-Sent Events from an [io.Reader]. Events are
// delimited by blank lines; comment lines (leading ":") and unknown
// fields are ignored.
//
//	scanner := NewSSEScanner(body)
//	for scanner.Next() {
//	    handle(scanner.Event())
//	}
//	if err := scanner.Err(); err != nil { ... }
type SSEScanner struct {
	reader  *bufio.Reader
	current SSEEvent
	err     error
}

// NewSSEScanner creates a scanner over reader.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	return &SSEScanner{reader: bufio.NewReaderSize(reader, 64*1024)}
}

// Next advances to the next event. It returns false at end of stream or
// on error; call [SSEScanner.Err] to distinguish.
func (s *SSEScanner) Next() bool {
	s.current = SSEEvent{}

	var dataLines []string
	var eventType string
	hasData := false

	for {
		line, err := s.reader.ReadString('\n')

		if err != nil && line == "" {
			if err == io.EOF {
				// Emit a final event assembled before an EOF with no
				// trailing blank line.
				if hasData {
					s.current = SSEEvent{Type: eventType, Data: strings.Join(dataLines, "\n")}
					s.err = io.EOF
					return true
				}
				return false
			}
			s.err = err
			return false
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				s.current = SSEEvent{Type: eventType, Data: strings.Join(dataLines, "\n")}
				return true
			}
			eventType = ""
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, hasColon := strings.Cut(line, ":")
		if !hasColon {
			field = line
			value = ""
		} else {
			// SSE strips exactly one leading space from the value.
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "event":
			eventType = value
		default:
			// "id", "retry" and unknown fields are ignored.
		}
	}
}

// Event returns the most recently parsed event. Valid only after Next
// returned true.
func (s *SSEScanner) Event() SSEEvent {
	return s.current
}

// Err returns the first error encountered, or nil after a clean EOF.
func (s *SSEScanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
