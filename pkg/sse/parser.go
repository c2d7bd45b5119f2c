package sse

import "strings"

// Parser is an incremental SSE parser fed with raw byte chunks as they
// arrive from the network. Chunk boundaries carry no meaning: a single
// event may span many Feed calls, and one Feed call may complete many
// events. The caller never re-feeds bytes it has already delivered.
type Parser struct {
	// buf holds the tail of the stream that does not yet end in a newline.
	buf []byte

	// current accumulates fields for the event being built. dataSeen
	// distinguishes "no data: line yet" from "an empty data: line", which
	// matters for the newline join between multiple data lines.
	current  Event
	hasField bool
	dataSeen bool
}

// NewParser returns a Parser with empty state.
func NewParser() *Parser {
	return &Parser{}
}

// Feed consumes the next chunk of raw stream bytes and returns all events
// completed by it, in the order their terminating blank line was observed.
// Returns nil when the chunk completes no event.
func (p *Parser) Feed(chunk []byte) []Event {
	p.buf = append(p.buf, chunk...)

	var events []Event
	for {
		idx := indexNewline(p.buf)
		if idx < 0 {
			break
		}

		line := string(p.buf[:idx])
		p.buf = p.buf[idx+1:]

		// Lines may be terminated with CRLF; the CR is not part of the line.
		line = strings.TrimSuffix(line, "\r")

		if ev, ok := p.consumeLine(line); ok {
			events = append(events, ev)
		}
	}

	return events
}

// Flush yields the in-progress event if the stream ended without a trailing
// blank line. Call once after the source is exhausted.
func (p *Parser) Flush() (Event, bool) {
	if !p.hasField {
		return Event{}, false
	}
	ev := p.current
	p.reset()
	return ev, true
}

// consumeLine processes one complete line. It returns the finished event
// and true when the line was the blank terminator of a non-empty event.
func (p *Parser) consumeLine(line string) (Event, bool) {
	// A blank line signals the end of the current event.
	if line == "" {
		if !p.hasField {
			// Blank line with no accumulated fields. Skip it (e.g.
			// leading blank lines or keep-alive newlines).
			return Event{}, false
		}
		ev := p.current
		p.reset()
		return ev, true
	}

	// Lines starting with ':' are comments. Skip them.
	if strings.HasPrefix(line, ":") {
		return Event{}, false
	}

	p.parseField(line)
	return Event{}, false
}

// parseField accumulates a single non-empty, non-comment SSE line into the
// current event.
//
// Per the SSE spec, a line has the form "field:value" where the first
// space after the colon is optional and stripped if present.
func (p *Parser) parseField(line string) {
	var field, value string

	if before, after, ok := strings.Cut(line, ":"); ok {
		field = before
		value = strings.TrimPrefix(after, " ")
	} else {
		// Line with no colon: the entire line is the field name with
		// an empty value.
		field = line
	}

	switch field {
	case "data":
		if p.dataSeen {
			// Multiple data fields are joined with "\n", even when an
			// earlier one carried an empty value.
			p.current.Data += "\n"
		}
		p.current.Data += value
		p.hasField = true
		p.dataSeen = true
	case "event":
		p.current.Type = value
		p.hasField = true
	case "id":
		p.current.ID = value
		p.hasField = true
	default:
		// * "retry" is intentionally ignored; reconnect pacing is owned
		//   by the stream transport, not the server.
		// * Other unknown fields are ignored per the SSE spec.
	}
}

// reset clears the accumulated event state for the next event.
func (p *Parser) reset() {
	p.current = Event{}
	p.hasField = false
	p.dataSeen = false
}

func indexNewline(b []byte) int {
	for i, c := range b {
		if c == '\n' {
			return i
		}
	}
	return -1
}
