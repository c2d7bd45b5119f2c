package sse

import (
	"bufio"
	"io"
)

// Reader pulls parsed SSE events from a source io.Reader. It is a thin
// blocking wrapper over Parser for callers that hold the response body
// directly rather than receiving chunk callbacks.
type Reader struct {
	scanner *bufio.Scanner
	parser  *Parser
	pending []Event
	done    bool
}

// NewReader returns a Reader that parses SSE events from src.
func NewReader(src io.Reader) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Reader{
		scanner: scanner,
		parser:  NewParser(),
	}
}

// Next returns the next parsed SSE event. It blocks until a complete event
// is available (terminated by a blank line in the stream).
// Next returns nil, nil when the source is exhausted.
func (r *Reader) Next() (*Event, error) {
	for {
		if len(r.pending) > 0 {
			ev := r.pending[0]
			r.pending = r.pending[1:]
			return &ev, nil
		}

		if r.done {
			return nil, nil
		}

		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, err
			}

			r.done = true

			// Source exhausted without a trailing blank line: yield the
			// in-progress event, if any.
			if ev, ok := r.parser.Flush(); ok {
				return &ev, nil
			}
			return nil, nil
		}

		// bufio.Scanner strips the newline from Scan() so we reinsert it
		// here for the parser's line accounting.
		r.pending = append(r.pending, r.parser.Feed([]byte(r.scanner.Text()+"\n"))...)
	}
}
