// Package sse incrementally decodes Server-Sent-Events framing from a
// raw byte stream.
//
// The decoder is stateful: frames that arrive split across read
// boundaries are buffered and only emitted once the blank-line
// delimiter is observed. It implements the field-folding rule where
// consecutive data: lines concatenate with an internal newline, and it
// tolerates CRLF line endings.
package sse

import (
	"bytes"
	"io"
)

// Event is one decoded SSE frame.
type Event struct {
	// Name is the value of the last event: field, empty for unnamed events.
	Name string
	// ID is the value of the last id: field.
	ID string
	// Data is the folded payload of all data: lines in the frame.
	Data []byte
}

// Decoder pulls events out of r one frame at a time.
type Decoder struct {
	r   io.Reader
	buf []byte
	rb  []byte
	err error

	// pending frame state, accumulated line by line
	name    string
	id      string
	data    [][]byte
	hasData bool
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, rb: make([]byte, 4096)}
}

// Next returns the next complete event, or io.EOF when the transport
// closed cleanly. A frame left unterminated at EOF is discarded, per
// the SSE processing model.
func (d *Decoder) Next() (Event, error) {
	for {
		if i := bytes.IndexByte(d.buf, '\n'); i >= 0 {
			line := d.buf[:i]
			d.buf = d.buf[i+1:]
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			if ev, ok := d.processLine(line); ok {
				return ev, nil
			}
			continue
		}

		if d.err != nil {
			return Event{}, d.err
		}

		n, err := d.r.Read(d.rb)
		if n > 0 {
			d.buf = append(d.buf, d.rb[:n]...)
		}
		if err != nil {
			// Defer the error until the buffered bytes are drained.
			d.err = err
		}
	}
}

// processLine folds one line into the pending frame. It returns a
// complete event when the line is the blank frame delimiter and the
// frame carried data.
func (d *Decoder) processLine(line []byte) (Event, bool) {
	if len(line) == 0 {
		if !d.hasData {
			// Delimiter with nothing buffered: drop field-only frames too.
			d.name, d.id, d.data, d.hasData = "", "", nil, false
			return Event{}, false
		}
		ev := Event{Name: d.name, ID: d.id, Data: bytes.Join(d.data, []byte("\n"))}
		d.name, d.id, d.data, d.hasData = "", "", nil, false
		return ev, true
	}
	if line[0] == ':' {
		// Comment line.
		return Event{}, false
	}

	field, value := string(line), []byte(nil)
	if i := bytes.IndexByte(line, ':'); i >= 0 {
		field = string(line[:i])
		value = line[i+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
	}

	switch field {
	case "data":
		d.data = append(d.data, append([]byte(nil), value...))
		d.hasData = true
	case "event":
		d.name = string(value)
	case "id":
		d.id = string(value)
	case "retry":
		// Reconnection hints are meaningless for a single-pass chat
		// stream; ignored.
	}
	return Event{}, false
}
