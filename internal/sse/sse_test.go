package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkReader returns each configured chunk from one Read call, then EOF.
type chunkReader struct {
	chunks [][]byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func TestDecodesSingleEvent(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: hello\n\n"))
	ev, err := d.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if string(ev.Data) != "hello" {
		t.Fatalf("unexpected data %q", ev.Data)
	}
	if _, err := d.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestFrameSplitAcrossChunks(t *testing.T) {
	r := &chunkReader{chunks: [][]byte{
		[]byte(`data: {"id":"1","choices":[{"delta":{"content":"Hel`),
		[]byte("lo\"}}]}\n\ndata: [DONE]\n\n"),
	}}
	d := NewDecoder(r)

	ev, err := d.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if string(ev.Data) != `{"id":"1","choices":[{"delta":{"content":"Hello"}}]}` {
		t.Fatalf("unexpected data %q", ev.Data)
	}

	ev, err = d.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if string(ev.Data) != "[DONE]" {
		t.Fatalf("unexpected data %q", ev.Data)
	}

	if _, err := d.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestMultipleDataLinesFoldWithNewline(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: line1\ndata: line2\n\n"))
	ev, err := d.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if string(ev.Data) != "line1\nline2" {
		t.Fatalf("unexpected folded data %q", ev.Data)
	}
}

func TestEventAndIDFields(t *testing.T) {
	d := NewDecoder(strings.NewReader("event: delta\nid: 7\ndata: x\n\n"))
	ev, err := d.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if ev.Name != "delta" || ev.ID != "7" || string(ev.Data) != "x" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestCRLFLineEndings(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: hi\r\n\r\n"))
	ev, err := d.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if string(ev.Data) != "hi" {
		t.Fatalf("unexpected data %q", ev.Data)
	}
}

func TestCommentAndRetryLinesIgnored(t *testing.T) {
	d := NewDecoder(strings.NewReader(": keepalive\nretry: 3000\ndata: hi\n\n"))
	ev, err := d.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if string(ev.Data) != "hi" {
		t.Fatalf("unexpected data %q", ev.Data)
	}
}

func TestUnterminatedFrameDiscardedAtEOF(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: partial"))
	if _, err := d.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF for unterminated frame, got %v", err)
	}
}

func TestDataOnlyDelimiterFramesSkipped(t *testing.T) {
	d := NewDecoder(strings.NewReader("\n\nevent: noise\n\ndata: real\n\n"))
	ev, err := d.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if string(ev.Data) != "real" {
		t.Fatalf("unexpected data %q", ev.Data)
	}
}
