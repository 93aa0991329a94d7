package relayclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/proxy-kit/relay-client-go/internal/sse"
)

// doneSentinel is the data payload that signals clean end-of-stream.
const doneSentinel = "[DONE]"

// Stream is a lazy, single-pass sequence of ChatStreamChunk values.
//
// Iterate with Next/Current and check Err after Next returns false.
// Close may be called at any time to abandon the stream and release
// the underlying connection; it is safe to call more than once.
//
//	stream, err := client.StreamChatCompletion(ctx, "openai", req)
//	if err != nil { ... }
//	defer stream.Close()
//	for stream.Next() {
//		fmt.Print(stream.Current().Delta.Content)
//	}
//	if err := stream.Err(); err != nil { ... }
type Stream struct {
	dec    *sse.Decoder
	body   io.ReadCloser
	cancel context.CancelFunc

	cur    ChatStreamChunk
	err    error
	closed bool
}

func newStream(body io.ReadCloser, cancel context.CancelFunc) *Stream {
	return &Stream{dec: sse.NewDecoder(body), body: body, cancel: cancel}
}

// streamEnvelope is the wire shape of one non-sentinel stream event.
type streamEnvelope struct {
	ID      string `json:"id"`
	Choices []struct {
		Delta        ChatDelta `json:"delta"`
		FinishReason string    `json:"finish_reason"`
	} `json:"choices"`
}

// streamErrorEnvelope is an in-stream error event from the relay.
type streamErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Next advances to the next chunk. It returns false at end of stream,
// after Close, or on error; distinguish via Err.
func (s *Stream) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	for {
		ev, err := s.dec.Next()
		if err != nil {
			// Transport close without the DONE sentinel still ends the
			// stream cleanly; the relay terminates mid-generation only
			// on upstream disconnects the app cannot act on.
			if !errors.Is(err, io.EOF) {
				s.err = err
			}
			s.close()
			return false
		}
		if string(ev.Data) == doneSentinel {
			s.close()
			return false
		}

		var failure streamErrorEnvelope
		if jsonErr := json.Unmarshal(ev.Data, &failure); jsonErr == nil && failure.Error.Code != "" {
			if failure.Error.Code == "unauthorized" {
				// Retrying a partially consumed stream is unsafe;
				// surface the expiry and let the caller restart.
				s.err = ErrSessionExpired
			} else {
				s.err = &ProviderError{Code: failure.Error.Code, Message: failure.Error.Message}
			}
			s.close()
			return false
		}

		var env streamEnvelope
		if jsonErr := json.Unmarshal(ev.Data, &env); jsonErr != nil || len(env.Choices) == 0 {
			// Unknown or widened event shape: drop and keep reading.
			continue
		}
		s.cur = ChatStreamChunk{
			ID:           env.ID,
			Delta:        env.Choices[0].Delta,
			FinishReason: env.Choices[0].FinishReason,
		}
		return true
	}
}

// Current returns the chunk produced by the most recent successful Next.
func (s *Stream) Current() ChatStreamChunk { return s.cur }

// Err returns the terminal error, if any. A stream ended by the DONE
// sentinel or transport close reports nil.
func (s *Stream) Err() error { return s.err }

// Close abandons the stream and releases the underlying connection.
func (s *Stream) Close() error {
	s.close()
	return nil
}

func (s *Stream) close() {
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	_ = s.body.Close()
}
