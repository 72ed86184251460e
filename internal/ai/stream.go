package ai

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// DoneSentinel terminates an OpenAI-compatible event stream.
const DoneSentinel = "[DONE]"

// StreamEnvelope is one incremental event in an OpenAI-compatible stream.
type StreamEnvelope struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// DecodeEvent turns one line of an event stream into a text fragment.
// done is true only for the [DONE] sentinel, which never yields text.
// Blank lines, comments, non-data fields and unparseable payloads yield an
// empty fragment rather than an error.
func DecodeEvent(line string) (text string, done bool) {
	env, done := DecodeEnvelope(line)
	if done || env == nil || len(env.Choices) == 0 {
		return "", done
	}
	choice := env.Choices[0]
	if choice.Delta.Content != "" {
		return choice.Delta.Content, false
	}
	return choice.Message.Content, false
}

// DecodeEnvelope is DecodeEvent without text extraction. It returns nil for
// lines that carry no envelope.
func DecodeEnvelope(line string) (*StreamEnvelope, bool) {
	payload, ok := dataPayload(line)
	if !ok {
		return nil, false
	}
	if payload == DoneSentinel {
		return nil, true
	}

	var env StreamEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, false
	}
	return &env, false
}

// FinishReason returns the finish reason of the first choice, if any.
func (e *StreamEnvelope) FinishReason() string {
	if e == nil || len(e.Choices) == 0 {
		return ""
	}
	return e.Choices[0].FinishReason
}

// dataPayload strips the "data:" framing from a line. Bare JSON lines are
// accepted as payloads so a raw sentinel still terminates the stream.
func dataPayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, ":") {
		return "", false
	}

	if rest, ok := strings.CutPrefix(trimmed, "data:"); ok {
		return strings.TrimSpace(rest), true
	}
	if trimmed == DoneSentinel || strings.HasPrefix(trimmed, "{") {
		return trimmed, true
	}
	// event:, id:, retry: and anything unrecognised
	return "", false
}

// =============================================================================
// Stream Reader
// =============================================================================

// StreamReader pulls complete lines from an event stream and decodes them.
// Partial lines spanning reads are buffered by the underlying bufio.Reader.
type StreamReader struct {
	r    *bufio.Reader
	done bool
}

// NewStreamReader wraps an event stream body.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// StreamEvent is one decoded event.
type StreamEvent struct {
	Text         string
	FinishReason string
	Done         bool
}

// Next returns the next decoded event. It returns io.EOF after the [DONE]
// sentinel has been seen, and an error wrapping ErrStreamTruncated if the
// stream ends without it.
func (s *StreamReader) Next() (StreamEvent, error) {
	for {
		if s.done {
			return StreamEvent{}, io.EOF
		}

		line, err := s.r.ReadString('\n')
		if line != "" {
			env, done := DecodeEnvelope(line)
			if done {
				s.done = true
				return StreamEvent{Done: true}, nil
			}
			if env != nil {
				text, _ := DecodeEvent(line)
				if text != "" || env.FinishReason() != "" {
					return StreamEvent{Text: text, FinishReason: env.FinishReason()}, nil
				}
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return StreamEvent{}, TransportError("stream truncated", ErrStreamTruncated)
			}
			return StreamEvent{}, err
		}
	}
}
