package anthropic

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/DukeRupert/aula/internal/ai"
)

// eventTranslator re-frames a Messages API event stream as OpenAI-compatible
// chat completion chunks terminated by [DONE].
type eventTranslator struct {
	pr       *io.PipeReader
	upstream io.ReadCloser
}

func newEventTranslator(upstream io.ReadCloser) io.ReadCloser {
	pr, pw := io.Pipe()
	t := &eventTranslator{pr: pr, upstream: upstream}
	go t.run(pw)
	return t
}

func (t *eventTranslator) Read(p []byte) (int, error) {
	return t.pr.Read(p)
}

// Close stops the translation goroutine and releases the upstream connection
func (t *eventTranslator) Close() error {
	t.pr.Close()
	return t.upstream.Close()
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Error apiError `json:"error"`
}

type chunk struct {
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Delta        chunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

type chunkDelta struct {
	Content string `json:"content,omitempty"`
}

func (t *eventTranslator) run(pw *io.PipeWriter) {
	scanner := bufio.NewScanner(t.upstream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		payload, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "data:")
		if !ok {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &ev); err != nil {
			continue
		}

		var err error
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				err = writeChunk(pw, chunkChoice{Delta: chunkDelta{Content: ev.Delta.Text}})
			}
		case "message_delta":
			if reason := finishReason(ev.Delta.StopReason); reason != "" {
				err = writeChunk(pw, chunkChoice{FinishReason: reason})
			}
		case "message_stop":
			if _, err = fmt.Fprintf(pw, "data: %s\n\n", ai.DoneSentinel); err == nil {
				pw.Close()
			}
			return
		case "error":
			status := 500
			if ev.Error.Type == "overloaded_error" {
				status = statusOverloaded
			}
			pw.CloseWithError(ai.ClassifyStatus(status, ev.Error.Type, ev.Error.Message))
			return
		}
		if err != nil {
			// Reader side closed
			return
		}
	}

	if err := scanner.Err(); err != nil {
		pw.CloseWithError(err)
		return
	}
	// Upstream ended without message_stop; the missing [DONE] marks truncation.
	pw.Close()
}

func writeChunk(w io.Writer, choice chunkChoice) error {
	b, err := json.Marshal(chunk{Choices: []chunkChoice{choice}})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}
