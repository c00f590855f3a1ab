package client

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/corral-proxy/corral/internal/core/constants"
)

const chunkTemplate = `{"object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":null}]}`

// ndjsonToSSE re-frames ollama's newline delimited /api/chat stream as
// OpenAI chat.completion.chunk events. Translation runs in its own goroutine
// writing into a pipe, so the consumer sees each token as soon as ollama
// sends it.
type ndjsonToSSE struct {
	pipe     *io.PipeReader
	upstream io.ReadCloser
	once     sync.Once
}

func newNDJSONToSSE(upstream io.ReadCloser, requestID, model string) io.ReadCloser {
	pr, pw := io.Pipe()
	t := &streamTranslator{
		out:     pw,
		id:      "chatcmpl-" + requestID,
		model:   model,
		created: time.Now().Unix(),
	}
	go t.run(upstream)

	return &ndjsonToSSE{pipe: pr, upstream: upstream}
}

func (s *ndjsonToSSE) Read(p []byte) (int, error) {
	return s.pipe.Read(p)
}

func (s *ndjsonToSSE) Close() error {
	var err error
	s.once.Do(func() {
		_ = s.pipe.Close()
		err = s.upstream.Close()
	})
	return err
}

type streamTranslator struct {
	out       *io.PipeWriter
	id        string
	model     string
	created   int64
	sentFirst bool
}

func (t *streamTranslator) run(upstream io.ReadCloser) {
	defer upstream.Close()

	reader := bufio.NewReader(upstream)
	for {
		line, readErr := reader.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			done, err := t.translate(line)
			if err != nil {
				_ = t.out.CloseWithError(err)
				return
			}
			if done {
				t.finish()
				return
			}
		}

		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				t.writeError(MakeUserFriendlyError(readErr, 0, "streaming", 0).Error())
			}
			t.finish()
			return
		}
	}
}

// translate writes the event for one ollama line and reports whether the
// stream is over
func (t *streamTranslator) translate(line []byte) (bool, error) {
	if msg := gjson.GetBytes(line, "error"); msg.Exists() {
		return true, t.writeError(msg.String())
	}

	chunk, err := t.chunk(line)
	if err != nil {
		return false, err
	}
	if err := t.write(chunk); err != nil {
		return false, err
	}
	return gjson.GetBytes(line, "done").Bool(), nil
}

func (t *streamTranslator) chunk(line []byte) ([]byte, error) {
	model := gjson.GetBytes(line, "model").String()
	if model == "" {
		model = t.model
	}

	chunk, err := sjson.SetBytes([]byte(chunkTemplate), "id", t.id)
	if err == nil {
		chunk, err = sjson.SetBytes(chunk, "created", t.created)
	}
	if err == nil {
		chunk, err = sjson.SetBytes(chunk, "model", model)
	}
	if err != nil {
		return nil, err
	}

	if !t.sentFirst {
		role := gjson.GetBytes(line, "message.role").String()
		if role == "" {
			role = "assistant"
		}
		if chunk, err = sjson.SetBytes(chunk, "choices.0.delta.role", role); err != nil {
			return nil, err
		}
		t.sentFirst = true
	}

	if content := gjson.GetBytes(line, "message.content"); content.Exists() && content.String() != "" {
		if chunk, err = sjson.SetBytes(chunk, "choices.0.delta.content", content.String()); err != nil {
			return nil, err
		}
	}

	if !gjson.GetBytes(line, "done").Bool() {
		return chunk, nil
	}

	reason := gjson.GetBytes(line, "done_reason").String()
	if reason == "" {
		reason = "stop"
	}
	if chunk, err = sjson.SetBytes(chunk, "choices.0.finish_reason", reason); err != nil {
		return nil, err
	}

	prompt := gjson.GetBytes(line, "prompt_eval_count").Int()
	completion := gjson.GetBytes(line, "eval_count").Int()
	if prompt > 0 || completion > 0 {
		usage := map[string]int64{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      prompt + completion,
		}
		if chunk, err = sjson.SetBytes(chunk, "usage", usage); err != nil {
			return nil, err
		}
	}
	return chunk, nil
}

func (t *streamTranslator) writeError(message string) error {
	payload, err := sjson.SetBytes([]byte(`{"error":{"type":"backend_error"}}`), "error.message", message)
	if err != nil {
		return err
	}
	return t.write(payload)
}

func (t *streamTranslator) write(data []byte) error {
	buf := make([]byte, 0, len(data)+len(constants.SSEDataPrefix)+len(constants.SSEEventSuffix))
	buf = append(buf, constants.SSEDataPrefix...)
	buf = append(buf, data...)
	buf = append(buf, constants.SSEEventSuffix...)
	_, err := t.out.Write(buf)
	return err
}

func (t *streamTranslator) finish() {
	_ = t.write([]byte(constants.SSEDoneMessage))
	_ = t.out.Close()
}
