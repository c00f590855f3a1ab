package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/domain"
	"github.com/corral-proxy/corral/internal/util"
)

// OpenAI sampling fields and the ollama option each one maps to
var ollamaOptionFields = map[string]string{
	"temperature":       "temperature",
	"top_p":             "top_p",
	"seed":              "seed",
	"stop":              "stop",
	"max_tokens":        "num_predict",
	"presence_penalty":  "presence_penalty",
	"frequency_penalty": "frequency_penalty",
}

// OllamaClient talks to a local ollama server. Streaming calls go to the
// native /api/chat endpoint and the NDJSON reply is re-framed as OpenAI
// chunks over SSE, non-streaming calls use ollama's OpenAI compatible
// endpoint and pass straight through. The configured model always wins over
// whatever the caller asked for.
type OllamaClient struct {
	http          *http.Client
	config        domain.EndpointConfig
	chatURL       string
	openAIURL     string
	headerTimeout time.Duration
}

func NewOllamaClient(cfg domain.EndpointConfig, httpClient *http.Client, headerTimeout time.Duration) *OllamaClient {
	base := util.NormaliseBaseURL(cfg.URLString())
	return &OllamaClient{
		config:        cfg,
		http:          httpClient,
		chatURL:       util.ResolveURLPath(base, constants.PathOllamaChat),
		openAIURL:     util.ResolveURLPath(base, constants.PathV1ChatCompletions),
		headerTimeout: headerTimeout,
	}
}

func (c *OllamaClient) Protocol() string {
	return constants.ProtocolOllama
}

func (c *OllamaClient) Invoke(ctx context.Context, req *domain.Request) *domain.Response {
	started := time.Now()

	target := c.openAIURL
	payload, err := c.openAIPayload(req.Payload)
	if req.WantsStream {
		target = c.chatURL
		payload, err = c.nativePayload(req.Payload)
	}
	if err != nil {
		return failure(c.config, fmt.Errorf("rewriting payload for ollama: %w", err), started, c.headerTimeout)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return failure(c.config, err, started, c.headerTimeout)
	}
	httpReq.Header = outboundHeaders(req)
	if c.config.APIKey != "" {
		httpReq.Header.Set(constants.HeaderAuthorization, "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return failure(c.config, err, started, c.headerTimeout)
	}

	out := &domain.Response{
		StatusCode: resp.StatusCode,
		Header:     CopyResponseHeaders(resp.Header),
		Body:       resp.Body,
		Backend:    c.config.Name,
	}
	if req.WantsStream && resp.StatusCode < http.StatusBadRequest {
		out.Header.Del("Content-Length")
		out.Header.Set(constants.ContentTypeHeader, constants.ContentTypeEventStream)
		out.Header.Set("Cache-Control", "no-cache")
		out.Body = newNDJSONToSSE(resp.Body, req.ID, c.config.Model)
	}
	return out
}

// openAIPayload keeps the caller's body and only pins the model
func (c *OllamaClient) openAIPayload(payload []byte) ([]byte, error) {
	return sjson.SetBytes(payload, "model", c.config.Model)
}

// nativePayload builds an /api/chat body: model, messages, stream and the
// sampling options ollama understands
func (c *OllamaClient) nativePayload(payload []byte) ([]byte, error) {
	out := []byte(`{}`)
	var err error

	if out, err = sjson.SetBytes(out, "model", c.config.Model); err != nil {
		return nil, err
	}

	messages := gjson.GetBytes(payload, "messages")
	if messages.Exists() {
		out, err = sjson.SetRawBytes(out, "messages", []byte(messages.Raw))
	} else {
		out, err = sjson.SetRawBytes(out, "messages", []byte(`[]`))
	}
	if err != nil {
		return nil, err
	}

	if out, err = sjson.SetBytes(out, "stream", true); err != nil {
		return nil, err
	}

	for from, to := range ollamaOptionFields {
		value := gjson.GetBytes(payload, from)
		if !value.Exists() {
			continue
		}
		if out, err = sjson.SetRawBytes(out, "options."+to, []byte(value.Raw)); err != nil {
			return nil, err
		}
	}

	if format := gjson.GetBytes(payload, "response_format.type"); format.String() == "json_object" {
		if out, err = sjson.SetBytes(out, "format", "json"); err != nil {
			return nil, err
		}
	}
	return out, nil
}
