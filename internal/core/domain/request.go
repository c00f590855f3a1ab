package domain

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/corral-proxy/corral/internal/core/constants"
)

// Request is one inbound chat-completion call travelling through the dispatcher.
// Payload is never modified after construction, adapters copy it if they need
// to rewrite it.
type Request struct {
	ReceivedAt  time.Time
	Headers     http.Header
	completion  *Completion
	ID          string
	Path        string
	Payload     []byte
	WantsStream bool
	LocalOnly   bool
}

func NewRequest(id, path string, payload []byte, headers http.Header) *Request {
	if headers == nil {
		headers = make(http.Header)
	}
	return &Request{
		ID:          id,
		Path:        path,
		Payload:     payload,
		Headers:     headers,
		WantsStream: DetectStream(payload),
		LocalOnly:   DetectLocalOnly(headers),
		ReceivedAt:  time.Now(),
		completion:  NewCompletion(),
	}
}

// DetectStream reports whether the payload asks for a streamed reply
func DetectStream(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	return gjson.GetBytes(payload, "stream").Bool()
}

// DetectLocalOnly reads the localOnly header, keys are case-insensitive
func DetectLocalOnly(headers http.Header) bool {
	return strings.EqualFold(strings.TrimSpace(headers.Get(constants.HeaderLocalOnly)), "true")
}

// Complete fulfils the request's completion slot, only the first call wins
func (r *Request) Complete(resp *Response) bool {
	return r.completion.Deliver(resp)
}

// Await blocks until the request is completed or ctx is done. Once ctx fires
// the slot is abandoned and any late response is closed on arrival.
func (r *Request) Await(ctx context.Context) (*Response, error) {
	return r.completion.Await(ctx)
}

func (r *Request) Completed() bool {
	return r.completion.Delivered()
}
