package domain

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/corral-proxy/corral/internal/core/constants"
)

// Response is what a backend (or the dispatcher itself) produced for a Request.
// Body is single-pass and may be open-ended for event streams, whoever ends up
// owning the Response must Close it.
//
// Err is set when the response was synthesized from a failure rather than
// produced by the backend, it becomes the backend's lastError.
type Response struct {
	Err        error
	Header     http.Header
	Body       io.ReadCloser
	Backend    string
	StatusCode int
	FailedOver bool
}

func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// IsRetryable reports overload or server side failure, the only statuses that
// trigger a failover
func IsRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func encodeError(statusCode int, message, errType string) []byte {
	payload, err := json.Marshal(errorEnvelope{Error: errorBody{Message: message, Type: errType, Code: statusCode}})
	if err != nil {
		// message is a plain string, this cannot really fail
		payload = []byte(`{"error":{"message":"internal error","type":"proxy_error","code":` + strconv.Itoa(statusCode) + `}}`)
	}
	return payload
}

// NewErrorResponse builds an OpenAI style JSON error body
func NewErrorResponse(statusCode int, message, errType string) *Response {
	body := encodeError(statusCode, message, errType)
	header := make(http.Header)
	header.Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	header.Set("Content-Length", strconv.Itoa(len(body)))
	return &Response{
		StatusCode: statusCode,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

// NewSSEErrorResponse builds a single error event followed by the [DONE]
// terminator so incremental SSE parsers finish instead of hanging
func NewSSEErrorResponse(statusCode int, message string) *Response {
	var buf bytes.Buffer
	buf.WriteString(constants.SSEDataPrefix)
	buf.Write(encodeError(statusCode, message, "proxy_error"))
	buf.WriteString(constants.SSEEventSuffix)
	buf.WriteString(constants.SSEDataPrefix)
	buf.WriteString(constants.SSEDoneMessage)
	buf.WriteString(constants.SSEEventSuffix)

	header := make(http.Header)
	header.Set(constants.ContentTypeHeader, constants.ContentTypeEventStream)
	return &Response{
		StatusCode: statusCode,
		Header:     header,
		Body:       io.NopCloser(&buf),
	}
}
