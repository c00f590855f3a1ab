package constants

const (
	ContentTypeJSON        = "application/json"
	ContentTypeText        = "text/plain"
	ContentTypeEventStream = "text/event-stream"
	ContentTypeNDJSON      = "application/x-ndjson"
	ContentTypeHeader      = "Content-Type"

	// SSE framing used when we synthesize events ourselves
	SSEDataPrefix  = "data: "
	SSEEventSuffix = "\n\n"
	SSEDoneMessage = "[DONE]"
)
