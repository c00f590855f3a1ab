package constants

type contextKey string

const (
	ContextRequestIDKey   contextKey = "request_id"   // generated per inbound proxy request
	ContextRequestTimeKey contextKey = "request_time" // when the front door accepted the request
	ContextLoggerKey      contextKey = "logger"       // request scoped logger with request_id attached
)

// header names we read from or add to proxied traffic
const (
	HeaderLocalOnly = "localOnly"

	HeaderXRequestID      = "X-Request-ID"
	HeaderCorralRequestID = "X-Corral-Request-ID"
	HeaderCorralBackend   = "X-Corral-Backend"
	HeaderCorralFailover  = "X-Corral-Failover"
	HeaderAuthorization   = "Authorization"
	HeaderAzureAPIKey     = "api-key"
	HeaderRetryAfter      = "Retry-After"
)
