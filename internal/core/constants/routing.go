package constants

// Dispatch modes
const (
	DispatchModeDirect = "direct" // caller blocks in Route
	DispatchModeQueued = "queued" // caller submits then awaits the completion slot
)

// Attempt labels used in logs and metrics
const (
	AttemptPrimary  = "primary"
	AttemptFailover = "failover"
)

// Outcome classes produced by the health tracker
const (
	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeOverload    = "overload"
	OutcomeServerError = "server_error"
	OutcomeTransport   = "transport_error"
	OutcomeTimeout     = "timeout"
	OutcomeAbandoned   = "abandoned"
)
