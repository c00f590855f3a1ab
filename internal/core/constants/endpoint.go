package constants

const (
	DefaultHealthCheckEndpoint  = "/internal/health"
	DefaultStatusEndpoint       = "/internal/status/backends"
	DefaultLegacyStatusEndpoint = "/monitor/status"
	DefaultVersionEndpoint      = "/version"
	DefaultProcessEndpoint      = "/internal/process"
	DefaultMetricsEndpoint      = "/metrics"

	// OpenAI-compatible API paths
	PathV1ChatCompletions = "/v1/chat/completions"
	PathChatCompletions   = "/chat/completions"

	// Azure OpenAI SDKs post to /openai/deployments/{deployment}/chat/completions
	PathAzureDeploymentsPrefix = "/openai/deployments/"

	// Ollama native paths
	PathOllamaChat = "/api/chat"
)
