package constants

// Backend types as written in configuration
const (
	BackendTypeRemoteCloud = "remote-cloud"
	BackendTypeLocalHosted = "local-hosted"
)

// Wire protocols spoken by backend client adapters
const (
	ProtocolOpenAI = "openai"
	ProtocolAzure  = "azure"
	ProtocolOllama = "ollama"
)

// Legacy type spellings that also imply a protocol
const (
	TypeAliasOllama = "ollama"
	TypeAliasLocal  = "local"
	TypeAliasAzure  = "azure"
	TypeAliasOpenAI = "openai"
	TypeAliasCloud  = "cloud"
	TypeAliasRemote = "remote"
)
