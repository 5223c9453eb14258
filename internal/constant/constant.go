// Package constant defines provider type and protocol identifiers used
// throughout the gateway. Provider types name a concrete upstream flavor
// (auth mechanism plus endpoint family), while protocol prefixes name the
// wire dialect spoken over HTTP.
package constant

const (
	// OpenAICustom represents an OpenAI-compatible upstream addressed by API key.
	OpenAICustom = "openai-custom"

	// OpenAIResponsesCustom represents an upstream speaking the OpenAI Responses API.
	OpenAIResponsesCustom = "openai-responses-custom"

	// ClaudeCustom represents an Anthropic Messages API upstream.
	ClaudeCustom = "claude-custom"

	// ClaudeCodeCustom represents a Claude Code flavored Anthropic upstream.
	ClaudeCodeCustom = "claude-code-custom"

	// GeminiCLIOAuth represents the Google code-assist upstream using OAuth credentials.
	GeminiCLIOAuth = "gemini-cli-oauth"

	// GeminiAntigravity represents the Antigravity flavored code-assist upstream.
	GeminiAntigravity = "gemini-antigravity"
)

const (
	// ProtocolOpenAI is the OpenAI Chat Completions wire dialect.
	ProtocolOpenAI = "openai"

	// ProtocolOpenAIResponses is the OpenAI Responses wire dialect.
	ProtocolOpenAIResponses = "openai-responses"

	// ProtocolClaude is the Anthropic Messages wire dialect.
	ProtocolClaude = "claude"

	// ProtocolGemini is the Google GenerateContent wire dialect.
	ProtocolGemini = "gemini"
)

var protocolByType = map[string]string{
	OpenAICustom:          ProtocolOpenAI,
	OpenAIResponsesCustom: ProtocolOpenAIResponses,
	ClaudeCustom:          ProtocolClaude,
	ClaudeCodeCustom:      ProtocolClaude,
	GeminiCLIOAuth:        ProtocolGemini,
	GeminiAntigravity:     ProtocolGemini,
}

// ProtocolForType returns the native protocol prefix for a provider type,
// or an empty string when the type is unknown.
func ProtocolForType(providerType string) string {
	return protocolByType[providerType]
}

// KnownProviderType reports whether the given provider type is one of the
// supported upstream flavors.
func KnownProviderType(providerType string) bool {
	_, ok := protocolByType[providerType]
	return ok
}

// ProviderTypes returns all supported provider types.
func ProviderTypes() []string {
	return []string{
		OpenAICustom,
		OpenAIResponsesCustom,
		ClaudeCustom,
		ClaudeCodeCustom,
		GeminiCLIOAuth,
		GeminiAntigravity,
	}
}
