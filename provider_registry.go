package llmstream

// ProviderID represents a unique provider identifier.
// Using a typed constant prevents typos and provides compile-time safety.
type ProviderID string

// Known provider identifiers
const (
	// ProviderOpenAI is OpenAI's chat completions API
	ProviderOpenAI ProviderID = "openai"

	// ProviderOpenRouter is OpenRouter's unified OpenAI-compatible API
	ProviderOpenRouter ProviderID = "openrouter"

	// ProviderAnthropic is Anthropic's Claude messages API
	ProviderAnthropic ProviderID = "anthropic"

	// ProviderGemini is Google's Gemini API
	ProviderGemini ProviderID = "gemini"

	// ProviderLoopback is the mock loopback provider for testing
	ProviderLoopback ProviderID = "loopback"
)

// String returns the string representation of the provider ID
func (p ProviderID) String() string {
	return string(p)
}

// IsBuiltin returns true if the provider ID is a known built-in provider.
// Identifiers outside this set require a custom endpoint configuration and
// are driven through the OpenAI-compatible wire format.
func (p ProviderID) IsBuiltin() bool {
	switch p {
	case ProviderOpenAI, ProviderOpenRouter, ProviderAnthropic, ProviderGemini, ProviderLoopback:
		return true
	default:
		return false
	}
}
