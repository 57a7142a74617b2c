package llmstream

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Modality identifies a requested output type.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
)

// Message represents a single message in the conversation.
// Content carries plain text; Parts, when non-empty, carries ordered
// multimodal content parts instead (Content is ignored in that case).
type Message struct {
	// Role is "system", "user" or "assistant"
	Role string

	// Content is the plain-text body of the message
	Content string

	// Parts is the ordered list of content parts for multimodal messages
	Parts []ContentPart
}

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	// Type is "text" or "image_url"
	Type string

	// Text is set when Type is "text"
	Text string

	// ImageURL is set when Type is "image_url"
	ImageURL string
}

// Text returns the message text: Content, or the concatenation of the
// text parts when Parts is used.
func (m *Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == "text" {
			out += p.Text
		}
	}
	return out
}

// StreamRequest contains everything needed to start one streaming session.
type StreamRequest struct {
	// Provider selects which adapter and endpoint to use
	Provider ProviderID

	// BaseURL is the resolved base URL for the provider endpoint.
	// The router fills this in; an empty value means the provider default.
	BaseURL string

	// APIKey authenticates the request
	APIKey string

	// Model is the model identifier (e.g. "gpt-4o", "claude-sonnet-4-20250514")
	Model string

	// Messages is the ordered conversation history. Must be non-empty.
	Messages []Message

	// Params contains optional sampling parameters
	Params *Params

	// Modalities lists requested output types (text, image).
	// Empty means text only.
	Modalities []Modality

	// ReasoningEffort, when set, asks reasoning-capable models for a given
	// effort level ("low", "medium", "high")
	ReasoningEffort string
}

// Validate checks the request invariants that must hold before any network
// call: non-empty API key, model and message list. Violations surface through
// the error callback, never as a panic.
func (r *StreamRequest) Validate() *StreamError {
	if r.APIKey == "" && r.Provider != ProviderLoopback {
		return &StreamError{
			Code:     ErrorCodeMissingAPIKey,
			Provider: r.Provider.String(),
			Message:  "API key is required",
			Fatal:    true,
			Err:      ErrMissingAPIKey,
		}
	}
	if r.Model == "" {
		return &StreamError{
			Code:     ErrorCodeMissingModel,
			Provider: r.Provider.String(),
			Message:  "model is required",
			Fatal:    true,
			Err:      ErrMissingModel,
		}
	}
	if len(r.Messages) == 0 {
		return &StreamError{
			Code:     ErrorCodeEmptyMessages,
			Provider: r.Provider.String(),
			Message:  "at least one message is required",
			Fatal:    true,
			Err:      ErrEmptyMessages,
		}
	}
	return nil
}
