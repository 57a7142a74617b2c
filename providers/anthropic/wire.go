package anthropic

import (
	llmstream "github.com/jinyang6/chatanyllm"
)

// MessagesRequest represents an Anthropic messages API request.
type MessagesRequest struct {
	Model       string     `json:"model"`
	MaxTokens   int        `json:"max_tokens"`
	Messages    []Message  `json:"messages"`
	System      string     `json:"system,omitempty"`
	Stream      bool       `json:"stream,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
	TopP        *float64   `json:"top_p,omitempty"`
	TopK        *int       `json:"top_k,omitempty"`
	Stop        []string   `json:"stop_sequences,omitempty"`
	Thinking    *Thinking  `json:"thinking,omitempty"`
}

// Thinking enables extended thinking with a token budget.
type Thinking struct {
	Type         string `json:"type"` // "enabled"
	BudgetTokens int    `json:"budget_tokens"`
}

// Message represents a message in the conversation. Content is a string for
// plain text or a []ContentPart for multimodal messages.
type Message struct {
	Role    string      `json:"role"` // "user", "assistant"
	Content interface{} `json:"content"`
}

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type   string       `json:"type"` // "text", "image"
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource references an image by URL.
type ImageSource struct {
	Type string `json:"type"` // "url"
	URL  string `json:"url"`
}

// streamEvent is the decoded form of one SSE frame. The type field tags
// which of the optional members is meaningful.
type streamEvent struct {
	Type string `json:"type"`

	// content_block_start
	ContentBlock *contentBlock `json:"content_block,omitempty"`

	// content_block_delta and message_delta
	Delta *eventDelta `json:"delta,omitempty"`

	// error
	Error *apiError `json:"error,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"` // "thinking", "text", ...
}

type eventDelta struct {
	Type string `json:"type"` // "text_delta", "thinking_delta", "signature_delta"

	// text_delta
	Text string `json:"text,omitempty"`

	// thinking_delta
	Thinking string `json:"thinking,omitempty"`

	// message_delta
	StopReason string `json:"stop_reason,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// messagesResponse is the non-streaming response body.
type messagesResponse struct {
	Content []struct {
		Type     string `json:"type"` // "text", "thinking"
		Text     string `json:"text,omitempty"`
		Thinking string `json:"thinking,omitempty"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// mapStopReason normalizes Anthropic stop reasons to the library vocabulary.
func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "refusal":
		return "content_filter"
	default:
		return reason
	}
}

// thinkingBudgetTokens converts a reasoning effort level to a token budget.
// low = 2000, medium = 5000, high = 12000.
func thinkingBudgetTokens(effort string) int {
	switch effort {
	case "low":
		return 2000
	case "medium":
		return 5000
	case "high":
		return 12000
	default:
		return 0
	}
}

// splitSystem extracts system messages from the conversation; the messages
// API carries the system prompt as a top-level field, not a message role.
func splitSystem(messages []llmstream.Message) (string, []Message) {
	var system string
	out := make([]Message, 0, len(messages))

	for _, m := range messages {
		if m.Role == llmstream.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Text()
			continue
		}

		role := m.Role
		if role != llmstream.RoleUser && role != llmstream.RoleAssistant {
			role = llmstream.RoleUser
		}

		wire := Message{Role: role}
		if len(m.Parts) == 0 {
			wire.Content = m.Content
		} else {
			parts := make([]ContentPart, 0, len(m.Parts))
			for _, p := range m.Parts {
				switch p.Type {
				case "image_url":
					parts = append(parts, ContentPart{
						Type:   "image",
						Source: &ImageSource{Type: "url", URL: p.ImageURL},
					})
				default:
					parts = append(parts, ContentPart{Type: "text", Text: p.Text})
				}
			}
			wire.Content = parts
		}
		out = append(out, wire)
	}

	return system, out
}
