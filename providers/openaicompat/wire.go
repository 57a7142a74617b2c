package openaicompat

import (
	llmstream "github.com/jinyang6/chatanyllm"
)

// ChatCompletionRequest represents an OpenAI-compatible chat completion
// request. OpenAI, OpenRouter and most self-hosted gateways share this shape.
type ChatCompletionRequest struct {
	Model            string      `json:"model"`
	Messages         []Message   `json:"messages"`
	Stream           bool        `json:"stream"`
	MaxTokens        *int        `json:"max_tokens,omitempty"`
	Temperature      *float64    `json:"temperature,omitempty"`
	TopP             *float64    `json:"top_p,omitempty"`
	FrequencyPenalty *float64    `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64    `json:"presence_penalty,omitempty"`
	Stop             []string    `json:"stop,omitempty"`
	Modalities       []string    `json:"modalities,omitempty"`
	Reasoning        *Reasoning  `json:"reasoning,omitempty"`
}

// Reasoning is the request directive for reasoning-capable models.
type Reasoning struct {
	Effort string `json:"effort,omitempty"`
}

// Message represents a message in the conversation.
type Message struct {
	Role    string      `json:"role"` // "system", "user", "assistant"
	Content interface{} `json:"content,omitempty"` // string or []ContentPart

	// Images appears on response messages from image-output models
	Images []ImageRef `json:"images,omitempty"`
}

// ContentPart represents a part of multimodal content.
type ContentPart struct {
	Type     string    `json:"type"` // "text", "image_url"
	Text     *string   `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in content.
type ImageURL struct {
	URL string `json:"url"`
}

// ImageRef is a generated-image reference in a response. Providers emit
// either the wrapped {"image_url":{"url":...}} form or a bare {"url":...}.
type ImageRef struct {
	URL      string    `json:"url,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// Resolve returns the image URL regardless of which form the provider used.
func (r *ImageRef) Resolve() string {
	if r.ImageURL != nil && r.ImageURL.URL != "" {
		return r.ImageURL.URL
	}
	return r.URL
}

// ReasoningDetail is one element of the reasoning_details array streamed by
// reasoning models. Only "reasoning.text" elements carry thinking content.
type ReasoningDetail struct {
	Type string  `json:"type"` // "reasoning.text", "reasoning.summary", "reasoning.encrypted"
	Text *string `json:"text,omitempty"`
}

// ChatCompletionChunk represents a streaming chunk.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"` // "chat.completion.chunk"
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice represents a choice in a streaming chunk.
type ChunkChoice struct {
	Index        int      `json:"index"`
	Delta        Delta    `json:"delta"`
	Message      *Message `json:"message,omitempty"` // some gateways attach images here
	FinishReason *string  `json:"finish_reason"`
}

// Delta represents incremental updates in a chunk.
type Delta struct {
	Role             *string           `json:"role,omitempty"`
	Content          *string           `json:"content,omitempty"`
	Reasoning        *string           `json:"reasoning,omitempty"`
	ReasoningDetails []ReasoningDetail `json:"reasoning_details,omitempty"`
	Images           []ImageRef        `json:"images,omitempty"`
}

// ChatCompletionResponse represents a non-streaming response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"` // "chat.completion"
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Choice represents a completion choice in the response.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason *string         `json:"finish_reason"`
}

// ResponseMessage is the assistant message of a non-streaming response.
type ResponseMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Reasoning *string    `json:"reasoning,omitempty"`
	Images    []ImageRef `json:"images,omitempty"`
}

// errorFrame is the in-band error shape shared by OpenAI-compatible APIs.
type errorFrame struct {
	Error struct {
		Code    interface{} `json:"code"`
		Message string      `json:"message"`
	} `json:"error"`
}

// buildChatCompletionRequest constructs the wire request from a StreamRequest.
// Shared between the streaming and blocking paths.
func buildChatCompletionRequest(req *llmstream.StreamRequest, stream bool) *ChatCompletionRequest {
	wire := &ChatCompletionRequest{
		Model:    req.Model,
		Messages: convertMessages(req.Messages),
		Stream:   stream,
	}

	if p := req.Params; p != nil {
		wire.MaxTokens = p.MaxTokens
		wire.Temperature = p.Temperature
		wire.TopP = p.TopP
		wire.FrequencyPenalty = p.FrequencyPenalty
		wire.PresencePenalty = p.PresencePenalty
		if len(p.Stop) > 0 {
			wire.Stop = p.Stop
		}
	}

	for _, m := range req.Modalities {
		wire.Modalities = append(wire.Modalities, string(m))
	}

	if req.ReasoningEffort != "" {
		wire.Reasoning = &Reasoning{Effort: req.ReasoningEffort}
	}

	return wire
}

// convertMessages converts library messages to the wire format. Plain-text
// messages stay strings; multimodal messages become content-part arrays.
func convertMessages(messages []llmstream.Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		wire := Message{Role: m.Role}
		if len(m.Parts) == 0 {
			wire.Content = m.Content
		} else {
			parts := make([]ContentPart, 0, len(m.Parts))
			for _, p := range m.Parts {
				switch p.Type {
				case "image_url":
					parts = append(parts, ContentPart{
						Type:     "image_url",
						ImageURL: &ImageURL{URL: p.ImageURL},
					})
				default:
					text := p.Text
					parts = append(parts, ContentPart{Type: "text", Text: &text})
				}
			}
			wire.Content = parts
		}
		out = append(out, wire)
	}
	return out
}
