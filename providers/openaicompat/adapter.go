// Package openaicompat implements the llmstream.Adapter for OpenAI-compatible
// chat completion APIs: OpenAI itself, OpenRouter, and arbitrary self-hosted
// or gateway endpoints that speak the same wire format.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	llmstream "github.com/jinyang6/chatanyllm"
)

// Adapter speaks the OpenAI chat completions wire format for any provider
// identifier. One instance serves any number of concurrent sessions.
type Adapter struct {
	provider   llmstream.ProviderID
	authHeader string
	authPrefix string
	logger     *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for skipped frames and stream diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithAuthHeader overrides the auth header name and value prefix.
// The default is "Authorization" with a "Bearer " prefix; gateways
// occasionally want "x-api-key" with no prefix.
func WithAuthHeader(name, prefix string) Option {
	return func(a *Adapter) {
		a.authHeader = name
		a.authPrefix = prefix
	}
}

// New creates an adapter for the given provider identifier. The identifier
// only names the endpoint for routing and error reporting; the wire format
// is identical for every OpenAI-compatible provider.
func New(provider llmstream.ProviderID, opts ...Option) *Adapter {
	a := &Adapter{
		provider:   provider,
		authHeader: "Authorization",
		authPrefix: "Bearer ",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the provider identifier this adapter was created for.
func (a *Adapter) Provider() llmstream.ProviderID {
	return a.provider
}

// NewRequest builds the streaming chat completions request.
func (a *Adapter) NewRequest(ctx context.Context, req *llmstream.StreamRequest) (*http.Request, error) {
	return a.buildHTTPRequest(ctx, req, buildChatCompletionRequest(req, true))
}

// NewBlockingRequest builds the non-streaming variant.
func (a *Adapter) NewBlockingRequest(ctx context.Context, req *llmstream.StreamRequest) (*http.Request, error) {
	return a.buildHTTPRequest(ctx, req, buildChatCompletionRequest(req, false))
}

func (a *Adapter) buildHTTPRequest(ctx context.Context, req *llmstream.StreamRequest, wire *ChatCompletionRequest) (*http.Request, error) {
	base := req.ResolveBaseURL()
	if base == "" {
		return nil, fmt.Errorf("no base URL for provider '%s'", a.provider)
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(base, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if req.APIKey != "" {
		httpReq.Header.Set(a.authHeader, a.authPrefix+req.APIKey)
	}

	return httpReq, nil
}

// DecodeFrame parses one SSE payload into normalized events.
//
// Reasoning text may arrive in delta.reasoning or as reasoning_details
// elements of type "reasoning.text", concatenated in order. The first
// non-empty content after accumulated reasoning closes the reasoning phase
// (the State emits the marker). Generated images ride delta.images or
// message.images and keep their position in the content channel as inline
// markers.
func (a *Adapter) DecodeFrame(payload []byte, st *llmstream.State) ([]llmstream.Event, error) {
	// In-band error frames share the {"error":{...}} shape regardless of
	// whether the rest of the chunk parses.
	var ef errorFrame
	if json.Unmarshal(payload, &ef) == nil && ef.Error.Message != "" {
		return nil, &llmstream.StreamError{
			Code:     llmstream.ErrorCodeProviderReported,
			Provider: a.provider.String(),
			Message:  ef.Error.Message,
			Fatal:    true,
		}
	}

	var chunk ChatCompletionChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		// Heartbeats and malformed keep-alives are skipped, never fatal.
		a.logger.Debug("skipping unparseable frame", "provider", a.provider, "error", err)
		return nil, nil
	}

	if len(chunk.Choices) == 0 {
		return nil, nil
	}
	choice := chunk.Choices[0]

	var events []llmstream.Event

	if choice.Delta.Reasoning != nil {
		events = append(events, st.AppendReasoning(*choice.Delta.Reasoning)...)
	}
	for _, rd := range choice.Delta.ReasoningDetails {
		if rd.Type == "reasoning.text" && rd.Text != nil {
			events = append(events, st.AppendReasoning(*rd.Text)...)
		}
	}

	if choice.Delta.Content != nil {
		events = append(events, st.AppendContent(*choice.Delta.Content)...)
	}

	for _, img := range choice.Delta.Images {
		events = append(events, st.AppendImage(img.Resolve())...)
	}
	if choice.Message != nil {
		for _, img := range choice.Message.Images {
			events = append(events, st.AppendImage(img.Resolve())...)
		}
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		st.SetFinishReason(*choice.FinishReason)
	}

	return events, nil
}

// DecodeResponse parses a non-streaming 200 body.
func (a *Adapter) DecodeResponse(body []byte, st *llmstream.State) error {
	var resp ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse chat completion response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("chat completion response has no choices")
	}

	choice := resp.Choices[0]
	if choice.Message.Reasoning != nil {
		st.AppendReasoning(*choice.Message.Reasoning)
		st.CloseReasoning()
	}
	st.AppendContent(choice.Message.Content)
	for _, img := range choice.Message.Images {
		st.AppendImage(img.Resolve())
	}
	if choice.FinishReason != nil {
		st.SetFinishReason(*choice.FinishReason)
	}
	return nil
}
