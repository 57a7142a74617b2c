// Package anthropic implements the llmstream.Adapter for Anthropic's
// messages API, decoding its event-typed SSE stream (content_block_start /
// content_block_delta / content_block_stop) into normalized events.
package anthropic

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

// Adapter speaks the Anthropic messages wire format.
type Adapter struct {
	logger *slog.Logger
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

// New creates an Anthropic adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the Anthropic provider identifier.
func (a *Adapter) Provider() llmstream.ProviderID {
	return llmstream.ProviderAnthropic
}

// NewRequest builds the streaming messages request.
func (a *Adapter) NewRequest(ctx context.Context, req *llmstream.StreamRequest) (*http.Request, error) {
	return a.buildHTTPRequest(ctx, req, true)
}

// NewBlockingRequest builds the non-streaming variant.
func (a *Adapter) NewBlockingRequest(ctx context.Context, req *llmstream.StreamRequest) (*http.Request, error) {
	return a.buildHTTPRequest(ctx, req, false)
}

func (a *Adapter) buildHTTPRequest(ctx context.Context, req *llmstream.StreamRequest, stream bool) (*http.Request, error) {
	defaults := llmstream.GetDefaultsRegistry().Get(llmstream.ProviderAnthropic)

	base := req.ResolveBaseURL()
	if base == "" {
		return nil, fmt.Errorf("no base URL for provider 'anthropic'")
	}

	system, messages := splitSystem(req.Messages)

	wire := &MessagesRequest{
		Model:    req.Model,
		Messages: messages,
		System:   system,
		Stream:   stream,
		// The messages API rejects requests without max_tokens.
		MaxTokens: req.Params.GetMaxTokens(defaults.DefaultMaxTokens),
	}

	if p := req.Params; p != nil {
		wire.Temperature = p.Temperature
		wire.TopP = p.TopP
		wire.TopK = p.TopK
		if len(p.Stop) > 0 {
			wire.Stop = p.Stop
		}
	}

	if budget := thinkingBudgetTokens(req.ReasoningEffort); budget > 0 {
		wire.Thinking = &Thinking{Type: "enabled", BudgetTokens: budget}
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(base, "/") + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-api-key", req.APIKey)
	httpReq.Header.Set("anthropic-version", defaults.VersionHeader)

	return httpReq, nil
}

// DecodeFrame parses one event-typed SSE payload.
//
// content_block_start records the opened block's type; text deltas route to
// reasoning or content depending on whether the current block is a thinking
// block; content_block_stop on a thinking block closes reasoning. message_stop,
// ping and message_delta are structural no-ops (message_delta still carries
// the stop reason). An error event is fatal and ends the session.
func (a *Adapter) DecodeFrame(payload []byte, st *llmstream.State) ([]llmstream.Event, error) {
	var ev streamEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		a.logger.Debug("skipping unparseable frame", "provider", "anthropic", "error", err)
		return nil, nil
	}

	switch ev.Type {
	case "content_block_start":
		kind := llmstream.BlockText
		if ev.ContentBlock != nil && ev.ContentBlock.Type == "thinking" {
			kind = llmstream.BlockThinking
		}
		st.SetCurrentBlock(kind)
		return nil, nil

	case "content_block_delta":
		if ev.Delta == nil {
			return nil, nil
		}
		switch ev.Delta.Type {
		case "thinking_delta":
			return st.AppendReasoning(ev.Delta.Thinking), nil
		case "text_delta":
			if st.CurrentBlock() == llmstream.BlockThinking {
				return st.AppendReasoning(ev.Delta.Text), nil
			}
			return st.AppendContent(ev.Delta.Text), nil
		default:
			// signature_delta and friends carry no displayable content.
			return nil, nil
		}

	case "content_block_stop":
		var events []llmstream.Event
		if st.CurrentBlock() == llmstream.BlockThinking {
			events = st.CloseReasoning()
		}
		st.SetCurrentBlock(llmstream.BlockNone)
		return events, nil

	case "message_delta":
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			st.SetFinishReason(mapStopReason(ev.Delta.StopReason))
		}
		return nil, nil

	case "message_start", "message_stop", "ping":
		return nil, nil

	case "error":
		message := "provider reported an error"
		if ev.Error != nil && ev.Error.Message != "" {
			message = ev.Error.Message
		}
		return nil, &llmstream.StreamError{
			Code:     llmstream.ErrorCodeProviderReported,
			Provider: "anthropic",
			Message:  message,
			Fatal:    true,
		}

	default:
		a.logger.Debug("skipping unknown event type", "provider", "anthropic", "type", ev.Type)
		return nil, nil
	}
}

// DecodeResponse parses a non-streaming 200 body.
func (a *Adapter) DecodeResponse(body []byte, st *llmstream.State) error {
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse messages response: %w", err)
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "thinking":
			st.AppendReasoning(block.Thinking)
		case "text":
			st.AppendContent(block.Text)
		}
	}
	st.CloseReasoning()
	st.SetFinishReason(mapStopReason(resp.StopReason))
	return nil
}
