// Package gemini implements the llmstream.Adapter for Google's Gemini API,
// decoding streamGenerateContent SSE chunks into normalized events.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	llmstream "github.com/jinyang6/chatanyllm"
)

// Adapter speaks the Gemini generateContent wire format.
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

// New creates a Gemini adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the Gemini provider identifier.
func (a *Adapter) Provider() llmstream.ProviderID {
	return llmstream.ProviderGemini
}

// NewRequest builds the streaming request. Gemini authenticates with a key
// query parameter and selects SSE framing with alt=sse.
func (a *Adapter) NewRequest(ctx context.Context, req *llmstream.StreamRequest) (*http.Request, error) {
	return a.buildHTTPRequest(ctx, req, true)
}

// NewBlockingRequest builds the non-streaming variant.
func (a *Adapter) NewBlockingRequest(ctx context.Context, req *llmstream.StreamRequest) (*http.Request, error) {
	return a.buildHTTPRequest(ctx, req, false)
}

func (a *Adapter) buildHTTPRequest(ctx context.Context, req *llmstream.StreamRequest, stream bool) (*http.Request, error) {
	base := req.ResolveBaseURL()
	if base == "" {
		return nil, fmt.Errorf("no base URL for provider 'gemini'")
	}

	wire := &generateRequest{Contents: mapContents(req.Messages)}
	if p := req.Params; p != nil {
		wire.GenerationConfig = &generationConfig{
			Temperature:     p.Temperature,
			MaxOutputTokens: p.MaxTokens,
			TopP:            p.TopP,
			TopK:            p.TopK,
		}
		if len(p.Stop) > 0 {
			wire.GenerationConfig.StopSequences = p.Stop
		}
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	method := "generateContent"
	query := "?key=" + url.QueryEscape(req.APIKey)
	if stream {
		method = "streamGenerateContent"
		query += "&alt=sse"
	}

	endpoint := fmt.Sprintf("%s/models/%s:%s%s",
		strings.TrimSuffix(base, "/"), url.PathEscape(req.Model), method, query)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return httpReq, nil
}

// DecodeFrame parses one SSE payload. Parts flagged as thoughts route to
// reasoning, plain text parts to content. A non-STOP finishReason is recorded
// and logged, never treated as an error.
func (a *Adapter) DecodeFrame(payload []byte, st *llmstream.State) ([]llmstream.Event, error) {
	var resp generateResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		a.logger.Debug("skipping unparseable frame", "provider", "gemini", "error", err)
		return nil, nil
	}

	if len(resp.Candidates) == 0 {
		return nil, nil
	}
	candidate := resp.Candidates[0]

	var events []llmstream.Event
	for _, p := range candidate.Content.Parts {
		if p.Thought {
			events = append(events, st.AppendReasoning(p.Text)...)
		} else {
			events = append(events, st.AppendContent(p.Text)...)
		}
	}

	if candidate.FinishReason != "" {
		if candidate.FinishReason != "STOP" {
			a.logger.Warn("stream finished early", "provider", "gemini", "finish_reason", candidate.FinishReason)
		}
		st.SetFinishReason(mapFinishReason(candidate.FinishReason))
	}

	return events, nil
}

// DecodeResponse parses a non-streaming 200 body.
func (a *Adapter) DecodeResponse(body []byte, st *llmstream.State) error {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse generateContent response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return fmt.Errorf("generateContent response has no candidates")
	}

	candidate := resp.Candidates[0]
	for _, p := range candidate.Content.Parts {
		if p.Thought {
			st.AppendReasoning(p.Text)
		} else {
			st.AppendContent(p.Text)
		}
	}
	st.CloseReasoning()
	st.SetFinishReason(mapFinishReason(candidate.FinishReason))
	return nil
}
