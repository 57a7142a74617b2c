package client

import (
	"fmt"
	"net/url"
	"strings"

	llmstream "github.com/jinyang6/chatanyllm"
	"github.com/jinyang6/chatanyllm/providers/anthropic"
	"github.com/jinyang6/chatanyllm/providers/gemini"
	"github.com/jinyang6/chatanyllm/providers/openaicompat"
)

// CustomEndpoint configures a non-built-in provider. Any OpenAI-compatible
// gateway or self-hosted server can be addressed this way; that wire format
// is the de-facto compatibility shape for such endpoints.
type CustomEndpoint struct {
	// Name is the provider identifier requests use to select this endpoint
	Name string `yaml:"name"`

	// BaseURL is the endpoint root, e.g. "http://localhost:8000/v1".
	// A trailing slash or an accidentally-included /chat/completions suffix
	// is stripped.
	BaseURL string `yaml:"base_url"`

	// AuthHeader is the auth header name (default "Authorization")
	AuthHeader string `yaml:"auth_header"`

	// AuthPrefix is prepended to the API key in the auth header value
	// (default "Bearer ")
	AuthPrefix string `yaml:"auth_prefix"`
}

// NormalizeBaseURL cleans up a user-supplied base URL: trims whitespace and
// trailing slashes, strips an accidentally-included /chat/completions suffix
// and rejects anything that is not an absolute http(s) URL.
func NormalizeBaseURL(raw string) (string, error) {
	base := strings.TrimSpace(raw)
	base = strings.TrimSuffix(base, "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	base = strings.TrimSuffix(base, "/")

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", llmstream.ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not an absolute http(s) URL", llmstream.ErrInvalidBaseURL, raw)
	}
	return base, nil
}

// resolve selects the adapter and endpoint configuration for a request.
// Routing rules run first and may override the provider identifier; the
// returned request is a copy when resolution had to adjust it. Failures are
// returned as a *StreamError so the caller can funnel them through the
// error callback, never as a panic.
func (c *Client) resolve(req *llmstream.StreamRequest) (llmstream.Adapter, *llmstream.StreamRequest, *llmstream.StreamError) {
	if override, ok := c.applyRules(req); ok && override != req.Provider {
		clone := *req
		clone.Provider = override
		req = &clone
	}

	switch req.Provider {
	case llmstream.ProviderOpenAI, llmstream.ProviderOpenRouter, llmstream.ProviderLoopback:
		return c.openaiLike(req.Provider), req, nil
	case llmstream.ProviderAnthropic:
		return c.anthropic, req, nil
	case llmstream.ProviderGemini:
		return c.gemini, req, nil
	}

	// Any other identifier needs a custom endpoint and is treated as
	// OpenAI-compatible.
	ep, ok := c.endpoint(req.Provider)
	if !ok {
		return nil, nil, &llmstream.StreamError{
			Code:     llmstream.ErrorCodeUnknownProvider,
			Provider: req.Provider.String(),
			Message:  fmt.Sprintf("unknown provider '%s' and no custom endpoint configured for it", req.Provider),
			Fatal:    true,
			Err:      llmstream.ErrUnknownProvider,
		}
	}

	base, err := NormalizeBaseURL(ep.BaseURL)
	if err != nil {
		return nil, nil, &llmstream.StreamError{
			Code:     llmstream.ErrorCodeInvalidBaseURL,
			Provider: req.Provider.String(),
			Message:  err.Error(),
			Fatal:    true,
			Err:      llmstream.ErrInvalidBaseURL,
		}
	}

	clone := *req
	clone.BaseURL = base

	opts := []openaicompat.Option{openaicompat.WithLogger(c.logger)}
	if ep.AuthHeader != "" {
		opts = append(opts, openaicompat.WithAuthHeader(ep.AuthHeader, ep.AuthPrefix))
	}
	return openaicompat.New(req.Provider, opts...), &clone, nil
}

func (c *Client) openaiLike(id llmstream.ProviderID) llmstream.Adapter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.openaiAdapters[id]; ok {
		return a
	}
	a := openaicompat.New(id, openaicompat.WithLogger(c.logger))
	c.openaiAdapters[id] = a
	return a
}

func (c *Client) endpoint(id llmstream.ProviderID) (CustomEndpoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep, ok := c.endpoints[id]
	return ep, ok
}

func newAnthropicAdapter(c *Client) llmstream.Adapter {
	return anthropic.New(anthropic.WithLogger(c.logger))
}

func newGeminiAdapter(c *Client) llmstream.Adapter {
	return gemini.New(gemini.WithLogger(c.logger))
}
