// Package client is the top-level entry point: it routes requests to the
// matching provider adapter and runs streaming or blocking sessions over one
// shared HTTP client.
package client

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	llmstream "github.com/jinyang6/chatanyllm"
)

// Client routes requests and runs sessions. Safe for concurrent use; each
// session owns its state independently.
type Client struct {
	hc     *http.Client
	logger *slog.Logger

	anthropic llmstream.Adapter
	gemini    llmstream.Adapter

	mu             sync.Mutex
	openaiAdapters map[llmstream.ProviderID]llmstream.Adapter
	endpoints      map[llmstream.ProviderID]CustomEndpoint
	rules          []compiledRule
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for all providers. Use this
// to install a custom transport (e.g. the loopback mock provider).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithLogger sets the logger shared by the client and its adapters.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEndpoint registers a custom OpenAI-compatible endpoint under its name.
func WithEndpoint(ep CustomEndpoint) Option {
	return func(c *Client) {
		c.endpoints[llmstream.ProviderID(ep.Name)] = ep
	}
}

// WithConfig applies a loaded configuration file: every endpoint is
// registered and every rule installed. Invalid rules are skipped with a
// warning rather than failing construction.
func WithConfig(cfg *Config) Option {
	return func(c *Client) {
		if cfg == nil {
			return
		}
		for _, ep := range cfg.Endpoints {
			c.endpoints[llmstream.ProviderID(ep.Name)] = ep
		}
		for _, r := range cfg.Rules {
			if err := c.addRule(r); err != nil {
				c.logger.Warn("skipping invalid routing rule", "when", r.When, "error", err)
			}
		}
	}
}

// New creates a Client. The default HTTP client carries a generous timeout
// sized for long streaming responses; the streaming phase itself has no
// additional deadline.
func New(opts ...Option) *Client {
	c := &Client{
		hc:             &http.Client{Timeout: 120 * time.Second},
		logger:         slog.Default(),
		openaiAdapters: make(map[llmstream.ProviderID]llmstream.Adapter),
		endpoints:      make(map[llmstream.ProviderID]CustomEndpoint),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.anthropic = newAnthropicAdapter(c)
	c.gemini = newGeminiAdapter(c)
	return c
}

// RegisterEndpoint adds or replaces a custom endpoint after construction.
func (c *Client) RegisterEndpoint(ep CustomEndpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoints[llmstream.ProviderID(ep.Name)] = ep
}

// AddRule installs a routing rule. See Rule for the expression language.
func (c *Client) AddRule(r Rule) error {
	return c.addRule(r)
}

// Events starts one streaming session and returns its event channel. The
// channel always terminates: routing and validation failures surface as a
// single Err event, everything after a session start ends with exactly one
// Completion.
func (c *Client) Events(ctx context.Context, req *llmstream.StreamRequest) <-chan llmstream.Event {
	ad, routed, se := c.resolve(req)
	if se != nil {
		c.logger.Warn("routing failed", "provider", req.Provider, "code", se.Code)
		events := make(chan llmstream.Event, 1)
		events <- llmstream.Event{Err: se}
		close(events)
		return events
	}
	return llmstream.Run(ctx, c.hc, ad, routed, c.logger)
}

// Stream runs one streaming session to completion, dispatching normalized
// events to cb in order on the calling goroutine. It never panics and never
// returns an error: every failure arrives through cb.OnError.
func (c *Client) Stream(ctx context.Context, req *llmstream.StreamRequest, cb *llmstream.Callbacks) {
	for ev := range c.Events(ctx, req) {
		cb.Dispatch(ev)
	}
}

// Generate runs one blocking (non-streaming) request and returns the final
// completion.
func (c *Client) Generate(ctx context.Context, req *llmstream.StreamRequest) (*llmstream.Completion, error) {
	ad, routed, se := c.resolve(req)
	if se != nil {
		return nil, se
	}
	return llmstream.Generate(ctx, c.hc, ad, routed)
}
