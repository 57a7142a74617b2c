package llmstream

import (
	"context"
	"net/http"
)

// Adapter is implemented once per provider wire protocol. An adapter is
// stateless with respect to sessions: all per-session accumulation lives in
// the State the session loop passes in, so one adapter instance can serve any
// number of concurrent sessions.
//
// Implementations live in providers/openaicompat, providers/anthropic and
// providers/gemini.
type Adapter interface {
	// Provider returns the provider identifier this adapter speaks for.
	Provider() ProviderID

	// NewRequest builds the streaming HTTP request (method, URL, auth headers,
	// JSON body with streaming enabled) for the given session request.
	NewRequest(ctx context.Context, req *StreamRequest) (*http.Request, error)

	// NewBlockingRequest builds the non-streaming variant of the same request.
	NewBlockingRequest(ctx context.Context, req *StreamRequest) (*http.Request, error)

	// DecodeFrame parses one decoded SSE payload into zero or more normalized
	// events, recording accumulation through st. A returned error is fatal for
	// the session (an in-band provider error frame); payloads that merely fail
	// to parse are logged and skipped by the adapter, returning (nil, nil).
	DecodeFrame(payload []byte, st *State) ([]Event, error)

	// DecodeResponse parses a complete non-streaming 200 response body,
	// recording the content and finish reason through st.
	DecodeResponse(body []byte, st *State) error
}
