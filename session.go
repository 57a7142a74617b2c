package llmstream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jinyang6/chatanyllm/sse"
)

// readChunkSize is the transport read granularity. Frames regularly span
// reads; the sse.Decoder carries partial lines across them.
const readChunkSize = 4096

// Run executes one streaming session: it issues the adapter's HTTP request,
// feeds the response body through the SSE frame decoder, routes decoded
// frames to the adapter and delivers normalized events on the returned
// channel, in order, ending with exactly one Completion (pre-flight
// validation failures excepted: those produce a single Err and no session).
//
// Failure semantics: every error funnels into an Err event - Run never
// panics and never drops an error. Cancellation through ctx is not an error;
// the session then closes any open reasoning and completes with whatever
// content accumulated. The channel is closed after the terminal event.
//
// Sessions are independent: each Run owns its State exclusively, so any
// number of sessions may run concurrently on one Adapter and http.Client.
func Run(ctx context.Context, hc *http.Client, ad Adapter, req *StreamRequest, logger *slog.Logger) <-chan Event {
	events := make(chan Event, 16)
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	go func() {
		defer close(events)
		runSession(ctx, hc, ad, req, logger, events)
	}()

	return events
}

// Stream is the callback-style face of Run: it blocks until the session
// terminates, dispatching each event to cb in order on the calling goroutine.
func Stream(ctx context.Context, hc *http.Client, ad Adapter, req *StreamRequest, cb *Callbacks, logger *slog.Logger) {
	for ev := range Run(ctx, hc, ad, req, logger) {
		cb.Dispatch(ev)
	}
}

func runSession(ctx context.Context, hc *http.Client, ad Adapter, req *StreamRequest, logger *slog.Logger, events chan<- Event) {
	log := logger.With(
		"session_id", uuid.NewString(),
		"provider", ad.Provider().String(),
		"model", req.Model,
	)

	// Pre-flight validation: surfaced before any network call, without
	// starting a session (no Completion follows).
	if se := req.Validate(); se != nil {
		log.Warn("request rejected before send", "code", se.Code)
		events <- Event{Err: se}
		return
	}

	st := NewState()

	fail := func(se *StreamError) {
		log.Warn("session failed", "code", se.Code, "status", se.StatusCode, "message", se.Message)
		events <- Event{Err: se}
		if ev, ok := st.Complete(false); ok {
			events <- ev
		}
	}

	// Cancellation always completes successfully with partial content. If
	// reasoning accumulated without being closed, the missing delta and the
	// close marker are synthesized first so downstream state still sees a
	// well-formed reasoning-then-content sequence.
	finishCanceled := func() {
		log.Debug("session canceled", "content_len", len(st.Content()))
		if st.HasOpenReasoning() {
			events <- Event{Reasoning: &ReasoningDelta{Text: "", Accumulated: st.Reasoning()}}
			for _, ev := range st.CloseReasoning() {
				events <- ev
			}
		}
		if ev, ok := st.Complete(true); ok {
			events <- ev
		}
	}

	httpReq, err := ad.NewRequest(ctx, req)
	if err != nil {
		fail(&StreamError{
			Code:     ErrorCodeInvalidBaseURL,
			Provider: ad.Provider().String(),
			Message:  err.Error(),
			Fatal:    true,
			Err:      ErrInvalidBaseURL,
		})
		return
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			finishCanceled()
			return
		}
		fail(&StreamError{
			Code:     ErrorCodeNetwork,
			Provider: ad.Provider().String(),
			Message:  err.Error(),
			Fatal:    true,
			Err:      ErrProviderUnavailable,
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fail(responseError(ad.Provider().String(), resp))
		return
	}

	dec := sse.NewDecoder()
	buf := make([]byte, readChunkSize)
	done := false

	handleFrames := func(frames []sse.Frame) *StreamError {
		for _, frame := range frames {
			if frame.Data == sse.Done {
				// Terminates the frame stream; Completion fires when the
				// read loop ends.
				done = true
				return nil
			}
			evs, ferr := ad.DecodeFrame([]byte(frame.Data), st)
			for _, ev := range evs {
				events <- ev
			}
			if ferr != nil {
				se, ok := ferr.(*StreamError)
				if !ok {
					se = &StreamError{
						Code:     ErrorCodeProviderReported,
						Provider: ad.Provider().String(),
						Message:  ferr.Error(),
						Fatal:    true,
					}
				}
				return se
			}
		}
		return nil
	}

	for !done {
		// Check before issuing the next read and again after processing a
		// chunk's frames: at most one in-flight chunk proceeds past a
		// cancellation request.
		if ctx.Err() != nil {
			finishCanceled()
			return
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if se := handleFrames(dec.Feed(buf[:n])); se != nil {
				fail(se)
				return
			}
		}

		if ctx.Err() != nil {
			finishCanceled()
			return
		}

		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			fail(&StreamError{
				Code:     ErrorCodeNetwork,
				Provider: ad.Provider().String(),
				Message:  rerr.Error(),
				Fatal:    true,
				Err:      ErrProviderUnavailable,
			})
			return
		}
	}

	if !done {
		if se := handleFrames(dec.Flush()); se != nil {
			fail(se)
			return
		}
	}

	// Reasoning the upstream protocol never closed is closed at session end.
	for _, ev := range st.CloseReasoning() {
		events <- ev
	}
	if ev, ok := st.Complete(false); ok {
		log.Debug("session complete",
			"content_len", len(ev.Completion.Text),
			"reasoning_len", len(ev.Completion.Reasoning),
			"finish_reason", ev.Completion.FinishReason,
		)
		events <- ev
	}
}

// Generate executes one non-streaming request/response cycle and returns the
// final completion. It shares the adapter, validation and error mapping with
// the streaming path.
func Generate(ctx context.Context, hc *http.Client, ad Adapter, req *StreamRequest) (*Completion, error) {
	if hc == nil {
		hc = http.DefaultClient
	}

	if se := req.Validate(); se != nil {
		return nil, se
	}

	httpReq, err := ad.NewBlockingRequest(ctx, req)
	if err != nil {
		return nil, &StreamError{
			Code:     ErrorCodeInvalidBaseURL,
			Provider: ad.Provider().String(),
			Message:  err.Error(),
			Fatal:    true,
			Err:      ErrInvalidBaseURL,
		}
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, &StreamError{
			Code:     ErrorCodeNetwork,
			Provider: ad.Provider().String(),
			Message:  err.Error(),
			Fatal:    true,
			Err:      ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &StreamError{
			Code:     ErrorCodeNetwork,
			Provider: ad.Provider().String(),
			Message:  err.Error(),
			Fatal:    true,
			Err:      ErrProviderUnavailable,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(ad.Provider().String(), resp.StatusCode, errorDetail(body))
	}

	st := NewState()
	if err := ad.DecodeResponse(body, st); err != nil {
		return nil, &StreamError{
			Code:     ErrorCodeMalformedResponse,
			Provider: ad.Provider().String(),
			Message:  err.Error(),
			Fatal:    true,
			Err:      ErrMalformedResponse,
		}
	}

	ev, _ := st.Complete(false)
	return ev.Completion, nil
}

// responseError turns a non-2xx response into a StreamError, pulling the
// provider's own message out of the body when it is the common
// {"error":{"message":...}} shape and honoring Retry-After on 429s.
func responseError(provider string, resp *http.Response) *StreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	se := statusError(provider, resp.StatusCode, errorDetail(body))

	if resp.StatusCode == 429 {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
				d := time.Duration(secs) * time.Second
				se.RetryAfter = &d
			}
		}
	}
	return se
}

// errorDetail extracts a human-readable message from a provider error body.
func errorDetail(body []byte) string {
	var shaped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &shaped); err == nil && shaped.Error.Message != "" {
		return shaped.Error.Message
	}

	detail := strings.TrimSpace(string(body))
	if len(detail) > 512 {
		detail = detail[:512]
	}
	return detail
}
