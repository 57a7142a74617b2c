package llmstream_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	llmstream "github.com/jinyang6/chatanyllm"
	"github.com/jinyang6/chatanyllm/providers/loopback"
	"github.com/jinyang6/chatanyllm/providers/openaicompat"
)

// sseServer serves a fixed sequence of SSE lines, flushing after each one.
func sseServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}))
}

func testRequest(baseURL string) *llmstream.StreamRequest {
	return &llmstream.StreamRequest{
		Provider: llmstream.ProviderOpenAI,
		BaseURL:  baseURL,
		APIKey:   "test-key",
		Model:    "gpt-4o",
		Messages: []llmstream.Message{{Role: llmstream.RoleUser, Content: "Hello"}},
	}
}

func collect(ch <-chan llmstream.Event) []llmstream.Event {
	var events []llmstream.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestRun_ContentDeltasAndCompletion(t *testing.T) {
	srv := sseServer(t,
		`data: {"choices":[{"index":0,"delta":{"content":"Hi"}}]}`,
		`data: {"choices":[{"index":0,"delta":{"content":" there"}}]}`,
		`data: {"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`data: [DONE]`,
	)
	defer srv.Close()

	ad := openaicompat.New(llmstream.ProviderOpenAI)
	events := collect(llmstream.Run(context.Background(), srv.Client(), ad, testRequest(srv.URL), nil))

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %#v", len(events), events)
	}
	if events[0].Content == nil || events[0].Content.Text != "Hi" || events[0].Content.Accumulated != "Hi" {
		t.Errorf("first delta = %#v", events[0].Content)
	}
	if events[1].Content == nil || events[1].Content.Text != " there" || events[1].Content.Accumulated != "Hi there" {
		t.Errorf("second delta = %#v", events[1].Content)
	}
	c := events[2].Completion
	if c == nil {
		t.Fatalf("last event should be Completion, got %#v", events[2])
	}
	if c.Text != "Hi there" || c.FinishReason != "stop" || c.Canceled {
		t.Errorf("completion = %#v", c)
	}
}

func TestRun_SkipsMalformedFrames(t *testing.T) {
	srv := sseServer(t,
		`data: {"choices":[{"index":0,"delta":{"content":"ok"}}]}`,
		`data: {not json at all`,
		`data: {"choices":[{"index":0,"delta":{"content":" still ok"}}]}`,
		`data: [DONE]`,
	)
	defer srv.Close()

	ad := openaicompat.New(llmstream.ProviderOpenAI)
	events := collect(llmstream.Run(context.Background(), srv.Client(), ad, testRequest(srv.URL), nil))

	for _, ev := range events {
		if ev.Err != nil {
			t.Fatalf("malformed frame should be skipped, not fatal: %v", ev.Err)
		}
	}
	last := events[len(events)-1]
	if last.Completion == nil || last.Completion.Text != "ok still ok" {
		t.Errorf("completion = %#v", last.Completion)
	}
}

func TestRun_ReasoningBeforeContent(t *testing.T) {
	srv := sseServer(t,
		`data: {"choices":[{"index":0,"delta":{"reasoning":"hmm, "}}]}`,
		`data: {"choices":[{"index":0,"delta":{"reasoning":"let me see"}}]}`,
		`data: {"choices":[{"index":0,"delta":{"content":"Answer"}}]}`,
		`data: [DONE]`,
	)
	defer srv.Close()

	ad := openaicompat.New(llmstream.ProviderOpenAI)
	events := collect(llmstream.Run(context.Background(), srv.Client(), ad, testRequest(srv.URL), nil))

	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d: %#v", len(events), events)
	}
	if events[0].Reasoning == nil || events[1].Reasoning == nil {
		t.Error("first two events should be reasoning deltas")
	}
	if events[2].ReasoningDone == nil {
		t.Error("reasoning-complete marker should precede the first content delta")
	}
	if events[3].Content == nil || events[3].Content.Text != "Answer" {
		t.Errorf("content delta = %#v", events[3])
	}
	c := events[4].Completion
	if c == nil || c.Reasoning != "hmm, let me see" || c.Text != "Answer" {
		t.Errorf("completion = %#v", c)
	}
}

func TestRun_UnclosedReasoningClosedAtEnd(t *testing.T) {
	// Stream ends (EOF) while still in the reasoning phase and without a
	// [DONE] sentinel; the session closes reasoning before completing.
	srv := sseServer(t,
		`data: {"choices":[{"index":0,"delta":{"reasoning":"thinking"}}]}`,
	)
	defer srv.Close()

	ad := openaicompat.New(llmstream.ProviderOpenAI)
	events := collect(llmstream.Run(context.Background(), srv.Client(), ad, testRequest(srv.URL), nil))

	if len(events) != 3 {
		t.Fatalf("expected [ReasoningDelta, ReasoningDone, Completion], got %#v", events)
	}
	if events[1].ReasoningDone == nil {
		t.Error("expected reasoning-complete marker at session end")
	}
	if events[2].Completion == nil || events[2].Completion.Reasoning != "thinking" {
		t.Errorf("completion = %#v", events[2].Completion)
	}
}

func TestRun_ValidationFailureProducesSingleErr(t *testing.T) {
	req := testRequest("http://unused.invalid")
	req.APIKey = ""

	events := collect(llmstream.Run(context.Background(), http.DefaultClient, openaicompat.New(llmstream.ProviderOpenAI), req, nil))

	if len(events) != 1 || events[0].Err == nil {
		t.Fatalf("expected exactly one Err event, got %#v", events)
	}
	if !errors.Is(events[0].Err, llmstream.ErrMissingAPIKey) {
		t.Errorf("err = %v", events[0].Err)
	}
}

func TestRun_UnauthorizedThenCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	}))
	defer srv.Close()

	ad := openaicompat.New(llmstream.ProviderOpenAI)
	events := collect(llmstream.Run(context.Background(), srv.Client(), ad, testRequest(srv.URL), nil))

	if len(events) != 2 {
		t.Fatalf("expected [Err, Completion], got %#v", events)
	}
	se := events[0].Err
	if se == nil {
		t.Fatalf("first event should be Err, got %#v", events[0])
	}
	if !errors.Is(se, llmstream.ErrUnauthorized) || !llmstream.IsAuthError(se) {
		t.Errorf("expected unauthorized, got %v", se)
	}
	if se.StatusCode != http.StatusUnauthorized || se.Message != "invalid api key" {
		t.Errorf("error detail = %#v", se)
	}
	if events[1].Completion == nil || events[1].Completion.Text != "" {
		t.Errorf("completion = %#v", events[1].Completion)
	}
}

func TestRun_RateLimitedCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
	}))
	defer srv.Close()

	ad := openaicompat.New(llmstream.ProviderOpenAI)
	events := collect(llmstream.Run(context.Background(), srv.Client(), ad, testRequest(srv.URL), nil))

	se := events[0].Err
	if se == nil {
		t.Fatalf("expected Err first, got %#v", events)
	}
	if !errors.Is(se, llmstream.ErrRateLimited) || !llmstream.IsRetryable(se) {
		t.Errorf("expected retryable rate limit, got %v", se)
	}
	if se.RetryAfter == nil || *se.RetryAfter != 30*time.Second {
		t.Errorf("retry after = %v", se.RetryAfter)
	}
}

func TestRun_ProviderErrorFrameIsFatal(t *testing.T) {
	srv := sseServer(t,
		`data: {"choices":[{"index":0,"delta":{"content":"partial"}}]}`,
		`data: {"error":{"message":"stream overloaded"}}`,
	)
	defer srv.Close()

	ad := openaicompat.New(llmstream.ProviderOpenAI)
	events := collect(llmstream.Run(context.Background(), srv.Client(), ad, testRequest(srv.URL), nil))

	if len(events) != 3 {
		t.Fatalf("expected [ContentDelta, Err, Completion], got %#v", events)
	}
	se := events[1].Err
	if se == nil || se.Code != llmstream.ErrorCodeProviderReported || se.Message != "stream overloaded" {
		t.Errorf("err = %#v", se)
	}
	// Completion still carries whatever accumulated before the failure.
	if events[2].Completion == nil || events[2].Completion.Text != "partial" {
		t.Errorf("completion = %#v", events[2].Completion)
	}
}

func TestRun_CancellationMidReasoning(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"reasoning\":\"deep thought\"}}]}\n\n")
		flusher.Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ad := openaicompat.New(llmstream.ProviderOpenAI)
	ch := llmstream.Run(ctx, srv.Client(), ad, testRequest(srv.URL), nil)

	first := <-ch
	if first.Reasoning == nil || first.Reasoning.Text != "deep thought" {
		t.Fatalf("first event = %#v", first)
	}
	<-started
	cancel()

	events := collect(ch)
	if len(events) != 3 {
		t.Fatalf("expected [ReasoningDelta, ReasoningDone, Completion] after cancel, got %#v", events)
	}
	if events[0].Reasoning == nil || events[0].Reasoning.Text != "" || events[0].Reasoning.Accumulated != "deep thought" {
		t.Errorf("synthesized reasoning delta = %#v", events[0].Reasoning)
	}
	if events[1].ReasoningDone == nil {
		t.Error("expected reasoning-complete marker after cancel")
	}
	c := events[2].Completion
	if c == nil || !c.Canceled {
		t.Fatalf("completion = %#v", c)
	}
	if c.Text != "" || c.Reasoning != "deep thought" {
		t.Errorf("completion carries wrong partials: %#v", c)
	}
	for _, ev := range events {
		if ev.Err != nil {
			t.Errorf("cancellation must not surface as an error: %v", ev.Err)
		}
	}
}

func TestStream_CallbackDispatch(t *testing.T) {
	transport := loopback.NewTransport()
	transport.NoDelay = true
	hc := &http.Client{Transport: transport}

	req := &llmstream.StreamRequest{
		Provider: llmstream.ProviderLoopback,
		Model:    "lorem-thinking",
		Messages: []llmstream.Message{{Role: llmstream.RoleUser, Content: "go"}},
	}

	var content, reasoning strings.Builder
	var reasoningDone int
	var completion *llmstream.Completion

	llmstream.Stream(context.Background(), hc, openaicompat.New(llmstream.ProviderLoopback), req, &llmstream.Callbacks{
		OnContentDelta:      func(delta, _ string) { content.WriteString(delta) },
		OnReasoningDelta:    func(delta, _ string) { reasoning.WriteString(delta) },
		OnReasoningComplete: func() { reasoningDone++ },
		OnCompletion:        func(c llmstream.Completion) { completion = &c },
		OnError:             func(err *llmstream.StreamError) { t.Errorf("unexpected error: %v", err) },
	}, nil)

	if completion == nil {
		t.Fatal("no completion delivered")
	}
	if reasoningDone != 1 {
		t.Errorf("reasoning-complete fired %d times", reasoningDone)
	}
	if content.String() != completion.Text {
		t.Errorf("content mismatch: deltas %q vs completion %q", content.String(), completion.Text)
	}
	if reasoning.String() != completion.Reasoning || completion.Reasoning == "" {
		t.Errorf("reasoning mismatch: deltas %q vs completion %q", reasoning.String(), completion.Reasoning)
	}
}

func TestRun_LoopbackCutoffFinishReason(t *testing.T) {
	transport := loopback.NewTransport()
	transport.NoDelay = true
	hc := &http.Client{Transport: transport}

	req := &llmstream.StreamRequest{
		Provider: llmstream.ProviderLoopback,
		Model:    "lorem-cutoff",
		Messages: []llmstream.Message{{Role: llmstream.RoleUser, Content: "go"}},
	}

	events := collect(llmstream.Run(context.Background(), hc, openaicompat.New(llmstream.ProviderLoopback), req, nil))
	last := events[len(events)-1]
	if last.Completion == nil || last.Completion.FinishReason != "length" {
		t.Errorf("completion = %#v", last.Completion)
	}
}

func TestGenerate_Loopback(t *testing.T) {
	transport := loopback.NewTransport()
	transport.NoDelay = true
	hc := &http.Client{Transport: transport}

	req := &llmstream.StreamRequest{
		Provider: llmstream.ProviderLoopback,
		Model:    "lorem-fast",
		Messages: []llmstream.Message{{Role: llmstream.RoleUser, Content: "go"}},
	}

	c, err := llmstream.Generate(context.Background(), hc, openaicompat.New(llmstream.ProviderLoopback), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if c.Text == "" || c.FinishReason != "stop" {
		t.Errorf("completion = %#v", c)
	}
}

func TestGenerate_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not json")
	}))
	defer srv.Close()

	_, err := llmstream.Generate(context.Background(), srv.Client(), openaicompat.New(llmstream.ProviderOpenAI), testRequest(srv.URL))
	if !errors.Is(err, llmstream.ErrMalformedResponse) {
		t.Errorf("err = %v", err)
	}
}

func TestRun_ConcurrentSessions(t *testing.T) {
	transport := loopback.NewTransport()
	transport.NoDelay = true
	hc := &http.Client{Transport: transport}
	ad := openaicompat.New(llmstream.ProviderLoopback)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			req := &llmstream.StreamRequest{
				Provider: llmstream.ProviderLoopback,
				Model:    "lorem-fast",
				Messages: []llmstream.Message{{Role: llmstream.RoleUser, Content: "go"}},
			}
			events := collect(llmstream.Run(context.Background(), hc, ad, req, nil))

			var accumulated string
			completions := 0
			for _, ev := range events {
				if ev.Err != nil {
					return fmt.Errorf("unexpected error: %w", ev.Err)
				}
				if ev.Content != nil {
					accumulated += ev.Content.Text
					if ev.Content.Accumulated != accumulated {
						return fmt.Errorf("accumulated mismatch: %q vs %q", ev.Content.Accumulated, accumulated)
					}
				}
				if ev.Completion != nil {
					completions++
					if ev.Completion.Text != accumulated {
						return fmt.Errorf("completion text %q != accumulated %q", ev.Completion.Text, accumulated)
					}
				}
			}
			if completions != 1 {
				return fmt.Errorf("expected exactly one completion, got %d", completions)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Error(err)
	}
}
