package llmstream

import "testing"

func TestState_ContentAccumulates(t *testing.T) {
	st := NewState()

	events := st.AppendContent("Hi")
	if len(events) != 1 || events[0].Content == nil {
		t.Fatalf("expected one content event, got %#v", events)
	}
	if events[0].Content.Accumulated != "Hi" {
		t.Errorf("accumulated = %q", events[0].Content.Accumulated)
	}

	events = st.AppendContent(" there")
	if events[0].Content.Text != " there" || events[0].Content.Accumulated != "Hi there" {
		t.Errorf("event = %#v", events[0].Content)
	}

	if st.Content() != "Hi there" {
		t.Errorf("content snapshot = %q", st.Content())
	}
}

func TestState_EmptyDeltasProduceNoEvents(t *testing.T) {
	st := NewState()
	if events := st.AppendContent(""); events != nil {
		t.Errorf("empty content: %#v", events)
	}
	if events := st.AppendReasoning(""); events != nil {
		t.Errorf("empty reasoning: %#v", events)
	}
	if events := st.AppendImage(""); events != nil {
		t.Errorf("empty image url: %#v", events)
	}
}

// TestState_ReasoningClosesBeforeFirstContent checks the core ordering
// invariant: once reasoning accumulated, the first content delta is preceded
// by exactly one reasoning-complete marker.
func TestState_ReasoningClosesBeforeFirstContent(t *testing.T) {
	st := NewState()

	st.AppendReasoning("Let me think")

	events := st.AppendContent("Answer")
	if len(events) != 2 {
		t.Fatalf("expected [ReasoningDone, ContentDelta], got %#v", events)
	}
	if events[0].ReasoningDone == nil {
		t.Error("first event should be ReasoningDone")
	}
	if events[1].Content == nil || events[1].Content.Text != "Answer" {
		t.Errorf("second event = %#v", events[1])
	}

	// No second marker on later content or explicit closes.
	if events := st.AppendContent(" more"); len(events) != 1 {
		t.Errorf("expected a single content event, got %#v", events)
	}
	if events := st.CloseReasoning(); events != nil {
		t.Errorf("expected idempotent close, got %#v", events)
	}
}

func TestState_CloseReasoningWithoutReasoningIsSilent(t *testing.T) {
	st := NewState()
	if events := st.CloseReasoning(); events != nil {
		t.Errorf("expected no marker without reasoning, got %#v", events)
	}
	if events := st.AppendContent("plain"); len(events) != 1 {
		t.Errorf("expected a single content event, got %#v", events)
	}
}

func TestState_AppendImage(t *testing.T) {
	st := NewState()
	st.AppendReasoning("thinking about a picture")

	events := st.AppendImage("https://img.example/cat.png")
	if len(events) != 2 {
		t.Fatalf("expected [ReasoningDone, ImageDelta], got %#v", events)
	}
	if events[0].ReasoningDone == nil {
		t.Error("image arrival should close reasoning first")
	}
	if events[1].Image == nil || events[1].Image.URL != "https://img.example/cat.png" {
		t.Errorf("image event = %#v", events[1])
	}

	want := "[GENERATED_IMAGE:https://img.example/cat.png:END_IMAGE]"
	if st.Content() != want {
		t.Errorf("content = %q, expected inline marker %q", st.Content(), want)
	}
}

func TestState_CompleteFiresOnce(t *testing.T) {
	st := NewState()
	st.AppendContent("partial")
	st.SetFinishReason("length")

	ev, ok := st.Complete(false)
	if !ok {
		t.Fatal("first Complete should fire")
	}
	if ev.Completion.Text != "partial" || ev.Completion.FinishReason != "length" {
		t.Errorf("completion = %#v", ev.Completion)
	}

	if _, ok := st.Complete(false); ok {
		t.Error("second Complete should not fire")
	}
	if _, ok := st.Complete(true); ok {
		t.Error("Complete after completion should not fire regardless of path")
	}
}

func TestState_CompleteCanceledCarriesPartialState(t *testing.T) {
	st := NewState()
	st.AppendReasoning("half a thought")

	ev, ok := st.Complete(true)
	if !ok {
		t.Fatal("Complete should fire")
	}
	if !ev.Completion.Canceled {
		t.Error("Canceled should be set")
	}
	if ev.Completion.Text != "" || ev.Completion.Reasoning != "half a thought" {
		t.Errorf("completion = %#v", ev.Completion)
	}
}

func TestState_BlockTracking(t *testing.T) {
	st := NewState()
	if st.CurrentBlock() != BlockNone {
		t.Errorf("initial block = %q", st.CurrentBlock())
	}
	st.SetCurrentBlock(BlockThinking)
	if st.CurrentBlock() != BlockThinking {
		t.Errorf("block = %q", st.CurrentBlock())
	}
}

func TestState_FinishReasonLastNonEmptyWins(t *testing.T) {
	st := NewState()
	st.SetFinishReason("stop")
	st.SetFinishReason("")
	if st.FinishReason() != "stop" {
		t.Errorf("finish reason = %q", st.FinishReason())
	}
}
