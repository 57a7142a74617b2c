package llmstream

// GeneratedImageMarker wraps an image URL so it can ride the text content
// channel in deterministic order relative to surrounding text. The rendering
// layer parses this exact form back out.
const (
	generatedImagePrefix = "[GENERATED_IMAGE:"
	generatedImageSuffix = ":END_IMAGE]"
)

// GeneratedImageMarker returns the inline content marker for an image URL.
func GeneratedImageMarker(url string) string {
	return generatedImagePrefix + url + generatedImageSuffix
}

// Event represents a single normalized event in a streaming session.
// Exactly one field is non-nil per event.
type Event struct {
	// Content contains an incremental chunk of answer text (nil otherwise)
	Content *ContentDelta

	// Reasoning contains an incremental chunk of thinking text (nil otherwise)
	Reasoning *ReasoningDelta

	// ReasoningDone marks the end of reasoning output. Fires at most once per
	// session and always before the first Content event that follows reasoning.
	ReasoningDone *ReasoningDone

	// Image contains a generated-image reference (nil otherwise)
	Image *ImageDelta

	// Completion contains the final accumulated output. Exactly one fires per
	// session, as the last event before the channel closes.
	Completion *Completion

	// Err contains an error that occurred during the session (nil if successful)
	Err *StreamError
}

// ContentDelta is an incremental chunk of answer text.
type ContentDelta struct {
	// Text is this chunk's text
	Text string

	// Accumulated is the full answer text so far, including this chunk.
	// Each value is a prefix-extension of the previous one.
	Accumulated string
}

// ReasoningDelta is an incremental chunk of thinking text.
type ReasoningDelta struct {
	// Text is this chunk's text
	Text string

	// Accumulated is the full reasoning text so far, including this chunk
	Accumulated string
}

// ReasoningDone marks the transition from reasoning to answer output.
type ReasoningDone struct{}

// ImageDelta is a generated-image reference. The same URL is also appended to
// the accumulated content as an inline marker (see GeneratedImageMarker).
type ImageDelta struct {
	URL string
}

// Completion contains the final session output, sent exactly once per session
// whether the session ended normally, with an error, or by cancellation.
type Completion struct {
	// Text is the full accumulated answer (possibly empty on early failure)
	Text string

	// Reasoning is the full accumulated thinking text
	Reasoning string

	// FinishReason is the normalized upstream stop signal when the provider
	// reported one: "stop", "length", "content_filter" or "" when unknown.
	FinishReason string

	// Canceled is true when the session ended by caller cancellation
	Canceled bool
}

// Callbacks receives normalized events in order. Nil members are skipped.
// This is the callback-style face of the event channel; callbacks fire
// synchronously on the session goroutine.
type Callbacks struct {
	OnContentDelta      func(delta string, accumulated string)
	OnReasoningDelta    func(delta string, accumulated string)
	OnReasoningComplete func()
	OnImageDelta        func(url string)
	OnCompletion        func(c Completion)
	OnError             func(err *StreamError)
}

// Dispatch routes a single event to the matching callback.
func (cb *Callbacks) Dispatch(ev Event) {
	switch {
	case ev.Content != nil:
		if cb.OnContentDelta != nil {
			cb.OnContentDelta(ev.Content.Text, ev.Content.Accumulated)
		}
	case ev.Reasoning != nil:
		if cb.OnReasoningDelta != nil {
			cb.OnReasoningDelta(ev.Reasoning.Text, ev.Reasoning.Accumulated)
		}
	case ev.ReasoningDone != nil:
		if cb.OnReasoningComplete != nil {
			cb.OnReasoningComplete()
		}
	case ev.Image != nil:
		if cb.OnImageDelta != nil {
			cb.OnImageDelta(ev.Image.URL)
		}
	case ev.Completion != nil:
		if cb.OnCompletion != nil {
			cb.OnCompletion(*ev.Completion)
		}
	case ev.Err != nil:
		if cb.OnError != nil {
			cb.OnError(ev.Err)
		}
	}
}
