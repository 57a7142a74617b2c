package llmstream

import "strings"

// BlockKind identifies the provider content block currently open in a stream.
// Anthropic signals this explicitly via content_block_start; the other
// providers leave it implicit and the adapters infer it per delta.
type BlockKind string

const (
	BlockNone     BlockKind = ""
	BlockText     BlockKind = "text"
	BlockThinking BlockKind = "thinking"
)

// State holds the accumulation state for one streaming session. It is owned
// exclusively by the session's read loop for the lifetime of one request;
// consumers only ever see string snapshots. The append methods return the
// normalized events each mutation produces, which makes the
// reasoning-before-content ordering and the at-most-once completion guarantees
// mechanically checkable.
type State struct {
	content      strings.Builder
	reasoning    strings.Builder
	reasoningCut bool
	completed    bool
	currentBlock BlockKind
	finishReason string
}

// NewState creates the accumulation state for a fresh session.
func NewState() *State {
	return &State{}
}

// AppendContent records an answer-text chunk. If reasoning text accumulated
// and was not yet closed, the reasoning-complete marker is emitted first, so
// downstream always observes reasoning strictly before content.
func (s *State) AppendContent(text string) []Event {
	if text == "" {
		return nil
	}
	events := s.CloseReasoning()
	s.content.WriteString(text)
	return append(events, Event{Content: &ContentDelta{
		Text:        text,
		Accumulated: s.content.String(),
	}})
}

// AppendReasoning records a thinking-text chunk.
func (s *State) AppendReasoning(text string) []Event {
	if text == "" {
		return nil
	}
	s.reasoning.WriteString(text)
	return []Event{{Reasoning: &ReasoningDelta{
		Text:        text,
		Accumulated: s.reasoning.String(),
	}}}
}

// CloseReasoning marks reasoning output as finished. It emits the
// reasoning-complete marker once, and only if reasoning text accumulated;
// further calls are no-ops.
func (s *State) CloseReasoning() []Event {
	if s.reasoningCut || s.reasoning.Len() == 0 {
		return nil
	}
	s.reasoningCut = true
	return []Event{{ReasoningDone: &ReasoningDone{}}}
}

// AppendImage records a generated-image reference. The URL is wrapped into
// the content buffer as an inline marker so its position relative to text is
// preserved; an image arriving counts as content for the reasoning-close edge.
func (s *State) AppendImage(url string) []Event {
	if url == "" {
		return nil
	}
	events := s.CloseReasoning()
	s.content.WriteString(GeneratedImageMarker(url))
	return append(events, Event{Image: &ImageDelta{URL: url}})
}

// HasOpenReasoning reports whether reasoning text accumulated without the
// upstream protocol ever closing it.
func (s *State) HasOpenReasoning() bool {
	return s.reasoning.Len() > 0 && !s.reasoningCut
}

// CurrentBlock returns the provider block kind currently open.
func (s *State) CurrentBlock() BlockKind {
	return s.currentBlock
}

// SetCurrentBlock records the provider block kind opened by a block-start frame.
func (s *State) SetCurrentBlock(k BlockKind) {
	s.currentBlock = k
}

// SetFinishReason records the upstream stop signal. The last non-empty value
// wins; providers report it at most once per stream.
func (s *State) SetFinishReason(reason string) {
	if reason != "" {
		s.finishReason = reason
	}
}

// FinishReason returns the recorded upstream stop signal, or "".
func (s *State) FinishReason() string {
	return s.finishReason
}

// Content returns a snapshot of the accumulated answer text.
func (s *State) Content() string {
	return s.content.String()
}

// Reasoning returns a snapshot of the accumulated thinking text.
func (s *State) Reasoning() string {
	return s.reasoning.String()
}

// Complete produces the terminal completion event. The first call wins;
// subsequent calls return false, which is what makes completion idempotent
// across the normal-end, error and cancellation paths.
func (s *State) Complete(canceled bool) (Event, bool) {
	if s.completed {
		return Event{}, false
	}
	s.completed = true
	return Event{Completion: &Completion{
		Text:         s.content.String(),
		Reasoning:    s.reasoning.String(),
		FinishReason: s.finishReason,
		Canceled:     canceled,
	}}, true
}
