// Package sse decodes Server-Sent-Events streams into discrete data frames.
//
// The decoder is push-style: the caller feeds raw byte chunks exactly as the
// transport delivers them, at whatever granularity, and gets back the complete
// frames decoded so far. A partial trailing line is buffered until the next
// chunk completes it, so chunk boundaries never split or drop a frame.
package sse

import "strings"

// Done is the literal terminator payload some providers send as the final
// data frame. The decoder yields it like any other payload; callers treat it
// specially.
const Done = "[DONE]"

// Frame is one decoded SSE data frame.
type Frame struct {
	// Event is the value of the preceding "event:" line, if the stream named
	// the event. Decoding content does not depend on it.
	Event string

	// Data is the payload with the "data: " sentinel stripped, including the
	// literal Done terminator.
	Data string
}

// Decoder incrementally splits a byte stream into SSE data frames.
// The zero value is ready to use. Not safe for concurrent use; each stream
// gets its own decoder.
type Decoder struct {
	buf   strings.Builder
	event string
}

// NewDecoder returns a fresh decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk and returns all frames completed by it, in order.
// Empty lines, comment lines (leading ':') and unknown field lines are
// skipped; "event:" lines set the event name attached to the next data frame.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf.Write(chunk)

	text := d.buf.String()
	last := strings.LastIndexByte(text, '\n')
	if last < 0 {
		return nil
	}

	// Retain the possibly-incomplete trailing fragment.
	rest := text[last+1:]
	complete := text[:last]
	d.buf.Reset()
	d.buf.WriteString(rest)

	var frames []Frame
	for _, line := range strings.Split(complete, "\n") {
		if f, ok := d.decodeLine(line); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

// Flush decodes any buffered trailing line. Called once at end of stream for
// peers that omit the final newline.
func (d *Decoder) Flush() []Frame {
	if d.buf.Len() == 0 {
		return nil
	}
	line := d.buf.String()
	d.buf.Reset()

	if f, ok := d.decodeLine(line); ok {
		return []Frame{f}
	}
	return nil
}

func (d *Decoder) decodeLine(line string) (Frame, bool) {
	line = strings.TrimSpace(line)

	if line == "" || strings.HasPrefix(line, ":") {
		return Frame{}, false
	}

	if name, ok := strings.CutPrefix(line, "event:"); ok {
		d.event = strings.TrimSpace(name)
		return Frame{}, false
	}

	if data, ok := strings.CutPrefix(line, "data:"); ok {
		f := Frame{Event: d.event, Data: strings.TrimSpace(data)}
		d.event = ""
		return f, true
	}

	// Unknown field (id:, retry:, ...) - not needed for content decoding.
	return Frame{}, false
}
