// Package loopback provides a mock transport that fabricates OpenAI-compatible
// streaming responses from generated lorem ipsum text. It lets examples and
// end-to-end tests exercise the full session pipeline - HTTP round trip, SSE
// framing, normalization - without real API keys or network access.
//
// Route the loopback provider through an OpenAI-compatible adapter and an
// http.Client whose Transport is a loopback.Transport. Model names select
// behavior:
//
//	lorem-fast / lorem-medium / lorem-slow   streaming speed
//	lorem-thinking                           emits reasoning deltas before text
//	lorem-cutoff                             stops with finish_reason "length"
//
// Anything not prefixed "lorem-" gets a 404 with an OpenAI-style error body.
package loopback

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"
)

// Transport implements http.RoundTripper over fabricated responses.
type Transport struct {
	generator *loremgen.Lorem

	// NoDelay disables inter-word pacing; tests set it to stream instantly.
	NoDelay bool
}

// NewTransport creates a loopback transport.
func NewTransport() *Transport {
	return &Transport{generator: loremgen.New()}
}

type chatRequest struct {
	Model     string `json:"model"`
	Stream    bool   `json:"stream"`
	MaxTokens *int   `json:"max_tokens"`
}

// streamDelay returns the delay between words based on the model name.
func (t *Transport) streamDelay(model string) time.Duration {
	if t.NoDelay {
		return 0
	}
	switch {
	case strings.Contains(model, "slow"):
		return 500 * time.Millisecond
	case strings.Contains(model, "fast"):
		return 33 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

// RoundTrip fabricates the response for one chat completions request.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	defer req.Body.Close()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}

	var cr chatRequest
	if err := json.Unmarshal(body, &cr); err != nil {
		return errorResponse(req, http.StatusBadRequest, "request body is not valid JSON"), nil
	}

	if !strings.HasPrefix(cr.Model, "lorem-") {
		return errorResponse(req, http.StatusNotFound,
			fmt.Sprintf("model '%s' not found (loopback models start with 'lorem-')", cr.Model)), nil
	}

	if !cr.Stream {
		return t.blockingResponse(req, &cr), nil
	}
	return t.streamingResponse(req, &cr), nil
}

func (t *Transport) blockingResponse(req *http.Request, cr *chatRequest) *http.Response {
	text := t.generateWords(t.targetWords(cr))
	payload, _ := json.Marshal(map[string]interface{}{
		"id":     "chatcmpl-loopback",
		"object": "chat.completion",
		"model":  cr.Model,
		"choices": []map[string]interface{}{{
			"index":         0,
			"message":       map[string]interface{}{"role": "assistant", "content": text},
			"finish_reason": "stop",
		}},
	})

	return jsonResponse(req, http.StatusOK, payload)
}

func (t *Transport) streamingResponse(req *http.Request, cr *chatRequest) *http.Response {
	pr, pw := io.Pipe()
	delay := t.streamDelay(cr.Model)
	ctx := req.Context()

	go func() {
		defer pw.Close()

		write := func(frame map[string]interface{}) bool {
			payload, _ := json.Marshal(frame)
			if _, err := fmt.Fprintf(pw, "data: %s\n\n", payload); err != nil {
				return false
			}
			if delay > 0 {
				select {
				case <-ctx.Done():
					return false
				case <-time.After(delay):
				}
			}
			return ctx.Err() == nil
		}

		if strings.Contains(cr.Model, "thinking") {
			for _, word := range strings.Fields(t.generateWords(12)) {
				if !write(chunkFrame(cr.Model, map[string]interface{}{"reasoning": word + " "})) {
					return
				}
			}
		}

		words := strings.Fields(t.generateWords(t.targetWords(cr)))
		finish := "stop"
		if strings.Contains(cr.Model, "cutoff") && len(words) > 5 {
			words = words[:5]
			finish = "length"
		}

		for _, word := range words {
			if !write(chunkFrame(cr.Model, map[string]interface{}{"content": word + " "})) {
				return
			}
		}

		final := chunkFrame(cr.Model, map[string]interface{}{})
		final["choices"].([]map[string]interface{})[0]["finish_reason"] = finish
		if !write(final) {
			return
		}

		fmt.Fprint(pw, "data: [DONE]\n\n")
	}()

	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       pr,
		Request:    req,
	}
}

func chunkFrame(model string, delta map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":     "chatcmpl-loopback",
		"object": "chat.completion.chunk",
		"model":  model,
		"choices": []map[string]interface{}{{
			"index": 0,
			"delta": delta,
		}},
	}
}

func (t *Transport) targetWords(cr *chatRequest) int {
	// 1 token ~ 1 word is close enough for a mock.
	if cr.MaxTokens != nil && *cr.MaxTokens < 30 {
		return *cr.MaxTokens
	}
	return 30
}

// generateWords generates lorem ipsum text with approximately targetWords words.
func (t *Transport) generateWords(targetWords int) string {
	var sb strings.Builder
	wordCount := 0
	for wordCount < targetWords {
		sentence := t.generator.Sentence(5, 15)
		sb.WriteString(sentence)
		sb.WriteString(" ")
		wordCount += len(strings.Fields(sentence))
	}
	return strings.TrimSpace(sb.String())
}

func errorResponse(req *http.Request, status int, message string) *http.Response {
	payload, _ := json.Marshal(map[string]interface{}{
		"error": map[string]interface{}{"code": status, "message": message},
	})
	return jsonResponse(req, status, payload)
}

func jsonResponse(req *http.Request, status int, payload []byte) *http.Response {
	return &http.Response{
		Status:        http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(strings.NewReader(string(payload))),
		ContentLength: int64(len(payload)),
		Request:       req,
	}
}
