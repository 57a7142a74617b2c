package gemini

import (
	llmstream "github.com/jinyang6/chatanyllm"
)

// generateRequest represents a Gemini generateContent request.
type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role"` // "user", "model"
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`

	// Thought marks this part as model reasoning rather than answer text.
	Thought bool `json:"thought,omitempty"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// generateResponse covers both streaming chunks and the non-streaming body;
// Gemini uses the same candidate shape for both.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// mapFinishReason normalizes a Gemini finishReason to the library vocabulary.
func mapFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION", "PROHIBITED_CONTENT", "BLOCKLIST":
		return "content_filter"
	case "":
		return ""
	default:
		return reason
	}
}

// mapContents converts library messages to Gemini contents. Gemini has no
// system role: system messages are folded into the text of the first user
// message; "assistant" maps to "model" and every other role to "user".
func mapContents(messages []llmstream.Message) []content {
	var system string
	out := make([]content, 0, len(messages))

	for _, m := range messages {
		if m.Role == llmstream.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Text()
			continue
		}

		role := "user"
		if m.Role == llmstream.RoleAssistant {
			role = "model"
		}

		out = append(out, content{
			Role:  role,
			Parts: []part{{Text: m.Text()}},
		})
	}

	if system != "" {
		folded := false
		for i := range out {
			if out[i].Role == "user" {
				out[i].Parts[0].Text = system + "\n\n" + out[i].Parts[0].Text
				folded = true
				break
			}
		}
		if !folded {
			out = append([]content{{Role: "user", Parts: []part{{Text: system}}}}, out...)
		}
	}

	return out
}
