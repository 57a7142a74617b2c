package llmstream

import "fmt"

// Params represents optional sampling parameters shared across providers.
// All fields are pointers to distinguish "not set" from "set to zero value";
// provider adapters extract what their wire format supports.
type Params struct {
	// MaxTokens sets the maximum number of tokens to generate
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-2.0)
	Temperature *float64 `json:"temperature,omitempty"`

	// TopP (nucleus sampling) - cumulative probability cutoff (0.0-1.0)
	TopP *float64 `json:"top_p,omitempty"`

	// TopK limits sampling to top K tokens (Anthropic, Gemini)
	TopK *int `json:"top_k,omitempty"`

	// FrequencyPenalty reduces repetition of token sequences (-2.0 to 2.0, OpenAI-compatible)
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`

	// PresencePenalty reduces repetition of topics (-2.0 to 2.0, OpenAI-compatible)
	PresencePenalty *float64 `json:"presence_penalty,omitempty"`

	// Stop sequences - generation stops if any of these are generated
	Stop []string `json:"stop,omitempty"`
}

// GetMaxTokens returns max_tokens with default fallback
func (p *Params) GetMaxTokens(defaultValue int) int {
	if p != nil && p.MaxTokens != nil {
		return *p.MaxTokens
	}
	return defaultValue
}

// GetTemperature returns temperature with default fallback
func (p *Params) GetTemperature(defaultValue float64) float64 {
	if p != nil && p.Temperature != nil {
		return *p.Temperature
	}
	return defaultValue
}

// ValidateParams validates parameter ranges. A nil Params is valid.
func ValidateParams(p *Params) error {
	if p == nil {
		return nil
	}

	if p.Temperature != nil {
		if *p.Temperature < 0.0 || *p.Temperature > 2.0 {
			return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", *p.Temperature)
		}
	}

	if p.TopP != nil {
		if *p.TopP < 0.0 || *p.TopP > 1.0 {
			return fmt.Errorf("top_p must be between 0.0 and 1.0, got %f", *p.TopP)
		}
	}

	if p.TopK != nil {
		if *p.TopK < 0 {
			return fmt.Errorf("top_k must be non-negative, got %d", *p.TopK)
		}
	}

	if p.MaxTokens != nil {
		if *p.MaxTokens < 1 {
			return fmt.Errorf("max_tokens must be positive, got %d", *p.MaxTokens)
		}
	}

	if p.FrequencyPenalty != nil {
		if *p.FrequencyPenalty < -2.0 || *p.FrequencyPenalty > 2.0 {
			return fmt.Errorf("frequency_penalty must be between -2.0 and 2.0, got %f", *p.FrequencyPenalty)
		}
	}

	if p.PresencePenalty != nil {
		if *p.PresencePenalty < -2.0 || *p.PresencePenalty > 2.0 {
			return fmt.Errorf("presence_penalty must be between -2.0 and 2.0, got %f", *p.PresencePenalty)
		}
	}

	return nil
}
