package types

// Message is a single role/content pair in a chat-style prompt.
type Message struct {
	// Role of the author: system, user, or assistant.
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
}

// GenerateRequest represents a single generation request payload.
// Sampling fields are optional overrides; whether they are honored depends on
// the allow_sampling_overrides configuration flag.
type GenerateRequest struct {
	// Ordered conversation messages forming the prompt.
	Messages []Message `json:"messages"`
	// Maximum number of completion tokens requested.
	MaxTokens int `json:"max_tokens,omitempty"`
	// Optional sampling temperature override.
	Temperature *float64 `json:"temperature,omitempty"`
	// Optional nucleus sampling override.
	TopP *float64 `json:"top_p,omitempty"`
	// Optional seed override.
	Seed *int64 `json:"seed,omitempty"`
	// Optional stop sequences.
	Stop []string `json:"stop,omitempty"`
}

// GenerateResponse is the result of a completed generation.
type GenerateResponse struct {
	// ID uniquely identifies this generation for log correlation.
	ID string `json:"id"`
	// Generated completion text.
	Content string `json:"content"`
	// Token accounting.
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	// Wall-clock latency in milliseconds.
	LatencyMs int64 `json:"latency_ms"`
	// Why generation stopped: stop, length, or error.
	FinishReason string `json:"finish_reason"`
}

// BatchSlot is one index-aligned entry of a batch response. Exactly one of
// Response and Error is set.
type BatchSlot struct {
	Index    int               `json:"index"`
	Response *GenerateResponse `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// BatchResponse wraps per-slot results for POST /v1/batch.
type BatchResponse struct {
	Results []BatchSlot `json:"results"`
	// Number of slots that succeeded / failed.
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
	// Retryable hints whether the caller may retry after backoff.
	Retryable bool `json:"retryable,omitempty"`
}
