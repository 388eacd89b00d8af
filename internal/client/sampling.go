package client

import (
	"strings"

	"inferd/internal/config"
	"inferd/pkg/types"
)

// sampling holds the effective sampling parameters for one request.
type sampling struct {
	Temperature float64
	TopP        float64 // 0 means engine default
	Seed        int64
}

// effectiveSampling normalizes a request's sampling parameters to the
// configuration's fixed deterministic values, so identical messages produce
// byte-identical output across calls. Caller-supplied overrides are honored
// only when allow_sampling_overrides is set.
func effectiveSampling(cfg config.Config, req types.GenerateRequest) sampling {
	s := sampling{
		Temperature: cfg.DefaultTemperature,
		Seed:        cfg.Seed,
	}
	if !cfg.AllowSamplingOverrides {
		return s
	}
	if req.Temperature != nil {
		s.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		s.TopP = *req.TopP
	}
	if req.Seed != nil {
		s.Seed = *req.Seed
	}
	return s
}

// requestedCompletion resolves the completion allowance for a request,
// defaulting to and clamped by max_completion_tokens.
func requestedCompletion(cfg config.Config, req types.GenerateRequest) int {
	n := req.MaxTokens
	if n <= 0 || n > cfg.MaxCompletionTokens {
		n = cfg.MaxCompletionTokens
	}
	return n
}

// renderPrompt flattens chat messages into the text prompt handed to the
// engine. The remote variant sends messages verbatim; this rendering is only
// for the in-process path and for token estimation.
func renderPrompt(msgs []types.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("assistant: ")
	return b.String()
}
