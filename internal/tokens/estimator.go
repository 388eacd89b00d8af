// Package tokens implements token budget arithmetic: prompt cost estimation
// against configured context limits and chunk planning for oversized inputs.
// Counting is behind a strategy interface so an exact tokenizer can replace
// the character-ratio heuristic without touching budget enforcement.
package tokens

import "math"

// Counter estimates the token count of a text string.
type Counter interface {
	Count(text string) int
}

// HeuristicCounter approximates tokens from byte length using a fixed
// characters-per-token ratio. The default ratio of 4 is tuned for the
// document domain this service fronts.
type HeuristicCounter struct {
	CharsPerToken float64
}

func (h HeuristicCounter) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	ratio := h.CharsPerToken
	if ratio <= 0 {
		ratio = 4
	}
	return int(math.Ceil(float64(len(text)) / ratio))
}

// Estimator performs pre-flight token budget checks.
type Estimator struct {
	counter         Counter
	maxModelLen     int
	maxPromptTokens int
	safetyMargin    int
	minCompletion   int
}

// NewEstimator constructs an Estimator. A nil counter falls back to the
// heuristic with the default ratio.
func NewEstimator(counter Counter, maxModelLen, maxPromptTokens, safetyMargin, minCompletion int) *Estimator {
	if counter == nil {
		counter = HeuristicCounter{}
	}
	return &Estimator{
		counter:         counter,
		maxModelLen:     maxModelLen,
		maxPromptTokens: maxPromptTokens,
		safetyMargin:    safetyMargin,
		minCompletion:   minCompletion,
	}
}

// Budget returns the usable token ceiling: max_model_len minus the safety margin.
func (e *Estimator) Budget() int {
	return e.maxModelLen - e.safetyMargin
}

// Count exposes the underlying counting strategy.
func (e *Estimator) Count(text string) int {
	return e.counter.Count(text)
}

// EstimatePrompt estimates the prompt's token cost and fits the requested
// completion allowance into the budget.
//
// If prompt + requested fits, the requested value is returned unchanged. If
// not, the completion allowance is reduced; a reduction below the configured
// minimum floor is rejected with ContextOverflowError carrying the exact
// excess so the caller can chunk.
func (e *Estimator) EstimatePrompt(prompt string, requestedCompletion int) (promptTokens, adjustedCompletion int, err error) {
	promptTokens = e.counter.Count(prompt)
	budget := e.Budget()

	if promptTokens+requestedCompletion <= budget {
		return promptTokens, requestedCompletion, nil
	}

	adjusted := budget - promptTokens
	if adjusted >= e.minCompletion {
		return promptTokens, adjusted, nil
	}

	return promptTokens, 0, &ContextOverflowError{
		EstimatedTokens: promptTokens,
		MaxTokens:       e.maxPromptTokens,
		ExcessTokens:    promptTokens + e.minCompletion - budget,
	}
}
