//go:build !llama

package engine

// This file provides a no-CGO stub compiled when the 'llama' build tag is NOT
// set, keeping default builds and CI CGO-free. The real adapter lives in
// llama.go (tagged 'llama'). The stub fails fast at Load so the factory can
// fall back to the remote variant instead of mocking inference.

import "context"

var llamaBuilt = false

type llamaAdapter struct{}

// NewLlamaAdapter returns the stub adapter in builds without llama support.
func NewLlamaAdapter() Adapter {
	return &llamaAdapter{}
}

func (a *llamaAdapter) Load(ctx context.Context, opts Options) error {
	return ErrUnavailable
}

func (a *llamaAdapter) Generate(ctx context.Context, prompt string, p Params) (Result, error) {
	return Result{}, ErrUnavailable
}

func (a *llamaAdapter) GenerateBatch(ctx context.Context, prompts []string, params []Params) []Slot {
	slots := make([]Slot, len(prompts))
	for i := range slots {
		slots[i] = Slot{Err: ErrUnavailable}
	}
	return slots
}

func (a *llamaAdapter) Close() error { return nil }
