// Package engine abstracts the in-process inference engine behind a small
// adapter interface so the client layer stays testable without CGO. The real
// llama.cpp adapter is compiled with the 'llama' build tag; default builds
// get a stub that fails fast at load time.
package engine

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the engine runtime is not present in this build or
// on this host. Connection-level failures map to it via errors.Is.
var ErrUnavailable = errors.New("inference engine unavailable")

// Built reports whether this binary carries the real llama runtime.
func Built() bool { return llamaBuilt }

// Params captures sampling parameters for one generation. Values are already
// normalized by the caller; the adapter applies them verbatim.
type Params struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
	Seed        int
	Stop        []string
}

// Result summarizes one completed generation.
type Result struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	FinishReason     string
}

// Slot is one index-aligned entry of a batch result.
type Slot struct {
	Result Result
	Err    error
}

// Options carries engine construction tunables.
type Options struct {
	ModelPath            string
	CtxSize              int
	Threads              int
	TensorParallelSize   int
	GPUMemoryUtilization float64
	PrefixCaching        bool
	ChunkedPrefill       bool
	MaxNumSeqs           int
	MaxNumBatchedTokens  int
}

// Adapter is the engine handle. It is an effectively singleton, scarce
// resource: the client factory constructs at most one per process.
type Adapter interface {
	// Load initializes the engine with the given options. It must be called
	// once before any generation.
	Load(ctx context.Context, opts Options) error
	// Generate runs a single completion.
	Generate(ctx context.Context, prompt string, p Params) (Result, error)
	// GenerateBatch submits all prompts as one scheduling unit so the engine
	// can exploit internal batching. params is index-aligned to prompts, as
	// is the returned slice; per-slot failures do not discard other slots.
	GenerateBatch(ctx context.Context, prompts []string, params []Params) []Slot
	// Close releases the engine. Idempotent.
	Close() error
}
