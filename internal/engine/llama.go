//go:build llama

package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaAdapter drives llama.cpp in-process. The engine's own scheduler owns
// generation-path concurrency; this layer only guards the handle lifecycle.
type llamaAdapter struct {
	mu    sync.Mutex
	model *llama.LLama
	opts  Options
}

// NewLlamaAdapter returns the in-process llama.cpp adapter.
func NewLlamaAdapter() Adapter {
	return &llamaAdapter{}
}

func (a *llamaAdapter) Load(ctx context.Context, opts Options) error {
	if strings.TrimSpace(opts.ModelPath) == "" {
		return fmt.Errorf("%w: model path is empty", ErrUnavailable)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.model != nil {
		return nil
	}
	mo := []llama.ModelOption{
		llama.SetContext(opts.CtxSize),
	}
	if opts.TensorParallelSize > 1 {
		mo = append(mo, llama.SetGPULayers(-1))
	}
	m, err := llama.New(opts.ModelPath, mo...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	a.model = m
	a.opts = opts
	return nil
}

func (a *llamaAdapter) Generate(ctx context.Context, prompt string, p Params) (Result, error) {
	a.mu.Lock()
	m := a.model
	a.mu.Unlock()
	if m == nil {
		return Result{}, ErrUnavailable
	}
	m.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	})
	text, err := m.Predict(prompt, mapParams(p, a.opts.Threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, err
	}
	return Result{Content: text, FinishReason: "stop"}, nil
}

func (a *llamaAdapter) GenerateBatch(ctx context.Context, prompts []string, params []Params) []Slot {
	// The llama.cpp handle processes the unit sequentially under its own
	// scheduler; per-slot failures are recorded without aborting the unit.
	slots := make([]Slot, len(prompts))
	for i, prompt := range prompts {
		if err := ctx.Err(); err != nil {
			slots[i] = Slot{Err: err}
			continue
		}
		res, err := a.Generate(ctx, prompt, params[i])
		slots[i] = Slot{Result: res, Err: err}
	}
	return slots
}

func (a *llamaAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.model != nil {
		a.model.Free()
		a.model = nil
	}
	return nil
}

func mapParams(p Params, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(maxInt(1, p.MaxTokens)),
		llama.SetThreads(maxInt(1, threads)),
		llama.SetTemperature(p.Temperature),
	}
	if p.TopP > 0 {
		po = append(po, llama.SetTopP(p.TopP))
	}
	if p.Seed != 0 {
		po = append(po, llama.SetSeed(p.Seed))
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
