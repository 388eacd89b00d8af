package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"inferd/internal/config"
	"inferd/internal/engine"
	"inferd/internal/gpu"
)

// fakeEngine is a deterministic in-memory engine for tests: identical prompt
// and params always produce identical content.
type fakeEngine struct {
	loadErr error
	genErr  error

	mu         sync.Mutex
	loadCalls  int
	batchCalls int
	closeCalls int
}

func (f *fakeEngine) Load(ctx context.Context, opts engine.Options) error {
	f.mu.Lock()
	f.loadCalls++
	f.mu.Unlock()
	return f.loadErr
}

func (f *fakeEngine) Generate(ctx context.Context, prompt string, p engine.Params) (engine.Result, error) {
	if f.genErr != nil {
		return engine.Result{}, f.genErr
	}
	content := fmt.Sprintf("out seed=%d temp=%g len=%d", p.Seed, p.Temperature, len(prompt))
	return engine.Result{
		Content:          content,
		PromptTokens:     len(prompt) / 4,
		CompletionTokens: 7,
		FinishReason:     "stop",
	}, nil
}

func (f *fakeEngine) GenerateBatch(ctx context.Context, prompts []string, params []engine.Params) []engine.Slot {
	f.mu.Lock()
	f.batchCalls++
	f.mu.Unlock()
	slots := make([]engine.Slot, len(prompts))
	for i := range prompts {
		res, err := f.Generate(ctx, prompts[i], params[i])
		slots[i] = engine.Slot{Result: res, Err: err}
	}
	return slots
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	f.closeCalls++
	f.mu.Unlock()
	return nil
}

// countingEngine wraps fakeEngine with an atomic load counter for concurrency
// tests.
type countingEngine struct {
	fakeEngine
	loads atomic.Int64
}

func (c *countingEngine) Load(ctx context.Context, opts engine.Options) error {
	c.loads.Add(1)
	return c.fakeEngine.Load(ctx, opts)
}

// fakeDeviceSampler serves a swappable snapshot through the gpu.Sampler
// interface.
type fakeDeviceSampler struct {
	mu   sync.Mutex
	snap gpu.Snapshot
}

func newFakeDeviceSampler(s gpu.Snapshot) *fakeDeviceSampler {
	return &fakeDeviceSampler{snap: s}
}

func (f *fakeDeviceSampler) set(s gpu.Snapshot) {
	f.mu.Lock()
	f.snap = s
	f.mu.Unlock()
}

func (f *fakeDeviceSampler) Sample(ctx context.Context) (gpu.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, nil
}

func testConfig() config.Config {
	return config.Config{
		Model:               "extractor-7b",
		ModelPath:           "/tmp/extractor-7b.gguf",
		MaxModelLen:         32768,
		MaxPromptTokens:     28000,
		MaxCompletionTokens: 4096,
		SafetyMarginTokens:  2000,
		MinCompletionTokens: 256,
		Seed:                42,
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
