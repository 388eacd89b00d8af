package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"inferd/internal/config"
	"inferd/internal/engine"
	"inferd/internal/gpu"
	"inferd/internal/tokens"
	"inferd/pkg/types"
)

// DirectClient drives the in-process engine. The engine's own scheduler owns
// generation-path concurrency; this layer adds no generation locking.
type DirectClient struct {
	cfg       config.Config
	adapter   engine.Adapter
	sampler   gpu.Sampler
	estimator *tokens.Estimator
	stats     *statsTracker
	log       zerolog.Logger

	mu      sync.Mutex
	ready   bool
	monitor *gpu.Monitor
}

// NewDirect constructs an unconnected direct client around the given engine
// adapter. sampler may be nil when GPU monitoring is disabled.
func NewDirect(cfg config.Config, adapter engine.Adapter, sampler gpu.Sampler, log zerolog.Logger) *DirectClient {
	cfg = cfg.WithDefaults()
	return &DirectClient{
		cfg:     cfg,
		adapter: adapter,
		sampler: sampler,
		estimator: tokens.NewEstimator(
			tokens.HeuristicCounter{CharsPerToken: cfg.CharsPerToken},
			cfg.MaxModelLen, cfg.MaxPromptTokens, cfg.SafetyMarginTokens, cfg.MinCompletionTokens),
		stats: newStatsTracker(VariantDirect),
		log:   log.With().Str("variant", string(VariantDirect)).Logger(),
	}
}

func (c *DirectClient) Variant() Variant { return VariantDirect }

// Connect validates configuration, loads the engine, and starts the GPU
// monitor. Idempotent once ready.
func (c *DirectClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}
	if err := c.cfg.Validate(); err != nil {
		return &ConfigError{Reason: err.Error()}
	}
	opts := engine.Options{
		ModelPath:            c.cfg.ModelPath,
		CtxSize:              c.cfg.MaxModelLen,
		TensorParallelSize:   c.cfg.TensorParallelSize,
		GPUMemoryUtilization: c.cfg.GPUMemoryUtilization,
		PrefixCaching:        c.cfg.EnablePrefixCaching,
		ChunkedPrefill:       c.cfg.EnableChunkedPrefill,
		MaxNumSeqs:           c.cfg.MaxNumSeqs,
		MaxNumBatchedTokens:  c.cfg.MaxNumBatchedTokens,
	}
	if err := c.adapter.Load(ctx, opts); err != nil {
		return &ConnectionError{Endpoint: "in-process engine", Err: err}
	}
	if c.cfg.EnableGPUMonitoring && c.sampler != nil {
		c.monitor = gpu.NewMonitor(gpu.MonitorConfig{
			Sampler:         c.sampler,
			Interval:        c.cfg.GPUPollInterval,
			MemoryThreshold: c.cfg.GPUMemoryThreshold,
			OnAlert: func(s gpu.Snapshot) {
				c.stats.recordGPUAlert()
				c.log.Warn().
					Float64("used_fraction", s.MemoryUsedFraction()).
					Int("free_mb", s.MemoryFreeMB).
					Msg("gpu memory threshold crossed")
			},
			Logger: c.log,
		})
		// Monitor lifetime is bound to the client, not the connect call.
		c.monitor.Start(context.Background())
	}
	c.ready = true
	c.log.Info().Str("model", c.cfg.Model).Msg("direct client connected")
	return nil
}

func (c *DirectClient) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Monitor exposes the GPU monitor for callers that gate large submissions on
// WaitForMemory. Nil when monitoring is disabled.
func (c *DirectClient) Monitor() *gpu.Monitor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.monitor
}

// GPUStatus implements the optional status-reporting hook.
func (c *DirectClient) GPUStatus() (types.GPUStatus, bool) {
	m := c.Monitor()
	if m == nil {
		return types.GPUStatus{}, false
	}
	return m.Stats().Status(), true
}

func (c *DirectClient) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	if !c.IsReady() {
		return types.GenerateResponse{}, &ModelNotLoadedError{Variant: VariantDirect}
	}
	start := time.Now()
	id := uuid.NewString()

	prompt, promptTokens, maxTokens, err := estimateRequest(c.estimator, c.cfg, req)
	if err != nil {
		c.stats.recordOverflow()
		c.stats.recordFailure(time.Since(start))
		return types.GenerateResponse{}, err
	}
	if err := c.waitCapacity(ctx); err != nil {
		c.stats.recordFailure(time.Since(start))
		return types.GenerateResponse{}, err
	}

	res, err := c.adapter.Generate(ctx, prompt, c.engineParams(req, maxTokens))
	dur := time.Since(start)
	if err != nil {
		c.stats.recordFailure(dur)
		return types.GenerateResponse{}, &GenerationError{Retryable: retryableEngineErr(err), Err: err}
	}
	resp := c.buildResponse(id, res, promptTokens, dur)
	c.stats.recordSuccess(resp.CompletionTokens, dur)
	c.log.Debug().
		Str("request_id", id).
		Int("prompt_tokens", resp.PromptTokens).
		Int("completion_tokens", resp.CompletionTokens).
		Dur("dur", dur).
		Msg("generation complete")
	return resp, nil
}

// GenerateBatch submits all admissible requests to the engine as one
// scheduling unit. Per-slot token budget failures are segregated so the rest
// of the batch still runs; the result slice stays index-aligned to reqs.
func (c *DirectClient) GenerateBatch(ctx context.Context, reqs []types.GenerateRequest) []Result {
	results := make([]Result, len(reqs))
	if !c.IsReady() {
		for i := range results {
			results[i].Err = &ModelNotLoadedError{Variant: VariantDirect}
		}
		return results
	}
	start := time.Now()

	var (
		prompts  []string
		params   []engine.Params
		pTokens  []int
		admitted []int
	)
	for i, req := range reqs {
		prompt, promptTokens, maxTokens, err := estimateRequest(c.estimator, c.cfg, req)
		if err != nil {
			c.stats.recordOverflow()
			c.stats.recordFailure(time.Since(start))
			results[i].Err = err
			continue
		}
		prompts = append(prompts, prompt)
		params = append(params, c.engineParams(req, maxTokens))
		pTokens = append(pTokens, promptTokens)
		admitted = append(admitted, i)
	}
	if len(admitted) == 0 {
		return results
	}

	if err := c.waitCapacity(ctx); err != nil {
		for _, i := range admitted {
			c.stats.recordFailure(time.Since(start))
			results[i].Err = err
		}
		return results
	}

	slots := c.adapter.GenerateBatch(ctx, prompts, params)
	dur := time.Since(start)
	for j, i := range admitted {
		if slots[j].Err != nil {
			c.stats.recordFailure(dur)
			results[i].Err = &GenerationError{Retryable: retryableEngineErr(slots[j].Err), Err: slots[j].Err}
			continue
		}
		resp := c.buildResponse(uuid.NewString(), slots[j].Result, pTokens[j], dur)
		c.stats.recordSuccess(resp.CompletionTokens, dur)
		results[i].Response = resp
	}
	return results
}

func (c *DirectClient) Stats() types.ClientStats {
	return c.stats.Snapshot()
}

// Disconnect stops the monitor and releases the engine. Idempotent.
func (c *DirectClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return nil
	}
	c.ready = false
	if c.monitor != nil {
		c.monitor.Stop()
		c.monitor = nil
	}
	err := c.adapter.Close()
	c.log.Info().Msg("direct client disconnected")
	return err
}

func (c *DirectClient) engineParams(req types.GenerateRequest, maxTokens int) engine.Params {
	s := effectiveSampling(c.cfg, req)
	return engine.Params{
		MaxTokens:   maxTokens,
		Temperature: float32(s.Temperature),
		TopP:        float32(s.TopP),
		Seed:        int(s.Seed),
		Stop:        req.Stop,
	}
}

func (c *DirectClient) buildResponse(id string, res engine.Result, promptTokens int, dur time.Duration) types.GenerateResponse {
	if res.PromptTokens > 0 {
		promptTokens = res.PromptTokens
	}
	completion := res.CompletionTokens
	if completion == 0 {
		completion = c.estimator.Count(res.Content)
	}
	reason := res.FinishReason
	if reason == "" {
		reason = "stop"
	}
	return types.GenerateResponse{
		ID:               id,
		Content:          res.Content,
		PromptTokens:     promptTokens,
		CompletionTokens: completion,
		LatencyMs:        dur.Milliseconds(),
		FinishReason:     reason,
	}
}

// waitCapacity applies the pre-flight GPU capacity check: a bounded wait for
// the configured free-memory requirement. Disabled when monitoring is off or
// no requirement is configured.
func (c *DirectClient) waitCapacity(ctx context.Context) error {
	m := c.Monitor()
	required := c.cfg.GPURequiredFreeGB
	if m == nil || required <= 0 {
		return nil
	}
	if m.CheckMemoryAvailable(required) {
		return nil
	}
	if m.WaitForMemory(ctx, required, c.cfg.GPUWaitTimeout) {
		return nil
	}
	return &GPUMemoryError{
		RequiredGB: required,
		FreeGB:     m.Stats().FreeGB(),
		Waited:     c.cfg.GPUWaitTimeout,
	}
}

// estimateRequest renders the prompt and fits the completion allowance into
// the token budget. Shared by both variants so budget enforcement cannot
// drift between them.
func estimateRequest(est *tokens.Estimator, cfg config.Config, req types.GenerateRequest) (prompt string, promptTokens, maxTokens int, err error) {
	prompt = renderPrompt(req.Messages)
	promptTokens, maxTokens, err = est.EstimatePrompt(prompt, requestedCompletion(cfg, req))
	return prompt, promptTokens, maxTokens, err
}

// retryableEngineErr classifies engine failures for the caller's retry
// policy. Deadline expiry is transient; a missing runtime or an explicit
// cancel is not.
func retryableEngineErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
