package config

import (
	"fmt"
	"time"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxModelLen         = 32768
	defaultMaxPromptTokens     = 28000
	defaultMaxCompletionTokens = 4096
	defaultTemperature         = 0.0
	defaultSeed                = 42
	defaultSafetyMarginTokens  = 2000
	defaultMinCompletionTokens = 256
	defaultCharsPerToken       = 4.0
	defaultTensorParallelSize  = 1
	defaultMaxNumSeqs          = 16
	defaultMaxNumBatchedTokens = 32768
	defaultGPUMemoryTarget     = 0.90
	defaultGPUMemoryThreshold  = 0.90
	defaultGPUPollInterval     = 2 * time.Second
	defaultRemoteTimeout       = 120 * time.Second
	defaultRemoteConnTimeout   = 5 * time.Second
	defaultRemoteMaxInFlight   = 4
)

// Config holds runtime parameters for the service. It is populated once at
// startup and treated as immutable afterwards.
// Zero values mean "unspecified" and are replaced by defaults in WithDefaults.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	// Model identity and context limits.
	Model               string `json:"model" yaml:"model" toml:"model"`
	ModelPath           string `json:"model_path" yaml:"model_path" toml:"model_path"`
	MaxModelLen         int    `json:"max_model_len" yaml:"max_model_len" toml:"max_model_len"`
	MaxPromptTokens     int    `json:"max_prompt_tokens" yaml:"max_prompt_tokens" toml:"max_prompt_tokens"`
	MaxCompletionTokens int    `json:"max_completion_tokens" yaml:"max_completion_tokens" toml:"max_completion_tokens"`

	// Token budget tuning.
	SafetyMarginTokens  int     `json:"safety_margin_tokens" yaml:"safety_margin_tokens" toml:"safety_margin_tokens"`
	MinCompletionTokens int     `json:"min_completion_tokens" yaml:"min_completion_tokens" toml:"min_completion_tokens"`
	CharsPerToken       float64 `json:"chars_per_token" yaml:"chars_per_token" toml:"chars_per_token"`

	// Deterministic sampling. Caller-supplied overrides are honored only when
	// AllowSamplingOverrides is set.
	Seed                   int64   `json:"seed" yaml:"seed" toml:"seed"`
	DefaultTemperature     float64 `json:"default_temperature" yaml:"default_temperature" toml:"default_temperature"`
	AllowSamplingOverrides bool    `json:"allow_sampling_overrides" yaml:"allow_sampling_overrides" toml:"allow_sampling_overrides"`

	// Engine tunables.
	GPUMemoryUtilization float64 `json:"gpu_memory_utilization" yaml:"gpu_memory_utilization" toml:"gpu_memory_utilization"`
	TensorParallelSize   int     `json:"tensor_parallel_size" yaml:"tensor_parallel_size" toml:"tensor_parallel_size"`
	EnablePrefixCaching  bool    `json:"enable_prefix_caching" yaml:"enable_prefix_caching" toml:"enable_prefix_caching"`
	EnableChunkedPrefill bool    `json:"enable_chunked_prefill" yaml:"enable_chunked_prefill" toml:"enable_chunked_prefill"`
	MaxNumSeqs           int     `json:"max_num_seqs" yaml:"max_num_seqs" toml:"max_num_seqs"`
	MaxNumBatchedTokens  int     `json:"max_num_batched_tokens" yaml:"max_num_batched_tokens" toml:"max_num_batched_tokens"`

	// GPU monitoring.
	EnableGPUMonitoring bool          `json:"enable_gpu_monitoring" yaml:"enable_gpu_monitoring" toml:"enable_gpu_monitoring"`
	GPUMemoryThreshold  float64       `json:"gpu_memory_threshold" yaml:"gpu_memory_threshold" toml:"gpu_memory_threshold"`
	GPUPollInterval     time.Duration `json:"gpu_poll_interval" yaml:"gpu_poll_interval" toml:"gpu_poll_interval"`
	// Minimum free GPU memory (GB) required before submitting a request.
	// Zero disables the pre-flight capacity check.
	GPURequiredFreeGB float64 `json:"gpu_required_free_gb" yaml:"gpu_required_free_gb" toml:"gpu_required_free_gb"`
	// Bounded wait applied when the pre-flight capacity check fails.
	GPUWaitTimeout time.Duration `json:"gpu_wait_timeout" yaml:"gpu_wait_timeout" toml:"gpu_wait_timeout"`

	// Remote endpoint (chat-completion contract).
	RemoteURL            string        `json:"remote_url" yaml:"remote_url" toml:"remote_url"`
	RemoteAPIKey         string        `json:"remote_api_key" yaml:"remote_api_key" toml:"remote_api_key"`
	RemoteTimeout        time.Duration `json:"remote_timeout" yaml:"remote_timeout" toml:"remote_timeout"`
	RemoteConnectTimeout time.Duration `json:"remote_connect_timeout" yaml:"remote_connect_timeout" toml:"remote_connect_timeout"`
	// Maximum concurrent in-flight requests during batch fan-out.
	RemoteMaxInFlight int `json:"remote_max_in_flight" yaml:"remote_max_in_flight" toml:"remote_max_in_flight"`
}

// WithDefaults returns a copy of c with unset fields replaced by package
// defaults. It does not mutate the receiver.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MaxModelLen <= 0 {
		c.MaxModelLen = defaultMaxModelLen
	}
	if c.MaxPromptTokens <= 0 {
		c.MaxPromptTokens = defaultMaxPromptTokens
	}
	if c.MaxCompletionTokens <= 0 {
		c.MaxCompletionTokens = defaultMaxCompletionTokens
	}
	if c.SafetyMarginTokens <= 0 {
		c.SafetyMarginTokens = defaultSafetyMarginTokens
	}
	if c.MinCompletionTokens <= 0 {
		c.MinCompletionTokens = defaultMinCompletionTokens
	}
	if c.CharsPerToken <= 0 {
		c.CharsPerToken = defaultCharsPerToken
	}
	if c.Seed == 0 {
		c.Seed = defaultSeed
	}
	if c.GPUMemoryUtilization <= 0 {
		c.GPUMemoryUtilization = defaultGPUMemoryTarget
	}
	if c.TensorParallelSize <= 0 {
		c.TensorParallelSize = defaultTensorParallelSize
	}
	if c.MaxNumSeqs <= 0 {
		c.MaxNumSeqs = defaultMaxNumSeqs
	}
	if c.MaxNumBatchedTokens <= 0 {
		c.MaxNumBatchedTokens = defaultMaxNumBatchedTokens
	}
	if c.GPUMemoryThreshold <= 0 {
		c.GPUMemoryThreshold = defaultGPUMemoryThreshold
	}
	if c.GPUPollInterval <= 0 {
		c.GPUPollInterval = defaultGPUPollInterval
	}
	if c.GPUWaitTimeout <= 0 {
		c.GPUWaitTimeout = 10 * time.Second
	}
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = defaultRemoteTimeout
	}
	if c.RemoteConnectTimeout <= 0 {
		c.RemoteConnectTimeout = defaultRemoteConnTimeout
	}
	if c.RemoteMaxInFlight <= 0 {
		c.RemoteMaxInFlight = defaultRemoteMaxInFlight
	}
	return c
}

// Validate checks structural invariants. It assumes defaults have been applied.
func (c Config) Validate() error {
	if c.MaxPromptTokens+c.MaxCompletionTokens > c.MaxModelLen {
		return fmt.Errorf("max_prompt_tokens (%d) + max_completion_tokens (%d) exceeds max_model_len (%d)",
			c.MaxPromptTokens, c.MaxCompletionTokens, c.MaxModelLen)
	}
	if c.SafetyMarginTokens >= c.MaxModelLen {
		return fmt.Errorf("safety_margin_tokens (%d) must be smaller than max_model_len (%d)",
			c.SafetyMarginTokens, c.MaxModelLen)
	}
	if c.GPUMemoryUtilization > 1.0 {
		return fmt.Errorf("gpu_memory_utilization (%v) must be in (0, 1]", c.GPUMemoryUtilization)
	}
	if c.GPUMemoryThreshold > 1.0 {
		return fmt.Errorf("gpu_memory_threshold (%v) must be in (0, 1]", c.GPUMemoryThreshold)
	}
	return nil
}
