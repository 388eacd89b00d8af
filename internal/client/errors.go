package client

import (
	"errors"
	"fmt"
	"time"
)

// ConfigError signals structurally invalid configuration at construction.
// Fatal: never retried and never triggers fallback on its own.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "invalid configuration: " + e.Reason }

// IsConfig reports whether err is a ConfigError.
func IsConfig(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// ConnectionError signals that the engine or remote endpoint is unreachable.
// The factory reacts to it by attempting the fallback variant.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("connection failed: %v", e.Err)
	}
	return fmt.Sprintf("connection to %s failed: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnection reports whether err is a ConnectionError.
func IsConnection(err error) bool {
	var e *ConnectionError
	return errors.As(err, &e)
}

// ModelNotLoadedError signals generation attempted before a successful
// Connect. Programmer error; surfaced immediately.
type ModelNotLoadedError struct {
	Variant Variant
}

func (e *ModelNotLoadedError) Error() string {
	return fmt.Sprintf("%s client not connected: call Connect before Generate", e.Variant)
}

// IsModelNotLoaded reports whether err is a ModelNotLoadedError.
func IsModelNotLoaded(err error) bool {
	var e *ModelNotLoadedError
	return errors.As(err, &e)
}

// GPUMemoryError signals that GPU capacity stayed unavailable through a
// bounded wait. The caller may retry after backoff.
type GPUMemoryError struct {
	RequiredGB float64
	FreeGB     float64
	Waited     time.Duration
}

func (e *GPUMemoryError) Error() string {
	return fmt.Sprintf("gpu memory unavailable: need %.1f GB, %.1f GB free after %s",
		e.RequiredGB, e.FreeGB, e.Waited)
}

// IsGPUMemory reports whether err is a GPUMemoryError.
func IsGPUMemory(err error) bool {
	var e *GPUMemoryError
	return errors.As(err, &e)
}

// GenerationError signals an engine-side failure during decoding. Retryable
// is the sole signal for caller-side retry policy; this layer implements no
// retry loops itself.
type GenerationError struct {
	Retryable bool
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (retryable=%t): %v", e.Retryable, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsGeneration reports whether err is a GenerationError.
func IsGeneration(err error) bool {
	var e *GenerationError
	return errors.As(err, &e)
}

// IsRetryable reports whether err is a GenerationError marked retryable, or a
// GPUMemoryError (retryable by definition after backoff).
func IsRetryable(err error) bool {
	var g *GenerationError
	if errors.As(err, &g) {
		return g.Retryable
	}
	return IsGPUMemory(err)
}
