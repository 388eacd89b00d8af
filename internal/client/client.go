package client

import (
	"context"

	"inferd/pkg/types"
)

// Variant identifies a concrete client implementation.
type Variant string

const (
	VariantDirect Variant = "direct"
	VariantRemote Variant = "remote"
)

// Result is one index-aligned entry of a batch. Exactly one of Response and
// Err carries meaning; the batch contract segregates per-slot failures so a
// partially failing batch keeps its successful slots.
type Result struct {
	Response types.GenerateResponse
	Err      error
}

// Client is the uniform contract over the direct (in-process engine) and
// remote (network endpoint) variants. Callers depend only on this interface.
type Client interface {
	// Connect establishes readiness. It fails with ConnectionError when the
	// target engine/endpoint is unreachable and ConfigError when the
	// configuration violates its invariants.
	Connect(ctx context.Context) error
	// IsReady is a non-blocking readiness check.
	IsReady() bool
	// Variant reports the concrete implementation identity.
	Variant() Variant
	// Generate runs a single completion. The request is never mutated; the
	// client derives adjusted parameters. Fails with ModelNotLoadedError
	// before Connect, ContextOverflowError when the token budget cannot be
	// satisfied after completion-length reduction, GPUMemoryError when
	// capacity stays unavailable through the bounded wait, and
	// GenerationError on engine failure.
	Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error)
	// GenerateBatch returns one Result per request, index-aligned to the
	// input regardless of internal completion order.
	GenerateBatch(ctx context.Context, reqs []types.GenerateRequest) []Result
	// Stats snapshots the client counters; safe to call concurrently with
	// in-flight generation.
	Stats() types.ClientStats
	// Disconnect releases resources. Idempotent.
	Disconnect() error
}

// GPUReporter is an optional interface implemented by clients that expose GPU
// telemetry (the direct variant when monitoring is enabled).
type GPUReporter interface {
	GPUStatus() (types.GPUStatus, bool)
}
