package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"inferd/internal/config"
	"inferd/internal/engine"
	"inferd/internal/gpu"
)

// Factory constructs and connects clients, implementing the fallback policy.
// The engine handle is a scarce, effectively singleton resource, so the
// factory serializes construction and never creates a second direct client.
type Factory struct {
	mu  sync.Mutex
	cfg config.Config
	log zerolog.Logger

	// Construction hooks. Tests substitute fakes; production uses the llama
	// adapter and the nvidia-smi sampler.
	NewEngine  func() engine.Adapter
	NewSampler func() gpu.Sampler

	direct *DirectClient
}

// NewFactory returns a Factory over the given configuration.
func NewFactory(cfg config.Config, log zerolog.Logger) *Factory {
	return &Factory{
		cfg:        cfg.WithDefaults(),
		log:        log,
		NewEngine:  engine.NewLlamaAdapter,
		NewSampler: func() gpu.Sampler { return &gpu.SMISampler{} },
	}
}

// CreateClient connects the preferred variant, falling back to the other one
// on connection or configuration failure when enableFallback is set. A client
// is returned only fully connected; if both variants fail the error
// aggregates both causes.
func (f *Factory) CreateClient(ctx context.Context, preferred Variant, enableFallback bool) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, err := f.build(ctx, preferred)
	if err == nil {
		return c, nil
	}
	if !enableFallback || !(IsConnection(err) || IsConfig(err)) {
		return nil, err
	}

	other := VariantRemote
	if preferred == VariantRemote {
		other = VariantDirect
	}
	f.log.Warn().Err(err).
		Str("preferred", string(preferred)).
		Str("fallback", string(other)).
		Msg("preferred variant unavailable, falling back")

	c, err2 := f.build(ctx, other)
	if err2 == nil {
		return c, nil
	}
	return nil, &ConnectionError{Err: errors.Join(err, err2)}
}

func (f *Factory) build(ctx context.Context, v Variant) (Client, error) {
	switch v {
	case VariantDirect:
		if f.direct != nil && f.direct.IsReady() {
			return f.direct, nil
		}
		var sampler gpu.Sampler
		if f.cfg.EnableGPUMonitoring {
			sampler = f.NewSampler()
		}
		c := NewDirect(f.cfg, f.NewEngine(), sampler, f.log)
		if err := c.Connect(ctx); err != nil {
			// A partially initialized client is never observable.
			return nil, err
		}
		f.direct = c
		return c, nil
	case VariantRemote:
		c := NewRemote(f.cfg, f.log)
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown client variant %q", v)}
	}
}
