package client

import (
	"os"
	"os/exec"

	"inferd/internal/engine"
)

// Check is one named preflight result.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Preflight runs environment checks without constructing a client. Intended
// for startup diagnostics; failures here predict which variant Connect will
// reject.
func (f *Factory) Preflight() []Check {
	var checks []Check

	if err := f.cfg.Validate(); err != nil {
		checks = append(checks, Check{Name: "config_valid", Detail: err.Error()})
	} else {
		checks = append(checks, Check{Name: "config_valid", OK: true})
	}

	checks = append(checks, Check{
		Name:   "engine_built",
		OK:     engine.Built(),
		Detail: "build with -tags=llama for in-process inference",
	})

	if f.cfg.ModelPath != "" {
		_, err := os.Stat(f.cfg.ModelPath)
		c := Check{Name: "model_path_exists", OK: err == nil}
		if err != nil {
			c.Detail = err.Error()
		}
		checks = append(checks, c)
	}

	checks = append(checks, Check{
		Name:   "remote_configured",
		OK:     f.cfg.RemoteURL != "",
		Detail: "remote_url enables the network fallback variant",
	})

	if f.cfg.EnableGPUMonitoring {
		_, err := exec.LookPath("nvidia-smi")
		c := Check{Name: "gpu_sampler_available", OK: err == nil}
		if err != nil {
			c.Detail = err.Error()
		}
		checks = append(checks, c)
	}

	return checks
}
