// Package config loads the execution core's runtime settings from YAML
// (or JSON), following the parse -> expand-env -> decode -> defaults ->
// validate pipeline of hector's pkg/config/loader.go.
package config

import (
	"context"
	"fmt"

	"github.com/kadirpekel/execore/event"
	"github.com/kadirpekel/execore/execctx"
	"github.com/kadirpekel/execore/flow"
	"github.com/kadirpekel/execore/telemetry"
)

// FlowConfig governs the flow combinators' defaults.
type FlowConfig struct {
	// MaxIterations caps a DoWhile that doesn't set its own limit.
	MaxIterations int `yaml:"max_iterations"`
	// MaxWorkers bounds a ParallelList that doesn't set its own cap.
	// Zero means unbounded.
	MaxWorkers int `yaml:"max_workers"`
}

// Config is the root configuration document.
type Config struct {
	// Debug turns on the per-context debug data scope.
	Debug bool `yaml:"debug"`
	// WorkerPoolSize sizes the listener-dispatch worker pools. Zero
	// picks a size from GOMAXPROCS.
	WorkerPoolSize int `yaml:"worker_pool_size"`

	Flow   FlowConfig             `yaml:"flow"`
	Tracer telemetry.TracerConfig `yaml:"tracer"`
}

// SetDefaults fills zero-valued fields with their documented defaults.
func (c *Config) SetDefaults() {
	if c.Flow.MaxIterations == 0 {
		c.Flow.MaxIterations = flow.DefaultMaxIterations
	}
	if c.Tracer.SamplingRate == 0 {
		c.Tracer.SamplingRate = 1
	}
	if c.Tracer.ServiceName == "" {
		c.Tracer.ServiceName = "execore"
	}
}

// Validate rejects configurations no runtime component could honor.
func (c *Config) Validate() error {
	if c.WorkerPoolSize < 0 {
		return fmt.Errorf("config: worker_pool_size must be >= 0, got %d", c.WorkerPoolSize)
	}
	if c.Flow.MaxIterations < 0 {
		return fmt.Errorf("config: flow.max_iterations must be >= 0, got %d", c.Flow.MaxIterations)
	}
	if c.Flow.MaxWorkers < 0 {
		return fmt.Errorf("config: flow.max_workers must be >= 0, got %d", c.Flow.MaxWorkers)
	}
	if c.Tracer.SamplingRate < 0 || c.Tracer.SamplingRate > 1 {
		return fmt.Errorf("config: tracer.sampling_rate must be in [0, 1], got %g", c.Tracer.SamplingRate)
	}
	switch c.Tracer.Exporter {
	case "", "otlpgrpc", "stdout":
	default:
		return fmt.Errorf("config: tracer.exporter must be \"otlpgrpc\" or \"stdout\", got %q", c.Tracer.Exporter)
	}
	return nil
}

// Apply installs c's settings into the running process: the debug flag,
// worker pool sizing, flow combinator defaults, and (when enabled) the
// OpenTelemetry tracer provider.
func (c *Config) Apply(ctx context.Context) error {
	if c.Debug {
		execctx.EnableDebug()
	} else {
		execctx.DisableDebug()
	}
	event.SetDefaultPoolSize(c.WorkerPoolSize)
	flow.SetDefaultMaxIterations(c.Flow.MaxIterations)
	flow.SetDefaultMaxWorkers(c.Flow.MaxWorkers)

	if _, err := telemetry.InitTracer(ctx, c.Tracer); err != nil {
		return fmt.Errorf("config: init tracer: %w", err)
	}
	return nil
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}
