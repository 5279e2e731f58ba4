package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/execore/execctx"
	"github.com/kadirpekel/execore/flow"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("debug: true\n"))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, flow.DefaultMaxIterations, cfg.Flow.MaxIterations)
	assert.Equal(t, 1.0, cfg.Tracer.SamplingRate)
	assert.Equal(t, "execore", cfg.Tracer.ServiceName)
}

func TestParseFullDocument(t *testing.T) {
	doc := `
debug: false
worker_pool_size: 8
flow:
  max_iterations: 25
  max_workers: 4
tracer:
  enabled: true
  exporter: stdout
  sampling_rate: 0.5
  service_name: myservice
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.WorkerPoolSize)
	assert.Equal(t, 25, cfg.Flow.MaxIterations)
	assert.Equal(t, 4, cfg.Flow.MaxWorkers)
	assert.True(t, cfg.Tracer.Enabled)
	assert.Equal(t, "stdout", cfg.Tracer.Exporter)
	assert.Equal(t, 0.5, cfg.Tracer.SamplingRate)
	assert.Equal(t, "myservice", cfg.Tracer.ServiceName)
}

func TestParseJSONFallback(t *testing.T) {
	cfg, err := Parse([]byte(`{"worker_pool_size": 3}`))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.WorkerPoolSize)
}

func TestParseExpandsEnvVars(t *testing.T) {
	t.Setenv("EXECORE_TEST_SERVICE", "from-env")

	doc := `
tracer:
  service_name: ${EXECORE_TEST_SERVICE}
  endpoint_url: ${EXECORE_TEST_MISSING:-localhost:4317}
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Tracer.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Tracer.EndpointURL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"negative pool size", "worker_pool_size: -1"},
		{"negative max workers", "flow:\n  max_workers: -2"},
		{"sampling rate above one", "tracer:\n  sampling_rate: 2.0"},
		{"unknown exporter", "tracer:\n  exporter: jaeger"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "execore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flow:\n  max_iterations: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Flow.MaxIterations)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyInstallsRuntimeSettings(t *testing.T) {
	cfg := Default()
	cfg.Flow.MaxIterations = 3
	require.NoError(t, cfg.Apply(context.Background()))
	defer func() {
		require.NoError(t, Default().Apply(context.Background()))
	}()

	calls := 0
	d, err := flow.NewDoWhile(flow.Config{
		Name: "config-apply-loop",
		Inner: func(n float64) (float64, error) {
			calls++
			return n + 1, nil
		},
		StopCondition: func(_ *execctx.Context, _ any) bool { return false },
	})
	require.NoError(t, err)

	_, err = d.Call(nil, map[string]any{"input": float64(0)})
	require.Error(t, err)

	var flowErr *flow.Error
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, flow.KindMaxIterationsExceeded, flowErr.Kind)
	assert.Equal(t, 3, calls)
}
