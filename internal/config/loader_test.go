package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/kventity/internal/config"
)

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	t.Run("valid tikv config", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.LoadFromReader(strings.NewReader(`
engine:
  backend: tikv
  pd_endpoints:
    - "127.0.0.1:2379"
codec: json
observability:
  metrics_addr: ":9464"
  log_level: debug
`))
		if err != nil {
			t.Fatalf("LoadFromReader: unexpected error: %v", err)
		}
		if cfg.Engine.Backend != "tikv" {
			t.Fatalf("Backend: expected tikv, got %q", cfg.Engine.Backend)
		}
		if len(cfg.Engine.PDEndpoints) != 1 || cfg.Engine.PDEndpoints[0] != "127.0.0.1:2379" {
			t.Fatalf("PDEndpoints: unexpected %v", cfg.Engine.PDEndpoints)
		}
	})

	t.Run("tikv without pd endpoints fails", func(t *testing.T) {
		t.Parallel()
		_, err := config.LoadFromReader(strings.NewReader(`
engine:
  backend: tikv
`))
		if err == nil {
			t.Fatal("LoadFromReader: expected validation error")
		}
	})

	t.Run("postgres without dsn fails", func(t *testing.T) {
		t.Parallel()
		_, err := config.LoadFromReader(strings.NewReader(`
engine:
  backend: postgres
`))
		if err == nil {
			t.Fatal("LoadFromReader: expected validation error")
		}
	})

	t.Run("unknown backend fails", func(t *testing.T) {
		t.Parallel()
		_, err := config.LoadFromReader(strings.NewReader(`
engine:
  backend: redis
`))
		if err == nil {
			t.Fatal("LoadFromReader: expected validation error")
		}
	})

	t.Run("unknown field fails", func(t *testing.T) {
		t.Parallel()
		_, err := config.LoadFromReader(strings.NewReader(`
engine:
  backend: memory
  cluster_size: 3
`))
		if err == nil {
			t.Fatal("LoadFromReader: expected unknown-field error")
		}
	})

	t.Run("memory backend needs nothing else", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.LoadFromReader(strings.NewReader(`
engine:
  backend: memory
`))
		if err != nil {
			t.Fatalf("LoadFromReader: unexpected error: %v", err)
		}
		if cfg.Codec != "" || cfg.Observability.MetricsAddr != "" {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
	})
}
