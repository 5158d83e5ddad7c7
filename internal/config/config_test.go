package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Fetch.MaxConns != 8 {
		t.Fatalf("expected default max_conns 8, got %d", cfg.Fetch.MaxConns)
	}
	if !cfg.Discovery.Gather || !cfg.Discovery.RandomProbe || !cfg.Discovery.Sweep {
		t.Fatalf("expected discovery strategies enabled by default: %+v", cfg.Discovery)
	}
	if cfg.Limits.QueueHighWater != 256 || cfg.Limits.QueueLowWater != 4 {
		t.Fatalf("expected default hysteresis 256/4, got %d/%d",
			cfg.Limits.QueueHighWater, cfg.Limits.QueueLowWater)
	}
	if got := cfg.FetchTimeout(); got != 15*time.Second {
		t.Fatalf("expected fetch timeout 15s, got %v", got)
	}
	if got := cfg.StartStagger(); got != 0 {
		t.Fatalf("expected no stagger for ordinal 0, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
db:
  dsn: postgres://user:pass@db:5432/videos
fetch:
  max_conns: 2
  rate_per_second: 0.5
  timeout_seconds: 30
discovery:
  gather: true
  web_search: false
  random_probe: false
probe:
  delay_ms: 3000
limits:
  seen_cap: 1000
  queue_high_water: 64
  queue_low_water: 8
instance:
  ordinal: 2
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.DB.DSN != "postgres://user:pass@db:5432/videos" {
		t.Fatalf("expected dsn override, got %q", cfg.DB.DSN)
	}
	if cfg.Fetch.MaxConns != 2 || cfg.Fetch.RatePerSecond != 0.5 {
		t.Fatalf("expected fetch overrides to apply: %+v", cfg.Fetch)
	}
	if cfg.Discovery.WebSearch || cfg.Discovery.RandomProbe {
		t.Fatalf("expected disabled strategies to stay off: %+v", cfg.Discovery)
	}
	if !cfg.Discovery.PlatformSearch {
		t.Fatalf("expected untouched strategies to keep their defaults")
	}
	if cfg.Probe.DelayMs != 3000 {
		t.Fatalf("expected probe delay 3000ms, got %d", cfg.Probe.DelayMs)
	}
	if got := cfg.ListenAddr(); got != "0.0.0.0:9092" {
		t.Fatalf("expected ordinal-offset listen addr 0.0.0.0:9092, got %q", got)
	}
	if got := cfg.StartStagger(); got != 14*time.Second {
		t.Fatalf("expected stagger 14s for ordinal 2, got %v", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		DB:     DBConfig{DSN: "postgres://localhost/videos"},
		Fetch:  FetchConfig{MaxConns: 4, TimeoutSeconds: 15},
		Limits: LimitsConfig{SeenCap: 1000, QueueHighWater: 256, QueueLowWater: 4},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "missing dsn",
			cfg: func() Config {
				c := base
				c.DB.DSN = ""
				return c
			}(),
			want: "db.dsn",
		},
		{
			name: "invalid max conns",
			cfg: func() Config {
				c := base
				c.Fetch.MaxConns = 0
				return c
			}(),
			want: "fetch.max_conns",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.Fetch.TimeoutSeconds = 0
				return c
			}(),
			want: "fetch.timeout_seconds",
		},
		{
			name: "invalid seen cap",
			cfg: func() Config {
				c := base
				c.Limits.SeenCap = 0
				return c
			}(),
			want: "limits.seen_cap",
		},
		{
			name: "inverted hysteresis",
			cfg: func() Config {
				c := base
				c.Limits.QueueLowWater = 512
				return c
			}(),
			want: "limits.queue_low_water",
		},
		{
			name: "negative ordinal",
			cfg: func() Config {
				c := base
				c.Instance.Ordinal = -1
				return c
			}(),
			want: "instance.ordinal",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
