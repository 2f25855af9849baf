package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("GMX_PROTOCOL", "")
	t.Setenv("GMX_GATEWAY_HOSTS", "")
	t.Setenv("GMX_READ_TIMEOUT", "")
	t.Setenv("PREFS_BACKEND", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if !cfg.IsLegacy() {
		t.Fatalf("expected legacy protocol by default")
	}
	if cfg.GatewayHosts != nil {
		t.Fatalf("expected no host override, got %v", cfg.GatewayHosts)
	}
	if cfg.ConnectTimeout != 5*time.Second || cfg.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected timeouts %s/%s", cfg.ConnectTimeout, cfg.ReadTimeout)
	}
	if cfg.RetryBackoff != 500*time.Millisecond {
		t.Fatalf("unexpected backoff %s", cfg.RetryBackoff)
	}
	if cfg.PrefsBackend != "file" {
		t.Fatalf("expected file prefs backend, got %s", cfg.PrefsBackend)
	}
	if cfg.DefaultPrefix != "+49" {
		t.Fatalf("expected +49 default prefix, got %s", cfg.DefaultPrefix)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GMX_PROTOCOL", " REST ")
	t.Setenv("GMX_GATEWAY_HOSTS", "a.example, ,b.example")
	t.Setenv("GMX_READ_TIMEOUT", "2s")
	t.Setenv("GMX_RETRY_BACKOFF", "bogus")
	t.Setenv("PREFS_BACKEND", "Redis")
	t.Setenv("KAFKA_BROKERS", "kafka:9092,kafka2:9092")
	t.Setenv("WORKER_BATCH_SIZE", "9")
	t.Setenv("GMX_ENABLED", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.IsLegacy() || cfg.Protocol != "rest" {
		t.Fatalf("expected rest protocol, got %q", cfg.Protocol)
	}
	if len(cfg.GatewayHosts) != 2 || cfg.GatewayHosts[1] != "b.example" {
		t.Fatalf("unexpected hosts %v", cfg.GatewayHosts)
	}
	if cfg.ReadTimeout != 2*time.Second {
		t.Fatalf("expected read timeout override, got %s", cfg.ReadTimeout)
	}
	if cfg.RetryBackoff != 500*time.Millisecond {
		t.Fatalf("expected invalid duration to fall back, got %s", cfg.RetryBackoff)
	}
	if cfg.PrefsBackend != "redis" {
		t.Fatalf("expected normalized backend, got %s", cfg.PrefsBackend)
	}
	if len(cfg.KafkaBrokers) != 2 {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.WorkerBatchSize != 9 {
		t.Fatalf("expected batch size override, got %d", cfg.WorkerBatchSize)
	}
	if !cfg.SeedEnabled {
		t.Fatalf("expected seed enabled")
	}
}
