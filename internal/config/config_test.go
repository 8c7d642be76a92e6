package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesSections(t *testing.T) {
	path := writeConfig(t, `{
		"rpc": {"address": "0.0.0.0", "port": 8080, "auth": [{"type": "jwt", "name": "riders", "issuer": "https://issuer", "audience": "trasaroute"}]},
		"aws": {"log_level": "info", "queues": {"pending_routes": "conn-string"}},
		"geocoder": {"mode": "fts"},
		"decomposer": {"ner_endpoint": "http://ner.internal"},
		"cache": {"redis_addr": "localhost:6379"},
		"telemetry": {"otlp_endpoint": "localhost:4318"},
		"routing": {"algorithm": "trip", "max_waypoints": 25, "worker_concurrency": 4},
		"regions": [{"name": "podlaskie", "poly": "podlaskie.poly", "addressbook": {"fts": "podlaskie.fts"}, "osrm": {"base_url": "http://osrm-podlaskie"}}]
	}`)

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RPC.Port != 8080 {
		t.Errorf("expected rpc.port 8080, got %d", cfg.RPC.Port)
	}
	if len(cfg.RPC.Auth) != 1 || cfg.RPC.Auth[0].Name != "riders" {
		t.Errorf("unexpected auth entries: %+v", cfg.RPC.Auth)
	}
	if cfg.Decomposer.NEREndpoint != "http://ner.internal" {
		t.Errorf("unexpected decomposer endpoint: %q", cfg.Decomposer.NEREndpoint)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("unexpected cache redis_addr: %q", cfg.Cache.RedisAddr)
	}
	if len(cfg.Regions) != 1 || !cfg.Regions[0].IsEnabled() {
		t.Fatalf("unexpected regions: %+v", cfg.Regions)
	}
}

func TestRegionEnabledDefaultsTrue(t *testing.T) {
	enabled := false
	r := RegionConfig{Name: "mazowieckie"}
	if !r.IsEnabled() {
		t.Error("a region with no explicit Enabled should default to enabled")
	}
	r.Enabled = &enabled
	if r.IsEnabled() {
		t.Error("Enabled: false should disable the region")
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{not valid json`)
	if _, err := Load(context.Background(), path); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
