package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "partition-svc" {
		t.Errorf("expected app name 'partition-svc', got %s", cfg.App.Name)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Log.Level)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("expected metrics port 9090, got %d", cfg.Metrics.Port)
	}
	if cfg.Cache.DefaultTTL != time.Hour {
		t.Errorf("expected cache ttl 1h, got %v", cfg.Cache.DefaultTTL)
	}
}

func TestLoader_SweepDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	s := cfg.Sweep
	if len(s.Lambdas) != 10 {
		t.Fatalf("expected 10 default lambdas, got %v", s.Lambdas)
	}
	if s.Lambdas[0] != 0 || s.Lambdas[9] != 0.9 {
		t.Errorf("unexpected default lambdas: %v", s.Lambdas)
	}
	if s.TargetFraction != 0.5 {
		t.Errorf("expected target fraction 0.5, got %v", s.TargetFraction)
	}
	if s.Tolerance != 0.01 {
		t.Errorf("expected tolerance 0.01, got %v", s.Tolerance)
	}
	if s.MaxIterations != 50 {
		t.Errorf("expected 50 iterations, got %d", s.MaxIterations)
	}
	if s.FailurePolicy != "fail_fast" {
		t.Errorf("expected fail_fast, got %s", s.FailurePolicy)
	}
	if s.Algorithm != "dinic" {
		t.Errorf("expected dinic, got %s", s.Algorithm)
	}
	if !s.BracketExpansion || s.BracketGrowth != 10 || s.MaxBracketExpansions != 8 || s.ExpandAfter != 4 {
		t.Errorf("unexpected bracket defaults: %+v", s)
	}
	if s.Headroom != 10 {
		t.Errorf("expected headroom 10, got %v", s.Headroom)
	}
}

func TestLoader_LoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
app:
  name: custom-service
  version: 2.0.0
  environment: staging
log:
  level: debug
sweep:
  graph_id: county-7
  lambdas: [0.0, 0.25, 0.75]
  failure_policy: continue
  max_workers: 3
  timeout: 2m
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	loader := NewLoader(WithConfigPaths(configPath))
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "custom-service" {
		t.Errorf("expected app name 'custom-service', got %s", cfg.App.Name)
	}
	if cfg.App.Version != "2.0.0" {
		t.Errorf("expected version '2.0.0', got %s", cfg.App.Version)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Log.Level)
	}
	if cfg.Sweep.GraphID != "county-7" {
		t.Errorf("expected graph id 'county-7', got %s", cfg.Sweep.GraphID)
	}
	want := []float64{0, 0.25, 0.75}
	if len(cfg.Sweep.Lambdas) != len(want) {
		t.Fatalf("expected lambdas %v, got %v", want, cfg.Sweep.Lambdas)
	}
	for i := range want {
		if cfg.Sweep.Lambdas[i] != want[i] {
			t.Errorf("lambda[%d]: expected %v, got %v", i, want[i], cfg.Sweep.Lambdas[i])
		}
	}
	if cfg.Sweep.FailurePolicy != "continue" {
		t.Errorf("expected continue, got %s", cfg.Sweep.FailurePolicy)
	}
	if cfg.Sweep.MaxWorkers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Sweep.MaxWorkers)
	}
	if cfg.Sweep.Timeout != 2*time.Minute {
		t.Errorf("expected timeout 2m, got %v", cfg.Sweep.Timeout)
	}
	// Значения, не указанные в файле, остаются по умолчанию
	if cfg.Sweep.MaxIterations != 50 {
		t.Errorf("expected default max iterations, got %d", cfg.Sweep.MaxIterations)
	}
}

func TestLoader_InvalidFileFailsValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
sweep:
  lambdas: [0.0, 1.0]
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := NewLoader(WithConfigPaths(configPath)).Load(); err == nil {
		t.Error("expected validation error for lambda = 1")
	}
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("DISTRICTS_APP_NAME", "env-service")
	t.Setenv("DISTRICTS_SWEEP_MAX_WORKERS", "4")
	t.Setenv("DISTRICTS_SWEEP_LAMBDAS", "0.1, 0.3,0.6")
	t.Setenv("DISTRICTS_SWEEP_FAILURE_POLICY", "continue")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "env-service" {
		t.Errorf("expected app name 'env-service', got %s", cfg.App.Name)
	}
	if cfg.Sweep.MaxWorkers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Sweep.MaxWorkers)
	}
	want := []float64{0.1, 0.3, 0.6}
	if len(cfg.Sweep.Lambdas) != len(want) {
		t.Fatalf("expected lambdas %v, got %v", want, cfg.Sweep.Lambdas)
	}
	for i := range want {
		if cfg.Sweep.Lambdas[i] != want[i] {
			t.Errorf("lambda[%d]: expected %v, got %v", i, want[i], cfg.Sweep.Lambdas[i])
		}
	}
	if cfg.Sweep.FailurePolicy != "continue" {
		t.Errorf("expected continue, got %s", cfg.Sweep.FailurePolicy)
	}
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
app:
  name: file-service
sweep:
  max_iterations: 30
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("DISTRICTS_APP_NAME", "env-override")

	cfg, err := NewLoader(WithConfigPaths(configPath)).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "env-override" {
		t.Errorf("expected env override, got %s", cfg.App.Name)
	}
	if cfg.Sweep.MaxIterations != 30 {
		t.Errorf("expected max iterations from file 30, got %d", cfg.Sweep.MaxIterations)
	}
}

func TestLoader_WithEnvPrefix(t *testing.T) {
	t.Setenv("CUSTOM_APP_NAME", "custom-prefix-service")

	cfg, err := NewLoader(WithEnvPrefix("CUSTOM_")).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "custom-prefix-service" {
		t.Errorf("expected 'custom-prefix-service', got %s", cfg.App.Name)
	}
}

func TestLoad_Simple(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg == nil {
		t.Error("expected non-nil config")
	}
}

func TestLoadWithServiceDefaults(t *testing.T) {
	cfg, err := LoadWithServiceDefaults("test-svc")
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if cfg.App.Name != "test-svc" {
		t.Errorf("expected app name 'test-svc', got %s", cfg.App.Name)
	}
}

func TestLoader_ConfigEnvVar(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "custom-config.yaml")

	configContent := `
app:
  name: config-env-var-service
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("CONFIG_PATH", configPath)

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "config-env-var-service" {
		t.Errorf("expected 'config-env-var-service', got %s", cfg.App.Name)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" 0.1, ,0.2 ,")
	if len(got) != 2 || got[0] != "0.1" || got[1] != "0.2" {
		t.Errorf("unexpected split result: %v", got)
	}
	if splitAndTrim("") != nil {
		t.Error("expected nil for empty input")
	}
}
