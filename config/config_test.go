package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Profiles.Dir != "profiles" {
		t.Errorf("expected default profiles dir profiles, got %s", cfg.Profiles.Dir)
	}
	if cfg.Hydration.Timeout != 10*time.Second {
		t.Errorf("expected default timeout 10s, got %v", cfg.Hydration.Timeout)
	}
	if cfg.Hydration.MaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", cfg.Hydration.MaxAttempts)
	}
	if cfg.Hydration.BackoffBase != 500*time.Millisecond {
		t.Errorf("expected default backoff 500ms, got %v", cfg.Hydration.BackoffBase)
	}
	if cfg.NATS.URL != "" {
		t.Error("expected NATS disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing profiles dir",
			modify:  func(c *Config) { c.Profiles.Dir = "" },
			wantErr: true,
		},
		{
			name:    "missing endpoint",
			modify:  func(c *Config) { c.Hydration.Endpoint = "" },
			wantErr: true,
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.Hydration.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "zero attempts",
			modify:  func(c *Config) { c.Hydration.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "shrinking backoff",
			modify:  func(c *Config) { c.Hydration.BackoffMultiplier = 0.5 },
			wantErr: true,
		},
		{
			name:    "no workers",
			modify:  func(c *Config) { c.Batch.Workers = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
profiles:
  dir: /srv/profiles
hydration:
  endpoint: "http://sparql.test/query"
  timeout: 2s
  max_attempts: 5
  backoff_base: 100ms
nats:
  url: "nats://test:4222"
batch:
  workers: 8
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Profiles.Dir != "/srv/profiles" {
		t.Errorf("expected profiles dir /srv/profiles, got %s", cfg.Profiles.Dir)
	}
	if cfg.Hydration.Endpoint != "http://sparql.test/query" {
		t.Errorf("expected endpoint http://sparql.test/query, got %s", cfg.Hydration.Endpoint)
	}
	if cfg.Hydration.Timeout != 2*time.Second {
		t.Errorf("expected timeout 2s, got %v", cfg.Hydration.Timeout)
	}
	if cfg.Hydration.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.Hydration.MaxAttempts)
	}
	// Unset fields keep their defaults.
	if cfg.Hydration.BackoffMultiplier != 2 {
		t.Errorf("expected default multiplier 2, got %v", cfg.Hydration.BackoffMultiplier)
	}
	if cfg.NATS.GraphSubject != "graph.ingest.entity" {
		t.Errorf("expected default graph subject, got %s", cfg.NATS.GraphSubject)
	}

	retry := cfg.Hydration.Retry()
	if retry.Timeout != 2*time.Second || retry.MaxAttempts != 5 || retry.BackoffBase != 100*time.Millisecond {
		t.Errorf("unexpected retry config %+v", retry)
	}
	if cfg.Hydration.SPARQL().Endpoint != "http://sparql.test/query" {
		t.Errorf("unexpected sparql endpoint %s", cfg.Hydration.SPARQL().Endpoint)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Profiles:  ProfilesConfig{Dir: "/override/profiles"},
		Hydration: HydrationConfig{MaxAttempts: 1},
	}

	base.Merge(override)

	if base.Profiles.Dir != "/override/profiles" {
		t.Errorf("expected profiles dir /override/profiles, got %s", base.Profiles.Dir)
	}
	if base.Hydration.MaxAttempts != 1 {
		t.Errorf("expected max attempts 1, got %d", base.Hydration.MaxAttempts)
	}
	// Timeout should remain from base since override didn't set it
	if base.Hydration.Timeout != 10*time.Second {
		t.Errorf("expected timeout to remain default, got %v", base.Hydration.Timeout)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Batch.Workers = 16

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Batch.Workers != 16 {
		t.Errorf("expected 16 workers, got %d", loaded.Batch.Workers)
	}
}

func TestLoaderLayers(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	work := filepath.Join(project, "data", "batch")
	if err := os.MkdirAll(work, 0755); err != nil {
		t.Fatal(err)
	}

	user := "hydration:\n  max_attempts: 7\n  timeout: 3s\nbatch:\n  workers: 2\n"
	if err := os.MkdirAll(filepath.Join(home, UserConfigDir), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(home, UserConfigDir, UserConfigFile), []byte(user), 0644); err != nil {
		t.Fatal(err)
	}
	proj := "profiles:\n  dir: schemas\nhydration:\n  timeout: 1s\n"
	if err := os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte(proj), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvNATSURL, "nats://env:4222")

	l := &Loader{logger: slog.Default(), homeDir: home, workDir: work}
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hydration.MaxAttempts != 7 {
		t.Errorf("expected user max attempts 7, got %d", cfg.Hydration.MaxAttempts)
	}
	if cfg.Hydration.Timeout != time.Second {
		t.Errorf("expected project timeout 1s, got %v", cfg.Hydration.Timeout)
	}
	if cfg.Batch.Workers != 2 {
		t.Errorf("expected user workers 2, got %d", cfg.Batch.Workers)
	}
	if want := filepath.Join(project, "schemas"); cfg.Profiles.Dir != want {
		t.Errorf("expected profiles dir %s, got %s", want, cfg.Profiles.Dir)
	}
	if cfg.NATS.URL != "nats://env:4222" {
		t.Errorf("expected env NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestEnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	l := &Loader{logger: slog.Default(), homeDir: home}

	if err := l.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig() error = %v", err)
	}
	cfg, err := LoadFromFile(filepath.Join(home, UserConfigDir, UserConfigFile))
	if err != nil {
		t.Fatalf("failed to load created config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("created config invalid: %v", err)
	}
}
