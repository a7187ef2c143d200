package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeYAML(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

const validYAML = `
database:
  uri: "postgres://u:p@localhost:5432/seed"
  max_conns: 4

log:
  level: "debug"
  format: "json"

seeder:
  source: "custom"
  path: "/data/seed"
  batch_size: 200
  workers: 2
  timeout: "90s"
  skip_run_log: true

metrics:
  pushgateway_url: "http://pushgateway:9091"
`

// chdirTemp moves into an empty directory so ./config.yaml is absent.
func chdirTemp(t *testing.T) {
	t.Helper()
	origDir, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	_ = os.Chdir(t.TempDir())
}

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{URI: "postgres://u:p@localhost:5432/seed"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Seeder: SeederConfig{
			Source:    SourceE2E,
			BatchSize: 500,
			Workers:   4,
			Timeout:   10 * time.Minute,
		},
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeYAML(t, t.TempDir(), validYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.URI != "postgres://u:p@localhost:5432/seed" {
		t.Errorf("database.uri = %q", cfg.Database.URI)
	}
	if cfg.Database.MaxConns != 4 {
		t.Errorf("database.max_conns = %d, want 4", cfg.Database.MaxConns)
	}
	if cfg.Database.MinConns != 1 {
		t.Errorf("database.min_conns = %d, want 1 (default)", cfg.Database.MinConns)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log.format = %q, want %q", cfg.Log.Format, "json")
	}
	if cfg.Seeder.Source != SourceCustom || cfg.Seeder.Path != "/data/seed" {
		t.Errorf("seeder source/path = %q/%q", cfg.Seeder.Source, cfg.Seeder.Path)
	}
	if cfg.Seeder.BatchSize != 200 {
		t.Errorf("seeder.batch_size = %d, want 200", cfg.Seeder.BatchSize)
	}
	if cfg.Seeder.Timeout != 90*time.Second {
		t.Errorf("seeder.timeout = %v, want 90s", cfg.Seeder.Timeout)
	}
	if !cfg.Seeder.SkipRunLog {
		t.Error("seeder.skip_run_log should be true")
	}
	if cfg.Metrics.Job != "seeder" {
		t.Errorf("metrics.job = %q, want %q (default)", cfg.Metrics.Job, "seeder")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_ConfigPathEnv(t *testing.T) {
	path := writeYAML(t, t.TempDir(), validYAML)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Seeder.Workers != 2 {
		t.Errorf("seeder.workers = %d, want 2", cfg.Seeder.Workers)
	}
}

func TestLoad_SkipRunLog(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	dir := t.TempDir()

	path := writeYAML(t, dir, "database:\n  uri: \"postgres://u@localhost/seed\"\nseeder:\n  skip_run_log: false\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Seeder.SkipRunLog {
		t.Error("seeder.skip_run_log = true, want false from YAML")
	}

	t.Setenv("SEEDER_SKIP_RUN_LOG", "true")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Seeder.SkipRunLog {
		t.Error("seeder.skip_run_log = false, want true (ENV override)")
	}
}

func TestLoad_ENVOverridesYAML(t *testing.T) {
	path := writeYAML(t, t.TempDir(), validYAML)
	t.Setenv("SEEDER_BATCH_SIZE", "50")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Seeder.BatchSize != 50 {
		t.Errorf("seeder.batch_size = %d, want 50 (ENV override)", cfg.Seeder.BatchSize)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want %q (ENV override)", cfg.Log.Level, "warn")
	}
}

func TestLoad_NoFile_ENVOnly(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("SEEDER_CONNECTION_URI", "postgres://env@localhost/seed")
	chdirTemp(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.URI != "postgres://env@localhost/seed" {
		t.Errorf("database.uri = %q", cfg.Database.URI)
	}
	if cfg.Seeder.Source != SourceE2E {
		t.Errorf("seeder.source = %q, want %q (default)", cfg.Seeder.Source, SourceE2E)
	}
	if cfg.Seeder.BatchSize != 500 || cfg.Seeder.Workers != 4 {
		t.Errorf("defaults batch_size=%d workers=%d", cfg.Seeder.BatchSize, cfg.Seeder.Workers)
	}
	if cfg.Seeder.SkipRunLog {
		t.Error("seeder.skip_run_log should default to false")
	}
}

func TestLoad_ExplicitPathNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeYAML(t, t.TempDir(), `{{{invalid yaml`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_DoesNotValidate(t *testing.T) {
	path := writeYAML(t, t.TempDir(), "seeder:\n  source: \"nope\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject unknown source")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid e2e", func(*Config) {}, false},
		{"unknown source", func(c *Config) { c.Seeder.Source = "prod" }, true},
		{"custom without path", func(c *Config) { c.Seeder.Source = SourceCustom }, true},
		{"custom with blank path", func(c *Config) {
			c.Seeder.Source = SourceCustom
			c.Seeder.Path = "  "
		}, true},
		{"custom with path", func(c *Config) {
			c.Seeder.Source = SourceCustom
			c.Seeder.Path = "./data"
		}, false},
		{"missing uri", func(c *Config) { c.Database.URI = "" }, true},
		{"missing uri in dry run", func(c *Config) {
			c.Database.URI = ""
			c.Seeder.DryRun = true
		}, false},
		{"zero batch size", func(c *Config) { c.Seeder.BatchSize = 0 }, true},
		{"negative workers", func(c *Config) { c.Seeder.Workers = -1 }, true},
		{"negative timeout", func(c *Config) { c.Seeder.Timeout = -time.Second }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
