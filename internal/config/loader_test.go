package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BKHilton/Ember/internal/core"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Storage.Driver != "file" || cfg.Jobs.SweepInterval != time.Minute || cfg.Digest.Tolerance != 5*time.Minute {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if day, _ := cfg.WeekStart(); day != time.Sunday {
		t.Fatalf("expected sunday week start, got %s", day)
	}
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ember.yaml")
	yaml := `
storage:
  driver: sqlite
  path: /var/lib/ember/ember.db
digest:
  week_start: Monday
  tolerance: 3m
report:
  format: yaml
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("EMBER_LOG_LEVEL", "debug")
	t.Setenv("EMBER_JOBS_SWEEP_INTERVAL", "30s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != "/var/lib/ember/ember.db" {
		t.Fatalf("expected file values, got %+v", cfg.Storage)
	}
	if cfg.Log.Level != "debug" || cfg.Jobs.SweepInterval != 30*time.Second {
		t.Fatalf("expected environment overrides, got %+v %+v", cfg.Log, cfg.Jobs)
	}
	if cfg.Digest.Tolerance != 3*time.Minute || cfg.Jobs.DigestInterval != time.Minute {
		t.Fatalf("unexpected durations %+v %+v", cfg.Digest, cfg.Jobs)
	}
	if day, _ := cfg.WeekStart(); day != time.Monday {
		t.Fatalf("expected monday, got %s", day)
	}
	opts := cfg.StorageOptions(nil)
	if opts.Driver != core.StorageSQLite || opts.SaveAttempts != 3 {
		t.Fatalf("unexpected storage options %+v", opts)
	}
}

func TestLoadWithoutFileUsesEnvironment(t *testing.T) {
	t.Setenv("EMBER_STORAGE_DRIVER", "memory")
	t.Setenv("EMBER_BLOB_DRIVER", "memory")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "memory" || cfg.BlobOptions().Driver != "memory" {
		t.Fatalf("unexpected drivers %+v %+v", cfg.Storage, cfg.Blob)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"storage.driver":   func(c *Config) { c.Storage.Driver = "etcd" },
		"blob.driver":      func(c *Config) { c.Blob.Driver = "ftp" },
		"blob.s3.bucket":   func(c *Config) { c.Blob.Driver = "s3" },
		"jobs":             func(c *Config) { c.Jobs.SweepInterval = 0 },
		"digest.tolerance": func(c *Config) { c.Digest.Tolerance = -time.Second },
		"delivery_timeout": func(c *Config) { c.Digest.DeliveryTimeout = 0 },
		"week_start":       func(c *Config) { c.Digest.WeekStart = "funday" },
		"report.format":    func(c *Config) { c.Report.Format = "xml" },
		"log.level":        func(c *Config) { c.Log.Level = "loud" },
		"log.format":       func(c *Config) { c.Log.Format = "xml" },
		"digest.timezone":  func(c *Config) { c.Digest.Timezone = "Mars/Olympus" },
	}
	for want, mutate := range cases {
		t.Run(want, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), strings.SplitN(want, "_", 2)[0]) {
				t.Fatalf("expected %s error, got %v", want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Format = "console"
	cfg.Log.Level = "warn"
	logger, err := cfg.NewLogger()
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatalf("expected debug disabled at warn level")
	}
}
