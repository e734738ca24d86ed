package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BKHilton/Ember/internal/blob"
	"github.com/BKHilton/Ember/internal/core"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override, e.g. EMBER_STORAGE_DRIVER.
const EnvPrefix = "EMBER"

// Load reads defaults, then path when it is not empty, then the
// environment. The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and unusable intervals.
func (c *Config) Validate() error {
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageFile, core.StorageSQLite, core.StoragePostgres, core.StorageMongo:
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob.s3.bucket: required for the s3 driver")
		}
	default:
		return fmt.Errorf("blob.driver: unknown driver %q", c.Blob.Driver)
	}
	if c.Jobs.SweepInterval <= 0 || c.Jobs.DigestInterval <= 0 {
		return fmt.Errorf("jobs: intervals must be positive")
	}
	if c.Digest.Tolerance <= 0 {
		return fmt.Errorf("digest.tolerance: must be positive")
	}
	if c.Digest.DeliveryTimeout <= 0 {
		return fmt.Errorf("digest.delivery_timeout: must be positive")
	}
	if _, err := c.WeekStart(); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Digest.Timezone); err != nil {
		return fmt.Errorf("digest.timezone: %w", err)
	}
	if !core.ReportFormat(c.Report.Format).Valid() {
		return fmt.Errorf("report.format: unknown format %q", c.Report.Format)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

// WeekStart parses digest.week_start.
func (c *Config) WeekStart() (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(c.Digest.WeekStart)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("digest.week_start: unknown weekday %q", c.Digest.WeekStart)
}

// Location returns the fallback digest timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Digest.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StorageOptions converts the storage section for core.OpenPersistentStore.
func (c *Config) StorageOptions(logger *zap.Logger) core.StorageConfig {
	return core.StorageConfig{
		Driver:        core.StorageDriver(c.Storage.Driver),
		Path:          c.Storage.Path,
		DSN:           c.Storage.DSN,
		MongoURI:      c.Storage.MongoURI,
		MongoDatabase: c.Storage.MongoDatabase,
		Timeout:       c.Storage.Timeout,
		SaveAttempts:  c.Storage.SaveAttempts,
		Logger:        logger,
	}
}

// BlobOptions converts the blob section for blob.Open.
func (c *Config) BlobOptions() blob.Config {
	return blob.Config{
		Driver: c.Blob.Driver,
		Root:   c.Blob.Root,
		S3: blob.S3Config{
			Region:          c.Blob.S3.Region,
			Bucket:          c.Blob.S3.Bucket,
			Prefix:          c.Blob.S3.Prefix,
			Endpoint:        c.Blob.S3.Endpoint,
			AccessKeyID:     c.Blob.S3.AccessKeyID,
			SecretAccessKey: c.Blob.S3.SecretAccessKey,
			PathStyle:       c.Blob.S3.PathStyle,
		},
	}
}

// NewLogger builds the process logger from the log section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
