// Package config loads process configuration from defaults, an optional YAML
// file and EMBER_* environment variables.
package config

import "time"

// Config is the full process configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Blob    BlobConfig    `yaml:"blob" mapstructure:"blob"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Jobs    JobsConfig    `yaml:"jobs" mapstructure:"jobs"`
	Digest  DigestConfig  `yaml:"digest" mapstructure:"digest"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	SMTP    SMTPConfig    `yaml:"smtp" mapstructure:"smtp"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// StorageConfig selects the document backend.
type StorageConfig struct {
	Driver        string        `yaml:"driver" mapstructure:"driver"`
	Path          string        `yaml:"path" mapstructure:"path"`
	DSN           string        `yaml:"dsn" mapstructure:"dsn"`
	MongoURI      string        `yaml:"mongo_uri" mapstructure:"mongo_uri"`
	MongoDatabase string        `yaml:"mongo_database" mapstructure:"mongo_database"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	SaveAttempts  int           `yaml:"save_attempts" mapstructure:"save_attempts"`
}

// BlobConfig selects where report files, uploads and bundles are kept.
type BlobConfig struct {
	Driver string   `yaml:"driver" mapstructure:"driver"`
	Root   string   `yaml:"root" mapstructure:"root"`
	S3     S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config configures the s3 blob driver.
type S3Config struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Region          string `yaml:"region" mapstructure:"region"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	Prefix          string `yaml:"prefix" mapstructure:"prefix"`
	PathStyle       bool   `yaml:"path_style" mapstructure:"path_style"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json | console
}

// JobsConfig sets the background job intervals.
type JobsConfig struct {
	SweepInterval  time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	DigestInterval time.Duration `yaml:"digest_interval" mapstructure:"digest_interval"`
}

// DigestConfig tunes digest windows and scheduling.
type DigestConfig struct {
	Tolerance       time.Duration `yaml:"tolerance" mapstructure:"tolerance"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout" mapstructure:"delivery_timeout"`
	WeekStart       string        `yaml:"week_start" mapstructure:"week_start"`
	Timezone        string        `yaml:"timezone" mapstructure:"timezone"`
}

// ReportConfig sets the report file encoding.
type ReportConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
}

// SMTPConfig holds process-wide mail defaults.
type SMTPConfig struct {
	From string `yaml:"from" mapstructure:"from"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}
