package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:        "file",
			Path:          "data/ember.json",
			MongoDatabase: "ember",
			Timeout:       5 * time.Second,
			SaveAttempts:  3,
		},
		Blob: BlobConfig{
			Driver: "fs",
			Root:   "data/blobs",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Jobs: JobsConfig{
			SweepInterval:  time.Minute,
			DigestInterval: time.Minute,
		},
		Digest: DigestConfig{
			Tolerance:       5 * time.Minute,
			DeliveryTimeout: 30 * time.Second,
			WeekStart:       "sunday",
			Timezone:        "UTC",
		},
		Report: ReportConfig{Format: "json"},
	}
}

// setDefaults registers every key so environment variables are picked up
// by Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.dsn", cfg.Storage.DSN)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.timeout", cfg.Storage.Timeout)
	v.SetDefault("storage.save_attempts", cfg.Storage.SaveAttempts)

	v.SetDefault("blob.driver", cfg.Blob.Driver)
	v.SetDefault("blob.root", cfg.Blob.Root)
	v.SetDefault("blob.s3.bucket", cfg.Blob.S3.Bucket)
	v.SetDefault("blob.s3.region", cfg.Blob.S3.Region)
	v.SetDefault("blob.s3.endpoint", cfg.Blob.S3.Endpoint)
	v.SetDefault("blob.s3.prefix", cfg.Blob.S3.Prefix)
	v.SetDefault("blob.s3.path_style", cfg.Blob.S3.PathStyle)
	v.SetDefault("blob.s3.access_key_id", cfg.Blob.S3.AccessKeyID)
	v.SetDefault("blob.s3.secret_access_key", cfg.Blob.S3.SecretAccessKey)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("jobs.sweep_interval", cfg.Jobs.SweepInterval)
	v.SetDefault("jobs.digest_interval", cfg.Jobs.DigestInterval)

	v.SetDefault("digest.tolerance", cfg.Digest.Tolerance)
	v.SetDefault("digest.delivery_timeout", cfg.Digest.DeliveryTimeout)
	v.SetDefault("digest.week_start", cfg.Digest.WeekStart)
	v.SetDefault("digest.timezone", cfg.Digest.Timezone)

	v.SetDefault("report.format", cfg.Report.Format)
	v.SetDefault("smtp.from", cfg.SMTP.From)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
}
