// Package config loads sinkworker's configuration with viper, the way the
// rest of this repo family layers env vars over a config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved configuration for one sinkworker process.
// One process may host several PartitionWriter instances (one per assigned
// source partition), all sharing these settings.
type Config struct {
	Topic  string
	Writer WriterConfig
	Catalog CatalogConfig
	Storage StorageConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// WriterConfig maps directly onto the per-partition writer's recognized
// configuration keys.
type WriterConfig struct {
	TopicsDir                string
	LogsDir                  string
	FlushSize                int
	RotateIntervalMs         int64
	RotateScheduleIntervalMs int64
	Timezone                 string
	RetryBackoffMs           int64
	FilenameZeroPadWidth     int
	HiveIntegration          bool
	MultiSchemaSupport       bool
	SchemaCompatibility      string
	Format                   string
}

type CatalogConfig struct {
	PostgresDSN string
}

type StorageConfig struct {
	Backend      string // "local" or "blob"
	LocalDir     string
	BlobBucketURL string
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Enabled bool
	Address string
}

// Load reads configuration from (in ascending priority) a config file named
// sinkworker.yaml on the given search paths, then environment variables
// prefixed SINKWORKER_. Unset keys fall back to the defaults set here.
func Load(configPaths ...string) (Config, error) {
	v := viper.New()
	v.SetConfigName("sinkworker")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("SINKWORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("config: read config file: %w", err)
		}
	}

	cfg := Config{
		Topic: v.GetString("topic"),
		Writer: WriterConfig{
			TopicsDir:                v.GetString("topics.dir"),
			LogsDir:                  v.GetString("logs.dir"),
			FlushSize:                v.GetInt("flush.size"),
			RotateIntervalMs:         v.GetInt64("rotate.interval.ms"),
			RotateScheduleIntervalMs: v.GetInt64("rotate.schedule.interval.ms"),
			Timezone:                 v.GetString("partitioner.timezone"),
			RetryBackoffMs:           v.GetInt64("retry.backoff.ms"),
			FilenameZeroPadWidth:     v.GetInt("filename.offset.zero.pad.width"),
			HiveIntegration:          v.GetBool("hive.integration"),
			MultiSchemaSupport:       v.GetBool("multi.schema.support"),
			SchemaCompatibility:      v.GetString("schema.compatibility"),
			Format:                   v.GetString("writer.format"),
		},
		Catalog: CatalogConfig{
			PostgresDSN: v.GetString("catalog.postgres.dsn"),
		},
		Storage: StorageConfig{
			Backend:       v.GetString("storage.backend"),
			LocalDir:      v.GetString("storage.local.dir"),
			BlobBucketURL: v.GetString("storage.blob.bucket.url"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Address: v.GetString("metrics.address"),
		},
	}

	if cfg.Topic == "" {
		return Config{}, fmt.Errorf("config: topic must be set")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("topics.dir", "topics")
	v.SetDefault("logs.dir", "logs")
	v.SetDefault("flush.size", 10000)
	v.SetDefault("rotate.interval.ms", int64(10*time.Minute/time.Millisecond))
	v.SetDefault("rotate.schedule.interval.ms", int64(0))
	v.SetDefault("partitioner.timezone", "UTC")
	v.SetDefault("retry.backoff.ms", int64(5000))
	v.SetDefault("filename.offset.zero.pad.width", 20)
	v.SetDefault("hive.integration", false)
	v.SetDefault("multi.schema.support", false)
	v.SetDefault("schema.compatibility", "none")
	v.SetDefault("writer.format", "jsonlines")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local.dir", "./data")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", ":9090")
}
