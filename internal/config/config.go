// Package config loads the platform's configuration from the environment.
//
// A single Config value is built at process start and passed explicitly to
// every component's constructor; nothing here is read through a package
// global once Load returns.
package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config holds every setting the indexer and the search API need.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Mongo    Mongo    `mapstructure:"mongo"`
	Engine   Engine   `mapstructure:"engine"`
	Redis    Redis    `mapstructure:"redis"`
	Embed    Embed    `mapstructure:"embed"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Cache    Cache    `mapstructure:"cache"`
	Search   Search   `mapstructure:"search"`
	Log      Log      `mapstructure:"log"`
}

// Server holds HTTP listen settings for the search API.
type Server struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// Mongo holds authoritative-store connection settings.
type Mongo struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// Engine holds search-engine connection settings.
type Engine struct {
	Node     string `mapstructure:"node"`
	Hosts    string `mapstructure:"hosts"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Index    string `mapstructure:"index"`
}

// Redis holds result-cache connection settings.
type Redis struct {
	URL string `mapstructure:"url"`
}

// Embed holds the remote embedding service contract settings.
type Embed struct {
	ServiceURL string        `mapstructure:"service_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Pipeline holds the batch indexing pipeline's resource bounds.
type Pipeline struct {
	MongoBatchSize     int   `mapstructure:"mongo_batch_size"`
	EmbedBatchSize     int   `mapstructure:"embed_batch_size"`
	OpenSearchBulkSize int   `mapstructure:"opensearch_bulk_size"`
	NumWorkers         int   `mapstructure:"num_workers"`
	MaxRetries         int   `mapstructure:"max_retries"`
	MongoBulkDelayMs   int64 `mapstructure:"mongo_bulk_delay_ms"`
}

// Cache holds the on-disk document cache's location.
type Cache struct {
	Dir string `mapstructure:"dir"`
}

// Search holds search-orchestrator feature toggles.
type Search struct {
	RelatedPeople bool `mapstructure:"related_people"`
}

// Log holds logging configuration.
type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from a local .env file (if present) and the
// process environment, applying the defaults from spec.md's configuration
// table for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(secondsToDurationHookFunc())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// secondsToDurationHookFunc converts a plain integer (EMBEDDING_TIMEOUT=60)
// into a time.Duration measured in seconds, matching spec.md's env var
// convention, while still accepting a Go duration string like "60s".
func secondsToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return time.Duration(n) * time.Second, nil
			}
			return time.ParseDuration(v)
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v) * time.Second, nil
		default:
			return data, nil
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")

	v.SetDefault("mongo.database", "research_platform")
	v.SetDefault("mongo.collection", "documents")

	v.SetDefault("engine.index", "research_documents")

	v.SetDefault("embed.service_url", "http://localhost:8001")
	v.SetDefault("embed.timeout", 60*time.Second)

	v.SetDefault("pipeline.mongo_batch_size", 100)
	v.SetDefault("pipeline.embed_batch_size", 128)
	v.SetDefault("pipeline.opensearch_bulk_size", 100)
	v.SetDefault("pipeline.num_workers", 8)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.mongo_bulk_delay_ms", 50)

	v.SetDefault("cache.dir", ".cache")

	v.SetDefault("search.related_people", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// bindEnv maps the flat env vars named in spec.md's configuration table
// onto the nested mapstructure keys above; AutomaticEnv alone cannot see
// these because the env names don't share the "." replaced key shape.
func bindEnv(v *viper.Viper) {
	pairs := map[string]string{
		"server.port":                  "PORT",
		"server.host":                  "HOST",
		"mongo.uri":                    "MONGODB_URI",
		"mongo.database":               "MONGODB_DATABASE",
		"mongo.collection":             "MONGODB_COLLECTION",
		"engine.node":                  "OPENSEARCH_NODE",
		"engine.hosts":                 "OPENSEARCH_HOSTS",
		"engine.user":                  "OPENSEARCH_USER",
		"engine.password":              "OPENSEARCH_PASSWORD",
		"engine.index":                 "OPENSEARCH_INDEX",
		"redis.url":                    "REDIS_URL",
		"embed.service_url":            "EMBEDDING_SERVICE_URL",
		"embed.timeout":                "EMBEDDING_TIMEOUT",
		"pipeline.mongo_batch_size":    "MONGO_BATCH_SIZE",
		"pipeline.embed_batch_size":    "EMBED_BATCH_SIZE",
		"pipeline.opensearch_bulk_size": "OPENSEARCH_BULK_SIZE",
		"pipeline.num_workers":         "NUM_WORKERS",
		"pipeline.max_retries":         "MAX_RETRIES",
		"pipeline.mongo_bulk_delay_ms": "MONGO_BULK_DELAY_MS",
		"cache.dir":                    "CACHE_DIR",
		"log.level":                    "LOG_LEVEL",
	}
	for key, env := range pairs {
		_ = v.BindEnv(key, env)
	}
}
