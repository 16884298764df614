package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		orig, had := os.LookupEnv(k)
		require.NoError(t, os.Unsetenv(k))
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(k, orig)
			}
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	clearEnv(t, "PORT", "HOST", "EMBEDDING_SERVICE_URL", "NUM_WORKERS", "OPENSEARCH_INDEX")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "http://localhost:8001", cfg.Embed.ServiceURL)
	assert.Equal(t, 8, cfg.Pipeline.NumWorkers)
	assert.Equal(t, "research_documents", cfg.Engine.Index)
}

func TestLoad_ReadsEnvOverrides(t *testing.T) {
	clearEnv(t, "PORT", "MONGODB_URI", "EMBEDDING_TIMEOUT", "NUM_WORKERS")
	require.NoError(t, os.Setenv("PORT", "9090"))
	require.NoError(t, os.Setenv("MONGODB_URI", "mongodb://localhost:27017/papers"))
	require.NoError(t, os.Setenv("EMBEDDING_TIMEOUT", "30"))
	require.NoError(t, os.Setenv("NUM_WORKERS", "4"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "mongodb://localhost:27017/papers", cfg.Mongo.URI)
	assert.Equal(t, 30*time.Second, cfg.Embed.Timeout)
	assert.Equal(t, 4, cfg.Pipeline.NumWorkers)
}

func TestLoad_EmbeddingTimeoutDefaultsToSixtySeconds(t *testing.T) {
	clearEnv(t, "EMBEDDING_TIMEOUT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Embed.Timeout)
}
