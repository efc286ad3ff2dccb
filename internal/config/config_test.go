package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "APP_ENV", "DATABASE_URL", "LOG_LEVEL", "GEMINI_API_KEY", "GEMINI_MODEL",
		"AI_RATE_LIMIT", "ANALYSIS_CACHE_SIZE", "STORAGE_MINIO_ENDPOINT", "STORAGE_S3_ENDPOINT",
		"STORAGE_S3_BUCKET", "STORAGE_S3_ACCESS_KEY", "MINIO_ROOT_USER",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, ":4000", cfg.Port)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "minio:9000", cfg.Storage.Endpoint)
	assert.True(t, cfg.Storage.Enabled)
	assert.False(t, cfg.Storage.UseSSL)
	assert.Equal(t, "appeloffres-annexes", cfg.Storage.Bucket)
	assert.False(t, cfg.AI.Enabled())
	assert.Equal(t, 1.0, cfg.AI.RateLimit)
	assert.Equal(t, 1024, cfg.AnalysisCacheSize)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE_S3_ENDPOINT", "s3.example.com")
	t.Setenv("STORAGE_S3_USE_SSL", "")
	t.Setenv("STORAGE_S3_ACCESS_KEY", "")
	t.Setenv("MINIO_ROOT_USER", "minio-user")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("AI_RATE_LIMIT", "0.5")
	t.Setenv("ANALYSIS_CACHE_SIZE", "not-a-number")

	cfg := Load()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "s3.example.com", cfg.Storage.Endpoint)
	assert.True(t, cfg.Storage.UseSSL)
	assert.Equal(t, "minio-user", cfg.Storage.AccessKey)
	assert.True(t, cfg.AI.Enabled())
	assert.Equal(t, 0.5, cfg.AI.RateLimit)
	assert.Equal(t, 1024, cfg.AnalysisCacheSize)
}
