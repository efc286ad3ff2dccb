package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	LogLevel    slog.Level
	Storage     StorageConfig
	AI          AIConfig
	// AnalysisCacheSize is the number of completeness results kept in memory.
	AnalysisCacheSize int
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type AIConfig struct {
	GeminiAPIKey string
	Model        string
	// RateLimit is the number of drafting calls allowed per second.
	RateLimit float64
}

// Enabled reports whether AI drafting can be served.
func (c AIConfig) Enabled() bool {
	return strings.TrimSpace(c.GeminiAPIKey) != ""
}

// Load reads .env (when present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	port := firstNonEmpty(strings.TrimSpace(os.Getenv("PORT")), "4000")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	env := firstNonEmpty(strings.TrimSpace(os.Getenv("APP_ENV")), "local")

	return &Config{
		Port:        port,
		Env:         env,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		LogLevel:    parseLogLevel(os.Getenv("LOG_LEVEL")),
		Storage:     loadStorageConfig(env),
		AI: AIConfig{
			GeminiAPIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:        firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), "gemini-2.5-flash"),
			RateLimit:    parsePositiveFloat(os.Getenv("AI_RATE_LIMIT"), 1.0),
		},
		AnalysisCacheSize: parsePositiveInt(os.Getenv("ANALYSIS_CACHE_SIZE"), 1024),
	}
}

func loadStorageConfig(env string) StorageConfig {
	endpoint := resolveStorageEndpoint(env)
	return StorageConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("STORAGE_S3_REGION")), "eu-west-3"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("STORAGE_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("STORAGE_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("STORAGE_S3_BUCKET")), "appeloffres-annexes"),
		UseSSL:    resolveStorageUseSSL(env),
	}
}

func resolveStorageEndpoint(env string) string {
	if isLocal(env) {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("STORAGE_MINIO_ENDPOINT")), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv("STORAGE_S3_ENDPOINT"))
}

func resolveStorageUseSSL(env string) bool {
	if isLocal(env) {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("STORAGE_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func isLocal(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "local")
}

func parseLogLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func parsePositiveFloat(raw string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && v > 0 {
		return v
	}
	return fallback
}

func parsePositiveInt(raw string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
