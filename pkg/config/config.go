package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Tables   TablesConfig
	Model    ModelConfig
	Pipeline PipelineConfig
	Logger   LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StorageConfig points at the Supabase storage REST endpoint. BaseURL is the
// full object prefix; upload keys are appended to it directly.
type StorageConfig struct {
	BaseURL string
	Token   string
}

// TablesConfig holds the Supabase table REST endpoints. RecordsURL receives
// extracted receipt documents, StatusURL receives one batch summary row.
type TablesConfig struct {
	RecordsURL string
	StatusURL  string
	APIKey     string
	Token      string
}

// ModelConfig describes the OpenRouter-compatible chat completions backend.
type ModelConfig struct {
	URL    string
	APIKey string
	Model  string
}

type PipelineConfig struct {
	// MaxConcurrency caps how many receipts are processed at once.
	// 0 means unbounded: every item in a batch is dispatched immediately.
	MaxConcurrency int
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}
	// If no .env file was found, plain environment variables are used
	// (useful for Docker/K8s).

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	maxConcurrency, _ := strconv.Atoi(getEnv("PIPELINE_MAX_CONCURRENCY", "0"))

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Storage: StorageConfig{
			BaseURL: getEnv("SUPABASE_STORAGE_URL", ""),
			Token:   getEnv("SUPABASE_TOKEN", ""),
		},
		Tables: TablesConfig{
			RecordsURL: getEnv("SUPABASE_TABLE_URL", ""),
			StatusURL:  getEnv("SUPABASE_STATUS_TABLE_URL", ""),
			APIKey:     getEnv("SUPABASE_API_KEY", ""),
			Token:      getEnv("SUPABASE_TOKEN", ""),
		},
		Model: ModelConfig{
			URL:    getEnv("OPENROUTER_URL", "https://openrouter.ai/api/v1/chat/completions"),
			APIKey: getEnv("OPENROUTER_API_KEY", ""),
			Model:  getEnv("MODEL", ""),
		},
		Pipeline: PipelineConfig{
			MaxConcurrency: maxConcurrency,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
