package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Upload    UploadConfig
	OCR       OCRConfig
	LLM       LLMConfig
	Scheduler SchedulerConfig
	Store     StoreConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// UploadConfig holds submission/ingestion configuration
type UploadConfig struct {
	Dir        string
	MaxSizeMB  int64
	TempPrefix string
}

// MaxSizeBytes returns the configured upload ceiling in bytes.
func (u UploadConfig) MaxSizeBytes() int64 {
	return u.MaxSizeMB << 20
}

// OCRConfig holds Vision API configuration
type OCRConfig struct {
	BaseURL  string
	APIKey   string
	Language string
	MaxPages int
	Timeout  time.Duration
}

// LLMConfig holds OpenAI client configuration
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
}

// SchedulerConfig holds background execution configuration
type SchedulerConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// StoreConfig holds job store configuration
type StoreConfig struct {
	Retention time.Duration // 0 disables eviction of terminal records
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Upload: UploadConfig{
			Dir:        getEnv("UPLOAD_DIR", "./tmp/uploads"),
			MaxSizeMB:  getEnvAsInt64("MAX_UPLOAD_MB", 20),
			TempPrefix: getEnv("UPLOAD_TEMP_PREFIX", "doc-"),
		},
		OCR: OCRConfig{
			BaseURL:  getEnv("VISION_BASE_URL", "https://vision.googleapis.com"),
			APIKey:   getEnv("VISION_API_KEY", ""),
			Language: getEnv("VISION_LANGUAGE", "es"),
			MaxPages: getEnvAsInt("OCR_MAX_PAGES", 5),
			Timeout:  getEnvAsDuration("VISION_TIMEOUT", 30*time.Second),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.1),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Scheduler: SchedulerConfig{
			Workers:    getEnvAsInt("SCHEDULER_WORKERS", 4),
			QueueSize:  getEnvAsInt("SCHEDULER_QUEUE_SIZE", 64),
			JobTimeout: getEnvAsDuration("JOB_TIMEOUT", 3*time.Minute),
		},
		Store: StoreConfig{
			Retention: getEnvAsDuration("JOB_RETENTION", time.Hour),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
