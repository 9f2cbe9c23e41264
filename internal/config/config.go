package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             int
	ModelKind        string // "detr" lub "ssd"
	ModelPath        string
	ConfigPath       string // tylko dla ssd (pbtxt)
	LabelsPath       string
	ModelInstances   int // Liczba sieci w puli
	FontPath         string
	FontSize         float64
	BoxColor         string
	DefaultThreshold float64
	InferenceURL     string
	ProxyTimeout     time.Duration
	MaxUploadSize    int64 // w bajtach
	StaticDirectory  string
	LogDirectory     string
	DatabasePath     string // pusty = dziennik żądań wyłączony
	FlushInterval    time.Duration
}

// Load reads an optional .env file and builds the configuration from the environment.
func Load() *Config {
	// Brak pliku .env nie jest błędem
	_ = godotenv.Load()

	return &Config{
		Port:             getEnvAsInt("PORT", 7860),
		ModelKind:        getEnv("MODEL_KIND", "detr"),
		ModelPath:        getEnv("MODEL_PATH", filepath.Join(".", "models", "detr-resnet-50.onnx")),
		ConfigPath:       getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		LabelsPath:       getEnv("LABELS_PATH", ""),
		ModelInstances:   getEnvAsInt("MODEL_INSTANCES", 1),
		FontPath:         getEnv("FONT_PATH", ""),
		FontSize:         getEnvAsFloat("FONT_SIZE", 14),
		BoxColor:         getEnv("BOX_COLOR", "#007AFF"),
		DefaultThreshold: getEnvAsFloat("DEFAULT_THRESHOLD", 0.9),
		InferenceURL:     getEnv("INFERENCE_URL", ""),
		ProxyTimeout:     getEnvAsDuration("PROXY_TIMEOUT", 60),
		MaxUploadSize:    getEnvAsInt64("MAX_UPLOAD_MB", 20) << 20,
		StaticDirectory:  getEnv("STATIC_DIR", "static"),
		LogDirectory:     getEnv("LOG_DIR", filepath.Join(".", "logs")),
		DatabasePath:     getEnv("DB_PATH", ""),
		FlushInterval:    getEnvAsDuration("FLUSH_INTERVAL", 5),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration reads a whole number of seconds.
func getEnvAsDuration(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultSeconds)) * time.Second
}
