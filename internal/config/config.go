// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pallav-m/surya-isolation/internal/logger"
)

// Backend identifiers accepted in MODEL_BACKEND / OCR_BACKEND /
// TABLE_BACKEND.
const (
	BackendRemote     = "remote"
	BackendMock       = "mock"
	BackendTesseract  = "tesseract"
	BackendVision     = "vision"
	BackendDocumentAI = "documentai"
)

type Config struct {
	// Model backend selection. ModelBackend serves every task; the OCR and
	// table overrides swap in an alternative backend for their tasks only.
	ModelBackend   string
	OCRBackend     string
	TableBackend   string
	ModelServerURL string

	// Performance settings
	DetectionBatchSize   int
	RecognitionBatchSize int
	LayoutBatchSize      int
	TableRecBatchSize    int

	// Device settings, forwarded to the model server
	TorchDevice string

	// Detection thresholds
	DetectorBlankThreshold float64
	DetectorTextThreshold  float64

	// Enable/disable math recognition
	DisableMath bool

	// Tesseract languages (comma-separated, e.g. "eng,deu")
	TesseractLanguages string

	// HTTP server settings
	HTTPHost       string
	HTTPPort       int
	RequestTimeout time.Duration
	MaxBatchImages int

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		ModelBackend:           getEnv("MODEL_BACKEND", BackendRemote),
		OCRBackend:             getEnv("OCR_BACKEND", ""),
		TableBackend:           getEnv("TABLE_BACKEND", ""),
		ModelServerURL:         getEnv("MODEL_SERVER_URL", "http://localhost:9200"),
		DetectionBatchSize:     getEnvInt("DETECTOR_BATCH_SIZE", 36),
		RecognitionBatchSize:   getEnvInt("RECOGNITION_BATCH_SIZE", 512),
		LayoutBatchSize:        getEnvInt("LAYOUT_BATCH_SIZE", 32),
		TableRecBatchSize:      getEnvInt("TABLE_REC_BATCH_SIZE", 64),
		TorchDevice:            getEnv("TORCH_DEVICE", "auto"),
		DetectorBlankThreshold: getEnvFloat("DETECTOR_BLANK_THRESHOLD", 0.35),
		DetectorTextThreshold:  getEnvFloat("DETECTOR_TEXT_THRESHOLD", 0.6),
		DisableMath:            getEnvBool("DISABLE_MATH", false),
		TesseractLanguages:     getEnv("TESSERACT_LANGUAGES", ""),
		HTTPHost:               getEnv("HTTP_HOST", "0.0.0.0"),
		HTTPPort:               getEnvInt("HTTP_PORT", 8000),
		RequestTimeout:         time.Duration(getEnvInt("REQUEST_TIMEOUT", 300)) * time.Second,
		MaxBatchImages:         getEnvInt("MAX_BATCH_IMAGES", 10),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:          getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:              getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.ModelBackend {
	case BackendRemote, BackendMock:
	default:
		return fmt.Errorf("MODEL_BACKEND must be %q or %q, got %q", BackendRemote, BackendMock, c.ModelBackend)
	}
	switch c.OCRBackend {
	case "", BackendTesseract, BackendVision:
	default:
		return fmt.Errorf("OCR_BACKEND must be empty, %q or %q, got %q", BackendTesseract, BackendVision, c.OCRBackend)
	}
	switch c.TableBackend {
	case "", BackendDocumentAI:
	default:
		return fmt.Errorf("TABLE_BACKEND must be empty or %q, got %q", BackendDocumentAI, c.TableBackend)
	}
	if c.ModelBackend == BackendRemote && c.ModelServerURL == "" {
		return fmt.Errorf("MODEL_SERVER_URL is required for the remote backend")
	}
	if c.MaxBatchImages < 1 {
		return fmt.Errorf("MAX_BATCH_IMAGES must be at least 1")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
