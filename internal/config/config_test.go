package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendRemote, cfg.ModelBackend)
	assert.Equal(t, "http://localhost:9200", cfg.ModelServerURL)
	assert.Equal(t, 36, cfg.DetectionBatchSize)
	assert.Equal(t, 512, cfg.RecognitionBatchSize)
	assert.Equal(t, 32, cfg.LayoutBatchSize)
	assert.Equal(t, 64, cfg.TableRecBatchSize)
	assert.Equal(t, "auto", cfg.TorchDevice)
	assert.InDelta(t, 0.35, cfg.DetectorBlankThreshold, 1e-9)
	assert.InDelta(t, 0.6, cfg.DetectorTextThreshold, 1e-9)
	assert.False(t, cfg.DisableMath)
	assert.Equal(t, 10, cfg.MaxBatchImages)
	assert.Equal(t, 300*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "0.0.0.0:8000", cfg.ListenAddr())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MODEL_BACKEND", "mock")
	t.Setenv("DETECTOR_BATCH_SIZE", "8")
	t.Setenv("DETECTOR_TEXT_THRESHOLD", "0.75")
	t.Setenv("DISABLE_MATH", "true")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMock, cfg.ModelBackend)
	assert.Equal(t, 8, cfg.DetectionBatchSize)
	assert.InDelta(t, 0.75, cfg.DetectorTextThreshold, 1e-9)
	assert.True(t, cfg.DisableMath)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.GetLoggerConfig().Level)
}

func TestLoadInvalidBackend(t *testing.T) {
	t.Setenv("MODEL_BACKEND", "quantum")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoadInvalidOCRBackend(t *testing.T) {
	t.Setenv("OCR_BACKEND", "abbyy")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoadMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("RECOGNITION_BATCH_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.RecognitionBatchSize)
}
