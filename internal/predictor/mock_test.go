package predictor

import (
	"context"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRecognizeRunsDetection(t *testing.T) {
	mock := NewMock()

	results, err := mock.RecognizeText(context.Background(), []image.Image{testImage()}, mock)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.EqualValues(t, 1, mock.DetectCalls())
}

// A single mock serves concurrent requests under MODEL_BACKEND=mock; the
// call counter has to hold up under parallel traffic.
func TestMockDetectCallsConcurrent(t *testing.T) {
	mock := NewMock()
	images := []image.Image{testImage()}

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := mock.DetectText(context.Background(), images)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, workers, mock.DetectCalls())
}
