package inference

import (
	"context"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pallav-m/surya-isolation/internal/predictor"
)

func testImages(n int) []image.Image {
	images := make([]image.Image, n)
	for i := range images {
		images[i] = image.NewRGBA(image.Rect(0, 0, 100, 100))
	}
	return images
}

func newMockEngine() (*Engine, *predictor.Mock) {
	mock := predictor.NewMock()
	return New(mock, mock, mock, mock), mock
}

func TestRunSingleImagePreservesCount(t *testing.T) {
	engine, _ := newMockEngine()

	for _, task := range engine.Tasks() {
		results, err := engine.Run(context.Background(), task, testImages(1))
		require.NoError(t, err, task)
		assert.Len(t, results, 1, task)
	}
}

func TestRunUnknownTask(t *testing.T) {
	engine, _ := newMockEngine()

	_, err := engine.Run(context.Background(), "bogus_task", testImages(1))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestExtractTextCombinesLines(t *testing.T) {
	engine, _ := newMockEngine()

	results, err := engine.Run(context.Background(), TaskExtractText, testImages(2))
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, result := range results {
		combined, ok := result["combined_text"].(string)
		require.True(t, ok, "combined_text missing")
		assert.Contains(t, combined, "\n")

		// chars is stripped from every text line.
		for _, rawLine := range result["text_lines"].([]any) {
			assert.NotContains(t, rawLine.(map[string]any), "chars")
		}
	}
}

func TestExtractTextRunsDetectionSubStep(t *testing.T) {
	engine, mock := newMockEngine()

	_, err := engine.Run(context.Background(), TaskExtractText, testImages(1))
	require.NoError(t, err)

	assert.EqualValues(t, 1, mock.DetectCalls())
}

func TestDetectTextResultsAreNormalized(t *testing.T) {
	engine, _ := newMockEngine()

	results, err := engine.Run(context.Background(), TaskDetectText, testImages(1))
	require.NoError(t, err)
	require.Len(t, results, 1)

	bboxes, ok := results[0]["bboxes"].([]any)
	require.True(t, ok, "bboxes should be a normalized sequence")
	require.NotEmpty(t, bboxes)
	box, ok := bboxes[0].(map[string]any)
	require.True(t, ok, "detection box should be a normalized mapping")
	assert.Contains(t, box, "polygon")
	assert.Contains(t, box, "confidence")
	assert.Contains(t, box, "bbox")
}

func TestRunPreservesImageOrder(t *testing.T) {
	engine, _ := newMockEngine()

	results, err := engine.Run(context.Background(), TaskExtractText, testImages(5))
	require.NoError(t, err)
	require.Len(t, results, 5)

	for i, result := range results {
		assert.Contains(t, result["combined_text"], fmt.Sprintf("(image %d)", i))
	}
}

// shortDetector violates the length-preserving contract.
type shortDetector struct{ predictor.Mock }

func (s *shortDetector) DetectText(ctx context.Context, images []image.Image) ([]*predictor.TextDetection, error) {
	results, err := s.Mock.DetectText(ctx, images)
	if err != nil {
		return nil, err
	}
	return results[:len(results)-1], nil
}

func TestRunRejectsCountMismatch(t *testing.T) {
	bad := &shortDetector{}
	mock := predictor.NewMock()
	engine := New(bad, mock, mock, mock)

	_, err := engine.Run(context.Background(), TaskDetectText, testImages(2))

	require.Error(t, err)
	assert.ErrorIs(t, err, predictor.ErrResultCountMismatch)
}

func TestTasksListsAllFour(t *testing.T) {
	engine, _ := newMockEngine()

	assert.ElementsMatch(t,
		[]string{"extract_text", "detect_text", "detect_layout", "process_tables"},
		engine.Tasks())
}
