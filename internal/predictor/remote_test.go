package predictor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 10, 10))
}

func TestRemoteClientDetectText(t *testing.T) {
	var gotReq predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict/detect_text", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [{
			"bboxes": [{"polygon": [[0,0],[5,0],[5,2],[0,2]], "confidence": 0.9, "bbox": [0,0,5,2]}],
			"image_bbox": [0,0,10,10]
		}]}`))
	}))
	defer srv.Close()

	client := NewRemoteClient(RemoteConfig{
		BaseURL:            srv.URL,
		DetectionBatchSize: 36,
		TorchDevice:        "cuda",
		BlankThreshold:     0.35,
		TextThreshold:      0.6,
		DisableMath:        true,
	})

	results, err := client.DetectText(context.Background(), []image.Image{testImage()})
	require.NoError(t, err)

	require.Len(t, results, 1)
	require.Len(t, results[0].Bboxes, 1)
	assert.Equal(t, 0.9, results[0].Bboxes[0].Confidence)
	assert.Equal(t, []float64{0, 0, 5, 2}, results[0].Bboxes[0].Bbox)
	assert.Equal(t, []float64{0, 0, 10, 10}, results[0].ImageBbox)

	// The request carried one base64 PNG plus the batch size and model
	// execution hints.
	require.Len(t, gotReq.Images, 1)
	data, err := base64.StdEncoding.DecodeString(gotReq.Images[0])
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(data[:4]))
	assert.Equal(t, 36, gotReq.BatchSize)
	assert.Equal(t, "cuda", gotReq.TorchDevice)
	assert.Equal(t, 0.35, gotReq.BlankThreshold)
	assert.Equal(t, 0.6, gotReq.TextThreshold)
	assert.True(t, gotReq.DisableMath)
}

func TestRemoteClientRecognizeText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict/extract_text", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [{
			"text_lines": [{
				"text": "Hello",
				"confidence": 0.98,
				"polygon": [[0,0],[50,0],[50,10],[0,10]],
				"bbox": [0,0,50,10],
				"chars": [{"text": "H", "confidence": 0.99, "polygon": [[0,0],[10,0],[10,10],[0,10]], "bbox": [0,0,10,10]}]
			}],
			"image_bbox": [0,0,10,10]
		}]}`))
	}))
	defer srv.Close()

	client := NewRemoteClient(RemoteConfig{BaseURL: srv.URL})

	results, err := client.RecognizeText(context.Background(), []image.Image{testImage()}, nil)
	require.NoError(t, err)

	require.Len(t, results, 1)
	require.Len(t, results[0].TextLines, 1)
	line := results[0].TextLines[0]
	assert.Equal(t, "Hello", line.Text)
	require.Len(t, line.Chars, 1)
	assert.Equal(t, "H", line.Chars[0].Text)
}

func TestRemoteClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "model crashed"}`))
	}))
	defer srv.Close()

	client := NewRemoteClient(RemoteConfig{BaseURL: srv.URL})

	_, err := client.AnalyzeLayout(context.Background(), []image.Image{testImage()})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "model crashed")
}

func TestRemoteClientCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	client := NewRemoteClient(RemoteConfig{BaseURL: srv.URL})

	_, err := client.RecognizeTables(context.Background(), []image.Image{testImage()})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResultCountMismatch)
}

// A null entry in the result batch passes the length check but carries no
// fields; it must be rejected here instead of surfacing later as a nil
// record.
func TestRemoteClientNullResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [null]}`))
	}))
	defer srv.Close()

	client := NewRemoteClient(RemoteConfig{BaseURL: srv.URL})

	_, err := client.DetectText(context.Background(), []image.Image{testImage()})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNullResult)
}

func TestRemoteClientEmptyBatch(t *testing.T) {
	client := NewRemoteClient(RemoteConfig{BaseURL: "http://localhost:0"})

	_, err := client.DetectText(context.Background(), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestRemoteClientUnreachable(t *testing.T) {
	// Reserve a port and close it so the connection is refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewRemoteClient(RemoteConfig{BaseURL: url})

	_, err := client.DetectText(context.Background(), []image.Image{testImage()})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
