package predictor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pallav-m/surya-isolation/internal/imageio"
	"github.com/pallav-m/surya-isolation/internal/logger"
)

// RemoteConfig configures the model-server client.
type RemoteConfig struct {
	// BaseURL is the model server root, e.g. "http://localhost:9200".
	BaseURL string

	// Timeout bounds a single prediction round trip. Zero means the
	// caller's context is the only deadline.
	Timeout time.Duration

	// Per-task batch size hints forwarded to the server.
	DetectionBatchSize   int
	RecognitionBatchSize int
	LayoutBatchSize      int
	TableRecBatchSize    int

	// Model execution hints forwarded with every request.
	TorchDevice    string
	BlankThreshold float64
	TextThreshold  float64
	DisableMath    bool
}

// RemoteClient talks to a model-runner sidecar that hosts the actual
// detection, recognition, layout and table models. It implements all four
// predictor interfaces.
//
// Protocol: POST {base}/predict/{task} with a JSON body of base64 PNG
// images; the server responds with one structured result per image, in
// input order.
type RemoteClient struct {
	config     RemoteConfig
	httpClient *http.Client
	log        zerolog.Logger
}

// NewRemoteClient creates a model-server client.
func NewRemoteClient(config RemoteConfig) *RemoteClient {
	return &RemoteClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		log:        logger.WithComponent("remote-predictor"),
	}
}

type predictRequest struct {
	Images         []string `json:"images"`
	BatchSize      int      `json:"batch_size,omitempty"`
	TorchDevice    string   `json:"torch_device,omitempty"`
	BlankThreshold float64  `json:"blank_threshold,omitempty"`
	TextThreshold  float64  `json:"text_threshold,omitempty"`
	DisableMath    bool     `json:"disable_math,omitempty"`
}

type remoteError struct {
	Error string `json:"error"`
}

// DetectText implements TextDetector.
func (c *RemoteClient) DetectText(ctx context.Context, images []image.Image) ([]*TextDetection, error) {
	var out struct {
		Results []*TextDetection `json:"results"`
	}
	if err := c.predict(ctx, "detect_text", images, c.config.DetectionBatchSize, &out); err != nil {
		return nil, err
	}
	return checkCount("DetectText", out.Results, len(images))
}

// RecognizeText implements TextRecognizer. The model server runs its own
// detection stage, so the detector argument is not consulted here.
func (c *RemoteClient) RecognizeText(ctx context.Context, images []image.Image, _ TextDetector) ([]*Recognition, error) {
	var out struct {
		Results []*Recognition `json:"results"`
	}
	if err := c.predict(ctx, "extract_text", images, c.config.RecognitionBatchSize, &out); err != nil {
		return nil, err
	}
	return checkCount("RecognizeText", out.Results, len(images))
}

// AnalyzeLayout implements LayoutAnalyzer.
func (c *RemoteClient) AnalyzeLayout(ctx context.Context, images []image.Image) ([]*Layout, error) {
	var out struct {
		Results []*Layout `json:"results"`
	}
	if err := c.predict(ctx, "detect_layout", images, c.config.LayoutBatchSize, &out); err != nil {
		return nil, err
	}
	return checkCount("AnalyzeLayout", out.Results, len(images))
}

// RecognizeTables implements TableRecognizer.
func (c *RemoteClient) RecognizeTables(ctx context.Context, images []image.Image) ([]*TableStructure, error) {
	var out struct {
		Results []*TableStructure `json:"results"`
	}
	if err := c.predict(ctx, "process_tables", images, c.config.TableRecBatchSize, &out); err != nil {
		return nil, err
	}
	return checkCount("RecognizeTables", out.Results, len(images))
}

// predict ships a batch of images to the model server and decodes the
// response into out.
func (c *RemoteClient) predict(ctx context.Context, task string, images []image.Image, batchSize int, out any) error {
	const op = "predict"

	if len(images) == 0 {
		return WrapPredictorError(op, ErrEmptyBatch, task)
	}

	encoded := make([]string, len(images))
	for i, img := range images {
		data, err := imageio.EncodePNG(img)
		if err != nil {
			return WrapPredictorError(op, err, fmt.Sprintf("image %d", i))
		}
		encoded[i] = base64.StdEncoding.EncodeToString(data)
	}

	body, err := json.Marshal(predictRequest{
		Images:         encoded,
		BatchSize:      batchSize,
		TorchDevice:    c.config.TorchDevice,
		BlankThreshold: c.config.BlankThreshold,
		TextThreshold:  c.config.TextThreshold,
		DisableMath:    c.config.DisableMath,
	})
	if err != nil {
		return WrapPredictorError(op, err, "marshal request")
	}

	url := c.config.BaseURL + "/predict/" + task
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return WrapPredictorError(op, err, url)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("task", task).Msg("model server request failed")
		return WrapPredictorError(op, ErrBackendUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readRemoteError(resp.Body)
		c.log.Error().
			Str("task", task).
			Int("status", resp.StatusCode).
			Str("error", msg).
			Msg("model server rejected request")
		return WrapPredictorError(op, ErrBackendUnavailable,
			fmt.Sprintf("%s returned %d: %s", task, resp.StatusCode, msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return WrapPredictorError(op, err, "decode response")
	}

	c.log.Debug().
		Str("task", task).
		Int("images", len(images)).
		Dur("duration", time.Since(start)).
		Msg("prediction completed")

	return nil
}

func readRemoteError(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var remoteErr remoteError
	if json.Unmarshal(data, &remoteErr) == nil && remoteErr.Error != "" {
		return remoteErr.Error
	}
	return string(data)
}

// checkCount enforces the length-preserving predictor contract and rejects
// null entries, which would otherwise slip through as typed-nil records.
func checkCount[T any](op string, results []*T, want int) ([]*T, error) {
	if len(results) != want {
		return nil, WrapPredictorError(op, ErrResultCountMismatch,
			fmt.Sprintf("got %d results for %d images", len(results), want))
	}
	for i, r := range results {
		if r == nil {
			return nil, WrapPredictorError(op, ErrNullResult,
				fmt.Sprintf("result %d is null", i))
		}
	}
	return results, nil
}
