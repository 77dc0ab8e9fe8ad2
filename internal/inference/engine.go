// Package inference dispatches document understanding tasks to the loaded
// predictors and post-processes their results into JSON-compatible payloads.
package inference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/pallav-m/surya-isolation/internal/logger"
	"github.com/pallav-m/surya-isolation/internal/predictor"
	"github.com/pallav-m/surya-isolation/internal/serialize"
	"github.com/pallav-m/surya-isolation/internal/textextract"
)

// Task identifiers accepted by Run.
const (
	TaskExtractText   = "extract_text"
	TaskDetectText    = "detect_text"
	TaskDetectLayout  = "detect_layout"
	TaskProcessTables = "process_tables"
)

// ErrUnknownTask is returned for task identifiers outside the four supported
// tasks. It marks rejected input, not a predictor failure.
var ErrUnknownTask = errors.New("unknown task type")

// Engine holds the predictor instances for the four tasks. Predictors are
// created once at startup (model loading is expensive) and the engine is
// shared by reference across requests; it holds no per-request state.
type Engine struct {
	detector   predictor.TextDetector
	recognizer predictor.TextRecognizer
	layout     predictor.LayoutAnalyzer
	tables     predictor.TableRecognizer
	log        zerolog.Logger
}

// New assembles an engine from the four predictors.
func New(det predictor.TextDetector, rec predictor.TextRecognizer, lay predictor.LayoutAnalyzer, tab predictor.TableRecognizer) *Engine {
	return &Engine{
		detector:   det,
		recognizer: rec,
		layout:     lay,
		tables:     tab,
		log:        logger.WithComponent("inference"),
	}
}

// Tasks lists the supported task identifiers, sorted.
func (e *Engine) Tasks() []string {
	tasks := []string{TaskExtractText, TaskDetectText, TaskDetectLayout, TaskProcessTables}
	sort.Strings(tasks)
	return tasks
}

// Run dispatches a batch of images to the predictor for the named task and
// returns one normalized result per image, in input order.
func (e *Engine) Run(ctx context.Context, task string, images []image.Image) ([]map[string]any, error) {
	start := time.Now()

	var results []map[string]any
	var err error
	switch task {
	case TaskExtractText:
		results, err = e.RecognizeText(ctx, images)
	case TaskDetectText:
		results, err = e.DetectText(ctx, images)
	case TaskDetectLayout:
		results, err = e.AnalyzeLayout(ctx, images)
	case TaskProcessTables:
		results, err = e.RecognizeTables(ctx, images)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("task", task).
		Int("images", len(images)).
		Dur("duration", time.Since(start)).
		Msg("task completed")

	return results, nil
}

// DetectText runs text detection and normalizes the results.
func (e *Engine) DetectText(ctx context.Context, images []image.Image) ([]map[string]any, error) {
	detections, err := e.detector.DetectText(ctx, images)
	if err != nil {
		return nil, err
	}
	if err := checkCount(len(detections), len(images)); err != nil {
		return nil, err
	}
	return serialize.NormalizeAll(detections), nil
}

// RecognizeText runs OCR (with the detection sub-step), normalizes the
// results, and derives the combined per-image text while stripping the
// per-character data.
func (e *Engine) RecognizeText(ctx context.Context, images []image.Image) ([]map[string]any, error) {
	recognitions, err := e.recognizer.RecognizeText(ctx, images, e.detector)
	if err != nil {
		return nil, err
	}
	if err := checkCount(len(recognitions), len(images)); err != nil {
		return nil, err
	}

	results := serialize.NormalizeAll(recognitions)
	if err := textextract.CombineText(results); err != nil {
		return nil, err
	}
	return results, nil
}

// AnalyzeLayout runs layout analysis and normalizes the results.
func (e *Engine) AnalyzeLayout(ctx context.Context, images []image.Image) ([]map[string]any, error) {
	layouts, err := e.layout.AnalyzeLayout(ctx, images)
	if err != nil {
		return nil, err
	}
	if err := checkCount(len(layouts), len(images)); err != nil {
		return nil, err
	}
	return serialize.NormalizeAll(layouts), nil
}

// RecognizeTables runs table structure recognition and normalizes the
// results.
func (e *Engine) RecognizeTables(ctx context.Context, images []image.Image) ([]map[string]any, error) {
	tables, err := e.tables.RecognizeTables(ctx, images)
	if err != nil {
		return nil, err
	}
	if err := checkCount(len(tables), len(images)); err != nil {
		return nil, err
	}
	return serialize.NormalizeAll(tables), nil
}

func checkCount(got, want int) error {
	if got != want {
		return fmt.Errorf("%w: got %d results for %d images",
			predictor.ErrResultCountMismatch, got, want)
	}
	return nil
}
