package predictor

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"github.com/pallav-m/surya-isolation/internal/imageio"
	"github.com/pallav-m/surya-isolation/internal/logger"
)

// TesseractBackend runs detection and recognition against a local tesseract
// installation through gosseract. It has no layout or table models.
//
// Tesseract reports word-level geometry; line results are assembled from the
// verbose bounding boxes and per-character geometry is approximated by
// dividing each word box evenly across its runes.
type TesseractBackend struct {
	clientFactory func() *gosseract.Client
	languages     []string
	log           zerolog.Logger
}

// NewTesseractBackend creates a tesseract-backed predictor. With no
// languages given, tesseract's default (eng) applies.
func NewTesseractBackend(languages ...string) *TesseractBackend {
	return &TesseractBackend{
		clientFactory: gosseract.NewClient,
		languages:     languages,
		log:           logger.WithComponent("tesseract"),
	}
}

// DetectText implements TextDetector using tesseract's text line iterator.
func (t *TesseractBackend) DetectText(ctx context.Context, images []image.Image) ([]*TextDetection, error) {
	const op = "DetectText"

	results := make([]*TextDetection, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, WrapPredictorError(op, err, "")
		}

		client := t.clientFactory()
		boxes, err := t.lineBoxes(client, img)
		client.Close()
		if err != nil {
			return nil, WrapPredictorError(op, err, fmt.Sprintf("image %d", i))
		}

		detection := &TextDetection{ImageBbox: imageBbox(img)}
		for _, b := range boxes {
			detection.Bboxes = append(detection.Bboxes, &PolygonBox{
				Polygon:    rectPolygonFromRect(b.Box),
				Confidence: b.Confidence / 100.0,
				Bbox:       bboxFromRect(b.Box),
			})
		}
		results[i] = detection
	}
	return results, nil
}

// RecognizeText implements TextRecognizer. Tesseract segments lines itself,
// so the external detector is not consulted.
func (t *TesseractBackend) RecognizeText(ctx context.Context, images []image.Image, _ TextDetector) ([]*Recognition, error) {
	const op = "RecognizeText"

	results := make([]*Recognition, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, WrapPredictorError(op, err, "")
		}

		client := t.clientFactory()
		words, err := t.wordBoxes(client, img)
		client.Close()
		if err != nil {
			return nil, WrapPredictorError(op, err, fmt.Sprintf("image %d", i))
		}

		results[i] = &Recognition{
			TextLines: assembleLines(words),
			ImageBbox: imageBbox(img),
		}
	}
	return results, nil
}

// AnalyzeLayout implements LayoutAnalyzer. Tesseract ships no layout model.
func (t *TesseractBackend) AnalyzeLayout(_ context.Context, _ []image.Image) ([]*Layout, error) {
	return nil, WrapPredictorError("AnalyzeLayout", ErrTaskUnsupported, "tesseract has no layout model")
}

// RecognizeTables implements TableRecognizer. Tesseract ships no table model.
func (t *TesseractBackend) RecognizeTables(_ context.Context, _ []image.Image) ([]*TableStructure, error) {
	return nil, WrapPredictorError("RecognizeTables", ErrTaskUnsupported, "tesseract has no table model")
}

func (t *TesseractBackend) lineBoxes(client *gosseract.Client, img image.Image) ([]gosseract.BoundingBox, error) {
	if err := t.setImage(client, img); err != nil {
		return nil, err
	}
	return client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
}

func (t *TesseractBackend) wordBoxes(client *gosseract.Client, img image.Image) ([]gosseract.BoundingBox, error) {
	if err := t.setImage(client, img); err != nil {
		return nil, err
	}
	return client.GetBoundingBoxesVerbose()
}

func (t *TesseractBackend) setImage(client *gosseract.Client, img image.Image) error {
	data, err := imageio.EncodePNG(img)
	if err != nil {
		return err
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return fmt.Errorf("set image: %w", err)
	}
	if len(t.languages) > 0 {
		if err := client.SetLanguage(t.languages...); err != nil {
			return fmt.Errorf("set languages: %w", err)
		}
	}
	return nil
}

// assembleLines groups word boxes into text lines. Verbose boxes carry
// block/paragraph/line numbering; a change in any of the three starts a new
// line.
func assembleLines(words []gosseract.BoundingBox) []*TextLine {
	var lines []*TextLine
	var current *TextLine
	var currentKey [3]int
	var wordTexts []string
	var confSum float64
	var confCount int

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.Join(wordTexts, " ")
		if confCount > 0 {
			current.Confidence = confSum / float64(confCount)
		}
		current.Polygon = rectPolygon(current.Bbox[0], current.Bbox[1], current.Bbox[2], current.Bbox[3])
		lines = append(lines, current)
		current = nil
		wordTexts = nil
		confSum = 0
		confCount = 0
	}

	for _, w := range words {
		key := [3]int{w.BlockNum, w.ParNum, w.LineNum}
		if current == nil || key != currentKey {
			flush()
			currentKey = key
			current = &TextLine{Bbox: bboxFromRect(w.Box)}
		} else {
			current.Bbox = unionBbox(current.Bbox, bboxFromRect(w.Box))
		}

		conf := w.Confidence / 100.0
		confSum += conf
		confCount++
		wordTexts = append(wordTexts, w.Word)
		current.Chars = append(current.Chars, wordChars(w.Word, w.Box, conf)...)
	}
	flush()
	return lines
}

// wordChars splits a word box evenly across its runes.
func wordChars(word string, box image.Rectangle, confidence float64) []*TextChar {
	runes := []rune(word)
	if len(runes) == 0 {
		return nil
	}
	step := float64(box.Dx()) / float64(len(runes))
	chars := make([]*TextChar, len(runes))
	for i, r := range runes {
		x0 := float64(box.Min.X) + float64(i)*step
		chars[i] = &TextChar{
			Text:       string(r),
			Confidence: confidence,
			Polygon:    rectPolygon(x0, float64(box.Min.Y), x0+step, float64(box.Max.Y)),
			Bbox:       []float64{x0, float64(box.Min.Y), x0 + step, float64(box.Max.Y)},
		}
	}
	return chars
}

func rectPolygonFromRect(r image.Rectangle) [][]float64 {
	return rectPolygon(float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y))
}

func bboxFromRect(r image.Rectangle) []float64 {
	return []float64{float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)}
}

func unionBbox(a, b []float64) []float64 {
	return []float64{
		min(a[0], b[0]),
		min(a[1], b[1]),
		max(a[2], b[2]),
		max(a[3], b[3]),
	}
}
