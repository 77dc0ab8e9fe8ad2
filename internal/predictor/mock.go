package predictor

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"
)

// Mock is a canned backend for tests and local development without models.
// It implements all four predictor interfaces and returns deterministic
// results shaped exactly like real model output. A single Mock is safe for
// concurrent requests.
type Mock struct {
	detectCalls atomic.Int64
}

// NewMock creates a mock backend.
func NewMock() *Mock {
	return &Mock{}
}

// DetectCalls reports DetectText invocations, including the detection
// sub-step triggered by recognition.
func (m *Mock) DetectCalls() int64 {
	return m.detectCalls.Load()
}

// DetectText implements TextDetector.
func (m *Mock) DetectText(_ context.Context, images []image.Image) ([]*TextDetection, error) {
	m.detectCalls.Add(1)
	results := make([]*TextDetection, len(images))
	for i, img := range images {
		results[i] = &TextDetection{
			Bboxes: []*PolygonBox{{
				Polygon:    rectPolygon(10, 10, 200, 30),
				Confidence: 0.99,
				Bbox:       []float64{10, 10, 200, 30},
			}},
			ImageBbox: imageBbox(img),
		}
	}
	return results, nil
}

// RecognizeText implements TextRecognizer. The detector sub-step is invoked
// so wiring through the engine is exercised the same way as with real
// backends.
func (m *Mock) RecognizeText(ctx context.Context, images []image.Image, det TextDetector) ([]*Recognition, error) {
	if det != nil {
		if _, err := det.DetectText(ctx, images); err != nil {
			return nil, err
		}
	}
	results := make([]*Recognition, len(images))
	for i, img := range images {
		results[i] = &Recognition{
			TextLines: []*TextLine{
				mockLine(fmt.Sprintf("The quick brown fox jumps over the lazy dog (image %d)", i), 10),
				mockLine("Invoice total: 123.45 EUR", 40),
			},
			ImageBbox: imageBbox(img),
		}
	}
	return results, nil
}

// AnalyzeLayout implements LayoutAnalyzer.
func (m *Mock) AnalyzeLayout(_ context.Context, images []image.Image) ([]*Layout, error) {
	results := make([]*Layout, len(images))
	for i, img := range images {
		results[i] = &Layout{
			Bboxes: []*LayoutBox{
				{
					Polygon:    rectPolygon(0, 0, 400, 60),
					Confidence: 0.97,
					Bbox:       []float64{0, 0, 400, 60},
					Label:      "SectionHeader",
					Position:   0,
				},
				{
					Polygon:    rectPolygon(0, 80, 400, 500),
					Confidence: 0.95,
					Bbox:       []float64{0, 80, 400, 500},
					Label:      "Text",
					Position:   1,
				},
			},
			ImageBbox: imageBbox(img),
		}
	}
	return results, nil
}

// RecognizeTables implements TableRecognizer.
func (m *Mock) RecognizeTables(_ context.Context, images []image.Image) ([]*TableStructure, error) {
	results := make([]*TableStructure, len(images))
	for i, img := range images {
		results[i] = &TableStructure{
			Rows: []*TableRow{
				{RowID: 0, Bbox: []float64{0, 0, 300, 20}, IsHeader: true},
				{RowID: 1, Bbox: []float64{0, 20, 300, 40}},
			},
			Cols: []*TableCol{
				{ColID: 0, Bbox: []float64{0, 0, 150, 40}, IsHeader: false},
				{ColID: 1, Bbox: []float64{150, 0, 300, 40}, IsHeader: false},
			},
			Cells: []*TableCell{
				{RowID: 0, ColID: 0, RowSpan: 1, ColSpan: 1, Bbox: []float64{0, 0, 150, 20}},
				{RowID: 0, ColID: 1, RowSpan: 1, ColSpan: 1, Bbox: []float64{150, 0, 300, 20}},
				{RowID: 1, ColID: 0, RowSpan: 1, ColSpan: 1, Bbox: []float64{0, 20, 150, 40}},
				{RowID: 1, ColID: 1, RowSpan: 1, ColSpan: 1, Bbox: []float64{150, 20, 300, 40}},
			},
			ImageBbox: imageBbox(img),
		}
	}
	return results, nil
}

func mockLine(text string, y float64) *TextLine {
	line := &TextLine{
		Text:       text,
		Confidence: 0.98,
		Polygon:    rectPolygon(10, y, 390, y+20),
		Bbox:       []float64{10, y, 390, y + 20},
	}
	step := 380.0 / float64(len(text))
	for i, r := range text {
		x := 10 + float64(i)*step
		line.Chars = append(line.Chars, &TextChar{
			Text:       string(r),
			Confidence: 0.98,
			Polygon:    rectPolygon(x, y, x+step, y+20),
			Bbox:       []float64{x, y, x + step, y + 20},
		})
	}
	return line
}

func imageBbox(img image.Image) []float64 {
	b := img.Bounds()
	return []float64{0, 0, float64(b.Dx()), float64(b.Dy())}
}
