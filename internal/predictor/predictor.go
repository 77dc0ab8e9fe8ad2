// Package predictor defines the boundary to the pre-trained document
// understanding models and the structured results they emit.
//
// The models themselves are opaque: each predictor maps a batch of decoded
// images to one structured result per image, in input order. This package
// carries the four predictor contracts, the result schema, and the
// interchangeable backends (remote model server, local tesseract, Google
// Cloud Vision, Document AI, mock).
//
// Backend selection:
//   - MODEL_BACKEND: "remote" (default) or "mock", serves all four tasks
//   - OCR_BACKEND: optional override for detection/recognition
//     ("tesseract" or "vision")
//   - TABLE_BACKEND: optional override for table structure ("documentai")
package predictor

import (
	"context"
	"image"
)

// TextDetector locates text lines in images.
type TextDetector interface {
	// DetectText returns one detection result per image, in input order.
	DetectText(ctx context.Context, images []image.Image) ([]*TextDetection, error)
}

// TextRecognizer performs OCR on images.
type TextRecognizer interface {
	// RecognizeText returns one recognition result per image, in input
	// order. Recognition needs line locations, so the detector is passed
	// in as a sub-step; backends with an internal detection stage may
	// ignore it.
	RecognizeText(ctx context.Context, images []image.Image, det TextDetector) ([]*Recognition, error)
}

// LayoutAnalyzer detects layout regions (tables, figures, headers, ...).
type LayoutAnalyzer interface {
	AnalyzeLayout(ctx context.Context, images []image.Image) ([]*Layout, error)
}

// TableRecognizer extracts table structure (rows, columns, cells).
type TableRecognizer interface {
	RecognizeTables(ctx context.Context, images []image.Image) ([]*TableStructure, error)
}
