package predictor

import (
	"context"
	"fmt"
	"image"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/pallav-m/surya-isolation/internal/imageio"
	"github.com/pallav-m/surya-isolation/internal/logger"
)

// VisionBackend implements text detection and recognition on Google Cloud
// Vision, for deployments without a model server. Vision has no line-level
// concept, so each paragraph of the full text annotation is treated as one
// text line; per-character data comes from the symbol annotations.
type VisionBackend struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

// NewVisionBackend creates the backend with credentials from the
// environment. It expects either GOOGLE_APPLICATION_CREDENTIALS path or
// GOOGLE_CREDENTIALS JSON in env, falling back to application default
// credentials.
func NewVisionBackend(ctx context.Context) (*VisionBackend, error) {
	const op = "NewVisionBackend"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapPredictorError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapPredictorError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapPredictorError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &VisionBackend{
		client: client,
		log:    logger.WithComponent("vision"),
	}, nil
}

// NewVisionBackendWithClient creates the backend with an explicit client
// (for testing).
func NewVisionBackendWithClient(client *vision.ImageAnnotatorClient) *VisionBackend {
	return &VisionBackend{
		client: client,
		log:    logger.WithComponent("vision"),
	}
}

// DetectText implements TextDetector.
func (v *VisionBackend) DetectText(ctx context.Context, images []image.Image) ([]*TextDetection, error) {
	const op = "DetectText"

	annotations, err := v.annotate(ctx, op, images)
	if err != nil {
		return nil, err
	}

	results := make([]*TextDetection, len(images))
	for i, annotation := range annotations {
		detection := &TextDetection{ImageBbox: imageBbox(images[i])}
		forEachParagraph(annotation, func(p *visionpb.Paragraph) {
			polygon, bbox := polyToGeometry(p.GetBoundingBox())
			detection.Bboxes = append(detection.Bboxes, &PolygonBox{
				Polygon:    polygon,
				Confidence: float64(p.GetConfidence()),
				Bbox:       bbox,
			})
		})
		results[i] = detection
	}
	return results, nil
}

// RecognizeText implements TextRecognizer. Vision's document text detection
// includes its own detection stage, so the external detector is not
// consulted.
func (v *VisionBackend) RecognizeText(ctx context.Context, images []image.Image, _ TextDetector) ([]*Recognition, error) {
	const op = "RecognizeText"

	annotations, err := v.annotate(ctx, op, images)
	if err != nil {
		return nil, err
	}

	results := make([]*Recognition, len(images))
	for i, annotation := range annotations {
		recognition := &Recognition{ImageBbox: imageBbox(images[i])}
		forEachParagraph(annotation, func(p *visionpb.Paragraph) {
			recognition.TextLines = append(recognition.TextLines, paragraphToLine(p))
		})
		results[i] = recognition
	}
	return results, nil
}

// Close closes the underlying Vision client.
func (v *VisionBackend) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// annotate runs document text detection over the batch and returns one full
// text annotation per image (nil when the image has no text).
func (v *VisionBackend) annotate(ctx context.Context, op string, images []image.Image) ([]*visionpb.TextAnnotation, error) {
	if len(images) == 0 {
		return nil, WrapPredictorError(op, ErrEmptyBatch, "")
	}

	requests := make([]*visionpb.AnnotateImageRequest, len(images))
	for i, img := range images {
		data, err := imageio.EncodePNG(img)
		if err != nil {
			return nil, WrapPredictorError(op, err, fmt.Sprintf("image %d", i))
		}
		requests[i] = &visionpb.AnnotateImageRequest{
			Image: &visionpb.Image{Content: data},
			Features: []*visionpb.Feature{
				{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
			},
		}
	}

	resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{Requests: requests})
	if err != nil {
		v.log.Error().Err(err).Int("images", len(images)).Msg("Vision API call failed")
		return nil, WrapPredictorError(op, ErrBackendUnavailable, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.GetResponses()) != len(images) {
		return nil, WrapPredictorError(op, ErrResultCountMismatch,
			fmt.Sprintf("got %d responses for %d images", len(resp.GetResponses()), len(images)))
	}

	annotations := make([]*visionpb.TextAnnotation, len(images))
	for i, r := range resp.GetResponses() {
		if r.GetError() != nil {
			return nil, WrapPredictorError(op, ErrBackendUnavailable,
				fmt.Sprintf("Vision API error for image %d: %s", i, r.GetError().GetMessage()))
		}
		annotations[i] = r.GetFullTextAnnotation()
	}
	return annotations, nil
}

// forEachParagraph walks an annotation in reading order.
func forEachParagraph(annotation *visionpb.TextAnnotation, fn func(*visionpb.Paragraph)) {
	if annotation == nil {
		return
	}
	for _, page := range annotation.GetPages() {
		for _, block := range page.GetBlocks() {
			for _, paragraph := range block.GetParagraphs() {
				fn(paragraph)
			}
		}
	}
}

// paragraphToLine flattens a Vision paragraph into a text line with
// per-symbol character data.
func paragraphToLine(p *visionpb.Paragraph) *TextLine {
	polygon, bbox := polyToGeometry(p.GetBoundingBox())
	line := &TextLine{
		Confidence: float64(p.GetConfidence()),
		Polygon:    polygon,
		Bbox:       bbox,
	}

	var text []rune
	for _, word := range p.GetWords() {
		for _, symbol := range word.GetSymbols() {
			symPolygon, symBbox := polyToGeometry(symbol.GetBoundingBox())
			line.Chars = append(line.Chars, &TextChar{
				Text:       symbol.GetText(),
				Confidence: float64(symbol.GetConfidence()),
				Polygon:    symPolygon,
				Bbox:       symBbox,
			})
			text = append(text, []rune(symbol.GetText())...)

			switch symbol.GetProperty().GetDetectedBreak().GetType() {
			case visionpb.TextAnnotation_DetectedBreak_SPACE,
				visionpb.TextAnnotation_DetectedBreak_SURE_SPACE:
				text = append(text, ' ')
			}
		}
	}
	line.Text = string(text)
	return line
}

// polyToGeometry converts a Vision bounding poly to our polygon plus an
// axis-aligned bbox.
func polyToGeometry(poly *visionpb.BoundingPoly) ([][]float64, []float64) {
	vertices := poly.GetVertices()
	if len(vertices) == 0 {
		return nil, nil
	}

	polygon := make([][]float64, len(vertices))
	minX, minY := float64(vertices[0].GetX()), float64(vertices[0].GetY())
	maxX, maxY := minX, minY
	for i, v := range vertices {
		x, y := float64(v.GetX()), float64(v.GetY())
		polygon[i] = []float64{x, y}
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	return polygon, []float64{minX, minY, maxX, maxY}
}
