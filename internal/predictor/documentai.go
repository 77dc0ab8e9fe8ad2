package predictor

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/pallav-m/surya-isolation/internal/imageio"
	"github.com/pallav-m/surya-isolation/internal/logger"
)

// DocumentAIConfig holds Document AI connection settings.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
	Timeout     time.Duration
}

// DocumentAIBackend implements table structure recognition on a Google
// Document AI form-parser processor, for deployments without a model
// server. Like the table model it stands in for, it expects images cropped
// to a single table; when a page carries several tables only the first is
// returned.
type DocumentAIBackend struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIBackend creates the backend with credentials from the
// environment. Requires GOOGLE_PROJECT_ID (or GOOGLE_CLOUD_PROJECT) and
// GOOGLE_PROCESSOR_ID (or DOCUMENT_AI_PROCESSOR_ID); location defaults to
// "us".
func NewDocumentAIBackend(ctx context.Context) (*DocumentAIBackend, error) {
	const op = "NewDocumentAIBackend"

	config := DocumentAIConfig{
		ProjectID:   getEnvVar("GOOGLE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"),
		Location:    getEnvVar("GOOGLE_LOCATION", "GOOGLE_CLOUD_LOCATION"),
		ProcessorID: getEnvVar("GOOGLE_PROCESSOR_ID", "DOCUMENT_AI_PROCESSOR_ID"),
		Timeout:     60 * time.Second,
	}
	if config.ProjectID == "" {
		return nil, WrapPredictorError(op, ErrMissingCredentials, "GOOGLE_PROJECT_ID or GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, WrapPredictorError(op, ErrMissingCredentials, "GOOGLE_PROCESSOR_ID or DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	var clientOptions []option.ClientOption
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 {
			return nil, WrapPredictorError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapPredictorError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAIBackend{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}, nil
}

// NewDocumentAIBackendWithConfig creates the backend with an explicit
// config and client (for testing).
func NewDocumentAIBackendWithConfig(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIBackend {
	return &DocumentAIBackend{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}
}

// RecognizeTables implements TableRecognizer.
func (d *DocumentAIBackend) RecognizeTables(ctx context.Context, images []image.Image) ([]*TableStructure, error) {
	const op = "RecognizeTables"

	if len(images) == 0 {
		return nil, WrapPredictorError(op, ErrEmptyBatch, "")
	}

	// Document AI has no batch image endpoint; images are processed one
	// request at a time, preserving input order.
	results := make([]*TableStructure, len(images))
	for i, img := range images {
		table, err := d.recognizeOne(ctx, img)
		if err != nil {
			return nil, WrapPredictorError(op, err, fmt.Sprintf("image %d", i))
		}
		results[i] = table
	}
	return results, nil
}

func (d *DocumentAIBackend) recognizeOne(ctx context.Context, img image.Image) (*TableStructure, error) {
	data, err := imageio.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	processCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: "image/png",
			},
		},
	}

	resp, err := d.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, d.handleProcessingError(err)
	}
	if resp.GetDocument() == nil {
		return nil, fmt.Errorf("%w: no document in response", ErrBackendUnavailable)
	}

	return documentToTable(resp.GetDocument(), img), nil
}

// processorName constructs the full processor resource name.
func (d *DocumentAIBackend) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		d.config.ProjectID, d.config.Location, d.config.ProcessorID)
}

// handleProcessingError converts Document AI errors to predictor errors.
func (d *DocumentAIBackend) handleProcessingError(err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("%w: insufficient permissions for Document AI", ErrMissingCredentials)
	case strings.Contains(errStr, "NOT_FOUND"):
		return fmt.Errorf("%w: processor not found: %s", ErrBackendUnavailable, d.config.ProcessorID)
	case strings.Contains(errStr, "DeadlineExceeded") || strings.Contains(errStr, "context deadline exceeded"):
		return context.DeadlineExceeded
	default:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}

// documentToTable maps the first table of the first page onto the table
// structure schema.
func documentToTable(doc *documentaipb.Document, img image.Image) *TableStructure {
	result := &TableStructure{ImageBbox: imageBbox(img)}

	pages := doc.GetPages()
	if len(pages) == 0 || len(pages[0].GetTables()) == 0 {
		return result
	}
	table := pages[0].GetTables()[0]

	colBboxes := map[int][]float64{}
	rowID := 0
	addRows := func(rows []*documentaipb.Document_Page_Table_TableRow, isHeader bool) {
		for _, row := range rows {
			var rowBbox []float64
			colID := 0
			for _, cell := range row.GetCells() {
				bbox := layoutBbox(cell.GetLayout())
				result.Cells = append(result.Cells, &TableCell{
					RowID:   rowID,
					ColID:   colID,
					RowSpan: int(cell.GetRowSpan()),
					ColSpan: int(cell.GetColSpan()),
					Bbox:    bbox,
					Text:    anchorText(doc, cell.GetLayout().GetTextAnchor()),
				})
				rowBbox = mergeBbox(rowBbox, bbox)
				colBboxes[colID] = mergeBbox(colBboxes[colID], bbox)
				colID += span(cell.GetColSpan())
			}
			result.Rows = append(result.Rows, &TableRow{
				RowID:    rowID,
				Bbox:     rowBbox,
				IsHeader: isHeader,
			})
			rowID++
		}
	}
	addRows(table.GetHeaderRows(), true)
	addRows(table.GetBodyRows(), false)

	for colID := 0; colID < len(colBboxes); colID++ {
		result.Cols = append(result.Cols, &TableCol{
			ColID: colID,
			Bbox:  colBboxes[colID],
		})
	}
	return result
}

// anchorText resolves a text anchor against the document's full text.
func anchorText(doc *documentaipb.Document, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil {
		return ""
	}
	text := doc.GetText()
	var sb strings.Builder
	for _, segment := range anchor.GetTextSegments() {
		start, end := segment.GetStartIndex(), segment.GetEndIndex()
		if start < 0 || end > int64(len(text)) || start > end {
			continue
		}
		sb.WriteString(text[start:end])
	}
	return strings.TrimSpace(sb.String())
}

func layoutBbox(layout *documentaipb.Document_Page_Layout) []float64 {
	vertices := layout.GetBoundingPoly().GetVertices()
	if len(vertices) == 0 {
		return nil
	}
	minX, minY := float64(vertices[0].GetX()), float64(vertices[0].GetY())
	maxX, maxY := minX, minY
	for _, v := range vertices[1:] {
		x, y := float64(v.GetX()), float64(v.GetY())
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	return []float64{minX, minY, maxX, maxY}
}

func mergeBbox(a, b []float64) []float64 {
	switch {
	case len(a) == 0:
		return b
	case len(b) == 0:
		return a
	default:
		return unionBbox(a, b)
	}
}

func span(s int32) int {
	if s <= 0 {
		return 1
	}
	return int(s)
}

// Close closes the underlying Document AI client.
func (d *DocumentAIBackend) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

// getEnvVar returns the first non-empty value among the named environment
// variables.
func getEnvVar(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
