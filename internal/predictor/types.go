package predictor

// Structured results mirror the model suite's output schema. Every result
// type implements serialize.FieldDumper so the serialize package can flatten
// a batch into plain JSON-compatible mappings; the field names below are the
// wire names clients depend on.

// PolygonBox is a detected region: a four-point polygon with its axis-aligned
// bounding box and detection confidence.
type PolygonBox struct {
	Polygon    [][]float64 `json:"polygon"`
	Confidence float64     `json:"confidence"`
	Bbox       []float64   `json:"bbox"`
}

// Fields implements serialize.FieldDumper.
func (b *PolygonBox) Fields() map[string]any {
	return map[string]any{
		"polygon":    b.Polygon,
		"confidence": b.Confidence,
		"bbox":       b.Bbox,
	}
}

// TextDetection is the per-image output of the text detection model.
type TextDetection struct {
	Bboxes    []*PolygonBox `json:"bboxes"`
	ImageBbox []float64     `json:"image_bbox"`
}

func (d *TextDetection) Fields() map[string]any {
	return map[string]any{
		"bboxes":     d.Bboxes,
		"image_bbox": d.ImageBbox,
	}
}

// TextChar is the per-character output attached to a recognized line.
type TextChar struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Polygon    [][]float64 `json:"polygon"`
	Bbox       []float64   `json:"bbox"`
}

func (c *TextChar) Fields() map[string]any {
	return map[string]any{
		"text":       c.Text,
		"confidence": c.Confidence,
		"polygon":    c.Polygon,
		"bbox":       c.Bbox,
	}
}

// TextLine is one recognized line of text with its geometry and per-character
// detail.
type TextLine struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Polygon    [][]float64 `json:"polygon"`
	Bbox       []float64   `json:"bbox"`
	Chars      []*TextChar `json:"chars"`
}

func (l *TextLine) Fields() map[string]any {
	return map[string]any{
		"text":       l.Text,
		"confidence": l.Confidence,
		"polygon":    l.Polygon,
		"bbox":       l.Bbox,
		"chars":      l.Chars,
	}
}

// Recognition is the per-image output of the text recognition model.
type Recognition struct {
	TextLines []*TextLine `json:"text_lines"`
	ImageBbox []float64   `json:"image_bbox"`
}

func (r *Recognition) Fields() map[string]any {
	return map[string]any{
		"text_lines": r.TextLines,
		"image_bbox": r.ImageBbox,
	}
}

// LayoutBox is one detected layout region with its label and reading-order
// position.
type LayoutBox struct {
	Polygon    [][]float64 `json:"polygon"`
	Confidence float64     `json:"confidence"`
	Bbox       []float64   `json:"bbox"`
	Label      string      `json:"label"`
	Position   int         `json:"position"`
}

func (b *LayoutBox) Fields() map[string]any {
	return map[string]any{
		"polygon":    b.Polygon,
		"confidence": b.Confidence,
		"bbox":       b.Bbox,
		"label":      b.Label,
		"position":   b.Position,
	}
}

// Layout is the per-image output of the layout analysis model.
type Layout struct {
	Bboxes    []*LayoutBox `json:"bboxes"`
	ImageBbox []float64    `json:"image_bbox"`
}

func (l *Layout) Fields() map[string]any {
	return map[string]any{
		"bboxes":     l.Bboxes,
		"image_bbox": l.ImageBbox,
	}
}

// TableRow is one detected table row.
type TableRow struct {
	RowID    int       `json:"row_id"`
	Bbox     []float64 `json:"bbox"`
	IsHeader bool      `json:"is_header"`
}

func (r *TableRow) Fields() map[string]any {
	return map[string]any{
		"row_id":    r.RowID,
		"bbox":      r.Bbox,
		"is_header": r.IsHeader,
	}
}

// TableCol is one detected table column.
type TableCol struct {
	ColID    int       `json:"col_id"`
	Bbox     []float64 `json:"bbox"`
	IsHeader bool      `json:"is_header"`
}

func (c *TableCol) Fields() map[string]any {
	return map[string]any{
		"col_id":    c.ColID,
		"bbox":      c.Bbox,
		"is_header": c.IsHeader,
	}
}

// TableCell is one detected cell, addressed by row and column id.
type TableCell struct {
	RowID   int       `json:"row_id"`
	ColID   int       `json:"col_id"`
	RowSpan int       `json:"rowspan"`
	ColSpan int       `json:"colspan"`
	Bbox    []float64 `json:"bbox"`
	Text    string    `json:"text"`
}

func (c *TableCell) Fields() map[string]any {
	return map[string]any{
		"row_id":  c.RowID,
		"col_id":  c.ColID,
		"rowspan": c.RowSpan,
		"colspan": c.ColSpan,
		"bbox":    c.Bbox,
		"text":    c.Text,
	}
}

// TableStructure is the per-image output of the table recognition model.
type TableStructure struct {
	Rows      []*TableRow  `json:"rows"`
	Cols      []*TableCol  `json:"cols"`
	Cells     []*TableCell `json:"cells"`
	ImageBbox []float64    `json:"image_bbox"`
}

func (t *TableStructure) Fields() map[string]any {
	return map[string]any{
		"rows":       t.Rows,
		"cols":       t.Cols,
		"cells":      t.Cells,
		"image_bbox": t.ImageBbox,
	}
}

// rectPolygon builds a four-corner polygon from a bounding box, in
// clockwise order starting top-left.
func rectPolygon(x0, y0, x1, y1 float64) [][]float64 {
	return [][]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}
