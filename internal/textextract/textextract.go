// Package textextract post-processes normalized recognition results.
package textextract

import (
	"errors"
	"fmt"
	"strings"
)

// Field names in a normalized recognition record.
const (
	fieldTextLines    = "text_lines"
	fieldText         = "text"
	fieldChars        = "chars"
	fieldCombinedText = "combined_text"
)

// ErrMalformedRecord is returned when a recognition record is missing one of
// the fields the recognition predictor always emits.
var ErrMalformedRecord = errors.New("malformed recognition record")

// CombineText rewrites a batch of normalized per-image recognition records
// in place. For every text line the per-character data is dropped (it
// dominates payload size and callers of the text tasks do not use it), and
// the line texts are joined with newlines into a new combined_text field on
// the image record.
//
// The records are expected to carry the exact shape the recognition
// predictor emits: a text_lines sequence whose entries each have text and
// chars. A record that does not aborts the whole batch; there is no
// per-record isolation.
func CombineText(results []map[string]any) error {
	for i, result := range results {
		rawLines, ok := result[fieldTextLines]
		if !ok {
			return fmt.Errorf("%w: result %d has no %s field", ErrMalformedRecord, i, fieldTextLines)
		}
		textLines, ok := rawLines.([]any)
		if !ok {
			return fmt.Errorf("%w: result %d: %s is %T, not a sequence", ErrMalformedRecord, i, fieldTextLines, rawLines)
		}

		lines := make([]string, 0, len(textLines))
		for j, rawLine := range textLines {
			textLine, ok := rawLine.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: result %d line %d is %T, not a mapping", ErrMalformedRecord, i, j, rawLine)
			}
			if _, ok := textLine[fieldChars]; !ok {
				return fmt.Errorf("%w: result %d line %d has no %s field", ErrMalformedRecord, i, j, fieldChars)
			}
			delete(textLine, fieldChars)

			text, ok := textLine[fieldText].(string)
			if !ok {
				return fmt.Errorf("%w: result %d line %d has no %s field", ErrMalformedRecord, i, j, fieldText)
			}
			lines = append(lines, text)
		}

		result[fieldCombinedText] = strings.Join(lines, "\n")
	}
	return nil
}
