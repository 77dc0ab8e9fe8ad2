package textextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineWithChars(text string) map[string]any {
	chars := make([]any, 0, len(text))
	for _, r := range text {
		chars = append(chars, map[string]any{"text": string(r), "confidence": 0.9})
	}
	return map[string]any{"text": text, "confidence": 0.95, "chars": chars}
}

func TestCombineTextJoinsLines(t *testing.T) {
	results := []map[string]any{{
		"text_lines": []any{
			lineWithChars("Hello"),
			lineWithChars("World"),
		},
	}}

	require.NoError(t, CombineText(results))

	assert.Equal(t, "Hello\nWorld", results[0]["combined_text"])

	// chars is stripped from every line, the rest of the line survives.
	for _, rawLine := range results[0]["text_lines"].([]any) {
		line := rawLine.(map[string]any)
		assert.NotContains(t, line, "chars")
		assert.Contains(t, line, "text")
		assert.Contains(t, line, "confidence")
	}
}

func TestCombineTextEmptyLines(t *testing.T) {
	results := []map[string]any{{"text_lines": []any{}}}

	require.NoError(t, CombineText(results))

	assert.Equal(t, "", results[0]["combined_text"])
}

func TestCombineTextMutatesInPlace(t *testing.T) {
	record := map[string]any{
		"text_lines": []any{lineWithChars("abc")},
	}

	require.NoError(t, CombineText([]map[string]any{record}))

	// The caller's record gained the field; no copy was made.
	assert.Equal(t, "abc", record["combined_text"])
}

func TestCombineTextMultipleImages(t *testing.T) {
	results := []map[string]any{
		{"text_lines": []any{lineWithChars("first")}},
		{"text_lines": []any{lineWithChars("second"), lineWithChars("page")}},
	}

	require.NoError(t, CombineText(results))

	assert.Equal(t, "first", results[0]["combined_text"])
	assert.Equal(t, "second\npage", results[1]["combined_text"])
}

func TestCombineTextMissingTextLines(t *testing.T) {
	err := CombineText([]map[string]any{{"other": 1}})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestCombineTextMissingChars(t *testing.T) {
	results := []map[string]any{{
		"text_lines": []any{map[string]any{"text": "no chars here"}},
	}}

	err := CombineText(results)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestCombineTextMissingText(t *testing.T) {
	results := []map[string]any{{
		"text_lines": []any{map[string]any{"chars": []any{}}},
	}}

	err := CombineText(results)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

// One malformed record aborts the whole batch; there is no per-record
// isolation.
func TestCombineTextMalformedRecordAbortsBatch(t *testing.T) {
	results := []map[string]any{
		{"text_lines": []any{lineWithChars("good")}},
		{"text_lines": "not a sequence"},
	}

	err := CombineText(results)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}
