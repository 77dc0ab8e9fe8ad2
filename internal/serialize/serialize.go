// Package serialize converts structured predictor results into plain,
// JSON-compatible values.
//
// Predictor result objects are named-field records nested inside sequences
// and mappings to arbitrary depth. Normalize flattens every record it can
// recognize into a map from field name to normalized value so the result can
// be handed directly to encoding/json, written to a file, or returned over
// HTTP without the caller knowing anything about the predictor's types.
package serialize

import (
	"fmt"
	"reflect"
)

// FieldDumper is the capability that marks a value as a structured record.
// Implementations return their fields as a name-to-value mapping; values may
// themselves be records, sequences or mappings and are normalized
// recursively.
//
// The shape test happens once, here at the predictor boundary, instead of
// being re-derived from the concrete type at every step of the walk.
type FieldDumper interface {
	Fields() map[string]any
}

// Normalize recursively converts v into a JSON-compatible value.
//
// Records (FieldDumper implementations) become map[string]any, sequences
// become []any with order preserved, mappings become map[string]any, and
// everything else is passed through unchanged. The input is never mutated;
// containers are always rebuilt. Normalize is idempotent: running it over
// its own output returns an equal value.
//
// Values that look structured but do not implement FieldDumper (plain
// structs, for instance) are passed through untouched. That leniency is
// deliberate: predictor output is trusted upstream, and anything genuinely
// unserializable will still be caught by the JSON encoder.
//
// A typed-nil record carries no fields and normalizes to nil instead of
// dereferencing the nil receiver.
func Normalize(v any) any {
	if v == nil {
		return nil
	}

	if rec, ok := v.(FieldDumper); ok {
		if rv := reflect.ValueOf(rec); rv.Kind() == reflect.Ptr && rv.IsNil() {
			return nil
		}
		fields := rec.Fields()
		out := make(map[string]any, len(fields))
		for name, fv := range fields {
			out[name] = Normalize(fv)
		}
		return out
	}

	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = Normalize(iter.Value().Interface())
		}
		return out
	default:
		return v
	}
}

// NormalizeAll normalizes a batch of per-image records, preserving order.
// Every element of the predictor output is a record, so each normalized
// element is a map[string]any; a nil record yields a nil map.
func NormalizeAll[T FieldDumper](results []T) []map[string]any {
	out := make([]map[string]any, len(results))
	for i, r := range results {
		m, _ := Normalize(r).(map[string]any)
		out[i] = m
	}
	return out
}

// mapKey renders a map key as a string. Predictor results only carry
// string-keyed mappings; anything else is formatted so the output stays
// JSON-encodable.
func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}
