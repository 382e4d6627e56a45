// Package records provides the primitives used to read loosely structured clinical records.
//
// Raw records come from several import sources and from hand entry, so the same concept may live under
// different keys. Everything here copes with that heterogeneity and never fails on malformed data:
// values that can't be interpreted are simply treated as absent.
package records

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
)

// Record is a raw key/value record with no fixed schema.
// It is never mutated by this package.
type Record map[string]any

// FromAny converts v into a Record.
// Anything which is not an object becomes an empty record.
func FromAny(v any) Record {
	switch m := v.(type) {
	case Record:
		return m
	case map[string]any:
		return Record(m)
	default:
		return Record{}
	}
}

// FromSlice converts v into a slice of records.
// If v is not an array, an empty slice is returned.
func FromSlice(v any) []Record {
	switch s := v.(type) {
	case []Record:
		return s
	case []map[string]any:
		recs := make([]Record, 0, len(s))
		for _, m := range s {
			recs = append(recs, Record(m))
		}
		return recs
	case []any:
		recs := make([]Record, 0, len(s))
		for _, e := range s {
			recs = append(recs, FromAny(e))
		}
		return recs
	default:
		return []Record{}
	}
}

// String returns the first candidate field holding a non-empty string, trimmed, or a finite number
// rendered as a string.
// Candidates are tried in order. It returns "" if none of them match.
func (r Record) String(keys ...string) string {
	for _, k := range keys {
		for _, v := range r.lookup(k) {
			if s, ok := stringValue(v); ok {
				return s
			}
		}
	}
	return ""
}

// Value returns the raw value of the first candidate field holding a non-empty string, a finite
// number or a non-zero time.
// It returns false if none of the candidates match.
func (r Record) Value(keys ...string) (any, bool) {
	for _, k := range keys {
		for _, v := range r.lookup(k) {
			if t, ok := v.(time.Time); ok {
				if t.IsZero() {
					continue
				}
				return t, true
			}
			if _, ok := stringValue(v); ok {
				return v, true
			}
		}
	}
	return nil, false
}

// lookup returns the values held under key: the exact key first, then the keys equal to it ignoring
// case and whitespace, sorted.
func (r Record) lookup(key string) []any {
	var vals []any
	if v, ok := r[key]; ok {
		vals = append(vals, v)
	}

	want := foldKey(key)
	var folded []string
	for k := range r {
		if k != key && foldKey(k) == want {
			folded = append(folded, k)
		}
	}
	slices.Sort(folded)
	for _, k := range folded {
		vals = append(vals, r[k])
	}
	return vals
}

func foldKey(k string) string {
	k = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, k)
	return cases.Fold().String(k)
}

// stringValue converts strings and finite numbers to their trimmed string form.
func stringValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case json.Number:
		f, err := x.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return "", false
		}
		return x.String(), true
	}

	f, ok := toFloat(v)
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

// toFloat returns the finite float64 value of any Go numeric kind.
func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		var err error
		if f, err = x.Float64(); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}

	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Number returns the first candidate holding a finite number, or a string parseable as one.
func (r Record) Number(keys ...string) (float64, bool) {
	for _, k := range keys {
		for _, v := range r.lookup(k) {
			if f, ok := toFloat(v); ok {
				return f, true
			}
			if s, ok := v.(string); ok {
				f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
				if err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
					return f, true
				}
			}
		}
	}
	return 0, false
}
