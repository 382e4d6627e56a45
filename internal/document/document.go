// Package document reads the raw surveillance document the metrics are derived from.
//
// A document is an object optionally holding a "records" object with the "ip_cases", "abx", "vax",
// "outbreaks" and "line_listings" arrays, and a top-level "census" array. Every part is optional
// and anything of the wrong shape is read as empty.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ipsurveil/ipmetrics/internal/fileutils"
	"github.com/ipsurveil/ipmetrics/internal/records"
	"github.com/ubuntu/decorate"
	"gopkg.in/yaml.v3"
)

// Format is the serialization of a document.
type Format string

const (
	// JSON is the JSON document format.
	JSON Format = "json"
	// YAML is the YAML document format.
	YAML Format = "yaml"
)

// ErrUnsupportedFormat is returned when a document format is not supported.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Document holds the raw record collections of a surveillance document.
type Document struct {
	IPCases      []records.Record
	Antibiotics  []records.Record
	Vaccinations []records.Record
	Outbreaks    []records.Record
	LineListings []records.Record
	Census       []records.Record
}

// Source provides the current surveillance document.
type Source interface {
	Document(ctx context.Context) (Document, error)
}

// FromMap extracts the record collections of a decoded document.
func FromMap(m map[string]any) Document {
	recs := records.FromAny(m["records"])
	return Document{
		IPCases:      records.FromSlice(recs["ip_cases"]),
		Antibiotics:  records.FromSlice(recs["abx"]),
		Vaccinations: records.FromSlice(recs["vax"]),
		Outbreaks:    records.FromSlice(recs["outbreaks"]),
		LineListings: records.FromSlice(recs["line_listings"]),
		Census:       records.FromSlice(m["census"]),
	}
}

// Map returns the document in its serialized shape.
func (d Document) Map() map[string]any {
	return map[string]any{
		"records": map[string]any{
			"ip_cases":      nonNil(d.IPCases),
			"abx":           nonNil(d.Antibiotics),
			"vax":           nonNil(d.Vaccinations),
			"outbreaks":     nonNil(d.Outbreaks),
			"line_listings": nonNil(d.LineListings),
		},
		"census": nonNil(d.Census),
	}
}

func nonNil(recs []records.Record) []records.Record {
	if recs == nil {
		return []records.Record{}
	}
	return recs
}

// Parse reads a document in the given format from r.
// An empty input, or one which is not an object, is an empty document.
func Parse(r io.Reader, format Format) (doc Document, err error) {
	defer decorate.OnError(&err, "could not parse %s document", format)

	if format != JSON && format != YAML {
		return Document{}, ErrUnsupportedFormat
	}

	data, err := fileutils.DecodeText(r)
	if err != nil {
		return Document{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return FromMap(nil), nil
	}

	var v any
	switch format {
	case JSON:
		err = json.Unmarshal(data, &v)
	case YAML:
		err = yaml.Unmarshal(data, &v)
	}
	if err != nil {
		return Document{}, err
	}
	return FromMap(records.FromAny(v)), nil
}

// FormatOf returns the format matching the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}
