package document

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
)

// FileSource reads the document from a JSON or YAML file.
type FileSource struct {
	Path string
}

// Document loads and parses the file.
func (s FileSource) Document(_ context.Context) (Document, error) {
	return Load(s.Path)
}

// Load reads the document stored at path, the format being selected by the file extension.
func Load(path string) (Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Document{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("could not read document file: %v", err)
	}
	slog.Debug("Read document file", "path", path, "size", len(data))

	return Parse(bytes.NewReader(data), format)
}
