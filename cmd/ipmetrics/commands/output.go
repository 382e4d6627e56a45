package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// checkFormat returns a usage error if format is not an output format.
func (a *App) checkFormat(format string) error {
	switch format {
	case formatJSON, formatYAML:
		return nil
	}
	return a.usageError(fmt.Errorf("unsupported output format %q, expected %s or %s", format, formatJSON, formatYAML))
}

// write encodes v to w in format.
func write(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("could not encode output: %v", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("could not encode output: %v", err)
		}
		return nil
	}
}
