// Package config loads the derivation options from an options file and keeps them up to date.
//
// An options file may be written in TOML, YAML, INI or JSON, according to its extension, with the keys
// timeout_hours, mdro_keywords, ebp_keywords and unit_aliases. Keyword lists may also be given as comma
// separated strings. In INI files, unit aliases live in an [unit_aliases] section.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-viper/mapstructure/v2"
	"github.com/ipsurveil/ipmetrics/internal/fileutils"
	"github.com/ipsurveil/ipmetrics/internal/records"
	"github.com/ipsurveil/ipmetrics/internal/surveillance"
	"github.com/ubuntu/decorate"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned when the options file format is not supported.
var ErrUnsupportedFormat = errors.New("unsupported options file format")

const iniAliasesSection = "unit_aliases"

// File is the content of an options file. Unset fields keep their defaults.
type File struct {
	TimeoutHours *float64          `mapstructure:"timeout_hours"`
	MDROKeywords []string          `mapstructure:"mdro_keywords"`
	EBPKeywords  []string          `mapstructure:"ebp_keywords"`
	UnitAliases  map[string]string `mapstructure:"unit_aliases"`
}

// Options returns the derivation options selected by f.
func (f File) Options() surveillance.Options {
	o := surveillance.Options{
		MDROKeywords: clone(f.MDROKeywords),
		EBPKeywords:  clone(f.EBPKeywords),
	}
	if f.TimeoutHours != nil {
		h := *f.TimeoutHours
		o.TimeoutHours = &h
	}
	if f.UnitAliases != nil {
		o.UnitAliases = records.Aliases(maps.Clone(f.UnitAliases))
	}
	return o
}

// Override returns f with every field set in over replacing its own.
func (f File) Override(over File) File {
	if over.TimeoutHours != nil {
		f.TimeoutHours = over.TimeoutHours
	}
	if over.MDROKeywords != nil {
		f.MDROKeywords = over.MDROKeywords
	}
	if over.EBPKeywords != nil {
		f.EBPKeywords = over.EBPKeywords
	}
	if over.UnitAliases != nil {
		merged := maps.Clone(f.UnitAliases)
		if merged == nil {
			merged = make(map[string]string, len(over.UnitAliases))
		}
		maps.Copy(merged, over.UnitAliases)
		f.UnitAliases = merged
	}
	return f
}

func clone(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

// LoadFile reads the options file at path.
func LoadFile(path string) (f File, err error) {
	defer decorate.OnError(&err, "could not load options file %s", path)

	data, err := fileutils.ReadText(path)
	if err != nil {
		return File{}, err
	}
	return Parse(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// Parse decodes the content of an options file written in format.
func Parse(data []byte, format string) (File, error) {
	var raw map[string]any
	var err error

	switch format {
	case "toml":
		_, err = toml.Decode(string(data), &raw)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &raw)
	case "json":
		err = json.Unmarshal(data, &raw)
	case "ini":
		raw, err = parseINI(data)
	default:
		return File{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return File{}, fmt.Errorf("could not parse %s options: %v", format, err)
	}

	var f File
	if err := Decode(raw, &f); err != nil {
		return File{}, err
	}
	return f, nil
}

// Decode decodes raw into v, converting weakly typed values and splitting comma separated lists.
// Unknown keys are errors.
func Decode(raw map[string]any, v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           v,
	})
	if err != nil {
		return fmt.Errorf("could not create options decoder: %v", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid options: %v", err)
	}
	return nil
}

// parseINI maps the default section of an INI file to the top level keys and the aliases section to
// the unit aliases.
func parseINI(data []byte) (map[string]any, error) {
	cfg, err := ini.Load(data)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]any)
	for k, v := range cfg.Section(ini.DefaultSection).KeysHash() {
		raw[k] = v
	}
	if sec, err := cfg.GetSection(iniAliasesSection); err == nil {
		raw[iniAliasesSection] = sec.KeysHash()
	}
	return raw, nil
}
