package faq

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
)

// Format is the encoding of a FAQ source.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks a format from a file name. Compression suffixes are
// ignored, so "faqs.yaml.zst" is YAML. Unknown extensions are JSON.
func FormatFor(name string) Format {
	name = strings.TrimSuffix(strings.ToLower(name), ".zst")
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadResult is the outcome of parsing one source.
type LoadResult struct {
	Source  string
	Entries []Entry
	// Skipped lists records that were rejected. Each is a *errors.LoadError
	// carrying the record index.
	Skipped []error
}

// LoadFile reads and parses a FAQ file.
func LoadFile(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domerrors.NewLoadError(path, -1, err)
	}
	return Parse(path, FormatFor(path), data)
}

// Parse decodes a FAQ document. The document is either a list of records or
// an object with a "faqs" list. Invalid records are skipped and reported;
// a source without a single valid record is an error.
func Parse(source string, format Format, data []byte) (*LoadResult, error) {
	records, err := decode(format, data)
	if err != nil {
		return nil, domerrors.NewLoadError(source, -1, err)
	}

	res := &LoadResult{Source: source, Entries: make([]Entry, 0, len(records))}
	seen := make(map[string]int, len(records))
	for i := range records {
		e := records[i].toEntry()
		if err := e.Validate(); err != nil {
			res.Skipped = append(res.Skipped, domerrors.NewLoadError(source, i, err))
			continue
		}
		if first, dup := seen[e.ID]; dup {
			res.Skipped = append(res.Skipped, domerrors.NewLoadError(source, i,
				fmt.Errorf("duplicate id %q (first seen at entry %d)", e.ID, first)))
			continue
		}
		seen[e.ID] = i
		res.Entries = append(res.Entries, e)
	}

	if len(res.Entries) == 0 {
		return res, domerrors.NewLoadError(source, -1, errors.New("no valid entries"))
	}
	return res, nil
}

type document struct {
	FAQs []record `json:"faqs" yaml:"faqs"`
}

func decode(format Format, data []byte) ([]record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}

	switch format {
	case FormatYAML:
		var list []record
		if err := yaml.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return doc.FAQs, nil
	default:
		if data[0] == '[' {
			var list []record
			if err := json.Unmarshal(data, &list); err != nil {
				return nil, fmt.Errorf("decode json: %w", err)
			}
			return list, nil
		}
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return doc.FAQs, nil
	}
}
