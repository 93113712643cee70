package questions

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	})
	return compiledSchema, schemaErr
}

// Format is the encoding of a question file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the decoder from the file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads, schema-checks and validates a question file. Relative paths are
// resolved against cwd.
func Load(path, cwd string) (*Set, error) {
	absPath := path
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(cwd, absPath)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("Questions file not found: %s", absPath)
		}
		return nil, fmt.Errorf("failed to read questions file %s: %w", absPath, err)
	}
	return Parse(data, FormatForPath(absPath))
}

// Parse decodes question data in the given format and validates it.
func Parse(data []byte, format Format) (*Set, error) {
	doc, err := normalize(data, format)
	if err != nil {
		return nil, err
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to load questions schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("Invalid JSON in questions file: %w", err)
	}
	if !result.Valid() {
		ve := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			ve.Errors = append(ve.Errors, FieldError{Field: field, Message: desc.Description()})
		}
		return nil, ve
	}

	var set Set
	if err := json.Unmarshal(doc, &set); err != nil {
		return nil, fmt.Errorf("Invalid JSON in questions file: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// normalize returns the document as JSON bytes so one schema covers both
// file formats.
func normalize(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("Invalid YAML in questions file: %w", err)
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("Invalid YAML in questions file: %w", err)
		}
		return out, nil
	default:
		if !json.Valid(data) {
			var v any
			err := json.Unmarshal(data, &v)
			return nil, fmt.Errorf("Invalid JSON in questions file: %w", err)
		}
		return data, nil
	}
}
