package profile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Standard errors for profile decoding.
var (
	ErrInvalidProfile    = errors.New("profile: document does not match schema")
	ErrUnsupportedFormat = errors.New("profile: unsupported format")
)

// Format is the encoding of a profile document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const schemaURL = "https://regcoder.schemas.local/profile.schema.json"

//go:embed schema.json
var schemaJSON string

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func profileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("profile schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("profile schema compile failed: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads and validates a profile document from disk.
func Load(path string) (*Profile, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}
	p, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	return p, nil
}

// Parse validates a JSON or YAML document against the profile schema and
// decodes it. YAML is converted to JSON first so both formats go through
// the same schema.
func Parse(data []byte, format Format) (*Profile, error) {
	var doc []byte
	switch format {
	case FormatJSON:
		doc = data
	case FormatYAML:
		var root yaml.Node
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
		var generic any
		if root.Kind != 0 {
			keepTimestampText(&root)
			if err := root.Decode(&generic); err != nil {
				return nil, fmt.Errorf("yaml: %w", err)
			}
		}
		var err error
		if doc, err = json.Marshal(generic); err != nil {
			return nil, fmt.Errorf("yaml to json: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err := Validate(doc); err != nil {
		return nil, err
	}

	var p Profile
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return p.Normalized(), nil
}

// keepTimestampText retags unquoted date scalars as strings. Profiles carry
// dates as text and the schema has no date-time values.
func keepTimestampText(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!timestamp" {
		n.Tag = "!!str"
	}
	for _, c := range n.Content {
		keepTimestampText(c)
	}
}

// Validate checks a JSON document against the embedded profile schema.
func Validate(doc []byte) error {
	schema, err := profileSchema()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	return nil
}
