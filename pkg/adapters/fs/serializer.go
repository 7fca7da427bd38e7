package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/veneer/pkg/core"
)

// Supported document file formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Serializer defines how a document body is read from and written to the
// visible document files.
type Serializer interface {
	// Ext returns the file extension, including the dot.
	Ext() string
	// Parse reads a document body from r.
	Parse(r io.Reader) (core.Document, error)
	// Serialize converts a document body to bytes.
	Serialize(doc core.Document) ([]byte, error)
}

// NewSerializer returns the serializer for format. An empty format selects JSON.
func NewSerializer(format string) (Serializer, error) {
	switch format {
	case "", FormatJSON:
		return JSONSerializer{}, nil
	case FormatYAML, "yml":
		return YAMLSerializer{}, nil
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
}

// JSONSerializer handles reading and writing JSON files.
type JSONSerializer struct{}

func (JSONSerializer) Ext() string { return ".json" }

func (JSONSerializer) Parse(r io.Reader) (core.Document, error) {
	var doc core.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if doc == nil {
		doc = core.Document{}
	}
	return doc, nil
}

func (JSONSerializer) Serialize(doc core.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// YAMLSerializer handles reading and writing YAML files.
type YAMLSerializer struct{}

func (YAMLSerializer) Ext() string { return ".yaml" }

func (YAMLSerializer) Parse(r io.Reader) (core.Document, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if doc == nil {
		return core.Document{}, nil
	}
	return core.Document(doc), nil
}

func (YAMLSerializer) Serialize(doc core.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any(doc)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sameBody reports whether two document bodies hold the same JSON value.
// Numbers decoded by different formats (int vs float64) compare equal.
func sameBody(a, b core.Document) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
