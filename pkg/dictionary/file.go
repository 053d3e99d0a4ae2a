package dictionary

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk dictionary layout.
type File struct {
	Attributes []*AttributeDefinition `yaml:"attributes"`
}

// Parse decodes a YAML dictionary document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary: %w", err)
	}
	return &f, nil
}

// LoadFile loads a YAML dictionary file on top of the standard attributes.
// Entries in the file replace standard definitions with the same id.
func LoadFile(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary file: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, err
	}

	dict, err := NewDefault()
	if err != nil {
		return nil, err
	}

	for _, attr := range f.Attributes {
		if err := dict.Replace(attr); err != nil {
			return nil, fmt.Errorf("dictionary %s: %w", path, err)
		}
	}

	return dict, nil
}
