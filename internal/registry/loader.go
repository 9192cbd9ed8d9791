package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk YAML layout of a registry document.
type fileFormat struct {
	Version   string          `yaml:"version"`
	Templates []TemplateEntry `yaml:"templates"`
}

// Load reads a registry YAML file and builds an immutable snapshot.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a snapshot from raw registry YAML.
func Parse(data []byte) (*Snapshot, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("registry: parse yaml: %w", err)
	}
	if f.Version == "" {
		return nil, fmt.Errorf("registry: file is missing a version")
	}
	return NewSnapshot(f.Version, f.Templates)
}
