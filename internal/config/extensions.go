package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Extension is one entry in the dialable extension directory
type Extension struct {
	Number string `yaml:"number"`
	Label  string `yaml:"label"`
}

// ExtensionDirectory maps dialed extensions to display labels. Calls to
// unknown extensions are still accepted; the directory only enriches them.
type ExtensionDirectory struct {
	byNumber map[string]string
}

type extensionsFile struct {
	Extensions []Extension `yaml:"extensions"`
}

// LoadExtensions reads a YAML directory file. An empty path yields an empty
// directory.
func LoadExtensions(path string) (*ExtensionDirectory, error) {
	dir := &ExtensionDirectory{byNumber: make(map[string]string)}
	if path == "" {
		return dir, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read extensions file: %w", err)
	}

	var file extensionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse extensions file: %w", err)
	}

	for _, ext := range file.Extensions {
		if ext.Number != "" {
			dir.byNumber[ext.Number] = ext.Label
		}
	}
	return dir, nil
}

// Lookup returns the label for an extension
func (d *ExtensionDirectory) Lookup(extension string) (string, bool) {
	label, ok := d.byNumber[extension]
	return label, ok
}

// Count returns the number of known extensions
func (d *ExtensionDirectory) Count() int {
	return len(d.byNumber)
}
