package rules

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed default.json
var defaultPack []byte

// Default returns the data pack compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultPack)
}

// Load reads a data pack from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
	}
	c.name()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	return &c, nil
}
