package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoTools is returned when a tools file parses but declares nothing.
var ErrNoTools = errors.New("tools file contains no tools")

// LoadFile reads a pre-built tool list. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON. Both hold a list of
// {name, description, input_schema} objects.
func LoadFile(path string) ([]Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tools file: %w", err)
	}
	toolset, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse tools file %s: %w", path, err)
	}
	return toolset, nil
}

// Parse decodes a tool list. ext selects the format the same way LoadFile does.
func Parse(data []byte, ext string) ([]Tool, error) {
	var toolset []Tool
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &toolset); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &toolset); err != nil {
			return nil, err
		}
	}
	if len(toolset) == 0 {
		return nil, ErrNoTools
	}
	for i, t := range toolset {
		if t.Name == "" {
			return nil, fmt.Errorf("tool at index %d has no name", i)
		}
	}
	return toolset, nil
}

// SaveFile writes tools as indented JSON, the format LoadFile reads by default.
func SaveFile(path string, toolset []Tool) error {
	data, err := json.MarshalIndent(toolset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tools: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write tools file: %w", err)
	}
	return nil
}
