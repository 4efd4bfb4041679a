package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sitecopy/api/internal/content"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// formatFor picks the file format from an explicit flag or the file extension.
func formatFor(path, flag string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case formatJSON:
		return formatJSON, nil
	case formatYAML, "yml":
		return formatYAML, nil
	case "":
	default:
		return "", fmt.Errorf("unknown format %q", flag)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return formatJSON, nil
	}
}

// YAML goes through a generic tree so the JSON field names stay the keys.
func encodeDocument(doc content.Document, format string) ([]byte, error) {
	if format != formatYAML {
		raw, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode content: %w", err)
		}
		return append(raw, '\n'), nil
	}
	raw, err := doc.Encode()
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	out, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return out, nil
}

func decodeDocument(raw []byte, format string) (content.Document, error) {
	if format != formatYAML {
		return content.Decode(raw)
	}
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return content.Document{}, fmt.Errorf("decode yaml: %w", err)
	}
	asJSON, err := json.Marshal(tree)
	if err != nil {
		return content.Document{}, fmt.Errorf("decode yaml: %w", err)
	}
	return content.Decode(asJSON)
}
