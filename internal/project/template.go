package project

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// DefaultEditablePath is the one file the editor tracks.
const DefaultEditablePath = "pages/index.tsx"

//go:embed templates/nextjs.yaml
var nextjsTemplate []byte

// DefaultTemplate returns the built-in Next.js project.
func DefaultTemplate() (Tree, error) {
	return Decode(nextjsTemplate)
}

// LoadTemplate reads a YAML tree from disk.
func LoadTemplate(path string) (Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return Decode(data)
}

// Decode parses a YAML tree in the
// `name: {file: {contents: ...}}` / `name: {directory: {...}}` shape.
func Decode(data []byte) (Tree, error) {
	var tree Tree
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTree, err)
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return tree, nil
}

// Encode renders the tree back to YAML.
func Encode(tree Tree) ([]byte, error) {
	return yaml.Marshal(tree)
}
