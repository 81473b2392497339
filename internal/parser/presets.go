package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdptw-visualizer/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// ParsePresets parses a YAML file of solver parameter presets.
func ParsePresets(filePath string) (*models.SolverPresets, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParsePresetsFromReader(file)
}

// ParsePresetsFromReader parses presets from an io.Reader.
func ParsePresetsFromReader(r io.Reader) (*models.SolverPresets, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var presets models.SolverPresets
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(presets.Presets))
	for i, p := range presets.Presets {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("preset %d has no name", i)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("duplicate preset %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		for k := range p.Params {
			if strings.ContainsAny(k, " =\t\n") {
				return nil, fmt.Errorf("preset %q: invalid parameter name %q", p.Name, k)
			}
		}
	}
	if presets.Default != "" && presets.Find(presets.Default) == nil {
		return nil, fmt.Errorf("default preset %q not defined", presets.Default)
	}

	return &presets, nil
}
