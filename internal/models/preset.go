package models

import (
	"fmt"
	"sort"
)

// SolverPresets is the YAML file of named solver parameter sets.
type SolverPresets struct {
	Default string         `yaml:"default" json:"default"`
	Presets []SolverPreset `yaml:"presets" json:"presets"`
}

// SolverPreset is one named parameter set.
type SolverPreset struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description"`
	Params      map[string]any `yaml:"params" json:"params"`
}

// Find returns the preset with the given name, or nil.
func (p *SolverPresets) Find(name string) *SolverPreset {
	if p == nil {
		return nil
	}
	for i := range p.Presets {
		if p.Presets[i].Name == name {
			return &p.Presets[i]
		}
	}
	return nil
}

// Names returns preset names in file order.
func (p *SolverPresets) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.Presets))
	for _, preset := range p.Presets {
		names = append(names, preset.Name)
	}
	return names
}

// StringParams renders the preset's values as solver parameter strings.
func (sp *SolverPreset) StringParams() map[string]string {
	out := make(map[string]string, len(sp.Params))
	for k, v := range sp.Params {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// SortedKeys returns the keys of params in ascending order.
func SortedKeys(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
