// Package modelcfg loads model presets from a YAML file. Presets give
// friendly names to downloadable model files so users can switch models
// without hunting for URLs.
package modelcfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Model kinds.
const (
	KindText  = "text"
	KindImage = "image"
)

// Preset describes one downloadable model.
type Preset struct {
	// Name is the preset identifier, e.g. "qwen3-8b".
	Name string `yaml:"name"`
	// Kind is "text" or "image".
	Kind string `yaml:"kind"`
	// URL is the download source.
	URL string `yaml:"url"`
	// SHA256 is the optional expected checksum.
	SHA256 string `yaml:"sha256,omitempty"`
	// File is the filename to store under the models directory.
	File string `yaml:"file"`
	// Description is free text shown in listings.
	Description string `yaml:"description,omitempty"`
}

// Presets is the parsed models file.
type Presets struct {
	Models []Preset `yaml:"models"`
}

// Load parses a presets file. A missing file is not an error; it returns an
// empty preset list so the application runs without one.
func Load(path string) (*Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Presets{}, nil
		}
		return nil, fmt.Errorf("modelcfg: reading %s: %w", path, err)
	}

	var p Presets
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("modelcfg: parsing %s: %w", path, err)
	}

	for i, m := range p.Models {
		if m.Name == "" {
			return nil, fmt.Errorf("modelcfg: model %d has no name", i)
		}
		if m.Kind != KindText && m.Kind != KindImage {
			return nil, fmt.Errorf("modelcfg: model %q has invalid kind %q", m.Name, m.Kind)
		}
		if m.File == "" {
			return nil, fmt.Errorf("modelcfg: model %q has no file", m.Name)
		}
	}
	return &p, nil
}

// Find returns the preset with the given name, or false.
func (p *Presets) Find(name string) (Preset, bool) {
	for _, m := range p.Models {
		if m.Name == name {
			return m, true
		}
	}
	return Preset{}, false
}

// ByKind returns all presets of one kind.
func (p *Presets) ByKind(kind string) []Preset {
	var out []Preset
	for _, m := range p.Models {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}
