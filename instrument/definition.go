// Package instrument loads instrument definitions and their samples into
// sampler zones, and builds definitions from folders of named samples.
package instrument

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefinitionFile is the file name that marks an instrument folder.
const DefinitionFile = "instrument.yaml"

// Definition is the YAML schema of an instrument.
type Definition struct {
	Name    string      `yaml:"name"`
	Author  string      `yaml:"author,omitempty"`
	Samples []SampleDef `yaml:"samples"`
}

// SampleDef maps one file, relative to the instrument folder, to a zone.
type SampleDef struct {
	File     string `yaml:"file"`
	Root     int    `yaml:"root"`
	LowNote  int    `yaml:"lo_note"`
	HighNote int    `yaml:"hi_note"`
	LowVel   int    `yaml:"lo_vel"`
	HighVel  int    `yaml:"hi_vel"`
}

// UnmarshalYAML fills omitted mapping fields with full-range defaults.
func (s *SampleDef) UnmarshalYAML(value *yaml.Node) error {
	type plain SampleDef
	raw := plain{Root: 60, LowNote: 0, HighNote: 127, LowVel: 1, HighVel: 127}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*s = SampleDef(raw)
	return nil
}

// ReadDefinition parses a definition file.
func ReadDefinition(path string) (*Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Definition
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if d.Name == "" {
		d.Name = filepath.Base(filepath.Dir(path))
	}
	return &d, nil
}

// Marshal encodes the definition as YAML.
func (d *Definition) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// WriteFile writes the definition to path.
func (d *Definition) WriteFile(path string) error {
	b, err := d.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
