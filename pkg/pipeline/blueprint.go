// Package pipeline runs a blueprint through every generation stage and
// produces a scene.
//
// The stages run in a fixed order on one goroutine: parameters are
// resolved, nodes and members are laid out and synthesized, joints are
// clustered from the complete member set, constraints are built on the
// joints, profiles are scheduled on motor constraints and loads are
// resolved last. The first failing stage stops the run and its typed error
// is returned wrapped with the stage name.
package pipeline

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/constraint"
	"github.com/chazu/rigkit/pkg/params"
)

// Tolerance configures the joint clustering distance. A positive Absolute
// wins; otherwise ε = max(Floor, Relative × characteristic length).
type Tolerance struct {
	Absolute float64 `yaml:"absolute,omitempty"`
	Relative float64 `yaml:"relative,omitempty"`
	Floor    float64 `yaml:"floor,omitempty"`
}

// Binding attaches a named profile to the motor constraints at a joint,
// selected by member end, or to one constraint by id.
type Binding struct {
	End        *assembly.EndRef      `yaml:"end,omitempty"`
	Constraint assembly.ConstraintID `yaml:"constraint,omitempty"`
	Profile    string                `yaml:"profile"`
}

// Blueprint is a complete declarative assembly description.
type Blueprint struct {
	Name       string                       `yaml:"name"`
	Params     params.Table                 `yaml:"params"`
	Manifest   []string                     `yaml:"require,omitempty"`
	Layout     params.Layout                `yaml:"layout"`
	Materials  map[string]assembly.Material `yaml:"materials,omitempty"`
	Tolerance  Tolerance                    `yaml:"tolerance,omitempty"`
	Degeneracy *assembly.DegeneracyPolicy   `yaml:"degeneracy,omitempty"`
	Joints     []constraint.Decl            `yaml:"joints,omitempty"`
	Profiles   []assembly.ActuationProfile  `yaml:"profiles,omitempty"`
	Schedules  []Binding                    `yaml:"schedules,omitempty"`
	Loads      []assembly.LoadSpec          `yaml:"loads,omitempty"`
}

// Parse decodes a YAML blueprint. Unknown fields are rejected.
func Parse(data []byte) (*Blueprint, error) {
	var bp Blueprint
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&bp); err != nil {
		return nil, fmt.Errorf("pipeline: parse blueprint: %w", err)
	}
	return &bp, nil
}

// LoadFile reads and parses the blueprint at path.
func LoadFile(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	bp, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bp, nil
}

// Marshal encodes bp as YAML.
func (bp *Blueprint) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(bp); err != nil {
		return nil, fmt.Errorf("pipeline: encode blueprint: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("pipeline: encode blueprint: %w", err)
	}
	return buf.Bytes(), nil
}

// Material resolves a material name against the blueprint overrides and
// then the built-in table.
func (bp *Blueprint) Material(name string) (assembly.Material, bool) {
	if m, ok := bp.Materials[name]; ok {
		if m.Name == "" {
			m.Name = name
		}
		return m, true
	}
	return assembly.LookupMaterial(name)
}

// Profile returns the named profile.
func (bp *Blueprint) Profile(name string) (assembly.ActuationProfile, bool) {
	for _, p := range bp.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return assembly.ActuationProfile{}, false
}
