// Package scene defines the rigid-body scene description produced by the
// pipeline and how it is stored, checked and drawn.
//
// A scene is plain data. It holds no references into the pipeline that
// built it, so a decoded scene validates and renders exactly like a fresh
// one.
package scene

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/chazu/rigkit/pkg/actuation"
	"github.com/chazu/rigkit/pkg/assembly"
)

// Namespace seeds name-based scene ids.
var Namespace = uuid.MustParse("5b0f6a52-93c1-4d47-9f0e-2a86c6a1d7e3")

// NewID returns a stable id for a scene built from the given source bytes.
// The same name and source always give the same id.
func NewID(name string, source []byte) uuid.UUID {
	return uuid.NewSHA1(Namespace, append([]byte(name+"\x00"), source...))
}

// Meta describes how a scene was generated.
type Meta struct {
	Name      string    `json:"name" yaml:"name"`
	ID        uuid.UUID `json:"id" yaml:"id"`
	Tolerance float64   `json:"tolerance" yaml:"tolerance"`
	Policy    string    `json:"policy,omitempty" yaml:"policy,omitempty"`
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"`
}

// Scene is a complete rigid-body scene description.
type Scene struct {
	Meta        Meta                        `json:"meta" yaml:"meta"`
	Nodes       []assembly.Node             `json:"nodes" yaml:"nodes"`
	Members     []assembly.MemberDescriptor `json:"members" yaml:"members"`
	Joints      []assembly.Joint            `json:"joints" yaml:"joints"`
	Constraints []assembly.Constraint       `json:"constraints" yaml:"constraints"`
	Profiles    []assembly.ActuationProfile `json:"profiles,omitempty" yaml:"profiles,omitempty"`
	Schedules   []actuation.Schedule        `json:"schedules,omitempty" yaml:"schedules,omitempty"`
	Loads       []assembly.AppliedLoad      `json:"loads,omitempty" yaml:"loads,omitempty"`
}

// Member returns the member with id.
func (s *Scene) Member(id assembly.MemberID) (*assembly.MemberDescriptor, bool) {
	for i := range s.Members {
		if s.Members[i].ID == id {
			return &s.Members[i], true
		}
	}
	return nil, false
}

// Joint returns the joint with id.
func (s *Scene) Joint(id assembly.JointID) (*assembly.Joint, bool) {
	for i := range s.Joints {
		if s.Joints[i].ID == id {
			return &s.Joints[i], true
		}
	}
	return nil, false
}

// Profile returns the named profile.
func (s *Scene) Profile(name string) (*assembly.ActuationProfile, bool) {
	for i := range s.Profiles {
		if s.Profiles[i].Name == name {
			return &s.Profiles[i], true
		}
	}
	return nil, false
}

// Scheduler rebuilds a scheduler holding the scene's schedules.
func (s *Scene) Scheduler() (*actuation.Scheduler, error) {
	sch := actuation.NewScheduler(s.Constraints)
	for _, sc := range s.Schedules {
		if err := sch.Schedule(sc.Constraint, sc.Profile); err != nil {
			return nil, err
		}
	}
	return sch, nil
}

// Stats summarises a scene.
type Stats struct {
	Nodes       int
	Members     int
	Joints      int
	FreeEnds    int
	Constraints map[assembly.ConstraintKind]int
	Schedules   int
	Loads       int
	Mass        float64
}

// Stats counts the contents of s.
func (s *Scene) Stats() Stats {
	st := Stats{
		Nodes:       len(s.Nodes),
		Members:     len(s.Members),
		Joints:      len(s.Joints),
		Constraints: make(map[assembly.ConstraintKind]int),
		Schedules:   len(s.Schedules),
		Loads:       len(s.Loads),
	}
	for i := range s.Joints {
		if s.Joints[i].IsFree() {
			st.FreeEnds++
		}
	}
	for _, c := range s.Constraints {
		st.Constraints[c.Kind]++
	}
	for _, m := range s.Members {
		st.Mass += m.Mass
	}
	return st
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Format is a scene file encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "yaml"
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "yaml", "yml", "":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("scene: unknown format %q", s)
}

// FormatFor picks a format from a file extension, defaulting to YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Encode writes s to w.
func Encode(w io.Writer, s *Scene, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("scene: encode json: %w", err)
		}
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("scene: encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("scene: encode yaml: %w", err)
		}
	}
	return nil
}

// Decode reads a scene from r.
func Decode(r io.Reader, f Format) (*Scene, error) {
	var s Scene
	switch f {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("scene: decode json: %w", err)
		}
	default:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("scene: decode yaml: %w", err)
		}
	}
	return &s, nil
}

// Marshal encodes s into memory.
func Marshal(s *Scene, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFile decodes the scene at path, choosing the format by extension.
func ReadFile(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	defer f.Close()
	return Decode(f, FormatFor(path))
}

// WriteFile encodes s to path, choosing the format by extension.
func WriteFile(path string, s *Scene) error {
	data, err := Marshal(s, FormatFor(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("scene: %w", err)
	}
	return nil
}
