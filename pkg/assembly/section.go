package assembly

import (
	"fmt"
	"math"
)

// SectionKind distinguishes member cross-section shapes.
type SectionKind int

const (
	SectionRect   SectionKind = iota // rectangular, width x depth
	SectionCircle                    // circular, radius
)

func (k SectionKind) String() string {
	switch k {
	case SectionRect:
		return "rect"
	case SectionCircle:
		return "circle"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k SectionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SectionKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "rect", "box":
		*k = SectionRect
	case "circle", "round":
		*k = SectionCircle
	default:
		return fmt.Errorf("assembly: unknown section kind %q", b)
	}
	return nil
}

// Section is a member cross-section in the plane perpendicular to its axis.
// Width runs along local X and Depth along local Y.
type Section struct {
	Kind   SectionKind `json:"kind" yaml:"kind"`
	Width  float64     `json:"width,omitempty" yaml:"width,omitempty"`
	Depth  float64     `json:"depth,omitempty" yaml:"depth,omitempty"`
	Radius float64     `json:"radius,omitempty" yaml:"radius,omitempty"`
}

// Rect returns a rectangular section.
func Rect(width, depth float64) Section {
	return Section{Kind: SectionRect, Width: width, Depth: depth}
}

// Circle returns a circular section.
func Circle(radius float64) Section {
	return Section{Kind: SectionCircle, Radius: radius}
}

// Area returns the cross-section area.
func (s Section) Area() float64 {
	switch s.Kind {
	case SectionCircle:
		return math.Pi * s.Radius * s.Radius
	default:
		return s.Width * s.Depth
	}
}

// Positive reports whether every dimension of the section is > 0.
func (s Section) Positive() bool {
	switch s.Kind {
	case SectionCircle:
		return s.Radius > 0
	default:
		return s.Width > 0 && s.Depth > 0
	}
}

func (s Section) String() string {
	if s.Kind == SectionCircle {
		return fmt.Sprintf("circle r=%g", s.Radius)
	}
	return fmt.Sprintf("rect %gx%g", s.Width, s.Depth)
}

// Material is a named density in kg/m³.
type Material struct {
	Name    string  `json:"name,omitempty" yaml:"name,omitempty"`
	Density float64 `json:"density" yaml:"density"`
}

// Materials is the built-in density table.
var Materials = map[string]Material{
	"steel":     {Name: "steel", Density: 7850},
	"aluminium": {Name: "aluminium", Density: 2700},
	"titanium":  {Name: "titanium", Density: 4500},
	"oak":       {Name: "oak", Density: 750},
	"pine":      {Name: "pine", Density: 500},
	"concrete":  {Name: "concrete", Density: 2400},
	"abs":       {Name: "abs", Density: 1050},
}

// LookupMaterial returns a built-in material by name.
func LookupMaterial(name string) (Material, bool) {
	m, ok := Materials[name]
	return m, ok
}
