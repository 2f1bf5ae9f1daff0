package constraint

import (
	"fmt"

	"github.com/chazu/rigkit/pkg/assembly"
)

// Topology selects which member pairs at a joint receive a constraint.
type Topology int

const (
	// TopologyStar links the anchor to every other member (k-1 constraints).
	TopologyStar Topology = iota
	// TopologyPairwise links every pair of members (k(k-1)/2 constraints).
	TopologyPairwise
	// TopologyExplicit links only the pairs listed in Decl.Pairs.
	TopologyExplicit
)

func (t Topology) String() string {
	switch t {
	case TopologyStar:
		return "star"
	case TopologyPairwise:
		return "pairwise"
	case TopologyExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Topology) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Topology) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "star":
		*t = TopologyStar
	case "pairwise", "braced":
		*t = TopologyPairwise
	case "explicit":
		*t = TopologyExplicit
	default:
		return fmt.Errorf("constraint: unknown topology %q", b)
	}
	return nil
}

// Rigidity is the kinematic intent declared for a joint.
type Rigidity int

const (
	// RigidityNone makes no claim; mechanisms use this.
	RigidityNone Rigidity = iota
	// RigidityConnected requires every member to be reachable from the
	// anchor through rigid constraints.
	RigidityConnected
	// RigidityBraced requires a direct rigid constraint between every pair.
	RigidityBraced
)

func (r Rigidity) String() string {
	switch r {
	case RigidityNone:
		return "none"
	case RigidityConnected:
		return "connected"
	case RigidityBraced:
		return "braced"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Rigidity) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rigidity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "none":
		*r = RigidityNone
	case "connected", "rigid":
		*r = RigidityConnected
	case "braced":
		*r = RigidityBraced
	default:
		return fmt.Errorf("constraint: unknown rigidity %q", b)
	}
	return nil
}

// Pair is an explicit (anchor, target) member pair.
type Pair struct {
	Anchor assembly.MemberID `json:"anchor" yaml:"anchor"`
	Target assembly.MemberID `json:"target" yaml:"target"`
}

// Decl declares the constraint intent for one joint. The joint is selected
// by a member end (End) or by a location (At) within the clustering
// tolerance. Axis is never inferred: hinge and motor kinds must supply it.
type Decl struct {
	Name     string                  `json:"name" yaml:"name"`
	End      *assembly.EndRef        `json:"end,omitempty" yaml:"end,omitempty"`
	At       *assembly.Vec3          `json:"at,omitempty" yaml:"at,omitempty"`
	Kind     assembly.ConstraintKind `json:"kind" yaml:"kind"`
	Axis     *assembly.Vec3          `json:"axis,omitempty" yaml:"axis,omitempty"`
	Limits   *assembly.Limits        `json:"limits,omitempty" yaml:"limits,omitempty"`
	Anchor   assembly.MemberID       `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	Topology Topology                `json:"topology" yaml:"topology"`
	Pairs    []Pair                  `json:"pairs,omitempty" yaml:"pairs,omitempty"`
	Rigidity Rigidity                `json:"rigidity" yaml:"rigidity"`
	Profile  string                  `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// label names d in error messages.
func (d *Decl) label() string {
	switch {
	case d.Name != "":
		return d.Name
	case d.End != nil:
		return d.End.String()
	case d.At != nil:
		return "at " + d.At.String()
	default:
		return "(unnamed)"
	}
}
