package assembly

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Identifiers
// ---------------------------------------------------------------------------

// NodeID names a layout node.
type NodeID string

// MemberID names a member.
type MemberID string

// JointID names a derived joint.
type JointID string

// ConstraintID names a constraint.
type ConstraintID string

// ---------------------------------------------------------------------------
// Nodes and members
// ---------------------------------------------------------------------------

// Node is a named point produced by the layout pass.
type Node struct {
	ID       NodeID `json:"id" yaml:"id"`
	Position Vec3   `json:"position" yaml:"position"`
}

// Mobility says whether the simulator moves a member.
type Mobility int

const (
	Simulated Mobility = iota // moved by the simulator
	Fixed                     // pinned in world space
)

func (m Mobility) String() string {
	switch m {
	case Simulated:
		return "simulated"
	case Fixed:
		return "fixed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mobility) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mobility) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "simulated", "active":
		*m = Simulated
	case "fixed", "passive":
		*m = Fixed
	default:
		return fmt.Errorf("assembly: unknown mobility %q", b)
	}
	return nil
}

// Role tags what a member is for.
type Role int

const (
	RoleStructural  Role = iota // truss/frame member
	RoleActuated                // driven by a motorized joint
	RoleLoadBearing             // carries an external load
)

func (r Role) String() string {
	switch r {
	case RoleStructural:
		return "structural"
	case RoleActuated:
		return "actuated"
	case RoleLoadBearing:
		return "load-bearing"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseRole parses a role tag.
func ParseRole(s string) (Role, error) {
	switch s {
	case "", "structural":
		return RoleStructural, nil
	case "actuated":
		return RoleActuated, nil
	case "load-bearing", "load_bearing":
		return RoleLoadBearing, nil
	}
	return 0, fmt.Errorf("assembly: unknown role %q", s)
}

// MemberDescriptor is one synthesized rigid member.
type MemberDescriptor struct {
	ID          MemberID `json:"id" yaml:"id"`
	StartNode   NodeID   `json:"start_node,omitempty" yaml:"start_node,omitempty"`
	EndNode     NodeID   `json:"end_node,omitempty" yaml:"end_node,omitempty"`
	Start       Vec3     `json:"start" yaml:"start"`
	End         Vec3     `json:"end" yaml:"end"`
	Section     Section  `json:"section" yaml:"section"`
	Material    Material `json:"material" yaml:"material"`
	Length      float64  `json:"length" yaml:"length"`
	Center      Vec3     `json:"center" yaml:"center"`
	Orientation Rotation `json:"orientation" yaml:"orientation"`
	Mass        float64  `json:"mass" yaml:"mass"`
	Mobility    Mobility `json:"mobility" yaml:"mobility"`
	Role        Role     `json:"role" yaml:"role"`
}

// Endpoint returns the start or end position.
func (m *MemberDescriptor) Endpoint(e End) Vec3 {
	if e == EndB {
		return m.End
	}
	return m.Start
}

// Direction returns the unit vector from start to end.
func (m *MemberDescriptor) Direction() Vec3 {
	return m.End.Sub(m.Start).Normalize()
}

// ---------------------------------------------------------------------------
// Joints
// ---------------------------------------------------------------------------

// End selects one end of a member.
type End int

const (
	EndA End = iota // start
	EndB            // end
)

func (e End) String() string {
	if e == EndB {
		return "end"
	}
	return "start"
}

// MarshalText implements encoding.TextMarshaler.
func (e End) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *End) UnmarshalText(b []byte) error {
	switch string(b) {
	case "start", "a":
		*e = EndA
	case "end", "b":
		*e = EndB
	default:
		return fmt.Errorf("assembly: unknown member end %q", b)
	}
	return nil
}

// EndRef is one member end. It encodes as "member.start" or "member.end".
type EndRef struct {
	Member MemberID
	End    End
}

func (r EndRef) String() string { return fmt.Sprintf("%s.%s", r.Member, r.End) }

// ParseEndRef parses "member.start" or "member.end".
func ParseEndRef(s string) (EndRef, error) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 {
		return EndRef{}, fmt.Errorf("assembly: member end %q is not of the form member.start|end", s)
	}
	var e End
	if err := e.UnmarshalText([]byte(s[i+1:])); err != nil {
		return EndRef{}, err
	}
	return EndRef{Member: MemberID(s[:i]), End: e}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r EndRef) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *EndRef) UnmarshalText(b []byte) error {
	v, err := ParseEndRef(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Joint is the set of member ends that coincide within tolerance.
type Joint struct {
	ID       JointID  `json:"id" yaml:"id"`
	Centroid Vec3     `json:"centroid" yaml:"centroid"`
	Ends     []EndRef `json:"ends" yaml:"ends"`
}

// Members returns the distinct members incident on j in insertion order.
func (j *Joint) Members() []MemberID {
	seen := make(map[MemberID]bool, len(j.Ends))
	out := make([]MemberID, 0, len(j.Ends))
	for _, e := range j.Ends {
		if !seen[e.Member] {
			seen[e.Member] = true
			out = append(out, e.Member)
		}
	}
	return out
}

// IsFree reports whether j is a singleton free end.
func (j *Joint) IsFree() bool { return len(j.Members()) < 2 }

// Contains reports whether ref is incident on j.
func (j *Joint) Contains(ref EndRef) bool {
	for _, e := range j.Ends {
		if e == ref {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Constraints
// ---------------------------------------------------------------------------

// ConstraintKind enumerates how two members are linked at a joint.
type ConstraintKind int

const (
	KindRigid ConstraintKind = iota // all six relative DOF removed
	KindHinge                       // rotation about Axis left free
	KindMotor                       // hinge driven toward a target value
)

func (k ConstraintKind) String() string {
	switch k {
	case KindRigid:
		return "rigid"
	case KindHinge:
		return "hinge"
	case KindMotor:
		return "motor"
	default:
		return "unknown"
	}
}

// IsHinge reports whether k needs an explicit axis.
func (k ConstraintKind) IsHinge() bool { return k == KindHinge || k == KindMotor }

// MarshalText implements encoding.TextMarshaler.
func (k ConstraintKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ConstraintKind) UnmarshalText(b []byte) error {
	v, err := ParseConstraintKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseConstraintKind parses a constraint kind name.
func ParseConstraintKind(s string) (ConstraintKind, error) {
	switch s {
	case "", "rigid", "fixed":
		return KindRigid, nil
	case "hinge":
		return KindHinge, nil
	case "motor", "motorized-hinge", "motorized_hinge":
		return KindMotor, nil
	}
	return 0, fmt.Errorf("assembly: unknown constraint kind %q", s)
}

// Limits bounds a hinge angle in radians.
type Limits struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Constraint links an anchor member to a target member at a joint.
type Constraint struct {
	ID      ConstraintID   `json:"id" yaml:"id"`
	Joint   JointID        `json:"joint" yaml:"joint"`
	Kind    ConstraintKind `json:"kind" yaml:"kind"`
	Anchor  MemberID       `json:"anchor" yaml:"anchor"`
	Target  MemberID       `json:"target" yaml:"target"`
	Pivot   Vec3           `json:"pivot" yaml:"pivot"`
	Axis    *Vec3          `json:"axis,omitempty" yaml:"axis,omitempty"`
	Limits  *Limits        `json:"limits,omitempty" yaml:"limits,omitempty"`
	Profile string         `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// ---------------------------------------------------------------------------
// Actuation
// ---------------------------------------------------------------------------

// Keyframe sets a motor target value from time T onward.
type Keyframe struct {
	T     float64 `json:"t" yaml:"t"`
	Value float64 `json:"value" yaml:"value"`
}

// ActuationProfile is a step-interpolated target schedule.
type ActuationProfile struct {
	Name      string     `json:"name" yaml:"name"`
	Keyframes []Keyframe `json:"keyframes" yaml:"keyframes"`
}

// Start returns the time of the first keyframe.
func (p *ActuationProfile) Start() float64 {
	if len(p.Keyframes) == 0 {
		return 0
	}
	return p.Keyframes[0].T
}

// End returns the time of the last keyframe.
func (p *ActuationProfile) End() float64 {
	if len(p.Keyframes) == 0 {
		return 0
	}
	return p.Keyframes[len(p.Keyframes)-1].T
}

// ValueAt returns the target value at time t. The value of a keyframe
// holds until the next one and forever after the last. Before the first
// keyframe there is no target and ok is false.
func (p *ActuationProfile) ValueAt(t float64) (v float64, ok bool) {
	for _, k := range p.Keyframes {
		if k.T > t {
			break
		}
		v, ok = k.Value, true
	}
	return v, ok
}

// ---------------------------------------------------------------------------
// Loads
// ---------------------------------------------------------------------------

// Selector resolves a set of load targets. Members and Nodes list ids
// directly; Role and Pattern (path.Match syntax against ids) select members.
type Selector struct {
	Members []MemberID `json:"members,omitempty" yaml:"members,omitempty"`
	Nodes   []NodeID   `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Role    *Role      `json:"role,omitempty" yaml:"role,omitempty"`
	Pattern string     `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// IsEmpty reports whether the selector names nothing.
func (s Selector) IsEmpty() bool {
	return len(s.Members) == 0 && len(s.Nodes) == 0 && s.Role == nil && s.Pattern == ""
}

// LoadSpec is an external force request.
type LoadSpec struct {
	Name          string             `json:"name,omitempty" yaml:"name,omitempty"`
	Target        Selector           `json:"target" yaml:"target"`
	Magnitude     float64            `json:"magnitude" yaml:"magnitude"`
	Direction     Vec3               `json:"direction" yaml:"direction"`
	FalloffRadius float64            `json:"falloff_radius" yaml:"falloff_radius"`
	Origin        *Vec3              `json:"origin,omitempty" yaml:"origin,omitempty"`
	Weights       map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// TargetKind says whether an applied load acts on a member or a node.
type TargetKind int

const (
	TargetMember TargetKind = iota
	TargetNode
)

func (k TargetKind) String() string {
	if k == TargetNode {
		return "node"
	}
	return "member"
}

// MarshalText implements encoding.TextMarshaler.
func (k TargetKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *TargetKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "member":
		*k = TargetMember
	case "node":
		*k = TargetNode
	default:
		return fmt.Errorf("assembly: unknown load target kind %q", b)
	}
	return nil
}

// AppliedLoad is the share of a LoadSpec acting on one target.
type AppliedLoad struct {
	Load   string     `json:"load,omitempty" yaml:"load,omitempty"`
	Kind   TargetKind `json:"kind" yaml:"kind"`
	Target string     `json:"target" yaml:"target"`
	Point  Vec3       `json:"point" yaml:"point"`
	Force  Vec3       `json:"force" yaml:"force"`
}
