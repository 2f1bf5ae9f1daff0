package assembly

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Epsilon is the length below which a vector or member is considered degenerate.
const Epsilon = 1e-9

// Vec3 is a point or direction in world space.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Canonical axes.
var (
	AxisX = Vec3{X: 1}
	AxisY = Vec3{Y: 1}
	AxisZ = Vec3{Z: 1}
)

// V converts to the sdfx vector type.
func (v Vec3) V() v3.Vec { return v3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// FromV converts an sdfx vector.
func FromV(v v3.Vec) Vec3 { return Vec3{X: v.X, Y: v.Y, Z: v.Z} }

func (v Vec3) Add(o Vec3) Vec3 { return FromV(v.V().Add(o.V())) }
func (v Vec3) Sub(o Vec3) Vec3 { return FromV(v.V().Sub(o.V())) }
func (v Vec3) Scale(k float64) Vec3 { return FromV(v.V().MulScalar(k)) }
func (v Vec3) Dot(o Vec3) float64 { return v.V().Dot(o.V()) }
func (v Vec3) Cross(o Vec3) Vec3 { return FromV(v.V().Cross(o.V())) }
func (v Vec3) Length() float64 { return v.V().Length() }
func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Length() }
func (v Vec3) Midpoint(o Vec3) Vec3 { return v.Add(o).Scale(0.5) }
func (v Vec3) IsZero() bool { return v.Length() < Epsilon }
func (v Vec3) ApproxEq(o Vec3, tol float64) bool {
	return v.Dist(o) <= tol
}

// Normalize returns the unit vector in the direction of v. A zero vector
// is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	if v.IsZero() {
		return v
	}
	return FromV(v.V().Normalize())
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.6g, %.6g, %.6g)", v.X, v.Y, v.Z)
}

// ---------------------------------------------------------------------------
// Rotation
// ---------------------------------------------------------------------------

// Rotation is a unit quaternion.
type Rotation struct {
	W float64 `json:"w" yaml:"w"`
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Identity is the zero rotation.
var Identity = Rotation{W: 1}

// AxisAngle builds a rotation of angle radians about axis (right hand rule).
func AxisAngle(axis Vec3, angle float64) Rotation {
	a := axis.Normalize()
	s := math.Sin(angle / 2)
	return Rotation{W: math.Cos(angle / 2), X: a.X * s, Y: a.Y * s, Z: a.Z * s}
}

// AxisAngle decomposes r. The identity yields (+Z, 0).
func (r Rotation) AxisAngle() (Vec3, float64) {
	w := math.Max(-1, math.Min(1, r.W))
	angle := 2 * math.Acos(w)
	s := math.Sqrt(1 - w*w)
	if s < Epsilon {
		return AxisZ, 0
	}
	return Vec3{X: r.X / s, Y: r.Y / s, Z: r.Z / s}, angle
}

// Apply rotates v by r.
func (r Rotation) Apply(v Vec3) Vec3 {
	u := Vec3{X: r.X, Y: r.Y, Z: r.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(r.W)).Add(u.Cross(t))
}

// Mul composes rotations: the result applies o first, then r.
func (r Rotation) Mul(o Rotation) Rotation {
	return Rotation{
		W: r.W*o.W - r.X*o.X - r.Y*o.Y - r.Z*o.Z,
		X: r.W*o.X + r.X*o.W + r.Y*o.Z - r.Z*o.Y,
		Y: r.W*o.Y - r.X*o.Z + r.Y*o.W + r.Z*o.X,
		Z: r.W*o.Z + r.X*o.Y - r.Y*o.X + r.Z*o.W,
	}
}

// Matrix returns the rotation as an sdfx transform.
func (r Rotation) Matrix() sdf.M44 {
	axis, angle := r.AxisAngle()
	return sdf.Rotate3d(axis.V(), angle)
}

// ---------------------------------------------------------------------------
// Alignment
// ---------------------------------------------------------------------------

// DegeneracyPolicy selects how Align treats directions parallel or
// antiparallel to the local axis.
type DegeneracyPolicy int

const (
	// DegeneracyFallback returns the identity for a parallel direction and
	// a half turn about FallbackAxis for an antiparallel one.
	DegeneracyFallback DegeneracyPolicy = iota
	// DegeneracyStrict rejects both cases with OrientationDegeneracyError.
	DegeneracyStrict
)

func (p DegeneracyPolicy) String() string {
	switch p {
	case DegeneracyFallback:
		return "fallback"
	case DegeneracyStrict:
		return "strict"
	default:
		return fmt.Sprintf("DegeneracyPolicy(%d)", int(p))
	}
}

// ParseDegeneracyPolicy parses "fallback" or "strict".
func ParseDegeneracyPolicy(s string) (DegeneracyPolicy, error) {
	switch s {
	case "", "fallback":
		return DegeneracyFallback, nil
	case "strict":
		return DegeneracyStrict, nil
	}
	return 0, fmt.Errorf("assembly: unknown degeneracy policy %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p DegeneracyPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *DegeneracyPolicy) UnmarshalText(b []byte) error {
	v, err := ParseDegeneracyPolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// parallelTol bounds |1 - |cos θ|| for a direction to count as (anti)parallel.
const parallelTol = 1e-12

// FallbackAxis returns the half-turn axis used for an antiparallel
// direction: normalize(local × X), or normalize(local × Y) when local is
// itself along X.
func FallbackAxis(local Vec3) Vec3 {
	l := local.Normalize()
	if c := l.Cross(AxisX); !c.IsZero() {
		return c.Normalize()
	}
	return l.Cross(AxisY).Normalize()
}

// Align returns the rotation mapping local onto the direction of dir.
func Align(local, dir Vec3, policy DegeneracyPolicy) (Rotation, error) {
	if local.IsZero() || dir.IsZero() {
		return Rotation{}, &OrientationDegeneracyError{Local: local, Direction: dir, Reason: "zero-length axis"}
	}
	l := local.Normalize()
	d := dir.Normalize()
	cos := l.Dot(d)

	switch {
	case cos >= 1-parallelTol:
		if policy == DegeneracyStrict {
			return Rotation{}, &OrientationDegeneracyError{Local: local, Direction: dir, Reason: "direction parallel to local axis"}
		}
		return Identity, nil
	case cos <= -1+parallelTol:
		if policy == DegeneracyStrict {
			return Rotation{}, &OrientationDegeneracyError{Local: local, Direction: dir, Reason: "direction antiparallel to local axis"}
		}
		return AxisAngle(FallbackAxis(l), math.Pi), nil
	}

	axis := l.Cross(d)
	angle := math.Atan2(axis.Length(), cos)
	return AxisAngle(axis, angle), nil
}
