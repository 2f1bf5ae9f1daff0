// Package member synthesizes oriented, mass-bearing member descriptors
// from two endpoints and a cross-section.
package member

import (
	"errors"

	"github.com/chazu/rigkit/pkg/assembly"
)

// CanonicalAxis is the local axis a member's length runs along. It matches
// the extrusion axis of the sdfx box and cylinder primitives.
var CanonicalAxis = assembly.AxisZ

// Options carries the caller-supplied member attributes.
type Options struct {
	StartNode assembly.NodeID
	EndNode   assembly.NodeID
	Mobility  assembly.Mobility
	Role      assembly.Role
	Policy    assembly.DegeneracyPolicy
	// MinLength is the degeneracy threshold. Zero means assembly.Epsilon.
	MinLength float64
}

// Synthesize computes center, length, orientation and mass for one member.
//
// Errors, in the order they are checked:
//   - *assembly.DegenerateMemberError if |end - start| < MinLength
//   - *assembly.InvalidMaterialError if density or any section dimension is <= 0
//   - *assembly.OrientationDegeneracyError if the policy rejects the direction
func Synthesize(id assembly.MemberID, start, end assembly.Vec3, section assembly.Section, material assembly.Material, opts Options) (assembly.MemberDescriptor, error) {
	minLen := opts.MinLength
	if minLen <= 0 {
		minLen = assembly.Epsilon
	}

	dir := end.Sub(start)
	length := dir.Length()
	if length < minLen {
		return assembly.MemberDescriptor{}, &assembly.DegenerateMemberError{Member: id, Start: start, End: end, Length: length}
	}

	if material.Density <= 0 || !section.Positive() {
		return assembly.MemberDescriptor{}, &assembly.InvalidMaterialError{Member: id, Density: material.Density, Section: section}
	}

	rot, err := assembly.Align(CanonicalAxis, dir, opts.Policy)
	if err != nil {
		var oe *assembly.OrientationDegeneracyError
		if errors.As(err, &oe) {
			oe.Member = id
		}
		return assembly.MemberDescriptor{}, err
	}

	return assembly.MemberDescriptor{
		ID:          id,
		StartNode:   opts.StartNode,
		EndNode:     opts.EndNode,
		Start:       start,
		End:         end,
		Section:     section,
		Material:    material,
		Length:      length,
		Center:      start.Midpoint(end),
		Orientation: rot,
		Mass:        material.Density * section.Area() * length,
		Mobility:    opts.Mobility,
		Role:        opts.Role,
	}, nil
}

// CharacteristicLength returns the diagonal of the bounding box of every
// member endpoint, or 0 for an empty set.
func CharacteristicLength(members []assembly.MemberDescriptor) float64 {
	if len(members) == 0 {
		return 0
	}
	lo, hi := members[0].Start, members[0].Start
	grow := func(p assembly.Vec3) {
		lo = assembly.Vec3{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = assembly.Vec3{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	for i := range members {
		grow(members[i].Start)
		grow(members[i].End)
	}
	return hi.Dist(lo)
}

// TotalMass sums member masses.
func TotalMass(members []assembly.MemberDescriptor) float64 {
	var m float64
	for i := range members {
		m += members[i].Mass
	}
	return m
}
