// Package tessellate turns a scene into triangle meshes using a geometry
// kernel. One mesh is produced per member, plus one per shared joint when
// joint markers are requested.
package tessellate

import (
	"fmt"
	"math"

	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/kernel"
	"github.com/chazu/rigkit/pkg/scene"
)

// Options selects what is tessellated.
type Options struct {
	// Joints adds a sphere at every joint shared by two or more members.
	Joints bool
	// JointRadius is the sphere radius. Zero sizes each sphere from the
	// thickest member at the joint.
	JointRadius float64
}

// jointScale enlarges default joint spheres past the member surfaces.
const jointScale = 1.25

// Mesh kinds.
const (
	KindMember = "member"
	KindJoint  = "joint"
)

// MemberSolid builds the solid for m in world space: the section extruded
// along the local Z axis over the member length, rotated by the member
// orientation and centred on the member center.
func MemberSolid(k kernel.Kernel, m *assembly.MemberDescriptor) (kernel.Solid, error) {
	var (
		solid kernel.Solid
		err   error
	)
	switch m.Section.Kind {
	case assembly.SectionRect:
		solid, err = k.Box(m.Section.Width, m.Section.Depth, m.Length)
	case assembly.SectionCircle:
		solid, err = k.Cylinder(m.Length, m.Section.Radius)
	default:
		return nil, fmt.Errorf("tessellate: member %s has unsupported section %s", m.ID, m.Section)
	}
	if err != nil {
		return nil, fmt.Errorf("tessellate: member %s: %w", m.ID, err)
	}
	return k.Place(solid, m.Orientation, m.Center), nil
}

// halfExtent is the largest distance from a member axis to its surface.
func halfExtent(sec assembly.Section) float64 {
	if sec.Kind == assembly.SectionCircle {
		return sec.Radius
	}
	return math.Hypot(sec.Width, sec.Depth) / 2
}

// jointSolid builds the marker sphere for j.
func jointSolid(k kernel.Kernel, s *scene.Scene, j *assembly.Joint, opts Options) (kernel.Solid, error) {
	r := opts.JointRadius
	if r <= 0 {
		for _, id := range j.Members() {
			if m, ok := s.Member(id); ok {
				r = math.Max(r, halfExtent(m.Section)*jointScale)
			}
		}
	}
	sphere, err := k.Sphere(r)
	if err != nil {
		return nil, fmt.Errorf("tessellate: joint %s: %w", j.ID, err)
	}
	return k.Place(sphere, assembly.Identity, j.Centroid), nil
}

// Tessellate produces one triangle mesh per member, in scene order, followed
// by one per shared joint when opts.Joints is set. The scene is read-only.
func Tessellate(s *scene.Scene, k kernel.Kernel, opts Options) ([]*kernel.Mesh, error) {
	if s == nil {
		return nil, nil
	}

	var meshes []*kernel.Mesh
	for i := range s.Members {
		m := &s.Members[i]
		solid, err := MemberSolid(k, m)
		if err != nil {
			return nil, err
		}
		mesh, err := k.ToMesh(solid)
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for member %s: %w", m.ID, err)
		}
		mesh.Name = string(m.ID)
		mesh.Kind = KindMember
		meshes = append(meshes, mesh)
	}

	if !opts.Joints {
		return meshes, nil
	}
	for i := range s.Joints {
		j := &s.Joints[i]
		if j.IsFree() {
			continue
		}
		solid, err := jointSolid(k, s, j, opts)
		if err != nil {
			return nil, err
		}
		mesh, err := k.ToMesh(solid)
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for joint %s: %w", j.ID, err)
		}
		mesh.Name = string(j.ID)
		mesh.Kind = KindJoint
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

// Solid returns the union of every member solid, and of the joint markers
// when opts.Joints is set, for whole-scene export.
func Solid(s *scene.Scene, k kernel.Kernel, opts Options) (kernel.Solid, error) {
	if s == nil || len(s.Members) == 0 {
		return nil, fmt.Errorf("tessellate: scene has no members")
	}
	solids := make([]kernel.Solid, 0, len(s.Members)+len(s.Joints))
	for i := range s.Members {
		solid, err := MemberSolid(k, &s.Members[i])
		if err != nil {
			return nil, err
		}
		solids = append(solids, solid)
	}
	if opts.Joints {
		for i := range s.Joints {
			j := &s.Joints[i]
			if j.IsFree() {
				continue
			}
			solid, err := jointSolid(k, s, j, opts)
			if err != nil {
				return nil, err
			}
			solids = append(solids, solid)
		}
	}
	return k.Union(solids...), nil
}
