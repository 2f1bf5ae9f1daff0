// Package kernel defines the abstract geometry kernel interface used to
// turn member descriptors into solids and meshes. The sdfx subpackage is
// the implementation; the abstraction keeps the rest of the system free of
// backend types.
package kernel

import "github.com/chazu/rigkit/pkg/assembly"

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface. Primitives are centred
// on the origin; lengths run along +Z.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) (Solid, error)
	Cylinder(height, radius float64) (Solid, error)
	Sphere(radius float64) (Solid, error)

	// Boolean operations
	Union(solids ...Solid) Solid

	// Place rotates s about the origin and then moves it to at.
	Place(s Solid, rot assembly.Rotation, at assembly.Vec3) Solid

	// Output
	ToMesh(s Solid) (*Mesh, error)
	WriteSTL(s Solid, path string) error
}
