package sdfx

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/kernel"
)

// must fails the test when a constructor returns an error.
func must(t *testing.T) func(kernel.Solid, error) kernel.Solid {
	return func(s kernel.Solid, err error) kernel.Solid {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
}

func checkBounds(t *testing.T, s kernel.Solid, wantMin, wantMax [3]float64, tol float64) {
	t.Helper()
	min, max := s.BoundingBox()
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-wantMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected ~%f", i, min[i], wantMin[i])
		}
		if math.Abs(max[i]-wantMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected ~%f", i, max[i], wantMax[i])
		}
	}
}

func TestBox(t *testing.T) {
	k := New()
	box := must(t)(k.Box(100, 50, 25))
	mesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	triCount := mesh.TriangleCount()
	if triCount == 0 {
		t.Fatal("expected non-zero triangle count")
	}
	if len(mesh.Vertices) != len(mesh.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(mesh.Vertices), len(mesh.Normals))
	}
	if len(mesh.Indices) != triCount*3 {
		t.Fatalf("indices length %d != triCount*3 %d", len(mesh.Indices), triCount*3)
	}
}

func TestBoxRejectsNegativeSize(t *testing.T) {
	if _, err := New().Box(-1, 1, 1); err == nil {
		t.Fatal("expected error for negative box size")
	}
}

func TestCylinder(t *testing.T) {
	k := New()
	cyl := must(t)(k.Cylinder(50, 10))
	checkBounds(t, cyl, [3]float64{-10, -10, -25}, [3]float64{10, 10, 25}, 0.01)
	mesh, err := k.ToMesh(cyl)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.TriangleCount() == 0 {
		t.Fatal("expected non-zero triangle count")
	}
}

func TestSphere(t *testing.T) {
	k := New()
	s := must(t)(k.Sphere(2))
	checkBounds(t, s, [3]float64{-2, -2, -2}, [3]float64{2, 2, 2}, 0.01)
}

func TestUnion(t *testing.T) {
	k := New()
	box1 := must(t)(k.Box(50, 50, 50))
	box2 := k.Place(must(t)(k.Box(50, 50, 50)), assembly.Identity, assembly.Vec3{X: 30})
	u := k.Union(box1, box2)
	checkBounds(t, u, [3]float64{-25, -25, -25}, [3]float64{55, 25, 25}, 0.5)
	mesh, err := k.ToMesh(u)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("union mesh is empty")
	}
}

func TestPlaceTranslates(t *testing.T) {
	k := New()
	box := must(t)(k.Box(10, 10, 10))
	placed := k.Place(box, assembly.Identity, assembly.Vec3{X: 100, Y: 200, Z: 300})
	checkBounds(t, placed, [3]float64{95, 195, 295}, [3]float64{105, 205, 305}, 0.5)
}

func TestPlaceRotates(t *testing.T) {
	k := New()
	// A rod along Z turned onto X extends along X.
	rod := must(t)(k.Box(10, 10, 100))
	rot, err := assembly.Align(assembly.AxisZ, assembly.AxisX, assembly.DegeneracyFallback)
	if err != nil {
		t.Fatal(err)
	}
	placed := k.Place(rod, rot, assembly.Vec3{})
	min, max := placed.BoundingBox()

	const tol = 1.0
	if x := max[0] - min[0]; math.Abs(x-100) > tol {
		t.Errorf("placed X extent = %f, expected ~100", x)
	}
	if z := max[2] - min[2]; math.Abs(z-10) > tol {
		t.Errorf("placed Z extent = %f, expected ~10", z)
	}
}

func TestWriteSTL(t *testing.T) {
	k := &SdfxKernel{Cells: 20}
	box := must(t)(k.Box(1, 1, 1))
	path := filepath.Join(t.TempDir(), "box.stl")
	if err := k.WriteSTL(box, path); err != nil {
		t.Fatalf("WriteSTL failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	// Binary STL: 80 byte header, count, 50 bytes per triangle.
	if info.Size() <= 84 {
		t.Errorf("STL file is %d bytes, expected triangles", info.Size())
	}
}
