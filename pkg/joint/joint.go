// Package joint infers joints by clustering member endpoints.
//
// Clustering is union-find over every member end under the predicate
// dist <= tolerance, accelerated by a uniform grid hash whose cell size is
// the tolerance, so candidate pairs only come from the 27 neighbouring
// cells. The relation is closed transitively: if A-B and B-C are within
// tolerance, A, B and C form one joint even when A-C is not.
package joint

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/member"
)

// DefaultRelativeTolerance scales the characteristic length into ε.
const DefaultRelativeTolerance = 1e-4

// DefaultToleranceFloor is the smallest ε ScaledTolerance returns.
const DefaultToleranceFloor = 1e-6

// ScaledTolerance returns max(floor, rel × characteristic length) so that
// ε follows the size of the assembly instead of a global constant.
func ScaledTolerance(members []assembly.MemberDescriptor, rel, floor float64) float64 {
	if rel <= 0 {
		rel = DefaultRelativeTolerance
	}
	if floor <= 0 {
		floor = DefaultToleranceFloor
	}
	return math.Max(floor, rel*member.CharacteristicLength(members))
}

// endpoint is one member end in insertion order.
type endpoint struct {
	ref assembly.EndRef
	pos assembly.Vec3
}

// cell is a grid hash key.
type cell struct{ x, y, z int64 }

// Clustering is the result of one clustering pass.
type Clustering struct {
	Joints    []assembly.Joint
	Tolerance float64

	members int
	byEnd   map[assembly.EndRef]int
	at      map[assembly.EndRef]assembly.Vec3
}

// Cluster groups the ends of members into joints. tolerance must be > 0.
func Cluster(members []assembly.MemberDescriptor, tolerance float64) (*Clustering, error) {
	if tolerance <= 0 || math.IsNaN(tolerance) || math.IsInf(tolerance, 0) {
		return nil, fmt.Errorf("joint: tolerance must be positive and finite, got %g", tolerance)
	}

	pts := make([]endpoint, 0, 2*len(members))
	seen := make(map[assembly.MemberID]bool, len(members))
	for i := range members {
		m := &members[i]
		if seen[m.ID] {
			return nil, fmt.Errorf("joint: duplicate member id %q", m.ID)
		}
		seen[m.ID] = true
		pts = append(pts,
			endpoint{ref: assembly.EndRef{Member: m.ID, End: assembly.EndA}, pos: m.Start},
			endpoint{ref: assembly.EndRef{Member: m.ID, End: assembly.EndB}, pos: m.End},
		)
	}

	uf := newUnionFind(len(pts))
	grid := make(map[cell][]int, len(pts))
	key := func(p assembly.Vec3) cell {
		return cell{
			x: int64(math.Floor(p.X / tolerance)),
			y: int64(math.Floor(p.Y / tolerance)),
			z: int64(math.Floor(p.Z / tolerance)),
		}
	}

	for i, p := range pts {
		c := key(p.pos)
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					for _, j := range grid[cell{c.x + dx, c.y + dy, c.z + dz}] {
						if p.pos.Dist(pts[j].pos) <= tolerance {
							uf.union(i, j)
						}
					}
				}
			}
		}
		grid[c] = append(grid[c], i)
	}

	// Group by root; a group's order is the index of its first endpoint.
	groups := make(map[int][]int)
	var roots []int
	for i := range pts {
		r := uf.find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}
	sort.SliceStable(roots, func(a, b int) bool { return groups[roots[a]][0] < groups[roots[b]][0] })

	cl := &Clustering{
		Joints:    make([]assembly.Joint, 0, len(roots)),
		Tolerance: tolerance,
		members:   len(members),
		byEnd:     make(map[assembly.EndRef]int, len(pts)),
		at:        make(map[assembly.EndRef]assembly.Vec3, len(pts)),
	}
	for n, r := range roots {
		idx := groups[r]
		j := assembly.Joint{ID: assembly.JointID(fmt.Sprintf("J%d", n)), Ends: make([]assembly.EndRef, 0, len(idx))}
		var sum assembly.Vec3
		for _, i := range idx {
			j.Ends = append(j.Ends, pts[i].ref)
			sum = sum.Add(pts[i].pos)
			cl.byEnd[pts[i].ref] = n
			cl.at[pts[i].ref] = pts[i].pos
		}
		j.Centroid = sum.Scale(1 / float64(len(idx)))
		cl.Joints = append(cl.Joints, j)
	}
	return cl, nil
}

// JointOf returns the joint containing ref.
func (c *Clustering) JointOf(ref assembly.EndRef) (*assembly.Joint, bool) {
	n, ok := c.byEnd[ref]
	if !ok {
		return nil, false
	}
	return &c.Joints[n], true
}

// Nearest returns the joint whose centroid is closest to p, provided it lies
// within the clustering tolerance.
func (c *Clustering) Nearest(p assembly.Vec3) (*assembly.Joint, bool) {
	best, bestD := -1, math.Inf(1)
	for i := range c.Joints {
		if d := c.Joints[i].Centroid.Dist(p); d < bestD {
			best, bestD = i, d
		}
	}
	if best < 0 || bestD > c.Tolerance {
		return nil, false
	}
	return &c.Joints[best], true
}

// Stale reports whether members differs from the set c was computed on.
// Adding a member or moving any endpoint after clustering invalidates
// every joint.
func (c *Clustering) Stale(members []assembly.MemberDescriptor) bool {
	if len(members) != c.members {
		return true
	}
	for i := range members {
		m := &members[i]
		a, ok := c.at[assembly.EndRef{Member: m.ID, End: assembly.EndA}]
		if !ok || a != m.Start {
			return true
		}
		if b := c.at[assembly.EndRef{Member: m.ID, End: assembly.EndB}]; b != m.End {
			return true
		}
	}
	return false
}

// Shared returns the joints with at least two distinct members.
func (c *Clustering) Shared() []assembly.Joint {
	var out []assembly.Joint
	for _, j := range c.Joints {
		if !j.IsFree() {
			out = append(out, j)
		}
	}
	return out
}
