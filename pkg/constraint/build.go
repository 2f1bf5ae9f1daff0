// Package constraint builds the constraint graph linking members at
// their joints.
//
// Every joint with k >= 2 members gets a star by default: the first
// inserted member anchors, and one rigid constraint links it to each of
// the other k-1. Mechanism joints override kind, axis, anchor and topology
// through a Decl; nothing is derived from member orientation.
package constraint

import (
	"fmt"
	"slices"

	"github.com/chazu/rigkit/pkg/assembly"
)

// Options controls Build.
type Options struct {
	// Tolerance matches Decl.At against joint centroids.
	Tolerance float64
}

// Graph is the built constraint set.
type Graph struct {
	Constraints []assembly.Constraint
	// Dropped counts constraints removed as duplicates of an earlier
	// (anchor, target, joint) key.
	Dropped int
}

// pairKey identifies a constraint independently of its anchor/target order.
type pairKey struct {
	joint  assembly.JointID
	lo, hi assembly.MemberID
}

func makePairKey(j assembly.JointID, a, b assembly.MemberID) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{joint: j, lo: a, hi: b}
}

// Build creates constraints for every shared joint, applying decls.
func Build(joints []assembly.Joint, decls []Decl, opts Options) (*Graph, error) {
	byJoint, err := resolveDecls(joints, decls, opts)
	if err != nil {
		return nil, err
	}

	g := &Graph{}
	seen := make(map[pairKey]bool)
	emit := func(c assembly.Constraint) {
		k := makePairKey(c.Joint, c.Anchor, c.Target)
		if seen[k] {
			g.Dropped++
			return
		}
		seen[k] = true
		c.ID = assembly.ConstraintID(fmt.Sprintf("C%d", len(g.Constraints)))
		g.Constraints = append(g.Constraints, c)
	}

	for i := range joints {
		j := &joints[i]
		members := j.Members()
		if len(members) < 2 {
			continue
		}
		d := byJoint[j.ID]
		if d == nil {
			d = &Decl{}
		}

		pairs, err := pairsFor(j, members, d)
		if err != nil {
			return nil, err
		}

		var axis *assembly.Vec3
		if d.Kind.IsHinge() {
			if d.Axis == nil || d.Axis.IsZero() {
				return nil, &assembly.DeclarationError{Decl: d.label(), Reason: fmt.Sprintf("%s joint %s requires an explicit non-zero axis", d.Kind, j.ID)}
			}
			a := d.Axis.Normalize()
			axis = &a
		}
		if d.Limits != nil && d.Limits.Lower > d.Limits.Upper {
			return nil, &assembly.DeclarationError{Decl: d.label(), Reason: fmt.Sprintf("limits lower %g > upper %g", d.Limits.Lower, d.Limits.Upper)}
		}
		if d.Profile != "" && d.Kind != assembly.KindMotor {
			return nil, &assembly.DeclarationError{Decl: d.label(), Reason: fmt.Sprintf("profile %q attached to %s joint; only motor joints are actuated", d.Profile, d.Kind)}
		}

		start := len(g.Constraints)
		for _, p := range pairs {
			c := assembly.Constraint{
				Joint:   j.ID,
				Kind:    d.Kind,
				Anchor:  p.Anchor,
				Target:  p.Target,
				Pivot:   j.Centroid,
				Profile: d.Profile,
			}
			if axis != nil {
				ax := *axis
				c.Axis = &ax
			}
			if d.Limits != nil {
				lim := *d.Limits
				c.Limits = &lim
			}
			emit(c)
		}

		if err := checkRigidity(j, members, d, g.Constraints[start:]); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// resolveDecls maps each declaration to the joint it selects.
func resolveDecls(joints []assembly.Joint, decls []Decl, opts Options) (map[assembly.JointID]*Decl, error) {
	out := make(map[assembly.JointID]*Decl, len(decls))
	for i := range decls {
		d := &decls[i]
		j, err := selectJoint(joints, d, opts)
		if err != nil {
			return nil, err
		}
		if prev, dup := out[j.ID]; dup {
			return nil, &assembly.DeclarationError{Decl: d.label(), Reason: fmt.Sprintf("joint %s already declared by %s", j.ID, prev.label())}
		}
		if len(j.Members()) < 2 {
			return nil, &assembly.DeclarationError{Decl: d.label(), Reason: fmt.Sprintf("joint %s is a free end with a single member", j.ID)}
		}
		out[j.ID] = d
	}
	return out, nil
}

func selectJoint(joints []assembly.Joint, d *Decl, opts Options) (*assembly.Joint, error) {
	switch {
	case d.End != nil:
		for i := range joints {
			if joints[i].Contains(*d.End) {
				return &joints[i], nil
			}
		}
		return nil, &assembly.DeclarationError{Decl: d.label(), Reason: fmt.Sprintf("no joint contains member end %s", d.End)}
	case d.At != nil:
		best, bestD := -1, opts.Tolerance
		for i := range joints {
			if dist := joints[i].Centroid.Dist(*d.At); dist <= bestD {
				best, bestD = i, dist
			}
		}
		if best < 0 {
			return nil, &assembly.DeclarationError{Decl: d.label(), Reason: fmt.Sprintf("no joint within %g of %s", opts.Tolerance, d.At)}
		}
		return &joints[best], nil
	}
	return nil, &assembly.DeclarationError{Decl: d.label(), Reason: "declaration selects no joint (set end or at)"}
}

// pairsFor lists the (anchor, target) pairs of j under d's topology.
func pairsFor(j *assembly.Joint, members []assembly.MemberID, d *Decl) ([]Pair, error) {
	incident := func(m assembly.MemberID) bool { return slices.Contains(members, m) }

	anchor := members[0]
	if d.Anchor != "" {
		if !incident(d.Anchor) {
			return nil, &assembly.DeclarationError{Decl: d.label(), Reason: fmt.Sprintf("anchor %s is not incident on joint %s", d.Anchor, j.ID)}
		}
		anchor = d.Anchor
	}
	ordered := make([]assembly.MemberID, 0, len(members))
	ordered = append(ordered, anchor)
	for _, m := range members {
		if m != anchor {
			ordered = append(ordered, m)
		}
	}

	switch d.Topology {
	case TopologyStar:
		pairs := make([]Pair, 0, len(ordered)-1)
		for _, m := range ordered[1:] {
			pairs = append(pairs, Pair{Anchor: anchor, Target: m})
		}
		return pairs, nil

	case TopologyPairwise:
		var pairs []Pair
		for a := 0; a < len(ordered); a++ {
			for b := a + 1; b < len(ordered); b++ {
				pairs = append(pairs, Pair{Anchor: ordered[a], Target: ordered[b]})
			}
		}
		return pairs, nil

	case TopologyExplicit:
		if len(d.Pairs) == 0 {
			return nil, &assembly.DeclarationError{Decl: d.label(), Reason: "explicit topology with no pairs"}
		}
		for _, p := range d.Pairs {
			if !incident(p.Anchor) || !incident(p.Target) {
				return nil, &assembly.DeclarationError{Decl: d.label(), Reason: fmt.Sprintf("pair %s-%s is not incident on joint %s", p.Anchor, p.Target, j.ID)}
			}
			if p.Anchor == p.Target {
				return nil, &assembly.DeclarationError{Decl: d.label(), Reason: fmt.Sprintf("pair links %s to itself", p.Anchor)}
			}
		}
		return d.Pairs, nil
	}
	return nil, &assembly.DeclarationError{Decl: d.label(), Reason: fmt.Sprintf("unknown topology %v", d.Topology)}
}

// checkRigidity verifies the constraints emitted for j satisfy the declared
// kinematic intent.
func checkRigidity(j *assembly.Joint, members []assembly.MemberID, d *Decl, cs []assembly.Constraint) error {
	if d.Rigidity == RigidityNone {
		return nil
	}
	k := len(members)

	rigid := 0
	for _, c := range cs {
		if c.Kind == assembly.KindRigid {
			rigid++
		}
	}

	if d.Kind != assembly.KindRigid {
		return &assembly.UnderconstrainedJointError{
			Joint: j.ID, Members: members, Have: rigid, Required: k - 1,
			Reason: fmt.Sprintf("%s constraints leave a rotational degree of freedom at a joint declared %s", d.Kind, d.Rigidity),
		}
	}

	switch d.Rigidity {
	case RigidityBraced:
		need := k * (k - 1) / 2
		if rigid < need {
			return &assembly.UnderconstrainedJointError{
				Joint: j.ID, Members: members, Have: rigid, Required: need,
				Reason: fmt.Sprintf("%s topology does not brace every member pair", d.Topology),
			}
		}
	case RigidityConnected:
		idx := make(map[assembly.MemberID]int, k)
		for i, m := range members {
			idx[m] = i
		}
		parent := make([]int, k)
		for i := range parent {
			parent[i] = i
		}
		var find func(int) int
		find = func(x int) int {
			for parent[x] != x {
				parent[x] = parent[parent[x]]
				x = parent[x]
			}
			return x
		}
		groups := k
		for _, c := range cs {
			a, b := find(idx[c.Anchor]), find(idx[c.Target])
			if a != b {
				parent[a] = b
				groups--
			}
		}
		if groups > 1 {
			return &assembly.UnderconstrainedJointError{
				Joint: j.ID, Members: members, Have: k - groups, Required: k - 1,
				Reason: fmt.Sprintf("rigid constraints leave %d disconnected member groups", groups),
			}
		}
	}
	return nil
}
