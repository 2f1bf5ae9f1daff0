// Package load distributes external force specifications over members and
// nodes.
package load

import (
	"fmt"
	"math"
	"path"
	"slices"

	"github.com/chazu/rigkit/pkg/assembly"
)

// target is one resolved candidate.
type target struct {
	kind  assembly.TargetKind
	id    string
	point assembly.Vec3
}

// Apply resolves spec.Target against members and nodes, keeps the targets
// within spec.FalloffRadius of the load origin, and splits the force among
// them.
//
// The origin is spec.Origin when set and otherwise the centroid of every
// selected target. Shares are equal unless spec.Weights is set, in which
// case they are the weights normalised over the retained targets.
func Apply(members []assembly.MemberDescriptor, nodes []assembly.Node, spec assembly.LoadSpec) ([]assembly.AppliedLoad, error) {
	fail := func(format string, args ...any) error {
		return &assembly.LoadError{Load: spec.Name, Reason: fmt.Sprintf(format, args...)}
	}

	switch {
	case !(spec.FalloffRadius > 0) || math.IsInf(spec.FalloffRadius, 0):
		return nil, fail("falloff radius must be positive and finite, got %g", spec.FalloffRadius)
	case math.IsNaN(spec.Magnitude) || math.IsInf(spec.Magnitude, 0) || spec.Magnitude < 0:
		return nil, fail("magnitude must be finite and non-negative, got %g", spec.Magnitude)
	case spec.Direction.IsZero():
		return nil, fail("direction is zero")
	case spec.Target.IsEmpty():
		return nil, fail("target selector is empty")
	}

	candidates, err := resolve(members, nodes, spec.Target)
	if err != nil {
		return nil, fail("%v", err)
	}
	if len(candidates) == 0 {
		return nil, fail("selector matched no members or nodes")
	}

	origin := centroid(candidates)
	if spec.Origin != nil {
		origin = *spec.Origin
	}

	var kept []target
	for _, t := range candidates {
		if t.point.Dist(origin) <= spec.FalloffRadius {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil, fail("no target within falloff radius %g of %s", spec.FalloffRadius, origin)
	}

	shares, err := split(kept, candidates, spec.Weights)
	if err != nil {
		return nil, fail("%v", err)
	}

	dir := spec.Direction.Normalize()
	out := make([]assembly.AppliedLoad, len(kept))
	for i, t := range kept {
		out[i] = assembly.AppliedLoad{
			Load:   spec.Name,
			Kind:   t.kind,
			Target: t.id,
			Point:  t.point,
			Force:  dir.Scale(spec.Magnitude * shares[i]),
		}
	}
	return out, nil
}

// resolve lists the selected targets: members in descriptor order followed
// by nodes in layout order, each at most once.
func resolve(members []assembly.MemberDescriptor, nodes []assembly.Node, sel assembly.Selector) ([]target, error) {
	byMember := make(map[assembly.MemberID]bool, len(members))
	for _, m := range members {
		byMember[m.ID] = true
	}
	byNode := make(map[assembly.NodeID]bool, len(nodes))
	for _, n := range nodes {
		byNode[n.ID] = true
	}
	for _, id := range sel.Members {
		if !byMember[id] {
			return nil, fmt.Errorf("unknown member %q", id)
		}
	}
	for _, id := range sel.Nodes {
		if !byNode[id] {
			return nil, fmt.Errorf("unknown node %q", id)
		}
	}
	if sel.Pattern != "" {
		if _, err := path.Match(sel.Pattern, ""); err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", sel.Pattern, err)
		}
	}

	var out []target
	for _, m := range members {
		if !selectsMember(sel, m) {
			continue
		}
		out = append(out, target{kind: assembly.TargetMember, id: string(m.ID), point: m.Center})
	}
	for _, n := range nodes {
		if slices.Contains(sel.Nodes, n.ID) {
			out = append(out, target{kind: assembly.TargetNode, id: string(n.ID), point: n.Position})
		}
	}
	return out, nil
}

// selectsMember reports whether m matches any member criterion of sel.
// Role and pattern together must both match.
func selectsMember(sel assembly.Selector, m assembly.MemberDescriptor) bool {
	if slices.Contains(sel.Members, m.ID) {
		return true
	}
	if sel.Role == nil && sel.Pattern == "" {
		return false
	}
	if sel.Role != nil && m.Role != *sel.Role {
		return false
	}
	if sel.Pattern != "" {
		ok, _ := path.Match(sel.Pattern, string(m.ID))
		return ok
	}
	return true
}

func centroid(ts []target) assembly.Vec3 {
	var sum assembly.Vec3
	for _, t := range ts {
		sum = sum.Add(t.point)
	}
	return sum.Scale(1 / float64(len(ts)))
}

// split returns one share per kept target; shares sum to 1.
func split(kept, candidates []target, weights map[string]float64) ([]float64, error) {
	shares := make([]float64, len(kept))
	if len(weights) == 0 {
		for i := range shares {
			shares[i] = 1 / float64(len(kept))
		}
		return shares, nil
	}

	// Weights are keyed by bare id, so an id selected as both a member and
	// a node cannot carry one.
	known := make(map[string]assembly.TargetKind, len(candidates))
	ambiguous := make(map[string]bool)
	for _, t := range candidates {
		if k, ok := known[t.id]; ok && k != t.kind {
			ambiguous[t.id] = true
		}
		known[t.id] = t.kind
	}
	for id, w := range weights {
		if _, ok := known[id]; !ok {
			return nil, fmt.Errorf("weight for unselected target %q", id)
		}
		if ambiguous[id] {
			return nil, fmt.Errorf("weight for %q is ambiguous: it names both a selected member and a selected node", id)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight for %q must be finite and non-negative, got %g", id, w)
		}
	}

	var sum float64
	for i, t := range kept {
		shares[i] = weights[t.id]
		sum += shares[i]
	}
	if sum <= 0 {
		return nil, fmt.Errorf("weights of targets within the falloff radius sum to zero")
	}
	for i := range shares {
		shares[i] /= sum
	}
	return shares, nil
}

// Total returns the resultant force of loads.
func Total(loads []assembly.AppliedLoad) assembly.Vec3 {
	var sum assembly.Vec3
	for _, l := range loads {
		sum = sum.Add(l.Force)
	}
	return sum
}
