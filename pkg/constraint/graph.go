package constraint

import (
	"sort"

	"github.com/chazu/rigkit/pkg/assembly"
)

// ForJoint returns the constraints built at joint id.
func (g *Graph) ForJoint(id assembly.JointID) []assembly.Constraint {
	var out []assembly.Constraint
	for _, c := range g.Constraints {
		if c.Joint == id {
			out = append(out, c)
		}
	}
	return out
}

// Motors returns the motor constraints in build order.
func (g *Graph) Motors() []assembly.Constraint {
	var out []assembly.Constraint
	for _, c := range g.Constraints {
		if c.Kind == assembly.KindMotor {
			out = append(out, c)
		}
	}
	return out
}

// Adjacency maps each member to the members it is constrained to.
func (g *Graph) Adjacency() map[assembly.MemberID][]assembly.MemberID {
	adj := make(map[assembly.MemberID][]assembly.MemberID)
	for _, c := range g.Constraints {
		adj[c.Anchor] = append(adj[c.Anchor], c.Target)
		adj[c.Target] = append(adj[c.Target], c.Anchor)
	}
	return adj
}

// Components partitions members into groups connected by any constraint.
// Each group is sorted; groups are ordered by their first member.
func Components(members []assembly.MemberID, cs []assembly.Constraint) [][]assembly.MemberID {
	adj := (&Graph{Constraints: cs}).Adjacency()
	visited := make(map[assembly.MemberID]bool, len(members))
	var out [][]assembly.MemberID
	for _, m := range members {
		if visited[m] {
			continue
		}
		var group []assembly.MemberID
		stack := []assembly.MemberID{m}
		visited[m] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			group = append(group, cur)
			for _, n := range adj[cur] {
				if !visited[n] {
					visited[n] = true
					stack = append(stack, n)
				}
			}
		}
		sort.Slice(group, func(i, j int) bool { return group[i] < group[j] })
		out = append(out, group)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
