package params

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/rigkit/pkg/assembly"
)

// SectionSpec declares a named cross-section. Dimensions may be
// expressions.
type SectionSpec struct {
	Kind   assembly.SectionKind `yaml:"kind"`
	Width  Value                `yaml:"width,omitempty"`
	Depth  Value                `yaml:"depth,omitempty"`
	Radius Value                `yaml:"radius,omitempty"`
}

// NodeSpec places one node.
type NodeSpec struct {
	ID assembly.NodeID `yaml:"id"`
	At Value           `yaml:"at"`
}

// RowSpec places evenly spaced nodes from From to To, named <ID>0, <ID>1...
// Exactly one of Count (nodes) and Spacing is set. Panels names a count
// parameter that must equal the number of intervals.
type RowSpec struct {
	ID      string `yaml:"id"`
	From    Value  `yaml:"from"`
	To      Value  `yaml:"to"`
	Count   Value  `yaml:"count,omitempty"`
	Spacing Value  `yaml:"spacing,omitempty"`
	Panels  string `yaml:"panels,omitempty"`
}

// RowPair names two rows for zip and diagonal members.
type RowPair struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	// Offset shifts the To index for diagonals; zero means 1.
	Offset int `yaml:"offset,omitempty"`
}

// MemberSpec declares one member or a family of members. Exactly one of
// From/To, Chain, Zip and Diagonal is set. Families are named <ID>0,
// <ID>1...
type MemberSpec struct {
	ID       string            `yaml:"id"`
	From     assembly.NodeID   `yaml:"from,omitempty"`
	To       assembly.NodeID   `yaml:"to,omitempty"`
	Chain    string            `yaml:"chain,omitempty"`
	Zip      *RowPair          `yaml:"zip,omitempty"`
	Diagonal *RowPair          `yaml:"diagonal,omitempty"`
	Section  string            `yaml:"section"`
	Material string            `yaml:"material"`
	Mobility assembly.Mobility `yaml:"mobility,omitempty"`
	Role     assembly.Role     `yaml:"role,omitempty"`
}

// Layout is the declarative node and member layout.
type Layout struct {
	Sections map[string]SectionSpec `yaml:"sections"`
	Nodes    []NodeSpec             `yaml:"nodes,omitempty"`
	Rows     []RowSpec              `yaml:"rows,omitempty"`
	Members  []MemberSpec           `yaml:"members"`
}

// PlannedMember is a member whose endpoints are known nodes.
type PlannedMember struct {
	ID          assembly.MemberID
	Start, End  assembly.NodeID
	SectionName string
	Section     assembly.Section
	Material    string
	Mobility    assembly.Mobility
	Role        assembly.Role
}

// Plan is the output of the layout pass.
type Plan struct {
	Nodes   []assembly.Node
	Members []PlannedMember
	Rows    map[string][]assembly.NodeID
}

// Node returns the node with id.
func (p *Plan) Node(id assembly.NodeID) (assembly.Node, bool) {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return assembly.Node{}, false
}

func inconsistent(param string, declared, derived any, format string, args ...any) error {
	return &assembly.ParameterInconsistencyError{Parameter: param, Declared: declared, Derived: derived, Reason: fmt.Sprintf(format, args...)}
}

// Apply lays out l against the resolved parameters. Nodes come first in
// declaration order, then rows; members follow their declaration order.
func (l *Layout) Apply(r *Resolved) (*Plan, error) {
	sections, err := l.resolveSections(r)
	if err != nil {
		return nil, err
	}

	p := &Plan{Rows: make(map[string][]assembly.NodeID)}
	nodeIdx := make(map[assembly.NodeID]int)
	addNode := func(id assembly.NodeID, at assembly.Vec3) error {
		if _, dup := nodeIdx[id]; dup {
			return inconsistent(string(id), nil, nil, "duplicate node id")
		}
		nodeIdx[id] = len(p.Nodes)
		p.Nodes = append(p.Nodes, assembly.Node{ID: id, Position: at})
		return nil
	}

	for _, n := range l.Nodes {
		at, err := r.Vec(n.At, "node "+string(n.ID))
		if err != nil {
			return nil, err
		}
		if err := addNode(n.ID, at); err != nil {
			return nil, err
		}
	}

	for _, row := range l.Rows {
		pts, err := row.positions(r)
		if err != nil {
			return nil, err
		}
		if _, dup := p.Rows[row.ID]; dup {
			return nil, inconsistent(row.ID, nil, nil, "duplicate row id")
		}
		ids := make([]assembly.NodeID, len(pts))
		for i, at := range pts {
			ids[i] = assembly.NodeID(fmt.Sprintf("%s%d", row.ID, i))
			if err := addNode(ids[i], at); err != nil {
				return nil, err
			}
		}
		p.Rows[row.ID] = ids
	}

	memberIDs := make(map[assembly.MemberID]bool)
	for _, ms := range l.Members {
		sec, ok := sections[ms.Section]
		if !ok {
			return nil, inconsistent(ms.ID, nil, nil, "unknown section %q", ms.Section)
		}
		pairs, err := ms.endpoints(p.Rows)
		if err != nil {
			return nil, err
		}
		family := ms.From == "" && ms.To == ""
		for i, ends := range pairs {
			id := assembly.MemberID(ms.ID)
			if family {
				id = assembly.MemberID(fmt.Sprintf("%s%d", ms.ID, i))
			}
			if memberIDs[id] {
				return nil, inconsistent(string(id), nil, nil, "duplicate member id")
			}
			for _, n := range ends {
				if _, ok := nodeIdx[n]; !ok {
					return nil, inconsistent(string(id), nil, nil, "references unknown node %q", n)
				}
			}
			memberIDs[id] = true
			p.Members = append(p.Members, PlannedMember{
				ID:          id,
				Start:       ends[0],
				End:         ends[1],
				SectionName: ms.Section,
				Section:     sec,
				Material:    ms.Material,
				Mobility:    ms.Mobility,
				Role:        ms.Role,
			})
		}
	}
	return p, nil
}

func (l *Layout) resolveSections(r *Resolved) (map[string]assembly.Section, error) {
	names := make([]string, 0, len(l.Sections))
	for name := range l.Sections {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]assembly.Section, len(l.Sections))
	for _, name := range names {
		s := l.Sections[name]
		where := "section " + name
		switch s.Kind {
		case assembly.SectionRect:
			w, err := r.Float(s.Width, where+" width")
			if err != nil {
				return nil, err
			}
			d, err := r.Float(s.Depth, where+" depth")
			if err != nil {
				return nil, err
			}
			out[name] = assembly.Rect(w, d)
		case assembly.SectionCircle:
			rad, err := r.Float(s.Radius, where+" radius")
			if err != nil {
				return nil, err
			}
			out[name] = assembly.Circle(rad)
		default:
			return nil, inconsistent(name, nil, nil, "unknown section kind")
		}
	}
	return out, nil
}

// positions returns the node positions of a row.
func (row *RowSpec) positions(r *Resolved) ([]assembly.Vec3, error) {
	where := "row " + row.ID
	from, err := r.Vec(row.From, where+" from")
	if err != nil {
		return nil, err
	}
	to, err := r.Vec(row.To, where+" to")
	if err != nil {
		return nil, err
	}
	length := from.Dist(to)

	var n int
	switch {
	case !row.Count.IsZero() && !row.Spacing.IsZero():
		return nil, inconsistent(row.ID, nil, nil, "row sets both count and spacing")
	case !row.Count.IsZero():
		if n, err = r.Int(row.Count, where+" count"); err != nil {
			return nil, err
		}
	case !row.Spacing.IsZero():
		s, err := r.Float(row.Spacing, where+" spacing")
		if err != nil {
			return nil, err
		}
		if s <= 0 {
			return nil, inconsistent(row.ID, s, nil, "spacing must be positive")
		}
		intervals := length / s
		if math.Abs(intervals-math.Round(intervals)) > 1e-6 {
			return nil, inconsistent(row.ID, s, length, "spacing does not divide row length")
		}
		n = int(math.Round(intervals)) + 1
	default:
		return nil, inconsistent(row.ID, nil, nil, "row needs count or spacing")
	}
	if n < 2 {
		return nil, inconsistent(row.ID, n, nil, "row needs at least 2 nodes")
	}

	if row.Panels != "" {
		declared, err := r.Lookup(row.Panels)
		if err != nil {
			return nil, err
		}
		if declared != n-1 {
			return nil, inconsistent(row.Panels, declared, n-1, "row %s spans %d intervals between %d nodes", row.ID, n-1, n)
		}
	}

	pts := make([]assembly.Vec3, n)
	step := to.Sub(from).Scale(1 / float64(n-1))
	for i := range pts {
		pts[i] = from.Add(step.Scale(float64(i)))
	}
	pts[n-1] = to
	return pts, nil
}

// endpoints lists (start, end) node pairs for ms.
func (ms *MemberSpec) endpoints(rows map[string][]assembly.NodeID) ([][2]assembly.NodeID, error) {
	set := 0
	if ms.From != "" || ms.To != "" {
		set++
	}
	if ms.Chain != "" {
		set++
	}
	if ms.Zip != nil {
		set++
	}
	if ms.Diagonal != nil {
		set++
	}
	if set != 1 {
		return nil, inconsistent(ms.ID, nil, nil, "member must set exactly one of from/to, chain, zip, diagonal")
	}

	row := func(name string) ([]assembly.NodeID, error) {
		ids, ok := rows[name]
		if !ok {
			return nil, inconsistent(ms.ID, nil, nil, "references unknown row %q", name)
		}
		return ids, nil
	}

	switch {
	case ms.Chain != "":
		ids, err := row(ms.Chain)
		if err != nil {
			return nil, err
		}
		out := make([][2]assembly.NodeID, 0, len(ids)-1)
		for i := 0; i+1 < len(ids); i++ {
			out = append(out, [2]assembly.NodeID{ids[i], ids[i+1]})
		}
		return out, nil

	case ms.Zip != nil:
		a, err := row(ms.Zip.From)
		if err != nil {
			return nil, err
		}
		b, err := row(ms.Zip.To)
		if err != nil {
			return nil, err
		}
		if len(a) != len(b) {
			return nil, inconsistent(ms.ID, len(a), len(b), "zip rows %s and %s differ in length", ms.Zip.From, ms.Zip.To)
		}
		out := make([][2]assembly.NodeID, len(a))
		for i := range a {
			out[i] = [2]assembly.NodeID{a[i], b[i]}
		}
		return out, nil

	case ms.Diagonal != nil:
		a, err := row(ms.Diagonal.From)
		if err != nil {
			return nil, err
		}
		b, err := row(ms.Diagonal.To)
		if err != nil {
			return nil, err
		}
		off := ms.Diagonal.Offset
		if off == 0 {
			off = 1
		}
		var out [][2]assembly.NodeID
		for i := range a {
			if j := i + off; j >= 0 && j < len(b) {
				out = append(out, [2]assembly.NodeID{a[i], b[j]})
			}
		}
		if len(out) == 0 {
			return nil, inconsistent(ms.ID, nil, nil, "diagonal between %s and %s produces no members", ms.Diagonal.From, ms.Diagonal.To)
		}
		return out, nil
	}

	if ms.From == "" || ms.To == "" {
		return nil, inconsistent(ms.ID, nil, nil, "member needs both from and to")
	}
	return [][2]assembly.NodeID{{ms.From, ms.To}}, nil
}
