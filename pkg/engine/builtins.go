package engine

import (
	"fmt"
	"sort"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/rigkit/pkg/actuation"
	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/constraint"
	"github.com/chazu/rigkit/pkg/lisp"
	"github.com/chazu/rigkit/pkg/params"
	"github.com/chazu/rigkit/pkg/pipeline"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing declarations between builtins
// ---------------------------------------------------------------------------

// sexpSection wraps a section spec returned by rect and circle.
type sexpSection struct {
	spec params.SectionSpec
}

func (s *sexpSection) SexpString(ps *zygo.PrintState) string {
	if s.spec.Kind == assembly.SectionCircle {
		return fmt.Sprintf("(circle %s)", s.spec.Radius)
	}
	return fmt.Sprintf("(rect %s %s)", s.spec.Width, s.spec.Depth)
}
func (s *sexpSection) Type() *zygo.RegisteredType { return nil }

// sexpNode refers to a declared node.
type sexpNode struct {
	id assembly.NodeID
}

func (n *sexpNode) SexpString(ps *zygo.PrintState) string { return fmt.Sprintf("(node %q)", n.id) }
func (n *sexpNode) Type() *zygo.RegisteredType            { return nil }

// sexpRow refers to a declared row of nodes.
type sexpRow struct {
	id string
}

func (r *sexpRow) SexpString(ps *zygo.PrintState) string { return fmt.Sprintf("(row %q)", r.id) }
func (r *sexpRow) Type() *zygo.RegisteredType            { return nil }

// sexpMember refers to a declared member, or to a member family when the
// declaration expands to several members.
type sexpMember struct {
	id     string
	family bool
}

func (m *sexpMember) SexpString(ps *zygo.PrintState) string {
	if m.family {
		return fmt.Sprintf("(members %q)", m.id)
	}
	return fmt.Sprintf("(member %q)", m.id)
}
func (m *sexpMember) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toValue converts a script value to a parameter value. Strings are
// expressions over other parameters.
func toValue(s zygo.Sexp) (params.Value, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return params.Count(int(v.Val)), nil
	case *zygo.SexpFloat:
		return params.Scalar(v.Val), nil
	case *lisp.Vec:
		return params.Vector(v.V), nil
	case *zygo.SexpStr:
		if _, ok := lisp.IsKW(v); ok {
			return params.Value{}, fmt.Errorf("expected value, got keyword %s", v.S[len(lisp.KWPrefix):])
		}
		return params.Expr(v.S), nil
	}
	vec, err := lisp.ToVec(s)
	if err != nil {
		return params.Value{}, fmt.Errorf("expected number, vector or expression, got %T (%s)", s, s.SexpString(nil))
	}
	return params.Vector(vec), nil
}

// fromValue converts a parameter value back to a script value.
func fromValue(v params.Value) zygo.Sexp {
	switch v.Kind {
	case params.KindScalar:
		return lisp.Float(v.Scalar)
	case params.KindCount:
		return lisp.Int(v.Count)
	case params.KindVector:
		return &lisp.Vec{V: v.Vector}
	default:
		return &zygo.SexpStr{S: v.Expr}
	}
}

// valueArg reads keyword kw, falling back to positional argument pos.
func valueArg(pa lisp.Args, kw string, pos int) (params.Value, bool, error) {
	s, ok := pa.KW[kw]
	if !ok {
		if pos < 0 || pos >= len(pa.Positional) {
			return params.Value{}, false, nil
		}
		s = pa.Positional[pos]
	}
	v, err := toValue(s)
	if err != nil {
		return params.Value{}, true, fmt.Errorf("%s: %w", kw, err)
	}
	return v, true, nil
}

func toNodeID(s zygo.Sexp) (assembly.NodeID, error) {
	if n, ok := s.(*sexpNode); ok {
		return n.id, nil
	}
	str, err := lisp.ToKeyword(s)
	if err != nil {
		return "", fmt.Errorf("expected node, got %T (%s)", s, s.SexpString(nil))
	}
	return assembly.NodeID(str), nil
}

func toRowID(s zygo.Sexp) (string, error) {
	if r, ok := s.(*sexpRow); ok {
		return r.id, nil
	}
	str, err := lisp.ToKeyword(s)
	if err != nil {
		return "", fmt.Errorf("expected row, got %T (%s)", s, s.SexpString(nil))
	}
	return str, nil
}

func toMemberID(s zygo.Sexp) (assembly.MemberID, error) {
	if m, ok := s.(*sexpMember); ok {
		if m.family {
			return "", fmt.Errorf("%s names a member family; select its members with a pattern", m.id)
		}
		return assembly.MemberID(m.id), nil
	}
	str, err := lisp.ToKeyword(s)
	if err != nil {
		return "", fmt.Errorf("expected member, got %T (%s)", s, s.SexpString(nil))
	}
	return assembly.MemberID(str), nil
}

func toEndRef(s zygo.Sexp) (assembly.EndRef, error) {
	str, err := lisp.ToKeyword(s)
	if err != nil {
		return assembly.EndRef{}, err
	}
	return assembly.ParseEndRef(str)
}

// nameArg returns the first positional argument as a name.
func nameArg(pa lisp.Args) (string, error) {
	if len(pa.Positional) == 0 {
		return "", fmt.Errorf("missing name")
	}
	s, err := lisp.ToKeyword(pa.Positional[0])
	if err != nil {
		return "", fmt.Errorf("name: %w", err)
	}
	if s == "" {
		return "", fmt.Errorf("name is empty")
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Blueprint builder
// ---------------------------------------------------------------------------

// builder accumulates the blueprint a script declares.
type builder struct {
	bp        *pipeline.Blueprint
	overrides params.Table
	declared  map[string]bool
	profiles  map[string]bool
}

func newBuilder(overrides params.Table) *builder {
	bp := &pipeline.Blueprint{
		Params: make(params.Table, len(overrides)),
		Layout: params.Layout{Sections: make(map[string]params.SectionSpec)},
	}
	for name, v := range overrides {
		bp.Params[name] = v
	}
	return &builder{
		bp:        bp,
		overrides: overrides,
		declared:  make(map[string]bool),
		profiles:  make(map[string]bool),
	}
}

// unusedOverrides reports overrides for parameters the script never
// declared.
func (b *builder) unusedOverrides() []EvalWarning {
	var out []EvalWarning
	for name := range b.overrides {
		if !b.declared[name] {
			out = append(out, EvalWarning{Param: name, Message: "override is not declared by the script"})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Param < out[j].Param })
	return out
}

// memberOptions applies the keywords shared by every member builtin.
func (b *builder) memberOptions(pa lisp.Args, ms *params.MemberSpec) error {
	if v, ok := pa.KW["section"]; ok {
		switch s := v.(type) {
		case *sexpSection:
			b.bp.Layout.Sections[ms.ID] = s.spec
			ms.Section = ms.ID
		default:
			name, err := lisp.ToKeyword(v)
			if err != nil {
				return fmt.Errorf("section: %w", err)
			}
			ms.Section = name
		}
	}
	mat, err := pa.String("material", "")
	if err != nil {
		return err
	}
	ms.Material = mat
	if v, ok := pa.KW["mobility"]; ok {
		s, err := lisp.ToKeyword(v)
		if err != nil {
			return fmt.Errorf("mobility: %w", err)
		}
		if err := ms.Mobility.UnmarshalText([]byte(s)); err != nil {
			return fmt.Errorf("mobility: %w", err)
		}
	}
	if v, ok := pa.KW["role"]; ok {
		s, err := lisp.ToKeyword(v)
		if err != nil {
			return fmt.Errorf("role: %w", err)
		}
		if ms.Role, err = assembly.ParseRole(s); err != nil {
			return fmt.Errorf("role: %w", err)
		}
	}
	return nil
}

// rowPair reads the two row arguments of zip and diagonal.
func rowPair(pa lisp.Args) (*params.RowPair, error) {
	if len(pa.Positional) < 3 {
		return nil, fmt.Errorf("expected name and two rows")
	}
	from, err := toRowID(pa.Positional[1])
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	to, err := toRowID(pa.Positional[2])
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	return &params.RowPair{From: from, To: to}, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the rigkit DSL builtins into a zygomys
// environment. The builtins populate b during evaluation.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (param "span" 12.0) / (param "panel" "(/ span panel-count)")
	// -----------------------------------------------------------------------
	env.AddFunction("param", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("param: expected name and default, got %d arguments", len(args))
		}
		pname, err := lisp.ToKeyword(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("param: name: %w", err)
		}
		if b.declared[pname] {
			return zygo.SexpNull, fmt.Errorf("param: %s: declared twice", pname)
		}
		b.declared[pname] = true
		if v, ok := b.overrides[pname]; ok {
			return fromValue(v), nil
		}
		v, err := toValue(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("param: %s: %w", pname, err)
		}
		b.bp.Params[pname] = v
		return args[1], nil
	})

	// -----------------------------------------------------------------------
	// (require "span" "height")
	// -----------------------------------------------------------------------
	env.AddFunction("require", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		for i, a := range args {
			s, err := lisp.ToKeyword(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("require: argument %d: %w", i, err)
			}
			b.bp.Manifest = append(b.bp.Manifest, s)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (settings :name "crane" :tolerance 0.01 :relative 1e-3 :floor 1e-4
	//           :degeneracy :strict)
	// -----------------------------------------------------------------------
	env.AddFunction("settings", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := lisp.ParseArgs(args)
		var err error
		if b.bp.Name, err = pa.String("name", b.bp.Name); err != nil {
			return zygo.SexpNull, fmt.Errorf("settings: %w", err)
		}
		tol := &b.bp.Tolerance
		if tol.Absolute, err = pa.Float("tolerance", tol.Absolute); err != nil {
			return zygo.SexpNull, fmt.Errorf("settings: %w", err)
		}
		if tol.Relative, err = pa.Float("relative", tol.Relative); err != nil {
			return zygo.SexpNull, fmt.Errorf("settings: %w", err)
		}
		if tol.Floor, err = pa.Float("floor", tol.Floor); err != nil {
			return zygo.SexpNull, fmt.Errorf("settings: %w", err)
		}
		if pa.Has("degeneracy") {
			s, err := pa.String("degeneracy", "")
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("settings: %w", err)
			}
			p, err := assembly.ParseDegeneracyPolicy(s)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("settings: degeneracy: %w", err)
			}
			b.bp.Degeneracy = &p
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (rect 0.2 0.3) / (rect :width w :depth d)
	// -----------------------------------------------------------------------
	env.AddFunction("rect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := lisp.ParseArgs(args)
		spec := params.SectionSpec{Kind: assembly.SectionRect}
		var ok bool
		var err error
		if spec.Width, ok, err = valueArg(pa, "width", 0); err != nil {
			return zygo.SexpNull, fmt.Errorf("rect: %w", err)
		} else if !ok {
			return zygo.SexpNull, fmt.Errorf("rect: width: missing")
		}
		if spec.Depth, ok, err = valueArg(pa, "depth", 1); err != nil {
			return zygo.SexpNull, fmt.Errorf("rect: %w", err)
		} else if !ok {
			return zygo.SexpNull, fmt.Errorf("rect: depth: missing")
		}
		return &sexpSection{spec: spec}, nil
	})

	// -----------------------------------------------------------------------
	// (circle 0.05) / (circle :radius r)
	// -----------------------------------------------------------------------
	env.AddFunction("circle", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := lisp.ParseArgs(args)
		spec := params.SectionSpec{Kind: assembly.SectionCircle}
		var ok bool
		var err error
		if spec.Radius, ok, err = valueArg(pa, "radius", 0); err != nil {
			return zygo.SexpNull, fmt.Errorf("circle: %w", err)
		} else if !ok {
			return zygo.SexpNull, fmt.Errorf("circle: radius: missing")
		}
		return &sexpSection{spec: spec}, nil
	})

	// -----------------------------------------------------------------------
	// (section "chord" (rect 0.2 0.3))
	// -----------------------------------------------------------------------
	env.AddFunction("section", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("section: expected name and shape, got %d arguments", len(args))
		}
		sname, err := lisp.ToKeyword(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("section: name: %w", err)
		}
		s, ok := args[1].(*sexpSection)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("section: %s: expected rect or circle, got %T", sname, args[1])
		}
		if _, dup := b.bp.Layout.Sections[sname]; dup {
			return zygo.SexpNull, fmt.Errorf("section: %s: declared twice", sname)
		}
		b.bp.Layout.Sections[sname] = s.spec
		return &zygo.SexpStr{S: sname}, nil
	})

	// -----------------------------------------------------------------------
	// (material "cable" 7800) / (material "cable" :density 7800)
	// -----------------------------------------------------------------------
	env.AddFunction("material", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := lisp.ParseArgs(args)
		mname, err := nameArg(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("material: %w", err)
		}
		var density float64
		switch {
		case pa.Has("density"):
			if density, err = pa.Float("density", 0); err != nil {
				return zygo.SexpNull, fmt.Errorf("material: %w", err)
			}
		case len(pa.Positional) > 1:
			if density, err = lisp.ToFloat(pa.Positional[1]); err != nil {
				return zygo.SexpNull, fmt.Errorf("material: density: %w", err)
			}
		default:
			return zygo.SexpNull, fmt.Errorf("material: %s: density: missing", mname)
		}
		if b.bp.Materials == nil {
			b.bp.Materials = make(map[string]assembly.Material)
		}
		b.bp.Materials[mname] = assembly.Material{Name: mname, Density: density}
		return &zygo.SexpStr{S: mname}, nil
	})

	// -----------------------------------------------------------------------
	// (node "tip" (vec3 2.5 0 1.5)) / (node "tip" "pivot")
	// -----------------------------------------------------------------------
	env.AddFunction("node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := lisp.ParseArgs(args)
		id, err := nameArg(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node: %w", err)
		}
		at, ok, err := valueArg(pa, "at", 1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node: %s: %w", id, err)
		}
		if !ok {
			return zygo.SexpNull, fmt.Errorf("node: %s: position: missing", id)
		}
		b.bp.Layout.Nodes = append(b.bp.Layout.Nodes, params.NodeSpec{ID: assembly.NodeID(id), At: at})
		return &sexpNode{id: assembly.NodeID(id)}, nil
	})

	// -----------------------------------------------------------------------
	// (row "b" :from v :to v :count 7 :panels "panel-count")
	// (row "t" :from v :to v :spacing "panel")
	// -----------------------------------------------------------------------
	env.AddFunction("row", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := lisp.ParseArgs(args)
		id, err := nameArg(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("row: %w", err)
		}
		row := params.RowSpec{ID: id}
		var ok bool
		if row.From, ok, err = valueArg(pa, "from", -1); err != nil || !ok {
			return zygo.SexpNull, fmt.Errorf("row: %s: %w", id, missing(err, "from"))
		}
		if row.To, ok, err = valueArg(pa, "to", -1); err != nil || !ok {
			return zygo.SexpNull, fmt.Errorf("row: %s: %w", id, missing(err, "to"))
		}
		if row.Count, _, err = valueArg(pa, "count", -1); err != nil {
			return zygo.SexpNull, fmt.Errorf("row: %s: %w", id, err)
		}
		if row.Spacing, _, err = valueArg(pa, "spacing", -1); err != nil {
			return zygo.SexpNull, fmt.Errorf("row: %s: %w", id, err)
		}
		if row.Panels, err = pa.String("panels", ""); err != nil {
			return zygo.SexpNull, fmt.Errorf("row: %s: %w", id, err)
		}
		b.bp.Layout.Rows = append(b.bp.Layout.Rows, row)
		return &sexpRow{id: id}, nil
	})

	// -----------------------------------------------------------------------
	// (member "jib" root tip :section "tube" :material "aluminium"
	//         :mobility :fixed :role :actuated)
	// -----------------------------------------------------------------------
	env.AddFunction("member", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := lisp.ParseArgs(args)
		id, err := nameArg(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("member: %w", err)
		}
		if len(pa.Positional) != 3 {
			return zygo.SexpNull, fmt.Errorf("member: %s: expected two end nodes", id)
		}
		ms := params.MemberSpec{ID: id}
		if ms.From, err = toNodeID(pa.Positional[1]); err != nil {
			return zygo.SexpNull, fmt.Errorf("member: %s: from: %w", id, err)
		}
		if ms.To, err = toNodeID(pa.Positional[2]); err != nil {
			return zygo.SexpNull, fmt.Errorf("member: %s: to: %w", id, err)
		}
		if err := b.memberOptions(pa, &ms); err != nil {
			return zygo.SexpNull, fmt.Errorf("member: %s: %w", id, err)
		}
		b.bp.Layout.Members = append(b.bp.Layout.Members, ms)
		return &sexpMember{id: id}, nil
	})

	// -----------------------------------------------------------------------
	// (chain "bottom" b :section "chord" :material "steel")
	// -----------------------------------------------------------------------
	env.AddFunction("chain", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := lisp.ParseArgs(args)
		id, err := nameArg(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("chain: %w", err)
		}
		if len(pa.Positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("chain: %s: expected one row", id)
		}
		ms := params.MemberSpec{ID: id}
		if ms.Chain, err = toRowID(pa.Positional[1]); err != nil {
			return zygo.SexpNull, fmt.Errorf("chain: %s: %w", id, err)
		}
		if err := b.memberOptions(pa, &ms); err != nil {
			return zygo.SexpNull, fmt.Errorf("chain: %s: %w", id, err)
		}
		b.bp.Layout.Members = append(b.bp.Layout.Members, ms)
		return &sexpMember{id: id, family: true}, nil
	})

	// -----------------------------------------------------------------------
	// (zip "post" b t :section "web")
	// -----------------------------------------------------------------------
	env.AddFunction("zip", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := lisp.ParseArgs(args)
		id, err := nameArg(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("zip: %w", err)
		}
		ms := params.MemberSpec{ID: id}
		if ms.Zip, err = rowPair(pa); err != nil {
			return zygo.SexpNull, fmt.Errorf("zip: %s: %w", id, err)
		}
		if err := b.memberOptions(pa, &ms); err != nil {
			return zygo.SexpNull, fmt.Errorf("zip: %s: %w", id, err)
		}
		b.bp.Layout.Members = append(b.bp.Layout.Members, ms)
		return &sexpMember{id: id, family: true}, nil
	})

	// -----------------------------------------------------------------------
	// (diagonal "diag" b t :offset 1 :section "web")
	// -----------------------------------------------------------------------
	env.AddFunction("diagonal", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := lisp.ParseArgs(args)
		id, err := nameArg(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("diagonal: %w", err)
		}
		ms := params.MemberSpec{ID: id}
		if ms.Diagonal, err = rowPair(pa); err != nil {
			return zygo.SexpNull, fmt.Errorf("diagonal: %s: %w", id, err)
		}
		if v, ok := pa.KW["offset"]; ok {
			if ms.Diagonal.Offset, err = lisp.ToInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("diagonal: %s: offset: %w", id, err)
			}
		}
		if err := b.memberOptions(pa, &ms); err != nil {
			return zygo.SexpNull, fmt.Errorf("diagonal: %s: %w", id, err)
		}
		b.bp.Layout.Members = append(b.bp.Layout.Members, ms)
		return &sexpMember{id: id, family: true}, nil
	})

	// -----------------------------------------------------------------------
	// (member-end jib :end) => "jib.end"
	// -----------------------------------------------------------------------
	env.AddFunction("member_end", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("member-end: expected member and :start or :end")
		}
		id, err := toMemberID(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("member-end: %w", err)
		}
		s, err := lisp.ToKeyword(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("member-end: %w", err)
		}
		var e assembly.End
		if err := e.UnmarshalText([]byte(s)); err != nil {
			return zygo.SexpNull, fmt.Errorf("member-end: %w", err)
		}
		return &zygo.SexpStr{S: assembly.EndRef{Member: id, End: e}.String()}, nil
	})

	// -----------------------------------------------------------------------
	// (joint "slew" :end "jib.end" :kind :motor :axis (vec3 0 0 1)
	//        :lower -1.5 :upper 1.5 :anchor jib :topology :star
	//        :rigidity :connected :profile "swing-out")
	// -----------------------------------------------------------------------
	env.AddFunction("joint", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := lisp.ParseArgs(args)
		d := constraint.Decl{}
		if len(pa.Positional) > 0 {
			s, err := lisp.ToKeyword(pa.Positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("joint: name: %w", err)
			}
			d.Name = s
		}
		if err := jointDecl(pa, &d); err != nil {
			if d.Name != "" {
				return zygo.SexpNull, fmt.Errorf("joint: %s: %w", d.Name, err)
			}
			return zygo.SexpNull, fmt.Errorf("joint: %w", err)
		}
		b.bp.Joints = append(b.bp.Joints, d)
		return &zygo.SexpStr{S: d.Name}, nil
	})

	// -----------------------------------------------------------------------
	// (profile "swing" 0 0.5 200 0.0 350 0.5)
	// -----------------------------------------------------------------------
	env.AddFunction("profile", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) == 0 {
			return zygo.SexpNull, fmt.Errorf("profile: missing name")
		}
		pname, err := lisp.ToKeyword(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("profile: name: %w", err)
		}
		if b.profiles[pname] {
			return zygo.SexpNull, fmt.Errorf("profile: %s: declared twice", pname)
		}
		rest := args[1:]
		if len(rest) == 1 {
			if rest, err = lisp.ToList(rest[0]); err != nil {
				return zygo.SexpNull, fmt.Errorf("profile: %s: %w", pname, err)
			}
		}
		if len(rest)%2 != 0 {
			return zygo.SexpNull, fmt.Errorf("profile: %s: expected time/value pairs, got %d numbers", pname, len(rest))
		}
		p := assembly.ActuationProfile{Name: pname}
		for i := 0; i < len(rest); i += 2 {
			t, err := lisp.ToFloat(rest[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("profile: %s: keyframe %d: time: %w", pname, i/2, err)
			}
			v, err := lisp.ToFloat(rest[i+1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("profile: %s: keyframe %d: value: %w", pname, i/2, err)
			}
			p.Keyframes = append(p.Keyframes, assembly.Keyframe{T: t, Value: v})
		}
		if err := actuation.Validate(p); err != nil {
			return zygo.SexpNull, fmt.Errorf("profile: %w", err)
		}
		b.profiles[pname] = true
		b.bp.Profiles = append(b.bp.Profiles, p)
		return &zygo.SexpStr{S: pname}, nil
	})

	// -----------------------------------------------------------------------
	// (schedule :end "mast.end" :profile "swing-back")
	// (schedule :constraint "C0" :profile "swing-back")
	// -----------------------------------------------------------------------
	env.AddFunction("schedule", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := lisp.ParseArgs(args)
		var bind pipeline.Binding
		var err error
		if v, ok := pa.KW["end"]; ok {
			ref, err := toEndRef(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("schedule: end: %w", err)
			}
			bind.End = &ref
		}
		c, err := pa.String("constraint", "")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("schedule: %w", err)
		}
		bind.Constraint = assembly.ConstraintID(c)
		if (bind.End == nil) == (c == "") {
			return zygo.SexpNull, fmt.Errorf("schedule: expected exactly one of :end or :constraint")
		}
		if bind.Profile, err = pa.String("profile", ""); err != nil {
			return zygo.SexpNull, fmt.Errorf("schedule: %w", err)
		}
		if bind.Profile == "" {
			return zygo.SexpNull, fmt.Errorf("schedule: profile: missing")
		}
		b.bp.Schedules = append(b.bp.Schedules, bind)
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (load "deck" :role :load-bearing :magnitude 6000
	//       :direction (vec3 0 0 -1) :radius 100)
	// -----------------------------------------------------------------------
	env.AddFunction("load", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := lisp.ParseArgs(args)
		var spec assembly.LoadSpec
		if len(pa.Positional) > 0 {
			s, err := lisp.ToKeyword(pa.Positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("load: name: %w", err)
			}
			spec.Name = s
		}
		if err := loadSpec(pa, &spec); err != nil {
			if spec.Name != "" {
				return zygo.SexpNull, fmt.Errorf("load: %s: %w", spec.Name, err)
			}
			return zygo.SexpNull, fmt.Errorf("load: %w", err)
		}
		b.bp.Loads = append(b.bp.Loads, spec)
		return &zygo.SexpStr{S: spec.Name}, nil
	})
}

func missing(err error, kw string) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("%s: missing", kw)
}

// jointDecl fills d from the joint keywords.
func jointDecl(pa lisp.Args, d *constraint.Decl) error {
	if v, ok := pa.KW["end"]; ok {
		ref, err := toEndRef(v)
		if err != nil {
			return fmt.Errorf("end: %w", err)
		}
		d.End = &ref
	}
	var err error
	if d.At, err = pa.Vec("at"); err != nil {
		return err
	}
	if d.End == nil && d.At == nil {
		return fmt.Errorf("expected :end or :at to select the joint")
	}
	kind, err := pa.String("kind", "")
	if err != nil {
		return err
	}
	if d.Kind, err = assembly.ParseConstraintKind(kind); err != nil {
		return fmt.Errorf("kind: %w", err)
	}
	if d.Axis, err = pa.Vec("axis"); err != nil {
		return err
	}
	if pa.Has("lower") || pa.Has("upper") {
		if !pa.Has("lower") || !pa.Has("upper") {
			return fmt.Errorf("limits need both :lower and :upper")
		}
		var l assembly.Limits
		if l.Lower, err = pa.Float("lower", 0); err != nil {
			return err
		}
		if l.Upper, err = pa.Float("upper", 0); err != nil {
			return err
		}
		d.Limits = &l
	}
	if v, ok := pa.KW["anchor"]; ok {
		if d.Anchor, err = toMemberID(v); err != nil {
			return fmt.Errorf("anchor: %w", err)
		}
	}
	if pa.Has("topology") {
		s, err := pa.String("topology", "")
		if err != nil {
			return err
		}
		if err := d.Topology.UnmarshalText([]byte(s)); err != nil {
			return fmt.Errorf("topology: %w", err)
		}
	}
	if v, ok := pa.KW["pairs"]; ok {
		items, err := lisp.ToList(v)
		if err != nil {
			return fmt.Errorf("pairs: %w", err)
		}
		for i, it := range items {
			pair, err := lisp.ToList(it)
			if err != nil || len(pair) != 2 {
				return fmt.Errorf("pairs: item %d: expected (anchor target)", i)
			}
			var p constraint.Pair
			if p.Anchor, err = toMemberID(pair[0]); err != nil {
				return fmt.Errorf("pairs: item %d: %w", i, err)
			}
			if p.Target, err = toMemberID(pair[1]); err != nil {
				return fmt.Errorf("pairs: item %d: %w", i, err)
			}
			d.Pairs = append(d.Pairs, p)
		}
		if !pa.Has("topology") {
			d.Topology = constraint.TopologyExplicit
		}
	}
	if pa.Has("rigidity") {
		s, err := pa.String("rigidity", "")
		if err != nil {
			return err
		}
		if err := d.Rigidity.UnmarshalText([]byte(s)); err != nil {
			return fmt.Errorf("rigidity: %w", err)
		}
	}
	if d.Profile, err = pa.String("profile", ""); err != nil {
		return err
	}
	return nil
}

// loadSpec fills spec from the load keywords.
func loadSpec(pa lisp.Args, spec *assembly.LoadSpec) error {
	if v, ok := pa.KW["members"]; ok {
		items, err := lisp.ToList(v)
		if err != nil {
			return fmt.Errorf("members: %w", err)
		}
		for i, it := range items {
			id, err := toMemberID(it)
			if err != nil {
				return fmt.Errorf("members: item %d: %w", i, err)
			}
			spec.Target.Members = append(spec.Target.Members, id)
		}
	}
	if v, ok := pa.KW["nodes"]; ok {
		items, err := lisp.ToList(v)
		if err != nil {
			return fmt.Errorf("nodes: %w", err)
		}
		for i, it := range items {
			id, err := toNodeID(it)
			if err != nil {
				return fmt.Errorf("nodes: item %d: %w", i, err)
			}
			spec.Target.Nodes = append(spec.Target.Nodes, id)
		}
	}
	if pa.Has("role") {
		s, err := pa.String("role", "")
		if err != nil {
			return err
		}
		r, err := assembly.ParseRole(s)
		if err != nil {
			return fmt.Errorf("role: %w", err)
		}
		spec.Target.Role = &r
	}
	var err error
	if spec.Target.Pattern, err = pa.String("pattern", ""); err != nil {
		return err
	}
	if spec.Magnitude, err = pa.Float("magnitude", 0); err != nil {
		return err
	}
	dir, err := pa.Vec("direction")
	if err != nil {
		return err
	}
	if dir != nil {
		spec.Direction = *dir
	}
	if spec.FalloffRadius, err = pa.Float("radius", 0); err != nil {
		return err
	}
	if spec.Origin, err = pa.Vec("origin"); err != nil {
		return err
	}
	if v, ok := pa.KW["weights"]; ok {
		items, err := lisp.ToList(v)
		if err != nil {
			return fmt.Errorf("weights: %w", err)
		}
		if len(items)%2 != 0 {
			return fmt.Errorf("weights: expected name/weight pairs")
		}
		spec.Weights = make(map[string]float64, len(items)/2)
		for i := 0; i < len(items); i += 2 {
			key, err := weightKey(items[i])
			if err != nil {
				return fmt.Errorf("weights: item %d: %w", i/2, err)
			}
			w, err := lisp.ToFloat(items[i+1])
			if err != nil {
				return fmt.Errorf("weights: %s: %w", key, err)
			}
			spec.Weights[key] = w
		}
	}
	return nil
}

func weightKey(s zygo.Sexp) (string, error) {
	switch v := s.(type) {
	case *sexpMember:
		return v.id, nil
	case *sexpNode:
		return string(v.id), nil
	}
	return lisp.ToKeyword(s)
}
