package scene

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/chazu/rigkit/pkg/assembly"
)

// DOTOptions configures constraint graph rendering.
type DOTOptions struct {
	// Joints draws joints as their own nodes between members instead of
	// labelling member-to-member edges with the joint id.
	Joints bool
}

var kindStyle = map[assembly.ConstraintKind]string{
	assembly.KindRigid: `color=black, penwidth=2`,
	assembly.KindHinge: `color=royalblue, style=dashed`,
	assembly.KindMotor: `color=firebrick, style=bold`,
}

// ToDOT converts the constraint graph of s to Graphviz DOT. Members are
// nodes and constraints are edges from anchor to target. Fixed members are
// filled grey.
func ToDOT(s *Scene, opts DOTOptions) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("  edge [fontsize=10];\n")
	if s.Meta.Name != "" {
		fmt.Fprintf(&buf, "  label=%q;\n", s.Meta.Name)
	}
	buf.WriteString("\n")

	for _, m := range s.Members {
		attrs := []string{fmt.Sprintf("label=%q", memberLabel(m))}
		if m.Mobility == assembly.Fixed {
			attrs = append(attrs, "fillcolor=lightgrey")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", m.ID, strings.Join(attrs, ", "))
	}

	if opts.Joints {
		buf.WriteString("\n")
		for _, j := range s.Joints {
			if j.IsFree() {
				continue
			}
			fmt.Fprintf(&buf, "  %q [shape=circle, label=%q, fontsize=9, width=0.3];\n", j.ID, j.ID)
		}
	}

	buf.WriteString("\n")
	for _, c := range s.Constraints {
		label := string(c.ID)
		if c.Profile != "" {
			label += "\n" + c.Profile
		}
		style := kindStyle[c.Kind]
		if opts.Joints {
			fmt.Fprintf(&buf, "  %q -> %q [dir=none, %s];\n", c.Anchor, c.Joint, style)
			fmt.Fprintf(&buf, "  %q -> %q [label=%q, %s];\n", c.Joint, c.Target, label, style)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [label=%q, %s];\n", c.Anchor, c.Target, label+" @"+string(c.Joint), style)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func memberLabel(m assembly.MemberDescriptor) string {
	label := string(m.ID)
	if m.Role != assembly.RoleStructural {
		label += "\n" + m.Role.String()
	}
	return label
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("scene: init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("scene: parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("scene: render: %w", err)
	}
	return buf.Bytes(), nil
}
