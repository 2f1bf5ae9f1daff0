package params

import (
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/lisp"
)

// Kind enumerates parameter value types.
type Kind int

const (
	KindScalar Kind = iota
	KindVector
	KindCount
	KindExpr
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindVector:
		return "vector"
	case KindCount:
		return "count"
	case KindExpr:
		return "expr"
	default:
		return "unknown"
	}
}

// Value is one parameter table entry. In YAML an integer is a count, a
// float a scalar, a three-element sequence a vector and a string an
// expression (a bare name is an expression referring to another parameter).
type Value struct {
	Kind   Kind
	Scalar float64
	Vector assembly.Vec3
	Count  int
	Expr   string
}

// Scalar returns a scalar value.
func Scalar(f float64) Value { return Value{Kind: KindScalar, Scalar: f} }

// Vector returns a vector value.
func Vector(v assembly.Vec3) Value { return Value{Kind: KindVector, Vector: v} }

// Count returns an integer count value.
func Count(n int) Value { return Value{Kind: KindCount, Count: n} }

// Expr returns an expression value.
func Expr(src string) Value { return Value{Kind: KindExpr, Expr: src} }

// IsZero reports whether v was never set.
func (v Value) IsZero() bool { return v == Value{} }

// Literal renders v as zygomys source.
func (v Value) Literal() string {
	switch v.Kind {
	case KindScalar:
		return lisp.FormatFloat(v.Scalar)
	case KindVector:
		return fmt.Sprintf("(vec3 %s %s %s)", lisp.FormatFloat(v.Vector.X), lisp.FormatFloat(v.Vector.Y), lisp.FormatFloat(v.Vector.Z))
	case KindCount:
		return strconv.Itoa(v.Count)
	default:
		return v.Expr
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindVector:
		return v.Vector.String()
	case KindExpr:
		return v.Expr
	default:
		return v.Literal()
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!int":
			var n int
			if err := node.Decode(&n); err != nil {
				return err
			}
			*v = Count(n)
		case "!!float":
			var f float64
			if err := node.Decode(&f); err != nil {
				return err
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("params: line %d: non-finite value", node.Line)
			}
			*v = Scalar(f)
		case "!!str":
			*v = Expr(node.Value)
		default:
			return fmt.Errorf("params: line %d: unsupported value %q", node.Line, node.Value)
		}
		return nil
	case yaml.SequenceNode:
		var c []float64
		if err := node.Decode(&c); err != nil {
			return fmt.Errorf("params: line %d: %w", node.Line, err)
		}
		if len(c) != 3 {
			return fmt.Errorf("params: line %d: vector needs 3 components, got %d", node.Line, len(c))
		}
		*v = Vector(assembly.Vec3{X: c[0], Y: c[1], Z: c[2]})
		return nil
	}
	return fmt.Errorf("params: line %d: expected scalar, vector or expression", node.Line)
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	switch v.Kind {
	case KindScalar:
		// Keep integral scalars distinguishable from counts.
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: lisp.FormatFloat(v.Scalar)}, nil
	case KindVector:
		n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, c := range []float64{v.Vector.X, v.Vector.Y, v.Vector.Z} {
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: lisp.FormatFloat(c)})
		}
		return n, nil
	case KindCount:
		return v.Count, nil
	default:
		return v.Expr, nil
	}
}

// Table maps parameter names to values.
type Table map[string]Value
