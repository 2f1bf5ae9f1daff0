package lisp

import (
	"fmt"
	"math"
	"strconv"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/rigkit/pkg/assembly"
)

// Vec carries an assembly.Vec3 through the interpreter.
type Vec struct {
	V assembly.Vec3
}

func (v *Vec) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %s %s %s)", FormatFloat(v.V.X), FormatFloat(v.V.Y), FormatFloat(v.V.Z))
}
func (v *Vec) Type() *zygo.RegisteredType { return nil }

// FormatFloat renders f as a zygomys float literal. Integral values keep a
// trailing ".0" so the interpreter does not read them as integers.
func FormatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "0.0"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	for _, c := range s {
		if c == '.' {
			return s
		}
	}
	return s + ".0"
}

// Float wraps f.
func Float(f float64) zygo.Sexp { return &zygo.SexpFloat{Val: f} }

// Int wraps n.
func Int(n int) zygo.Sexp { return &zygo.SexpInt{Val: int64(n)} }
