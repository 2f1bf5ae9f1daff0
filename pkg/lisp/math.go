package lisp

import (
	"fmt"
	"math"
	"slices"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/rigkit/pkg/assembly"
)

var unaryMath = map[string]func(float64) float64{
	"sqrt":  math.Sqrt,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"abs":   math.Abs,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"round": math.Round,
	"rad":   func(d float64) float64 { return d * math.Pi / 180 },
	"deg":   func(r float64) float64 { return r * 180 / math.Pi },
}

var binaryMath = map[string]func(float64, float64) float64{
	"atan2": math.Atan2,
	"pow":   math.Pow,
}

// vecFuncs are the vector builtins.
var vecFuncs = []string{"vec3", "vadd", "vsub", "vscale", "vlen", "vnorm", "vx", "vy", "vz"}

// Prelude defines constants available to every expression. It carries no
// newline so that error line numbers match the caller's source.
const Prelude = "(def pi 3.141592653589793) "

// Builtins lists every name RegisterMath installs plus the special forms and
// constants an expression may use without declaring them.
func Builtins() []string {
	names := []string{
		"pi", "def", "let", "if", "cond", "and", "or", "not", "begin",
		"list", "mod", "true", "false", "nil", "min", "max",
	}
	for n := range unaryMath {
		names = append(names, n)
	}
	for n := range binaryMath {
		names = append(names, n)
	}
	names = append(names, vecFuncs...)
	slices.Sort(names)
	return names
}

// RegisterMath installs the math and vector builtins.
func RegisterMath(env *zygo.Zlisp) {
	for name, fn := range unaryMath {
		env.AddFunction(name, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires 1 argument, got %d", name, len(args))
			}
			x, err := ToFloat(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			return Float(fn(x)), nil
		})
	}
	for name, fn := range binaryMath {
		env.AddFunction(name, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires 2 arguments, got %d", name, len(args))
			}
			a, err := ToFloat(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			b, err := ToFloat(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			return Float(fn(a, b)), nil
		})
	}

	extremum := func(pick func(a, b float64) float64) func(*zygo.Zlisp, string, []zygo.Sexp) (zygo.Sexp, error) {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) == 0 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least 1 argument", name)
			}
			best, err := ToFloat(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			for _, a := range args[1:] {
				f, err := ToFloat(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
				}
				best = pick(best, f)
			}
			return Float(best), nil
		}
	}
	env.AddFunction("min", extremum(math.Min))
	env.AddFunction("max", extremum(math.Max))

	// (vec3 1 2 3)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := ToFloat(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			c[i] = f
		}
		return &Vec{V: assembly.Vec3{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	vecs := func(name string, args []zygo.Sexp, n int) ([]assembly.Vec3, error) {
		if len(args) != n {
			return nil, fmt.Errorf("%s requires %d arguments, got %d", name, n, len(args))
		}
		out := make([]assembly.Vec3, n)
		for i, a := range args {
			v, err := ToVec(a)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			out[i] = v
		}
		return out, nil
	}

	env.AddFunction("vadd", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		vs, err := vecs(name, args, 2)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &Vec{V: vs[0].Add(vs[1])}, nil
	})
	env.AddFunction("vsub", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		vs, err := vecs(name, args, 2)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &Vec{V: vs[0].Sub(vs[1])}, nil
	})
	env.AddFunction("vscale", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("vscale requires 2 arguments, got %d", len(args))
		}
		v, err := ToVec(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vscale: %w", err)
		}
		k, err := ToFloat(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vscale: %w", err)
		}
		return &Vec{V: v.Scale(k)}, nil
	})
	env.AddFunction("vlen", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		vs, err := vecs(name, args, 1)
		if err != nil {
			return zygo.SexpNull, err
		}
		return Float(vs[0].Length()), nil
	})
	env.AddFunction("vnorm", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		vs, err := vecs(name, args, 1)
		if err != nil {
			return zygo.SexpNull, err
		}
		if vs[0].IsZero() {
			return zygo.SexpNull, fmt.Errorf("vnorm: zero vector")
		}
		return &Vec{V: vs[0].Normalize()}, nil
	})
	for i, comp := range []string{"vx", "vy", "vz"} {
		env.AddFunction(comp, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			vs, err := vecs(name, args, 1)
			if err != nil {
				return zygo.SexpNull, err
			}
			return Float([3]float64{vs[0].X, vs[0].Y, vs[0].Z}[i]), nil
		})
	}
}
