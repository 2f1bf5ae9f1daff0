// Package params resolves a parameter table into concrete values and lays
// out nodes and members from them.
//
// Expressions are zygomys s-expressions evaluated in a sandbox where every
// other parameter is bound as a global. An expression may only name
// parameters of the table and the math builtins; anything else is a
// contract violation reported as UndefinedParameterError before any
// evaluation happens.
package params

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"sort"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/lisp"
)

var nameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Resolved holds the concrete value of every parameter.
type Resolved struct {
	values  map[string]Value
	symbols map[string]string // zygomys symbol -> parameter name
	order   []string
	prelude string
}

// Resolve checks the manifest, orders expressions by dependency and
// evaluates them. The result holds only scalar, vector and count values.
func Resolve(t Table, manifest []string) (*Resolved, error) {
	var missing []string
	for _, name := range manifest {
		if _, ok := t[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &assembly.UndefinedParameterError{Names: missing, In: "manifest"}
	}

	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)

	builtins := lisp.Builtins()
	symbols := make(map[string]string, len(t))
	for _, name := range names {
		if !nameRE.MatchString(name) {
			return nil, &assembly.ParameterInconsistencyError{Parameter: name, Reason: "not a valid parameter name"}
		}
		sym := lisp.Symbol(name)
		if prev, dup := symbols[sym]; dup {
			return nil, &assembly.ParameterInconsistencyError{Parameter: name, Reason: fmt.Sprintf("collides with %q", prev)}
		}
		if _, found := slices.BinarySearch(builtins, sym); found {
			return nil, &assembly.ParameterInconsistencyError{Parameter: name, Reason: "shadows a builtin"}
		}
		symbols[sym] = name
	}

	deps := make(map[string][]string, len(t))
	for _, name := range names {
		v := t[name]
		if v.Kind != KindExpr {
			continue
		}
		d, err := dependencies(v.Expr, name, symbols)
		if err != nil {
			return nil, err
		}
		deps[name] = d
	}

	order, err := topoSort(names, deps)
	if err != nil {
		return nil, err
	}

	r := &Resolved{values: make(map[string]Value, len(t)), symbols: symbols}
	for _, name := range order {
		v := t[name]
		if v.Kind == KindExpr {
			v, err = r.evalExpr(v.Expr, name)
			if err != nil {
				return nil, err
			}
		}
		r.bind(name, v)
	}
	return r, nil
}

// dependencies returns the parameter names expr refers to.
func dependencies(expr, where string, symbols map[string]string) ([]string, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, &assembly.ParameterInconsistencyError{Parameter: where, Reason: "empty expression"}
	}
	builtins := lisp.Builtins()
	var deps, undefined []string
	for _, id := range lisp.Identifiers(lisp.Preprocess(expr)) {
		if name, ok := symbols[id]; ok {
			deps = append(deps, name)
			continue
		}
		if _, found := slices.BinarySearch(builtins, id); found {
			continue
		}
		undefined = append(undefined, id)
	}
	if len(undefined) > 0 {
		return nil, &assembly.UndefinedParameterError{Names: undefined, In: where}
	}
	return deps, nil
}

// topoSort orders names so that each comes after its dependencies. Ties
// keep alphabetical order.
func topoSort(names []string, deps map[string][]string) ([]string, error) {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(names))
	order := make([]string, 0, len(names))
	var stack []string

	var visit func(string) error
	visit = func(n string) error {
		switch color[n] {
		case black:
			return nil
		case grey:
			i := slices.Index(stack, n)
			cycle := append(append([]string(nil), stack[i:]...), n)
			return &assembly.ParameterInconsistencyError{
				Parameter: n,
				Reason:    "cyclic dependency " + strings.Join(cycle, " -> "),
			}
		}
		color[n] = grey
		stack = append(stack, n)
		for _, d := range deps[n] {
			if err := visit(d); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		order = append(order, n)
		return nil
	}
	for _, n := range names {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (r *Resolved) bind(name string, v Value) {
	r.values[name] = v
	r.order = append(r.order, name)
	r.prelude += fmt.Sprintf("(def %s %s)\n", lisp.Symbol(name), v.Literal())
}

// evalExpr evaluates expr with every parameter bound so far. A bare
// parameter name yields that parameter's value.
func (r *Resolved) evalExpr(expr, where string) (Value, error) {
	if v, ok := r.reference(expr); ok {
		return v, nil
	}
	res, err := lisp.Eval(r.prelude+expr, nil)
	if err != nil {
		return Value{}, fmt.Errorf("params: evaluating %s: %w", where, err)
	}
	switch x := res.(type) {
	case *zygo.SexpInt:
		return Count(int(x.Val)), nil
	case *zygo.SexpFloat:
		if math.IsNaN(x.Val) || math.IsInf(x.Val, 0) {
			return Value{}, &assembly.ParameterInconsistencyError{Parameter: where, Derived: x.Val, Reason: "expression is not finite"}
		}
		return Scalar(x.Val), nil
	case *lisp.Vec:
		return Vector(x.V), nil
	}
	return Value{}, fmt.Errorf("params: %s: expression yields %s, want number or vec3", where, res.SexpString(nil))
}

// reference reports whether expr is a single parameter name and returns its
// value. The sandbox answers a lone symbol with the last binding of the
// prelude, so references never reach it.
func (r *Resolved) reference(expr string) (Value, bool) {
	id := strings.TrimSpace(expr)
	if !nameRE.MatchString(id) {
		return Value{}, false
	}
	name, ok := r.symbols[lisp.Symbol(id)]
	if !ok {
		return Value{}, false
	}
	v, ok := r.values[name]
	return v, ok
}

// Names returns parameter names in evaluation order.
func (r *Resolved) Names() []string { return append([]string(nil), r.order...) }

// Get returns the resolved value of name.
func (r *Resolved) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Eval resolves v, which may be a literal or an expression over the
// resolved parameters. where names the caller in errors.
func (r *Resolved) Eval(v Value, where string) (Value, error) {
	if v.Kind != KindExpr {
		return v, nil
	}
	if rv, ok := r.reference(v.Expr); ok {
		return rv, nil
	}
	if _, err := dependencies(v.Expr, where, r.symbols); err != nil {
		return Value{}, err
	}
	return r.evalExpr(v.Expr, where)
}

// Float resolves v as a scalar; counts convert.
func (r *Resolved) Float(v Value, where string) (float64, error) {
	v, err := r.Eval(v, where)
	if err != nil {
		return 0, err
	}
	switch v.Kind {
	case KindScalar:
		return v.Scalar, nil
	case KindCount:
		return float64(v.Count), nil
	}
	return 0, fmt.Errorf("params: %s: expected a number, got vector %s", where, v.Vector)
}

// Int resolves v as a count; integral scalars convert.
func (r *Resolved) Int(v Value, where string) (int, error) {
	v, err := r.Eval(v, where)
	if err != nil {
		return 0, err
	}
	switch v.Kind {
	case KindCount:
		return v.Count, nil
	case KindScalar:
		if v.Scalar == math.Trunc(v.Scalar) {
			return int(v.Scalar), nil
		}
		return 0, fmt.Errorf("params: %s: expected an integer, got %g", where, v.Scalar)
	}
	return 0, fmt.Errorf("params: %s: expected an integer, got vector %s", where, v.Vector)
}

// Vec resolves v as a vector.
func (r *Resolved) Vec(v Value, where string) (assembly.Vec3, error) {
	v, err := r.Eval(v, where)
	if err != nil {
		return assembly.Vec3{}, err
	}
	if v.Kind != KindVector {
		return assembly.Vec3{}, fmt.Errorf("params: %s: expected a vector, got %s", where, v)
	}
	return v.Vector, nil
}

// Lookup returns the named parameter as a count.
func (r *Resolved) Lookup(name string) (int, error) {
	v, ok := r.values[name]
	if !ok {
		return 0, &assembly.UndefinedParameterError{Names: []string{name}, In: "lookup"}
	}
	return r.Int(v, name)
}
