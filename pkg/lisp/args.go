package lisp

import (
	"fmt"
	"math"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/rigkit/pkg/assembly"
)

// KWPrefix is the marker Preprocess prepends to keyword names.
const KWPrefix = "__kw_"

// IsKW reports whether s is a preprocessed keyword and returns its name.
func IsKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, KWPrefix) {
		return str.S[len(KWPrefix):], true
	}
	return "", false
}

// Args is a mixed positional and keyword argument list.
type Args struct {
	KW         map[string]zygo.Sexp
	Positional []zygo.Sexp
}

// ParseArgs separates args into keyword and positional arguments.
func ParseArgs(args []zygo.Sexp) Args {
	result := Args{KW: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := IsKW(args[i])
		if !ok {
			result.Positional = append(result.Positional, args[i])
			i++
			continue
		}
		if i+1 < len(args) {
			result.KW[name] = args[i+1]
			i += 2
		} else {
			result.KW[name] = zygo.SexpNull
			i++
		}
	}
	return result
}

// Has reports whether keyword name was supplied.
func (a Args) Has(name string) bool {
	_, ok := a.KW[name]
	return ok
}

// Float returns keyword name as a number, or def when absent.
func (a Args) Float(name string, def float64) (float64, error) {
	v, ok := a.KW[name]
	if !ok {
		return def, nil
	}
	f, err := ToFloat(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}

// String returns keyword name as a string or keyword, or def when absent.
func (a Args) String(name, def string) (string, error) {
	v, ok := a.KW[name]
	if !ok {
		return def, nil
	}
	s, err := ToKeyword(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// Vec returns keyword name as a vector, or nil when absent.
func (a Args) Vec(name string) (*assembly.Vec3, error) {
	v, ok := a.KW[name]
	if !ok {
		return nil, nil
	}
	vec, err := ToVec(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &vec, nil
}

// ToFloat extracts a float64 from a SexpInt or SexpFloat.
func ToFloat(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// ToInt extracts an integer; floats must be integral.
func ToInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == math.Trunc(v.Val) {
			return int(v.Val), nil
		}
		return 0, fmt.Errorf("expected integer, got %g", v.Val)
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// ToString extracts a string from a SexpStr.
func ToString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// ToKeyword extracts a keyword name or plain string.
func ToKeyword(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, KWPrefix), nil
}

// ToList converts a list or array to a Go slice.
func ToList(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ToStrings converts a list of strings or keywords.
func ToStrings(s zygo.Sexp) ([]string, error) {
	items, err := ToList(s)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		str, err := ToKeyword(it)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, str)
	}
	return out, nil
}

// ToVec accepts a vec3 value or a three-number list.
func ToVec(s zygo.Sexp) (assembly.Vec3, error) {
	if v, ok := s.(*Vec); ok {
		return v.V, nil
	}
	items, err := ToList(s)
	if err != nil || len(items) != 3 {
		return assembly.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
	}
	var c [3]float64
	for i, it := range items {
		if c[i], err = ToFloat(it); err != nil {
			return assembly.Vec3{}, fmt.Errorf("vec3 component %d: %w", i, err)
		}
	}
	return assembly.Vec3{X: c[0], Y: c[1], Z: c[2]}, nil
}
