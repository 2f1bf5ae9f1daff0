package lisp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
)

// Timeout bounds a single Eval.
const Timeout = 2 * time.Second

// Error is a parse or runtime error in Lisp source.
type Error struct {
	Line    int
	Col     int
	Message string
}

func (e Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Errors is the set of errors from one evaluation.
type Errors []Error

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// ParseErrors converts a zygomys error into Errors, extracting the line
// number when the message carries one.
func ParseErrors(err error) Errors {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return Errors{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return Errors{{Message: strings.TrimSpace(msg)}}
}

type evalResult struct {
	val zygo.Sexp
	err error
}

// Run evaluates src synchronously in a fresh sandbox with the math
// builtins and Prelude installed, after calling setup (which may be nil).
// It returns the value of the last expression. Parse and runtime failures
// are returned as Errors.
func Run(src string, setup func(env *zygo.Zlisp)) (zygo.Sexp, error) {
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	RegisterMath(env)
	if setup != nil {
		setup(env)
	}
	if err := env.LoadString(Prelude + Preprocess(src)); err != nil {
		return nil, ParseErrors(err)
	}
	v, err := env.Run()
	if err != nil {
		return nil, ParseErrors(err)
	}
	return v, nil
}

// Eval is Run bounded by Timeout, with panics in user code recovered.
func Eval(src string, setup func(env *zygo.Zlisp)) (zygo.Sexp, error) {
	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("lisp: panic during evaluation: %v", r)}
			}
		}()
		v, err := Run(src, setup)
		ch <- evalResult{val: v, err: err}
	}()

	timer := time.NewTimer(Timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.val, r.err
	case <-timer.C:
		return nil, fmt.Errorf("lisp: evaluation timed out after %s", Timeout)
	}
}
