// Package engine evaluates rigkit generator scripts. A script is zygomys
// Lisp that declares parameters, sections, nodes, members, joints, profiles
// and loads through DSL builtins; evaluation produces a pipeline.Blueprint
// that the pipeline turns into a scene.
package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/rigkit/pkg/lisp"
	"github.com/chazu/rigkit/pkg/params"
	"github.com/chazu/rigkit/pkg/pipeline"
)

// EvalError is a non-fatal error in user code, such as a parse error or a
// builtin rejecting its arguments.
type EvalError = lisp.Error

// EvalWarning is a non-fatal finding about an evaluation that succeeded.
type EvalWarning struct {
	Message string
	Param   string
}

func (w EvalWarning) String() string {
	if w.Param != "" {
		return fmt.Sprintf("%s: %s", w.Param, w.Message)
	}
	return w.Message
}

// EvalResult bundles the full output of an evaluation.
type EvalResult struct {
	Blueprint *pipeline.Blueprint
	Errors    []EvalError
	Warnings  []EvalWarning
}

// Engine evaluates scripts. It is safe for concurrent use; each call to
// Evaluate creates a fresh sandbox, and a result that arrives after a newer
// call has started is discarded.
type Engine struct {
	// Timeout bounds one evaluation. Zero means EvalTimeout.
	Timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{Timeout: EvalTimeout}
}

// Evaluate runs source and returns the blueprint it declares. Overrides
// replace the defaults of parameters the script declares with param.
//
// Return semantics:
//   - On success: returns blueprint + nil errors + nil error
//   - On parse/eval failure: returns nil blueprint + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string, overrides params.Table) (*pipeline.Blueprint, []EvalError, error) {
	res, err := e.EvaluateResult(source, overrides)
	if err != nil {
		return nil, nil, err
	}
	return res.Blueprint, res.Errors, nil
}

// EvaluateResult is Evaluate with warnings.
func (e *Engine) EvaluateResult(source string, overrides params.Table) (*EvalResult, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		res := evaluate(source, overrides)
		ch <- evalResult{result: res}
	}()

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = EvalTimeout
	}
	return waitWithTimeout(ch, gen, timeout, &e.mu, &e.generation)
}

// evaluate performs the evaluation in a fresh sandbox.
func evaluate(source string, overrides params.Table) *EvalResult {
	b := newBuilder(overrides)

	// Empty source is a valid program that declares nothing.
	if strings.TrimSpace(source) == "" {
		return &EvalResult{Blueprint: b.bp, Warnings: b.unusedOverrides()}
	}

	_, err := lisp.Run(overridePrelude(overrides)+source, func(env *zygo.Zlisp) {
		registerBuiltins(env, b)
	})
	if err != nil {
		if errs, ok := err.(lisp.Errors); ok {
			return &EvalResult{Errors: errs}
		}
		return &EvalResult{Errors: []EvalError{{Message: err.Error()}}}
	}
	return &EvalResult{Blueprint: b.bp, Warnings: b.unusedOverrides()}
}

// overridePrelude binds every literal override as a global so scripts can
// use the value before reaching the matching param call. It stays on one
// line to keep error line numbers aligned with the script.
func overridePrelude(overrides params.Table) string {
	names := make([]string, 0, len(overrides))
	for name, v := range overrides {
		if v.Kind != params.KindExpr {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "(def %s %s) ", lisp.Symbol(name), overrides[name].Literal())
	}
	return sb.String()
}
