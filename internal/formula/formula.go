// Package formula evaluates formula field expressions.
//
// A formula references fields of its own record with {field} placeholders
// and otherwise uses the gval expression language:
//
//	{price} * {quantity}
//	round({total} / {nights}, 2)
//	{status} == "paid" ? 0 : {total}
//	concat({first}, " ", {last})
package formula

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/PaesslerAG/gval"

	"github.com/roach88/cascade/internal/ir"
)

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// References returns the field ids a formula reads, in first-use order.
func References(expr string) []string {
	var refs []string
	seen := map[string]bool{}
	for _, m := range placeholder.FindAllStringSubmatch(expr, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		refs = append(refs, name)
	}
	return refs
}

// Evaluator compiles and runs formulas. Compiled expressions are cached,
// so an Evaluator is meant to be shared; it is safe for concurrent use.
type Evaluator struct {
	lang gval.Language

	mu       sync.Mutex
	compiled map[string]*program
}

type program struct {
	eval gval.Evaluable
	refs []string          // field ids in first-use order
	vars map[string]string // field id -> parameter name
}

// NewEvaluator creates an Evaluator with the full gval language plus the
// record helpers round, concat, coalesce and len.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		lang: gval.Full(
			gval.Function("round", round),
			gval.Function("concat", concat),
			gval.Function("coalesce", coalesce),
			gval.Function("len", length),
		),
		compiled: make(map[string]*program),
	}
}

// Compile parses a formula without evaluating it.
func (e *Evaluator) Compile(expr string) error {
	_, err := e.program(expr)
	return err
}

func (e *Evaluator) program(expr string) (*program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.compiled[expr]; ok {
		return p, nil
	}

	p := &program{vars: make(map[string]string)}
	rewritten := placeholder.ReplaceAllStringFunc(expr, func(m string) string {
		name := strings.TrimSpace(m[1 : len(m)-1])
		v, ok := p.vars[name]
		if !ok {
			v = fmt.Sprintf("ref%d", len(p.vars))
			p.vars[name] = v
			p.refs = append(p.refs, name)
		}
		return v
	})

	eval, err := e.lang.NewEvaluable(rewritten)
	if err != nil {
		return nil, fmt.Errorf("parse formula %q: %w", expr, err)
	}
	p.eval = eval
	e.compiled[expr] = p
	return p, nil
}

// Execute evaluates a formula against a record's fields. activeFields
// lists the fields the model currently defines; referencing anything else
// is an error. A nil activeFields allows every field.
//
// The boolean result is false when the formula evaluates to nothing
// (nil), which callers treat as "undefined".
func (e *Evaluator) Execute(ctx context.Context, expr string, record ir.IRObject, activeFields []string) (ir.IRValue, bool, error) {
	p, err := e.program(expr)
	if err != nil {
		return nil, false, err
	}

	var active map[string]bool
	if activeFields != nil {
		active = make(map[string]bool, len(activeFields))
		for _, f := range activeFields {
			active[f] = true
		}
	}

	params := make(map[string]any, len(p.vars))
	for _, ref := range p.refs {
		if active != nil && !active[ref] {
			return nil, false, fmt.Errorf("formula references unknown field %q", ref)
		}
		params[p.vars[ref]] = ir.ToGo(record[ref])
	}

	out, err := p.eval(ctx, params)
	if err != nil {
		return nil, false, fmt.Errorf("evaluate formula %q: %w", expr, err)
	}
	if out == nil {
		return nil, false, nil
	}

	val, err := ir.FromGo(out)
	if err != nil {
		return nil, false, fmt.Errorf("formula %q result: %w", expr, err)
	}
	return val, true, nil
}

func round(args ...any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("round expects 1 or 2 arguments, got %d", len(args))
	}
	x, ok := args[0].(float64)
	if !ok {
		return nil, fmt.Errorf("round: %v is not a number", args[0])
	}
	digits := 0.0
	if len(args) == 2 {
		if digits, ok = args[1].(float64); !ok {
			return nil, fmt.Errorf("round: %v is not a number", args[1])
		}
	}
	pow := math.Pow(10, digits)
	return math.Round(x*pow) / pow, nil
}

func concat(args ...any) (any, error) {
	var b strings.Builder
	for _, a := range args {
		if a == nil {
			continue
		}
		if f, ok := a.(float64); ok {
			v, err := ir.MarshalIRValue(ir.IRNumber(f))
			if err != nil {
				return nil, err
			}
			b.Write(v)
			continue
		}
		fmt.Fprint(&b, a)
	}
	return b.String(), nil
}

func coalesce(args ...any) (any, error) {
	for _, a := range args {
		if a != nil && a != "" {
			return a, nil
		}
	}
	return nil, nil
}

func length(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("len expects 1 argument, got %d", len(args))
	}
	switch v := args[0].(type) {
	case nil:
		return 0.0, nil
	case string:
		return float64(len([]rune(v))), nil
	case []any:
		return float64(len(v)), nil
	default:
		return nil, fmt.Errorf("len: unsupported %T", v)
	}
}
